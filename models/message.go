package models

const (
	// MessageTypeText carries inline text in MessageText.
	MessageTypeText = "text"
	// MessageTypeImage carries a server-relative image URL in MessageText.
	MessageTypeImage = "image"
	// MessageTypePDF carries a server-relative PDF URL in MessageText.
	MessageTypePDF = "pdf"
	// MessageTypeDoc carries a server-relative document URL in MessageText.
	MessageTypeDoc = "doc"
)

// Message is one unit of conversation as returned by the chat endpoint.
//
// MessageID is server-assigned and ascending within a conversation. IsSender
// is computed by the backend against the requesting identity; the client
// never recomputes it. IsRead only ever transitions 0 to 1.
type Message struct {
	MessageID        int64  `json:"message_id"`
	SenderEmployeeID int64  `json:"sender_employee_id"`
	MessageType      string `json:"message_type"`
	MessageText      string `json:"message_text"`
	CreatedAt        string `json:"created_at"`
	IsRead           int    `json:"is_read"`
	IsSender         bool   `json:"is_sender"`
}
