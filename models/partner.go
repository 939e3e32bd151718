package models

// Partner is the other party in a one-to-one conversation.
type Partner struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	UnreadCount int    `json:"unread_count"`
}
