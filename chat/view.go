package chat

import (
	"strings"
	"time"

	"clinicsync/models"
)

// RenderKind selects the bubble body variant. PDF and doc attachments render
// the same generic attachment link; only images get a thumbnail.
type RenderKind string

const (
	// KindText renders inline text.
	KindText RenderKind = "text"
	// KindImage renders a tappable thumbnail.
	KindImage RenderKind = "image"
	// KindAttachment renders a generic download link.
	KindAttachment RenderKind = "attachment"
)

// Receipt is the read indicator shown on own messages only.
type Receipt string

const (
	// ReceiptNone is used for inbound messages.
	ReceiptNone Receipt = ""
	// ReceiptSent is the single check: delivered, not yet read.
	ReceiptSent Receipt = "sent"
	// ReceiptRead is the double check.
	ReceiptRead Receipt = "read"
)

// Bubble is the presentation-ready form of one message. Building bubbles
// never mutates the message cache.
type Bubble struct {
	MessageID int64
	Own       bool
	Kind      RenderKind
	Body      string
	FileURL   string
	Time      string
	Receipt   Receipt
}

// BuildBubbles derives render state for a message list. Alignment trusts the
// backend's is_sender framing; the client does not recompute the identity
// comparison. fileBaseURL is joined onto server-relative attachment paths.
func BuildBubbles(messages []models.Message, fileBaseURL string) []Bubble {
	bubbles := make([]Bubble, 0, len(messages))
	for _, msg := range messages {
		bubbles = append(bubbles, buildBubble(msg, fileBaseURL))
	}
	return bubbles
}

func buildBubble(msg models.Message, fileBaseURL string) Bubble {
	b := Bubble{
		MessageID: msg.MessageID,
		Own:       msg.IsSender,
		Time:      formatClock(msg.CreatedAt),
	}

	switch msg.MessageType {
	case models.MessageTypeImage:
		b.Kind = KindImage
		b.FileURL = joinFileURL(fileBaseURL, msg.MessageText)
	case models.MessageTypePDF, models.MessageTypeDoc:
		b.Kind = KindAttachment
		b.FileURL = joinFileURL(fileBaseURL, msg.MessageText)
	default:
		b.Kind = KindText
		b.Body = msg.MessageText
	}

	if msg.IsSender {
		if msg.IsRead != 0 {
			b.Receipt = ReceiptRead
		} else {
			b.Receipt = ReceiptSent
		}
	}

	return b
}

// formatClock renders the server's ISO timestamp as a local wall-clock time.
// An unparseable timestamp is passed through untouched rather than dropped.
func formatClock(createdAt string) string {
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return createdAt
	}
	return t.Format("03:04 PM")
}

func joinFileURL(base, path string) string {
	if base == "" {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
