package models

import "strings"

// Notification is a one-way system-to-user event. LinkURL may be empty, a
// navigable path, an absolute URL, or a sentinel form resolved by the notify
// package.
type Notification struct {
	NotificationID int64  `json:"notification_id"`
	Message        string `json:"message"`
	LinkURL        string `json:"link_url,omitempty"`
	IsRead         int    `json:"is_read"`
	CreatedAt      string `json:"created_at"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
}

// ActorName returns the attributed actor's display name, or "System" when the
// notification has no attributed actor.
func (n Notification) ActorName() string {
	name := strings.TrimSpace(strings.TrimSpace(n.FirstName) + " " + strings.TrimSpace(n.LastName))
	if name == "" {
		return "System"
	}
	return name
}
