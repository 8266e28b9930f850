package model

import (
	"time"
)

// NotificationKind identifies the event a notification reports.
type NotificationKind string

const (
	// NotificationMessageReceived is sent to the principal recipients of a message.
	NotificationMessageReceived NotificationKind = "message_received"
	// NotificationMessageInCopy is sent to copy recipients.
	NotificationMessageInCopy NotificationKind = "message_in_copy"
	// NotificationMessageRead is sent to the sender when a recipient first reads
	// the message, and to colleagues for client messages read by staff.
	NotificationMessageRead NotificationKind = "message_read"
	// NotificationMessageObserved keeps uninvolved staff aware of staff-initiated
	// conversations.
	NotificationMessageObserved NotificationKind = "message_observed"
)

// Notification is an in-app notification owned by a single recipient.
// Read state here is independent of message read state.
type Notification struct {
	ID          string            `json:"id"`
	RecipientID string            `json:"recipient_id"`
	Kind        NotificationKind  `json:"kind"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Link        string            `json:"link,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Read        bool              `json:"read"`
	CreatedAt   time.Time         `json:"created_at"`
}

// MessageID returns the triggering message id recorded in the notification
// metadata, or "" when the notification is not message-scoped.
func (n *Notification) MessageID() string {
	return n.Metadata["message_id"]
}

// ActorID returns the user whose action triggered the notification, or ""
// when the trigger has no per-user identity. Read receipts carry the reader
// here so each reader's first read stays a distinct notification.
func (n *Notification) ActorID() string {
	return n.Metadata["actor_id"]
}
