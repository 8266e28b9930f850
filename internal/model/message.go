package model

import (
	"time"
)

// Category tags who is talking to whom. It is derived by the routing policy
// from the role pair and never accepted from a client.
type Category string

const (
	CategoryClientToStaff  Category = "client_to_staff"
	CategoryStaffToClient  Category = "staff_to_client"
	CategoryStaffToStaff   Category = "staff_to_staff"
	CategoryPartnerToStaff Category = "partner_to_staff"
)

// Marker records that a user acted on a message (read it, archived it).
// A user appears at most once per marker list.
type Marker struct {
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

// Message is a single persisted message. Thread structure is derived from
// ThreadID/ParentID at read time, never stored.
type Message struct {
	ID       string  `json:"id"`
	ThreadID string  `json:"thread_id"`
	ParentID *string `json:"parent_id,omitempty"`

	SenderID       string   `json:"sender_id"`
	Recipients     []string `json:"recipients"`
	CopyRecipients []string `json:"copy_recipients,omitempty"`
	Category       Category `json:"category"`

	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments,omitempty"`

	// CaseRef links the message to a dossier. Required for thread roots;
	// replies inherit it, and a reply whose parent carries none is stored
	// without one.
	CaseRef *string `json:"case_ref,omitempty"`

	ReadBy     []Marker `json:"read_by,omitempty"`
	ArchivedBy []Marker `json:"archived_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsReadBy reports whether userID has a read marker on the message.
func (m *Message) IsReadBy(userID string) bool {
	return markedBy(m.ReadBy, userID)
}

// IsArchivedBy reports whether userID has archived the message.
func (m *Message) IsArchivedBy(userID string) bool {
	return markedBy(m.ArchivedBy, userID)
}

// IsRecipient reports whether userID is a principal recipient.
func (m *Message) IsRecipient(userID string) bool {
	return contains(m.Recipients, userID)
}

// IsCopied reports whether userID is a copy recipient.
func (m *Message) IsCopied(userID string) bool {
	return contains(m.CopyRecipients, userID)
}

// Involves reports whether userID is the sender, a recipient, or in copy.
// This is the visibility rule for inbox assembly and batch read marking.
func (m *Message) Involves(userID string) bool {
	return m.SenderID == userID || m.IsRecipient(userID) || m.IsCopied(userID)
}

// IsAddressedTo reports whether userID is a recipient or copy recipient.
// Only addressed users get implicit read marking when viewing a thread.
func (m *Message) IsAddressedTo(userID string) bool {
	return m.IsRecipient(userID) || m.IsCopied(userID)
}

func markedBy(markers []Marker, userID string) bool {
	for _, marker := range markers {
		if marker.UserID == userID {
			return true
		}
	}
	return false
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
