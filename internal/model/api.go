package model

// CreateMessageRequest is the request to create a message or a reply.
// Category is never part of the request; routing derives it.
type CreateMessageRequest struct {
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	TargetID    string   `json:"target_id,omitempty"`
	Copy        []string `json:"copy,omitempty"`
	CaseRef     string   `json:"case_ref,omitempty"`
	ParentID    string   `json:"parent_id,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// CreateMessageResponse is returned after a message is persisted. Fan-out is
// best-effort and not reflected here.
type CreateMessageResponse struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"thread_id"`
	Category Category `json:"category"`
}

// InboxFilter selects which threads buildInbox returns.
type InboxFilter string

const (
	InboxFilterAll      InboxFilter = "all"
	InboxFilterSent     InboxFilter = "sent"
	InboxFilterReceived InboxFilter = "received"
	InboxFilterUnread   InboxFilter = "unread"
)

// ListInboxResponse is the ordered inbox listing.
type ListInboxResponse struct {
	Threads []ThreadSummary `json:"threads"`
	Total   int             `json:"total"`
}

// BatchMarkReadRequest asks to mark a set of messages read for the caller.
type BatchMarkReadRequest struct {
	MessageIDs []string `json:"message_ids"`
}

// BatchMarkReadResponse reports how many messages actually changed state.
type BatchMarkReadResponse struct {
	Updated int `json:"updated"`
}

// ListNotificationsResponse lists a user's notifications.
type ListNotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}

// ListTrashResponse lists trash entries visible to the caller.
type ListTrashResponse struct {
	Entries []TrashEntry `json:"entries"`
}
