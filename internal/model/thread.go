package model

import (
	"time"
)

// Thread is a derived view over the messages sharing a thread id. It is
// recomputed from the message set on every read and never persisted.
type Thread struct {
	ThreadID     string    `json:"thread_id"`
	Root         *Message  `json:"root,omitempty"`
	Messages     []Message `json:"messages"`
	LastMessage  *Message  `json:"last_message,omitempty"`
	Unread       bool      `json:"unread"`
	Participants []string  `json:"participants"`
}

// ThreadSummary is the inbox line for a thread.
type ThreadSummary struct {
	ThreadID      string    `json:"thread_id"`
	Subject       string    `json:"subject"`
	CaseRef       *string   `json:"case_ref,omitempty"`
	LastSenderID  string    `json:"last_sender_id"`
	LastPreview   string    `json:"last_preview"`
	LastMessageAt time.Time `json:"last_message_at"`
	MessageCount  int       `json:"message_count"`
	Unread        bool      `json:"unread"`
	Participants  []string  `json:"participants"`
}
