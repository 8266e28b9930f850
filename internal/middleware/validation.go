package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cabinet-legal/case-messaging/internal/model"
)

// ValidateSubject validates a message subject.
func ValidateSubject(subject string) error {
	if len(subject) == 0 {
		return errors.New("subject cannot be empty")
	}
	if len(subject) > 512 {
		return errors.New("subject exceeds maximum length")
	}
	if !utf8.ValidString(subject) {
		return errors.New("subject must be valid UTF-8")
	}
	return nil
}

// ValidateBody validates a message body.
func ValidateBody(body string) error {
	if len(body) == 0 {
		return errors.New("body cannot be empty")
	}
	if len(body) > 100000 { // ~100KB limit
		return errors.New("body exceeds maximum length")
	}
	if !utf8.ValidString(body) {
		return errors.New("body must be valid UTF-8")
	}
	return nil
}

// ValidateMessageID validates a message ID.
func ValidateMessageID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid message ID format")
	}
	return nil
}

// ValidateThreadID validates a thread ID. Thread ids are message ids (a root
// message anchors its own thread).
func ValidateThreadID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid thread ID format")
	}
	return nil
}

// ValidateInboxFilter validates an inbox filter query value.
func ValidateInboxFilter(filter string) error {
	switch model.InboxFilter(filter) {
	case "", model.InboxFilterAll, model.InboxFilterSent, model.InboxFilterReceived, model.InboxFilterUnread:
		return nil
	}
	return errors.New("invalid inbox filter")
}
