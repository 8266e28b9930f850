package messaging

import "errors"

var (
	ErrSubjectRequired = errors.New("subject must not be empty")
	ErrBodyRequired    = errors.New("body must not be empty")
	ErrCaseRefRequired = errors.New("a case reference is required for a new thread")
	ErrParentNotFound  = errors.New("parent message not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrThreadNotFound  = errors.New("thread not found")
	ErrNotAllowed      = errors.New("not allowed")
)
