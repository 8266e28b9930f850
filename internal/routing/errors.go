package routing

import "errors"

// Routing failures are user-correctable and abort message creation before
// anything is persisted. Handlers map them to 4xx responses.
var (
	ErrNoStaffAvailable        = errors.New("no active staff available to receive the message")
	ErrNotAuthorizedForCase    = errors.New("case is not transmitted to this partner")
	ErrInvalidTarget           = errors.New("target must resolve to a staff user")
	ErrTargetRequired          = errors.New("a target recipient is required")
	ErrSelfAddressed           = errors.New("cannot address a message to yourself")
	ErrRecipientNotFound       = errors.New("target recipient not found or inactive")
	ErrInvalidCopyRecipient    = errors.New("copy recipient not found or inactive")
	ErrClientToClientForbidden = errors.New("direct client targeting is not permitted")
	ErrUnknownRole             = errors.New("sender role is not recognized")
)
