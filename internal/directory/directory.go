// Package directory defines the contracts to the user/role directory and the
// case transmission registry. Both are external services; this core only
// consumes them.
package directory

import (
	"context"
	"errors"

	"github.com/cabinet-legal/case-messaging/internal/model"
)

// ErrUserNotFound is returned when an id does not resolve to a user.
var ErrUserNotFound = errors.New("user not found")

// Directory resolves users and enumerates active accounts by role.
type Directory interface {
	ResolveUser(ctx context.Context, id string) (*model.User, error)
	ListActiveStaff(ctx context.Context) ([]model.User, error)
	ListActiveUsersByRole(ctx context.Context, role model.Role) ([]model.User, error)
}

// CaseTransmissions answers whether a case has an active, non-refused
// transmission to a partner organization.
type CaseTransmissions interface {
	IsCaseTransmittedToPartner(ctx context.Context, caseRef, partnerID string) (bool, error)
}
