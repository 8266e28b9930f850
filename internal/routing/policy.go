// Package routing computes the recipient set and category for a new message
// from the sender's role. It performs directory lookups but no writes, and is
// deterministic for a fixed directory state.
package routing

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cabinet-legal/case-messaging/internal/directory"
	"github.com/cabinet-legal/case-messaging/internal/model"
)

// Decision is the routing outcome for a message. Recipient and copy sets are
// deduplicated; order carries no meaning.
type Decision struct {
	Recipients     []string
	CopyRecipients []string
	Category       model.Category
}

// Policy implements the role-based routing rules.
type Policy struct {
	directory     directory.Directory
	transmissions directory.CaseTransmissions
}

// New creates a routing policy over the given collaborators.
func New(dir directory.Directory, transmissions directory.CaseTransmissions) *Policy {
	return &Policy{
		directory:     dir,
		transmissions: transmissions,
	}
}

// Route computes where a message from sender goes. targetID, copy and caseRef
// come straight from the create request and are validated here.
func (p *Policy) Route(ctx context.Context, sender model.User, targetID string, copy []string, caseRef string) (*Decision, error) {
	switch sender.Role {
	case model.RoleClient:
		return p.routeToAllStaff(ctx, sender.ID, model.CategoryClientToStaff)

	case model.RolePartner:
		return p.routePartner(ctx, sender, targetID, caseRef)

	case model.RoleAdmin, model.RoleSuperAdmin:
		return p.routeStaff(ctx, sender, targetID, copy)

	case model.RoleGuest:
		// Restricted roles reach staff only. Communication with clients is
		// staff-mediated, so a target resolving to a client is rejected
		// rather than ignored.
		if targetID != "" {
			target, err := p.directory.ResolveUser(ctx, targetID)
			if err != nil && !errors.Is(err, directory.ErrUserNotFound) {
				return nil, fmt.Errorf("failed to resolve target: %w", err)
			}
			if target != nil && target.Role == model.RoleClient {
				return nil, ErrClientToClientForbidden
			}
		}
		return p.routeToAllStaff(ctx, sender.ID, model.CategoryClientToStaff)
	}

	return nil, ErrUnknownRole
}

// routeToAllStaff addresses every active admin-tier user. Explicit targets
// and copy lists are ignored on this path.
func (p *Policy) routeToAllStaff(ctx context.Context, senderID string, category model.Category) (*Decision, error) {
	staff, err := p.directory.ListActiveStaff(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active staff: %w", err)
	}

	recipients := make([]string, 0, len(staff))
	seen := make(map[string]struct{}, len(staff))
	for _, s := range staff {
		if s.ID == senderID {
			continue
		}
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		recipients = append(recipients, s.ID)
	}

	if len(recipients) == 0 {
		return nil, ErrNoStaffAvailable
	}
	sort.Strings(recipients)

	return &Decision{
		Recipients: recipients,
		Category:   category,
	}, nil
}

func (p *Policy) routePartner(ctx context.Context, sender model.User, targetID, caseRef string) (*Decision, error) {
	if caseRef != "" {
		transmitted, err := p.transmissions.IsCaseTransmittedToPartner(ctx, caseRef, sender.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check case transmission: %w", err)
		}
		if !transmitted {
			return nil, ErrNotAuthorizedForCase
		}
	}

	if targetID != "" {
		target, err := p.directory.ResolveUser(ctx, targetID)
		if err != nil {
			if errors.Is(err, directory.ErrUserNotFound) {
				return nil, ErrInvalidTarget
			}
			return nil, fmt.Errorf("failed to resolve target: %w", err)
		}
		if !target.Active || !target.Role.IsStaff() {
			return nil, ErrInvalidTarget
		}
		return &Decision{
			Recipients: []string{target.ID},
			Category:   model.CategoryPartnerToStaff,
		}, nil
	}

	return p.routeToAllStaff(ctx, sender.ID, model.CategoryPartnerToStaff)
}

func (p *Policy) routeStaff(ctx context.Context, sender model.User, targetID string, copy []string) (*Decision, error) {
	if targetID == "" {
		return nil, ErrTargetRequired
	}
	if targetID == sender.ID {
		return nil, ErrSelfAddressed
	}

	target, err := p.directory.ResolveUser(ctx, targetID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("failed to resolve target: %w", err)
	}
	if !target.Active {
		return nil, ErrRecipientNotFound
	}

	category := model.CategoryStaffToStaff
	if target.Role == model.RoleClient {
		category = model.CategoryStaffToClient
	}

	copyRecipients, err := p.validateCopy(ctx, sender.ID, target.ID, copy)
	if err != nil {
		return nil, err
	}

	return &Decision{
		Recipients:     []string{target.ID},
		CopyRecipients: copyRecipients,
		Category:       category,
	}, nil
}

// validateCopy resolves each copy entry. Entries equal to the sender or the
// target are dropped silently; anything unresolvable or inactive fails the
// whole request.
func (p *Policy) validateCopy(ctx context.Context, senderID, targetID string, copy []string) ([]string, error) {
	if len(copy) == 0 {
		return nil, nil
	}

	out := make([]string, 0, len(copy))
	seen := make(map[string]struct{}, len(copy))
	for _, id := range copy {
		if id == "" || id == senderID || id == targetID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}

		user, err := p.directory.ResolveUser(ctx, id)
		if err != nil {
			if errors.Is(err, directory.ErrUserNotFound) {
				return nil, ErrInvalidCopyRecipient
			}
			return nil, fmt.Errorf("failed to resolve copy recipient: %w", err)
		}
		if !user.Active {
			return nil, ErrInvalidCopyRecipient
		}

		seen[id] = struct{}{}
		out = append(out, id)
	}

	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
