package directory

import (
	"context"
	"sync"

	"github.com/cabinet-legal/case-messaging/internal/model"
)

// Static is an in-memory Directory and CaseTransmissions implementation,
// used in tests and local development where no directory service runs.
type Static struct {
	mu            sync.RWMutex
	users         map[string]model.User
	transmissions map[string]bool // caseRef + "/" + partnerID
}

// NewStatic creates an empty static directory.
func NewStatic() *Static {
	return &Static{
		users:         make(map[string]model.User),
		transmissions: make(map[string]bool),
	}
}

// AddUser registers or replaces a user.
func (s *Static) AddUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// SetTransmission records whether caseRef is transmitted to partnerID.
func (s *Static) SetTransmission(caseRef, partnerID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transmissions[caseRef+"/"+partnerID] = active
}

// ResolveUser implements Directory.
func (s *Static) ResolveUser(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// ListActiveStaff implements Directory. Staff covers the admin tier.
func (s *Static) ListActiveStaff(ctx context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var staff []model.User
	for _, u := range s.users {
		if u.Active && u.Role.IsStaff() {
			staff = append(staff, u)
		}
	}
	return staff, nil
}

// ListActiveUsersByRole implements Directory.
func (s *Static) ListActiveUsersByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.User
	for _, u := range s.users {
		if u.Active && u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

// IsCaseTransmittedToPartner implements CaseTransmissions.
func (s *Static) IsCaseTransmittedToPartner(ctx context.Context, caseRef, partnerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transmissions[caseRef+"/"+partnerID], nil
}
