// Package model defines data structures for the case messaging service.
package model

// Role identifies what kind of account a user holds. The set is closed:
// routing decisions switch over it exhaustively, so adding a role is a
// compile-time decision, never a silent fall-through.
type Role string

const (
	RoleClient     Role = "client"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
	RolePartner    Role = "partner"
	RoleGuest      Role = "guest"
)

// IsStaff reports whether the role belongs to the admin tier of the firm.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Known reports whether the role is one of the defined values.
func (r Role) Known() bool {
	switch r {
	case RoleClient, RoleAdmin, RoleSuperAdmin, RolePartner, RoleGuest:
		return true
	}
	return false
}

// User is the directory view of an account. The directory service owns the
// record; this core only reads it.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Role   Role   `json:"role"`
	Active bool   `json:"active"`
	Phone  string `json:"phone,omitempty"`
}
