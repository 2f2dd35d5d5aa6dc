package model

import "time"

// Role is a membership role within an entity.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleMember || r == RoleAdmin || r == RoleOwner
}

// User is a locally provisioned account backed by the identity provider.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	AuthID    string    `json:"auth_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entity is a tenant organization.
type Entity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership links a user to an entity with a role.
type Membership struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	EntityID  string    `json:"entity_id"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionContext is the per-request view of an authenticated caller. It is
// built fresh for every request and never cached.
type SessionContext struct {
	User       User       `json:"user"`
	Entity     Entity     `json:"entity"`
	Membership Membership `json:"membership"`
	RequestID  string     `json:"request_id"`
}

// IsAdmin reports whether the caller is an admin or owner of the entity.
func (s SessionContext) IsAdmin() bool {
	return s.Membership.Role == RoleAdmin || s.Membership.Role == RoleOwner
}

// IsOwner reports whether the caller owns the entity.
func (s SessionContext) IsOwner() bool {
	return s.Membership.Role == RoleOwner
}

// HasRole reports whether the caller's role ranks at or above least.
func (s SessionContext) HasRole(least Role) bool {
	return roleRank(s.Membership.Role) >= roleRank(least)
}

func roleRank(r Role) int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}
