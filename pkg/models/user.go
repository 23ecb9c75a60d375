package models

import "github.com/cloudshipai/loom/pkg/ids"

// UserStatus is the account lifecycle state consulted by eligibility gate 1
// in §4.7.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusDisabled UserStatus = "disabled"
)

// Skill is a named, leveled proficiency a user can hold, optionally expiring
// (a certification). The AssignmentService checks proficiency and
// expiration (with a grace period) as eligibility gate 3.
type Skill struct {
	Name          string  `json:"name"`
	Proficiency   float64 `json:"proficiency"`
	ExpiresAtUnix int64   `json:"expires_at_unix,omitempty"`
}

// User is the minimal directory record the assignment service needs.
// Richer profile data (name, email, etc.) belongs to a collaborator outside
// the core and is not modeled here.
type User struct {
	ID        ids.ID     `json:"id"`
	Status    UserStatus `json:"status"`
	Roles     []string   `json:"roles"`
	Skills    []Skill    `json:"skills"`
	JoinedAt  int64      `json:"joined_at_unix"`
}

// HasRole reports whether the user holds the given role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAllRoles reports whether the user holds every one of the given roles.
func (u User) HasAllRoles(roles []string) bool {
	for _, r := range roles {
		if !u.HasRole(r) {
			return false
		}
	}
	return true
}

// Skill looks up a named skill, reporting whether the user holds it.
func (u User) Skill(name string) (Skill, bool) {
	for _, s := range u.Skills {
		if s.Name == name {
			return s, true
		}
	}
	return Skill{}, false
}
