package property

import (
	"fmt"
	"strings"
)

// Role is the permission level of an actor.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
	RoleViewer  Role = "viewer"
)

// ParseRole maps free-form input to a known role. Unknown values become viewer.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleAnalyst, RoleViewer:
		return r
	default:
		return RoleViewer
	}
}

// Actor is the identity on whose behalf a mutation runs.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// CanWrite reports whether the actor may mutate aggregates.
func (a Actor) CanWrite() bool {
	return a.Role == RoleAdmin || a.Role == RoleAnalyst
}

// Authorize fails unless the actor holds one of the given roles.
func (a Actor) Authorize(roles ...Role) error {
	for _, r := range roles {
		if a.Role == r {
			return nil
		}
	}
	return fmt.Errorf("insufficient role for this operation: %s", a.Role)
}
