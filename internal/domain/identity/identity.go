package identity

import "github.com/google/uuid"

// Role tags an authenticated user as one side of the marketplace.
type Role string

const (
	RoleRider  Role = "RIDER"
	RoleDriver Role = "DRIVER"
)

// IsValid validates the role
func (r Role) IsValid() bool {
	switch r {
	case RoleRider, RoleDriver:
		return true
	}
	return false
}

// Identity is an authenticated actor: an opaque user id plus a role tag.
// It is immutable once a connection has authenticated.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// IsDriver reports whether the identity is a driver.
func (i Identity) IsDriver() bool {
	return i.Role == RoleDriver
}

// IsRider reports whether the identity is a rider.
func (i Identity) IsRider() bool {
	return i.Role == RoleRider
}
