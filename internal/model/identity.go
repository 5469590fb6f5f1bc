// Package model defines the core domain types shared across the application.
package model

// Role is the authorization level granted to an allow-listed user.
type Role string

const (
	// RoleUser is a regular authorized user.
	RoleUser Role = "user"
	// RoleAdmin is an administrator.
	RoleAdmin Role = "admin"
	// RoleNone means no role was granted (denied or signed out).
	RoleNone Role = ""
)

// ParseRole converts a string into a Role, rejecting unknown values.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), true
	default:
		return RoleNone, false
	}
}

// Identity is the authenticated identity supplied by the identity gateway.
// It is immutable for the lifetime of an auth event; a fresh value arrives
// with every sign-in or identity-change notification.
type Identity struct {
	// ID is the gateway's stable, opaque identifier for the user.
	ID string

	// Email may be empty: some providers issue identities without a
	// verifiable email address. Such identities can never be authorized.
	Email string

	DisplayName string
	AvatarURL   string
}
