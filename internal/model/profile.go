package model

import "time"

// AllowListEntry maps an authorized email address to a role.
// Entries are provisioned out-of-band by an administrator (the `allow`
// command); the application itself never writes this collection.
type AllowListEntry struct {
	// Email is the case-sensitive key as stored.
	Email string `bson:"_id"`

	Role Role `bson:"role"`
}

// UserProfile is the durable profile record for an authorized user,
// keyed by the identity id.
type UserProfile struct {
	ID          string `bson:"_id"`
	Email       string `bson:"email"`
	DisplayName string `bson:"displayName,omitempty"`
	AvatarURL   string `bson:"avatarURL,omitempty"`
	Role        Role   `bson:"role,omitempty"`

	// CreatedAt is set exactly once, on first successful reconciliation,
	// and never overwritten.
	CreatedAt time.Time `bson:"createdAt"`

	// LastLoginAt is refreshed on every successful reconciliation.
	LastLoginAt time.Time `bson:"lastLoginAt"`
}
