package domain

import "time"

// TwoFactorMarker is stored in TwoFactorSecret while email 2FA is on. Codes
// are generated per login so there is no real shared secret to keep.
const TwoFactorMarker = "email-based-2fa"

type User struct {
	ID               string // ULID
	Name             string
	Email            string // trimmed, lower-cased, unique
	PasswordHash     string // argon2id PHC string
	Role             Role
	TwoFactorEnabled bool
	TwoFactorSecret  *string // TwoFactorMarker when enabled, nil otherwise
	ClassID          *string
	CohortID         *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
