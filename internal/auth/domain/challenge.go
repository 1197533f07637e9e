package domain

import "time"

// PendingChallenge is the one outstanding 2FA code for a user. Code holds the
// fingerprint of the 6-digit value, never the value itself.
type PendingChallenge struct {
	UserID    string
	Code      string
	ExpiresAt time.Time
}

// Expired reports whether the challenge is past its expiry at now. A code is
// still valid at exactly ExpiresAt.
func (c PendingChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
