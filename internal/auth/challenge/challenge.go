// Package challenge holds pending email 2FA codes. A user has at most one
// outstanding code; issuing a new one replaces the old. Codes are single use:
// a successful verify or an expiry detection removes the entry, a wrong guess
// leaves it in place.
package challenge

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/pquerna/otp"
)

// DefaultTTL is how long an issued code stays valid.
const DefaultTTL = 10 * time.Minute

// CodeDigits is the length of every issued code.
const CodeDigits = otp.DigitsSix

var (
	ErrNotFound = errors.New("challenge: no pending code")
	ErrExpired  = errors.New("challenge: code expired")
	ErrMismatch = errors.New("challenge: code mismatch")
	ErrBackend  = errors.New("challenge: backend unavailable")
)

// Store issues and verifies codes. Implementations serialise Issue and
// Verify per user id so a code can never be consumed twice.
type Store interface {
	// Issue creates a fresh code for userID, replacing any pending one, and
	// returns it in plain text for delivery.
	Issue(ctx context.Context, userID string) (string, error)

	// Verify checks candidate against the pending code. See the package
	// errors for the failure modes.
	Verify(ctx context.Context, userID, candidate string) error
}

// Sweeper is implemented by stores that need expired entries evicted by a
// background job. Redis expires keys on its own so only the memory store
// implements it.
type Sweeper interface {
	Sweep(ctx context.Context) int
}

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a uniformly random 6-digit code, zero-padded.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return CodeDigits.Format(int32(n.Int64())), nil // #nosec G115 - n < 10^6
}
