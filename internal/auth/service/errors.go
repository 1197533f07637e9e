package service

import (
	"errors"
	"strings"
)

var (
	ErrMissingFields       = errors.New("missing_fields")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrEmailTaken          = errors.New("email_taken")
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrTwoFactorNotEnabled = errors.New("two_factor_not_enabled")
	ErrCodeNotFound        = errors.New("two_factor_code_not_found")
	ErrCodeExpired         = errors.New("two_factor_code_expired")
	ErrInvalidCode         = errors.New("invalid_two_factor_code")
	ErrUserNotFound        = errors.New("user_not_found")
	ErrTokenMint           = errors.New("token_mint_failed")
)

// MissingFieldsError names the required inputs that were empty. It matches
// ErrMissingFields with errors.Is.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Is(target error) bool { return target == ErrMissingFields }

// requireFields returns a *MissingFieldsError for every blank value, in the
// order given, or nil. Pairs are name, value.
func requireFields(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingFieldsError{Fields: missing}
}

// NormalizeEmail trims and lower-cases an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
