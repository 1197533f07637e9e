package authsdk

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ============================================================================
// Identifiers
// ============================================================================

// UserID is a user identifier that decodes from a JSON string or a JSON
// number. Older clients send numeric ids; it always encodes as a string.
type UserID string

// ErrInvalidUserID is returned when user_id is neither a string nor an integer.
var ErrInvalidUserID = errors.New("user_id must be a string or an integer")

func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(strings.TrimSpace(s))
		return nil
	}

	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return ErrInvalidUserID
	}
	*id = UserID(strconv.FormatInt(n, 10))
	return nil
}

func (id UserID) String() string { return string(id) }

// ============================================================================
// Auth Types
// ============================================================================

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`

	// Role is optional and defaults to Student.
	Role string `json:"role,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyTwoFactorRequest is the body of POST /auth/verify-2fa.
type VerifyTwoFactorRequest struct {
	UserID UserID `json:"user_id" swaggertype:"string"`
	Code   string `json:"code"`
}

// UserIDRequest is the body of POST /auth/enable-2fa and /auth/disable-2fa.
type UserIDRequest struct {
	UserID UserID `json:"user_id" swaggertype:"string"`
}

// MessageResponse is a bare acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserProfile is the public view of a user. It never includes the password
// hash or the 2FA marker.
type UserProfile struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	Role             string  `json:"role"`
	TwoFactorEnabled bool    `json:"two_factor_enabled"`
	ClassID          *string `json:"class_id"`
	CohortID         *string `json:"cohort_id"`
}

// LoginResponse is returned by /auth/login and /auth/verify-2fa.
//
// When a second factor is required only Message, UserID and
// TwoFactorEnabled are set and no cookie is issued. Otherwise User is set and
// the session cookie accompanies the response.
type LoginResponse struct {
	Message          string       `json:"message,omitempty"`
	UserID           string       `json:"user_id,omitempty"`
	TwoFactorEnabled bool         `json:"two_factor_enabled,omitempty"`
	User             *UserProfile `json:"user,omitempty"`
}

// Pending reports whether the login is waiting on a 2FA code.
func (r LoginResponse) Pending() bool { return r.User == nil && r.TwoFactorEnabled }

// UserResponse wraps a single profile, as returned by /auth/me.
type UserResponse struct {
	User UserProfile `json:"user"`
}

// UsersResponse is returned by GET /users.
type UsersResponse struct {
	Users []UserProfile `json:"users"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the credential store connection status
	Database string `json:"database"`

	// Challenges indicates the 2FA challenge store status
	Challenges string `json:"challenges"`
}
