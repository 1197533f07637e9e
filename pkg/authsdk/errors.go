package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/projectx/pkg/httpx"
)

// Machine-readable error codes carried in the error_code field.
const (
	ErrorCodeValidation         = "VALIDATION_ERROR"
	ErrorCodeEmailRegistered    = "EMAIL_ALREADY_REGISTERED"
	ErrorCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrorCodeTwoFactorDisabled  = "2FA_NOT_ENABLED"
	ErrorCodeCodeNotFound       = "2FA_CODE_NOT_FOUND"
	ErrorCodeCodeExpired        = "2FA_CODE_EXPIRED"
	ErrorCodeInvalidCode        = "INVALID_2FA_CODE"
	ErrorCodeUnauthorized       = "UNAUTHORIZED"
	ErrorCodeForbidden          = "FORBIDDEN"
	ErrorCodeNotFound           = "NOT_FOUND"
	ErrorCodeInternal           = "INTERNAL_ERROR"
	ErrorCodeRateLimitExceeded  = httpx.ErrorCodeRateLimitExceeded
)

// APIError is a failed API response. The server writes it with WriteError and
// the client SDK returns it from every call that gets a non-2xx status.
type APIError struct {
	StatusCode  int
	Code        string
	Message     string
	RetryAfter  int
	FieldErrors map[string]string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches another *APIError with the same status and code, so callers can
// write errors.Is(err, authsdk.ErrInvalidCredentials).
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode && e.Code == t.Code
}

// WriteError writes e in the standard error shape.
func (e *APIError) WriteError(w http.ResponseWriter) {
	body := httpx.NewErrorBody(e.Message, e.Code)
	body.RetryAfter = e.RetryAfter
	body.FieldErrors = e.FieldErrors
	httpx.WriteJSON(w, e.StatusCode, body)
}

// WithMessage returns a copy of e carrying a different message.
func (e *APIError) WithMessage(msg string) *APIError {
	c := *e
	c.Message = msg
	return &c
}

// NewAPIError creates an APIError.
func NewAPIError(statusCode int, code, message string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Message: message}
}

// ValidationError is a 400 VALIDATION_ERROR with optional per-field messages.
func ValidationError(message string, fieldErrors map[string]string) *APIError {
	return &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeValidation,
		Message:     message,
		FieldErrors: fieldErrors,
	}
}

var (
	ErrEmailRegistered = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeEmailRegistered,
		Message:    "Email already registered",
	}

	ErrInvalidCredentials = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeInvalidCredentials,
		Message:    "Invalid credentials",
	}

	ErrTwoFactorNotEnabled = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeTwoFactorDisabled,
		Message:    "2FA not enabled for this user",
	}

	ErrCodeNotFound = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeCodeNotFound,
		Message:    "No 2FA code found. Please request a new code.",
	}

	ErrCodeExpired = &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       ErrorCodeCodeExpired,
		Message:    "2FA code expired. Please login again.",
	}

	ErrInvalidCode = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeInvalidCode,
		Message:    "Invalid 2FA code",
	}

	// ErrUnauthorized is the generic 401; the guard swaps in a specific message.
	ErrUnauthorized = &APIError{
		StatusCode: http.StatusUnauthorized,
		Code:       ErrorCodeUnauthorized,
		Message:    "Authentication required. Please log in.",
	}

	ErrForbidden = &APIError{
		StatusCode: http.StatusForbidden,
		Code:       ErrorCodeForbidden,
		Message:    "You are not authorized to access this resource.",
	}

	ErrUserNotFound = &APIError{
		StatusCode: http.StatusNotFound,
		Code:       ErrorCodeNotFound,
		Message:    "User not found",
	}

	ErrServerError = &APIError{
		StatusCode: http.StatusInternalServerError,
		Code:       ErrorCodeInternal,
		Message:    "Internal server error",
	}

	ErrMethodNotAllowed = &APIError{
		StatusCode: http.StatusMethodNotAllowed,
		Code:       ErrorCodeValidation,
		Message:    "Method not allowed",
	}
)

// parseErrorResponse turns a non-2xx response into an *APIError. Bodies that
// are not in the standard shape still yield an error carrying the status.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var eb httpx.ErrorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        eb.ErrorCode,
			Message:     eb.Message,
			RetryAfter:  eb.RetryAfter,
			FieldErrors: eb.FieldErrors,
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       ErrorCodeInternal,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
