package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/projectx/internal/auth/domain"
	"github.com/aussiebroadwan/projectx/internal/auth/guard"
	"github.com/aussiebroadwan/projectx/internal/auth/service"
	"github.com/aussiebroadwan/projectx/pkg/authsdk"
	"github.com/aussiebroadwan/projectx/pkg/httpx"
	"github.com/aussiebroadwan/projectx/pkg/idx"
	"github.com/aussiebroadwan/projectx/pkg/slogx"
)

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	AuthService *service.AuthService
	Cookies     CookieConfig

	// Guard is optional; logout uses it only to log who left.
	Guard *guard.Guard
}

// decodeBody reads the JSON body into v. An empty body leaves v zeroed so
// the required-field checks produce the error.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	err := httpx.DecodeJSON(w, r, v)
	if errors.Is(err, httpx.ErrEmptyBody) {
		return nil
	}
	return err
}

func fieldErrors(err error) map[string]string {
	var mf *service.MissingFieldsError
	if !errors.As(err, &mf) {
		return nil
	}
	out := make(map[string]string, len(mf.Fields))
	for _, f := range mf.Fields {
		out[f] = "required"
	}
	return out
}

// HandleRegister handles POST /auth/register
//
//	@Summary		Register a user
//	@Description	Creates an account. Role is optional and defaults to Student. Does not log in.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RegisterRequest	true	"Registration details"
//	@Success		201		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	httpx.ErrorBody	"VALIDATION_ERROR or EMAIL_ALREADY_REGISTERED"
//	@Failure		429		{object}	httpx.ErrorBody	"RATE_LIMIT_EXCEEDED"
//	@Failure		500		{object}	httpx.ErrorBody
//	@Router			/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		authsdk.ValidationError("Invalid request body", nil).WriteError(w)
		return
	}

	_, err := h.AuthService.Register(ctx, service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			authsdk.ValidationError("Name, email, and password are required", fieldErrors(err)).WriteError(w)
		case errors.Is(err, service.ErrInvalidRole):
			authsdk.ValidationError("Invalid role", map[string]string{
				"role": "must be one of " + roleList(),
			}).WriteError(w)
		case errors.Is(err, service.ErrEmailTaken):
			authsdk.ErrEmailRegistered.WriteError(w)
		default:
			log.Error("registration failed", "err", err)
			authsdk.ErrServerError.WithMessage("Registration failed").WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.MessageResponse{Message: "User registered successfully."})
}

func roleList() string {
	roles := domain.Roles()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.String()
	}
	return strings.Join(names, ", ")
}

// HandleLogin handles POST /auth/login
//
//	@Summary		Log in with email and password
//	@Description	On success sets the httpOnly jwt cookie and returns the profile. When 2FA is enabled
//	@Description	a code is emailed instead and the response carries only user_id; call /auth/verify-2fa next.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse
//	@Failure		400		{object}	httpx.ErrorBody	"VALIDATION_ERROR"
//	@Failure		401		{object}	httpx.ErrorBody	"INVALID_CREDENTIALS"
//	@Failure		429		{object}	httpx.ErrorBody	"RATE_LIMIT_EXCEEDED"
//	@Failure		500		{object}	httpx.ErrorBody
//	@Router			/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		authsdk.ValidationError("Invalid request body", nil).WriteError(w)
		return
	}

	res, err := h.AuthService.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			authsdk.ValidationError("Email and password are required", fieldErrors(err)).WriteError(w)
		case errors.Is(err, service.ErrInvalidCredentials):
			authsdk.ErrInvalidCredentials.WriteError(w)
		default:
			log.Error("login failed", "err", err)
			authsdk.ErrServerError.WithMessage("Login failed").WriteError(w)
		}
		return
	}

	if res.Pending() {
		httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
			Message:          "2FA code sent to your email",
			UserID:           res.User.ID,
			TwoFactorEnabled: true,
		})
		return
	}

	h.writeSession(w, res)
}

// HandleVerifyTwoFactor handles POST /auth/verify-2fa
//
//	@Summary		Redeem a 2FA code
//	@Description	Verifies the emailed code for user_id and sets the jwt cookie. A wrong code keeps the
//	@Description	pending code usable; an expired code requires logging in again.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.VerifyTwoFactorRequest	true	"User id and code"
//	@Success		200		{object}	authsdk.LoginResponse
//	@Failure		400		{object}	httpx.ErrorBody	"VALIDATION_ERROR, 2FA_NOT_ENABLED, 2FA_CODE_NOT_FOUND or 2FA_CODE_EXPIRED"
//	@Failure		401		{object}	httpx.ErrorBody	"INVALID_2FA_CODE"
//	@Failure		429		{object}	httpx.ErrorBody	"RATE_LIMIT_EXCEEDED"
//	@Failure		500		{object}	httpx.ErrorBody
//	@Router			/auth/verify-2fa [post].
func (h *AuthHandler) HandleVerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.VerifyTwoFactorRequest
	if err := decodeBody(w, r, &req); err != nil {
		if errors.Is(err, authsdk.ErrInvalidUserID) {
			authsdk.ValidationError("Invalid user ID", map[string]string{"user_id": "invalid"}).WriteError(w)
			return
		}
		authsdk.ValidationError("Invalid request body", nil).WriteError(w)
		return
	}
	userID, ok := parseUserID(w, req.UserID)
	if !ok {
		return
	}

	res, err := h.AuthService.VerifySecondFactor(ctx, userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			authsdk.ValidationError("User ID and 2FA code are required", fieldErrors(err)).WriteError(w)
		case errors.Is(err, service.ErrTwoFactorNotEnabled):
			authsdk.ErrTwoFactorNotEnabled.WriteError(w)
		case errors.Is(err, service.ErrCodeNotFound):
			authsdk.ErrCodeNotFound.WriteError(w)
		case errors.Is(err, service.ErrCodeExpired):
			authsdk.ErrCodeExpired.WriteError(w)
		case errors.Is(err, service.ErrInvalidCode):
			authsdk.ErrInvalidCode.WriteError(w)
		default:
			log.Error("2fa verification failed", "user_id", req.UserID, "err", err)
			authsdk.ErrServerError.WithMessage("2FA verification failed").WriteError(w)
		}
		return
	}

	h.writeSession(w, res)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, res service.LoginResult) {
	h.Cookies.setSession(w, res.Token)
	profile := domainToSDKProfile(res.User)
	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{User: &profile})
}

// HandleEnableTwoFactor handles POST /auth/enable-2fa
//
//	@Summary		Enable email 2FA
//	@Description	Turns on email 2FA for user_id. Enabling twice is not an error.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.UserIDRequest	true	"User id"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	httpx.ErrorBody	"VALIDATION_ERROR"
//	@Failure		404		{object}	httpx.ErrorBody	"NOT_FOUND"
//	@Failure		500		{object}	httpx.ErrorBody
//	@Router			/auth/enable-2fa [post].
func (h *AuthHandler) HandleEnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := readUserID(w, r)
	if !ok {
		return
	}

	already, err := h.AuthService.EnableTwoFactor(ctx, userID)
	if err != nil {
		writeToggleError(w, r, err)
		return
	}

	msg := "2FA enabled successfully. You will receive a code via email when logging in."
	if already {
		msg = "2FA already enabled"
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msg})
}

// HandleDisableTwoFactor handles POST /auth/disable-2fa
//
//	@Summary		Disable email 2FA
//	@Description	Turns off email 2FA for user_id and clears its marker.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.UserIDRequest	true	"User id"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	httpx.ErrorBody	"VALIDATION_ERROR"
//	@Failure		404		{object}	httpx.ErrorBody	"NOT_FOUND"
//	@Failure		500		{object}	httpx.ErrorBody
//	@Router			/auth/disable-2fa [post].
func (h *AuthHandler) HandleDisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	userID, ok := readUserID(w, r)
	if !ok {
		return
	}

	if err := h.AuthService.DisableTwoFactor(r.Context(), userID); err != nil {
		writeToggleError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "2FA disabled"})
}

// readUserID decodes a UserIDRequest, answering 400 itself on failure.
func readUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req authsdk.UserIDRequest
	if err := decodeBody(w, r, &req); err != nil {
		if errors.Is(err, authsdk.ErrInvalidUserID) {
			authsdk.ValidationError("Invalid user ID", map[string]string{"user_id": "invalid"}).WriteError(w)
		} else {
			authsdk.ValidationError("Invalid request body", nil).WriteError(w)
		}
		return "", false
	}
	if req.UserID == "" {
		authsdk.ValidationError("User ID is required", map[string]string{"user_id": "required"}).WriteError(w)
		return "", false
	}
	return parseUserID(w, req.UserID)
}

// parseUserID normalises a present user_id to a ULID. Empty passes through so
// the service reports the missing field. Numeric ids from older clients never
// name an account here and are rejected with the rest.
func parseUserID(w http.ResponseWriter, raw authsdk.UserID) (string, bool) {
	if raw == "" {
		return "", true
	}
	id, err := idx.Parse(raw.String())
	if err != nil {
		authsdk.ValidationError("Invalid user ID", map[string]string{"user_id": "invalid"}).WriteError(w)
		return "", false
	}
	return id.String(), true
}

func writeToggleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		authsdk.ErrUserNotFound.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("2fa toggle failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}

// HandleLogout handles POST /auth/logout
//
//	@Summary		Log out
//	@Description	Clears the jwt cookie. Tokens are not tracked server-side, so this always succeeds.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.MessageResponse
//	@Router			/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var userID string
	if h.Guard != nil {
		if u, err := h.Guard.Authenticate(r); err == nil {
			userID = u.ID
		}
	}
	h.AuthService.Logout(r.Context(), userID)

	h.Cookies.clearSession(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Logged out successfully"})
}
