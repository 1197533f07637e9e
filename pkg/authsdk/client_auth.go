package authsdk

import (
	"context"
	"net/http"
)

// Register creates an account. It does not log in.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*MessageResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/register", req)
	if err != nil {
		return nil, err
	}

	var out MessageResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login submits credentials. When the account has 2FA enabled the result is
// Pending and VerifyTwoFactor must be called with the emailed code;
// otherwise the session cookie is now in the client's jar.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTwoFactor redeems a pending 2FA code.
func (c *SDKClient) VerifyTwoFactor(ctx context.Context, userID, code string) (*LoginResponse, error) {
	body := VerifyTwoFactorRequest{UserID: UserID(userID), Code: code}
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/verify-2fa", body)
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnableTwoFactor turns on email 2FA for userID.
func (c *SDKClient) EnableTwoFactor(ctx context.Context, userID string) (*MessageResponse, error) {
	return c.postMessage(ctx, "/auth/enable-2fa", UserIDRequest{UserID: UserID(userID)})
}

// DisableTwoFactor turns off email 2FA for userID.
func (c *SDKClient) DisableTwoFactor(ctx context.Context, userID string) (*MessageResponse, error) {
	return c.postMessage(ctx, "/auth/disable-2fa", UserIDRequest{UserID: UserID(userID)})
}

// Logout clears the session cookie.
func (c *SDKClient) Logout(ctx context.Context) (*MessageResponse, error) {
	return c.postMessage(ctx, "/auth/logout", nil)
}

// Me returns the profile of the logged-in user.
func (c *SDKClient) Me(ctx context.Context) (*UserProfile, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var out UserResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ListUsers returns every user. Requires the Manager or Admin role.
func (c *SDKClient) ListUsers(ctx context.Context) ([]UserProfile, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/users", nil)
	if err != nil {
		return nil, err
	}

	var out UsersResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *SDKClient) postMessage(ctx context.Context, path string, body any) (*MessageResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}

	var out MessageResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
