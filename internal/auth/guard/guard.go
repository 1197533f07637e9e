// Package guard authenticates requests from the session cookie and
// authorizes them by role.
package guard

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/projectx/internal/auth/domain"
	"github.com/aussiebroadwan/projectx/internal/auth/store"
	"github.com/aussiebroadwan/projectx/pkg/authsdk"
	"github.com/aussiebroadwan/projectx/pkg/httpx"
	"github.com/aussiebroadwan/projectx/pkg/jwtx"
	"github.com/aussiebroadwan/projectx/pkg/slogx"
)

// CookieName is the cookie carrying the session token.
const CookieName = authsdk.CookieName

var (
	ErrNoToken      = errors.New("no session token")
	ErrTokenExpired = errors.New("session token expired")
	ErrTokenInvalid = errors.New("session token invalid")
	ErrUserGone     = errors.New("token subject no longer exists")
	ErrForbidden    = errors.New("role not permitted")
)

// TokenVerifier checks a session token. *jwtx.Codec implements it.
type TokenVerifier interface {
	Verify(token string) (jwtx.Claims, error)
}

// UserLookup loads the user a token was issued to.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
}

// Guard resolves the session cookie into a live user.
type Guard struct {
	Tokens TokenVerifier
	Users  UserLookup
}

func New(tokens TokenVerifier, users UserLookup) *Guard {
	return &Guard{Tokens: tokens, Users: users}
}

// Authenticate resolves the caller. The user is reloaded on every request,
// so a deleted account stops working even while its token is unexpired, and
// role changes apply immediately.
func (g *Guard) Authenticate(r *http.Request) (domain.User, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return domain.User{}, ErrNoToken
	}

	claims, err := g.Tokens.Verify(c.Value)
	if err != nil {
		switch {
		case errors.Is(err, jwtx.ErrExpired):
			return domain.User{}, ErrTokenExpired
		case errors.Is(err, jwtx.ErrMalformed):
			return domain.User{}, ErrTokenInvalid
		default:
			return domain.User{}, errors.Join(ErrTokenInvalid, err)
		}
	}

	u, err := g.Users.GetUserByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserGone
		}
		return domain.User{}, errors.Join(ErrUserGone, err)
	}
	return u, nil
}

// Authorize reports ErrForbidden unless the user holds one of roles.
func Authorize(u domain.User, roles ...domain.Role) error {
	if !u.Role.In(roles...) {
		return ErrForbidden
	}
	return nil
}

// RequireUser authenticates the request and attaches the user to its
// context. Failures are answered with 401 and never reach next.
func (g *Guard) RequireUser() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			u, err := g.Authenticate(r)
			if err != nil {
				slogx.FromContext(ctx).Warn("unauthenticated request", "err", err)
				authError(err).WriteError(w)
				return
			}

			ctx = WithUser(ctx, u)
			ctx = context.WithValue(ctx, httpx.CtxKeyUserID, u.ID)
			ctx = slogx.With(ctx, "user_id", u.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects users outside roles with 403. It must run after
// RequireUser; without an attached user it answers 401.
func RequireRole(roles ...domain.Role) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				authsdk.ErrUnauthorized.WriteError(w)
				return
			}
			if err := Authorize(u, roles...); err != nil {
				slogx.FromContext(r.Context()).Warn("forbidden", "role", u.Role, "allowed", roles)
				authsdk.ErrForbidden.WriteError(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authError maps an Authenticate failure to its 401 response.
func authError(err error) *authsdk.APIError {
	switch {
	case errors.Is(err, ErrNoToken):
		return authsdk.ErrUnauthorized
	case errors.Is(err, ErrTokenExpired):
		return authsdk.ErrUnauthorized.WithMessage("Token has expired. Please log in again.")
	case errors.Is(err, ErrTokenInvalid):
		return authsdk.ErrUnauthorized.WithMessage("Invalid token. Please log in again.")
	default:
		return authsdk.ErrUnauthorized.WithMessage("Token verification failed.")
	}
}
