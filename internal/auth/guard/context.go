package guard

import (
	"context"

	"github.com/aussiebroadwan/projectx/internal/auth/domain"
)

type userKey struct{}

// WithUser attaches an authenticated user to ctx.
func WithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the user attached by RequireUser.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userKey{}).(domain.User)
	return u, ok
}
