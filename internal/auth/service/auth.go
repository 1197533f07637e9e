package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/projectx/internal/auth/challenge"
	"github.com/aussiebroadwan/projectx/internal/auth/domain"
	"github.com/aussiebroadwan/projectx/internal/auth/notify"
	"github.com/aussiebroadwan/projectx/internal/auth/store"
	"github.com/aussiebroadwan/projectx/pkg/cryptox"
	"github.com/aussiebroadwan/projectx/pkg/idx"
	"github.com/aussiebroadwan/projectx/pkg/jwtx"
	"github.com/aussiebroadwan/projectx/pkg/slogx"
)

// TokenIssuer mints session tokens. *jwtx.Codec implements it.
type TokenIssuer interface {
	Issue(subject, role string, ttl time.Duration) (string, error)
}

// Outcome says where a login attempt ended up.
type Outcome int

const (
	// Authenticated means a token was minted.
	Authenticated Outcome = iota + 1
	// AwaitingSecondFactor means a code was issued and the client must call
	// VerifySecondFactor next.
	AwaitingSecondFactor
)

// LoginResult is returned by Login and VerifySecondFactor.
type LoginResult struct {
	Outcome Outcome
	User    domain.User
	Token   string // set only when Outcome == Authenticated

	// Delivery is the 2FA email outcome when Outcome == AwaitingSecondFactor.
	Delivery notify.Result
}

// Pending reports whether a second factor is still required.
func (r LoginResult) Pending() bool { return r.Outcome == AwaitingSecondFactor }

// RegisterInput carries the sign-up form.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string // optional; defaults to Student
}

// AuthService implements password login with optional email 2FA.
type AuthService struct {
	Store      store.Store
	Challenges challenge.Store
	Notifier   notify.Notifier
	Tokens     TokenIssuer

	// SessionTTL is the token lifetime; the cookie max-age uses the same value.
	SessionTTL time.Duration
	// ChallengeTTL is only used to word the email; the challenge store
	// enforces the real expiry.
	ChallengeTTL  time.Duration
	NotifyTimeout time.Duration

	// ExposeCodesOnFailure logs the code when email delivery fails so a
	// developer can still log in. Never enable in production.
	ExposeCodesOnFailure bool
}

func (s *AuthService) sessionTTL() time.Duration {
	if s.SessionTTL <= 0 {
		return jwtx.DefaultSessionTTL
	}
	return s.SessionTTL
}

func (s *AuthService) challengeTTL() time.Duration {
	if s.ChallengeTTL <= 0 {
		return challenge.DefaultTTL
	}
	return s.ChallengeTTL
}

// Register creates a user with a hashed password.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	log := slogx.FromContext(ctx)

	if err := requireFields("name", in.Name, "email", in.Email, "password", in.Password); err != nil {
		return domain.User{}, err
	}

	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return domain.User{}, ErrInvalidRole
	}

	email := NormalizeEmail(in.Email)
	_, err = s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return domain.User{}, ErrEmailTaken
	case !errors.Is(err, store.ErrNotFound):
		return domain.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New().String(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		// Lost a race with a concurrent sign-up for the same address.
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	log.Info("user registered", "user_id", u.ID, "email", u.Email, "role", u.Role)
	return u, nil
}

// Login checks the password and either mints a token or starts a 2FA
// challenge. Unknown emails and wrong passwords are indistinguishable.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	log := slogx.FromContext(ctx)

	if err := requireFields("email", email, "password", password); err != nil {
		return LoginResult{}, err
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, fmt.Errorf("lookup user: %w", err)
		}
		// Burn the same Argon2id work as a real check.
		_ = cryptox.VerifyPassword(password, cryptox.DummyHash())
		log.Warn("login failed", "reason", "unknown_email")
		return LoginResult{}, ErrInvalidCredentials
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrInvalidHash) {
			log.Error("stored password hash is unreadable", "user_id", u.ID, "err", err)
		} else {
			log.Warn("login failed", "reason", "bad_password", "user_id", u.ID)
		}
		return LoginResult{}, ErrInvalidCredentials
	}

	if u.TwoFactorEnabled {
		return s.startChallenge(ctx, u)
	}
	return s.authenticate(ctx, u)
}

func (s *AuthService) startChallenge(ctx context.Context, u domain.User) (LoginResult, error) {
	log := slogx.FromContext(ctx)

	code, err := s.Challenges.Issue(ctx, u.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue 2fa code: %w", err)
	}

	msg := notify.TwoFactorCodeMessage(u.Email, u.Name, code, s.challengeTTL())
	res := notify.Dispatch(ctx, s.Notifier, s.NotifyTimeout, msg)
	if res.Delivered {
		log.Info("2fa code sent", "user_id", u.ID, "elapsed_ms", res.Elapsed.Milliseconds())
	} else {
		log.Warn("failed to send 2fa code", "user_id", u.ID, "email", u.Email, "err", res.Err)
		if s.ExposeCodesOnFailure {
			log.Warn(fmt.Sprintf("=== DEV MODE: 2FA CODE FOR %s: %s ===", u.Email, code))
		}
	}

	return LoginResult{
		Outcome:  AwaitingSecondFactor,
		User:     u,
		Delivery: res,
	}, nil
}

func (s *AuthService) authenticate(ctx context.Context, u domain.User) (LoginResult, error) {
	token, err := s.Tokens.Issue(u.ID, u.Role.String(), s.sessionTTL())
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: %v", ErrTokenMint, err)
	}

	slogx.FromContext(ctx).Info("user logged in", "user_id", u.ID)
	return LoginResult{
		Outcome: Authenticated,
		User:    u,
		Token:   token,
	}, nil
}

// VerifySecondFactor redeems a pending code and mints a token.
func (s *AuthService) VerifySecondFactor(ctx context.Context, userID, code string) (LoginResult, error) {
	log := slogx.FromContext(ctx)

	if err := requireFields("user_id", userID, "code", code); err != nil {
		return LoginResult{}, err
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrTwoFactorNotEnabled
		}
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}
	if !u.TwoFactorEnabled {
		return LoginResult{}, ErrTwoFactorNotEnabled
	}

	if err := s.Challenges.Verify(ctx, u.ID, strings.TrimSpace(code)); err != nil {
		switch {
		case errors.Is(err, challenge.ErrNotFound):
			return LoginResult{}, ErrCodeNotFound
		case errors.Is(err, challenge.ErrExpired):
			log.Warn("2fa code expired", "user_id", u.ID)
			return LoginResult{}, ErrCodeExpired
		case errors.Is(err, challenge.ErrMismatch):
			log.Warn("invalid 2fa code", "user_id", u.ID)
			return LoginResult{}, ErrInvalidCode
		default:
			return LoginResult{}, fmt.Errorf("verify 2fa code: %w", err)
		}
	}

	return s.authenticate(ctx, u)
}

// EnableTwoFactor turns on email 2FA. It reports alreadyEnabled instead of
// failing when the flag was already set.
func (s *AuthService) EnableTwoFactor(ctx context.Context, userID string) (alreadyEnabled bool, err error) {
	if err := requireFields("user_id", userID); err != nil {
		return false, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.Users().GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if u.TwoFactorEnabled {
			alreadyEnabled = true
			return nil
		}
		return tx.Users().SetTwoFactor(ctx, userID, true)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("enable 2fa: %w", err)
	}

	if !alreadyEnabled {
		slogx.FromContext(ctx).Info("2fa enabled", "user_id", userID)
	}
	return alreadyEnabled, nil
}

// DisableTwoFactor clears the 2FA flag and marker. Disabling twice is fine.
func (s *AuthService) DisableTwoFactor(ctx context.Context, userID string) error {
	if err := requireFields("user_id", userID); err != nil {
		return err
	}

	if err := s.Store.Users().SetTwoFactor(ctx, userID, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("disable 2fa: %w", err)
	}

	slogx.FromContext(ctx).Info("2fa disabled", "user_id", userID)
	return nil
}

// Logout is stateless: tokens aren't tracked server-side, so the HTTP layer
// only has to clear the cookie. It exists to keep the log trail symmetric.
func (s *AuthService) Logout(ctx context.Context, userID string) {
	if userID != "" {
		slogx.FromContext(ctx).Info("user logged out", "user_id", userID)
	}
}
