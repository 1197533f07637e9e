package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/projectx/internal/auth/challenge"
	"github.com/aussiebroadwan/projectx/internal/auth/domain"
	"github.com/aussiebroadwan/projectx/internal/auth/notify"
	"github.com/aussiebroadwan/projectx/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/projectx/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// outbox records every message and can be told to fail.
type outbox struct {
	mu   sync.Mutex
	sent []notify.Message
	fail error
}

func (o *outbox) Send(_ context.Context, msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) last(t *testing.T) notify.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent)
	return o.sent[len(o.sent)-1]
}

// codeFrom extracts the 6-digit code from a 2FA email body.
func codeFrom(t *testing.T, msg notify.Message) string {
	t.Helper()
	const marker = "code is "
	for i := 0; i+len(marker)+6 <= len(msg.Text); i++ {
		if msg.Text[i:i+len(marker)] == marker {
			return msg.Text[i+len(marker) : i+len(marker)+6]
		}
	}
	t.Fatalf("no code in %q", msg.Text)
	return ""
}

// stubChallenges returns a fixed error from Verify.
type stubChallenges struct{ verifyErr error }

func (s stubChallenges) Issue(context.Context, string) (string, error) { return "000000", nil }
func (s stubChallenges) Verify(context.Context, string, string) error { return s.verifyErr }

type fixture struct {
	svc    *AuthService
	codec  *jwtx.Codec
	outbox *outbox
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	codec, err := jwtx.NewHS256Codec([]byte("test-secret"), "projectx-test")
	require.NoError(t, err)

	ob := &outbox{}
	return fixture{
		svc: &AuthService{
			Store:      st,
			Challenges: challenge.NewMemoryStore(challenge.DefaultTTL),
			Notifier:   ob,
			Tokens:     codec,
			SessionTTL: 24 * time.Hour,
		},
		codec:  codec,
		outbox: ob,
	}
}

func (f fixture) register(t *testing.T, email, password string) domain.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{
		Name:     "Grace",
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a student by default", func(t *testing.T) {
		f := newFixture(t)
		u := f.register(t, "  Grace@Example.com ", "hunter22")
		require.Equal(t, "grace@example.com", u.Email)
		require.Equal(t, domain.RoleStudent, u.Role)
		require.False(t, u.TwoFactorEnabled)
		require.NotEqual(t, "hunter22", u.PasswordHash)
	})

	t.Run("accepts an explicit role", func(t *testing.T) {
		f := newFixture(t)
		u, err := f.svc.Register(ctx, RegisterInput{Name: "M", Email: "m@example.com", Password: "pw", Role: "manager"})
		require.NoError(t, err)
		require.Equal(t, domain.RoleManager, u.Role)
	})

	t.Run("rejects unknown roles", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Register(ctx, RegisterInput{Name: "M", Email: "m@example.com", Password: "pw", Role: "Overlord"})
		require.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("reports missing fields", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Register(ctx, RegisterInput{Email: "x@example.com"})
		require.ErrorIs(t, err, ErrMissingFields)

		var mf *MissingFieldsError
		require.True(t, errors.As(err, &mf))
		require.Equal(t, []string{"name", "password"}, mf.Fields)
	})

	t.Run("rejects a taken email regardless of case", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "dup@example.com", "pw")
		_, err := f.svc.Register(ctx, RegisterInput{Name: "B", Email: "DUP@example.com", Password: "pw"})
		require.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestLogin_WithoutTwoFactor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "a@example.com", "correct horse")

	res, err := f.svc.Login(ctx, "A@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, Authenticated, res.Outcome)
	require.False(t, res.Pending())
	require.Equal(t, u.ID, res.User.ID)

	claims, err := f.codec.Verify(res.Token)
	require.NoError(t, err)
	require.Equal(t, u.ID, claims.Subject)
	require.Equal(t, "Student", claims.Role)
	require.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
	require.Empty(t, f.outbox.sent)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "a@example.com", "right")

	_, err := f.svc.Login(ctx, "a@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, errUnknown := f.svc.Login(ctx, "nobody@example.com", "right")
	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	require.Equal(t, err.Error(), errUnknown.Error())

	_, err = f.svc.Login(ctx, "", "right")
	require.ErrorIs(t, err, ErrMissingFields)
}

func TestLogin_TwoFactorFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "b@example.com", "pw")

	already, err := f.svc.EnableTwoFactor(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, already)

	res, err := f.svc.Login(ctx, "b@example.com", "pw")
	require.NoError(t, err)
	require.True(t, res.Pending())
	require.Empty(t, res.Token)
	require.True(t, res.Delivery.Delivered)

	msg := f.outbox.last(t)
	require.Equal(t, "b@example.com", msg.To)
	code := codeFrom(t, msg)
	require.Len(t, code, 6)

	wrong := "999999"
	if code == wrong {
		wrong = "888888"
	}
	_, err = f.svc.VerifySecondFactor(ctx, u.ID, wrong)
	require.ErrorIs(t, err, ErrInvalidCode)

	// A mismatch leaves the code redeemable.
	res, err = f.svc.VerifySecondFactor(ctx, u.ID, code)
	require.NoError(t, err)
	require.Equal(t, Authenticated, res.Outcome)
	require.NotEmpty(t, res.Token)

	// Codes are single use.
	_, err = f.svc.VerifySecondFactor(ctx, u.ID, code)
	require.ErrorIs(t, err, ErrCodeNotFound)
}

func TestLogin_DeliveryFailureStillPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.ExposeCodesOnFailure = true
	u := f.register(t, "c@example.com", "pw")
	_, err := f.svc.EnableTwoFactor(ctx, u.ID)
	require.NoError(t, err)

	f.outbox.fail = errors.New("smtp down")
	res, err := f.svc.Login(ctx, "c@example.com", "pw")
	require.NoError(t, err)
	require.True(t, res.Pending())
	require.False(t, res.Delivery.Delivered)
	require.EqualError(t, res.Delivery.Err, "smtp down")
}

func TestVerifySecondFactor_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("two factor disabled", func(t *testing.T) {
		f := newFixture(t)
		u := f.register(t, "d@example.com", "pw")
		_, err := f.svc.VerifySecondFactor(ctx, u.ID, "123456")
		require.ErrorIs(t, err, ErrTwoFactorNotEnabled)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.VerifySecondFactor(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV", "123456")
		require.ErrorIs(t, err, ErrTwoFactorNotEnabled)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.VerifySecondFactor(ctx, "", "")
		require.ErrorIs(t, err, ErrMissingFields)
	})

	cases := []struct {
		storeErr error
		want     error
	}{
		{challenge.ErrNotFound, ErrCodeNotFound},
		{challenge.ErrExpired, ErrCodeExpired},
		{challenge.ErrMismatch, ErrInvalidCode},
	}
	for _, tc := range cases {
		t.Run(tc.storeErr.Error(), func(t *testing.T) {
			f := newFixture(t)
			u := f.register(t, "e@example.com", "pw")
			_, err := f.svc.EnableTwoFactor(ctx, u.ID)
			require.NoError(t, err)

			f.svc.Challenges = stubChallenges{verifyErr: tc.storeErr}
			_, err = f.svc.VerifySecondFactor(ctx, u.ID, "123456")
			require.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("backend failure is wrapped", func(t *testing.T) {
		f := newFixture(t)
		u := f.register(t, "g@example.com", "pw")
		_, err := f.svc.EnableTwoFactor(ctx, u.ID)
		require.NoError(t, err)

		f.svc.Challenges = stubChallenges{verifyErr: challenge.ErrBackend}
		_, err = f.svc.VerifySecondFactor(ctx, u.ID, "123456")
		require.ErrorIs(t, err, challenge.ErrBackend)
	})
}

func TestTwoFactorToggle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "h@example.com", "pw")

	already, err := f.svc.EnableTwoFactor(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, already)

	already, err = f.svc.EnableTwoFactor(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, already)

	got, err := f.svc.Store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.TwoFactorEnabled)
	require.NotNil(t, got.TwoFactorSecret)
	require.Equal(t, domain.TwoFactorMarker, *got.TwoFactorSecret)

	require.NoError(t, f.svc.DisableTwoFactor(ctx, u.ID))
	require.NoError(t, f.svc.DisableTwoFactor(ctx, u.ID))

	got, err = f.svc.Store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, got.TwoFactorEnabled)
	require.Nil(t, got.TwoFactorSecret)

	_, err = f.svc.EnableTwoFactor(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	require.ErrorIs(t, err, ErrUserNotFound)
	require.ErrorIs(t, f.svc.DisableTwoFactor(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV"), ErrUserNotFound)
	_, err = f.svc.EnableTwoFactor(ctx, "")
	require.ErrorIs(t, err, ErrMissingFields)
}

func TestUserService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "first@example.com", "pw")
	f.register(t, "second@example.com", "pw")

	us := &UserService{Store: f.svc.Store}

	got, err := us.GetUserByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.Email, got.Email)

	_, err = us.GetUserByID(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	require.ErrorIs(t, err, ErrUserNotFound)

	all, err := us.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

type countingSweeper struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSweeper) Sweep(context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 1
}

func (c *countingSweeper) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestHousekeepingService(t *testing.T) {
	sw := &countingSweeper{}
	hk := NewHousekeepingService(sw, nil, 5*time.Millisecond)
	hk.Start()

	require.Eventually(t, func() bool { return sw.count() >= 2 }, time.Second, 5*time.Millisecond)

	hk.Stop()
	hk.Stop()
	n := sw.count()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, n, sw.count())
}

func TestHousekeepingService_StopWithoutStart(t *testing.T) {
	hk := NewHousekeepingService(&countingSweeper{}, nil, time.Millisecond)

	done := make(chan struct{})
	go func() {
		hk.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a worker that never started")
	}

	// Start after Stop must not launch a worker.
	sw := &countingSweeper{}
	hk = NewHousekeepingService(sw, nil, time.Millisecond)
	hk.Stop()
	hk.Start()
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, sw.count())
}
