package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/projectx/internal/auth/challenge"
	"github.com/aussiebroadwan/projectx/internal/auth/guard"
	authhttp "github.com/aussiebroadwan/projectx/internal/auth/http"
	"github.com/aussiebroadwan/projectx/internal/auth/notify"
	"github.com/aussiebroadwan/projectx/internal/auth/service"
	"github.com/aussiebroadwan/projectx/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/projectx/pkg/authsdk"
	"github.com/aussiebroadwan/projectx/pkg/httpx"
	"github.com/aussiebroadwan/projectx/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testSecret = "http-test-secret"

var codePattern = regexp.MustCompile(`code is (\d{6})`)

// outbox captures 2FA emails.
type outbox struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (o *outbox) Send(_ context.Context, msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) lastCode(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent, "no 2FA email sent")
	m := codePattern.FindStringSubmatch(o.sent[len(o.sent)-1].Text)
	require.Len(t, m, 2)
	return m[1]
}

type harness struct {
	router *authhttp.Router
	outbox *outbox
	codec  *jwtx.Codec
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	challengeTTL time.Duration
	limits       *authhttp.RateLimits
}

func withChallengeTTL(d time.Duration) harnessOption {
	return func(c *harnessConfig) { c.challengeTTL = d }
}

func withLimits(l authhttp.RateLimits) harnessOption {
	return func(c *harnessConfig) { c.limits = &l }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	cfg := harnessConfig{challengeTTL: challenge.DefaultTTL}
	for _, o := range opts {
		o(&cfg)
	}

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	codec, err := jwtx.NewHS256Codec([]byte(testSecret), "projectx")
	require.NoError(t, err)

	ob := &outbox{}
	users := &service.UserService{Store: st}
	g := guard.New(codec, users)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := authhttp.NewRouter(g, "test", st, logger)
	r.AuthService = &service.AuthService{
		Store:      st,
		Challenges: challenge.NewMemoryStore(cfg.challengeTTL),
		Notifier:   ob,
		Tokens:     codec,
		SessionTTL: 24 * time.Hour,
	}
	r.UserService = users
	r.Cookies = authhttp.CookieConfig{MaxAge: 24 * time.Hour}

	if cfg.limits != nil {
		r.Limits = *cfg.limits
	} else {
		generous := httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
		r.Limits = authhttp.RateLimits{Register: generous, Login: generous, Verify: generous, Default: generous}
	}
	r.ApplyRoutes()

	return &harness{router: r, outbox: ob, codec: codec}
}

func (h *harness) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) register(t *testing.T, name, email, password string) {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/auth/register", authsdk.RegisterRequest{Name: name, Email: email, Password: password})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// login logs in without 2FA and returns the session cookie and profile.
func (h *harness) login(t *testing.T, email, password string) (*http.Cookie, authsdk.UserProfile) {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/auth/login", authsdk.LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp authsdk.LoginResponse
	decode(t, rec, &resp)
	require.NotNil(t, resp.User)

	c := sessionCookie(rec)
	require.NotNil(t, c)
	return c, *resp.User
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == authsdk.CookieName {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) httpx.ErrorBody {
	t.Helper()
	var body httpx.ErrorBody
	decode(t, rec, &body)
	require.False(t, body.Success)
	require.NotEmpty(t, body.Timestamp)
	return body
}
