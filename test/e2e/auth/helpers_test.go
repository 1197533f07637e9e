package auth_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/projectx/internal/auth/app"
	"github.com/aussiebroadwan/projectx/pkg/authsdk"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common helpers for the auth service end-to-end tests. The service is
 * assembled by app.New from environment configuration exactly as cmd/auth
 * does, served over httptest, and driven through the authsdk client. Email
 * goes to a fake SendGrid endpoint so tests can read the 2FA codes.
 */

const (
	testSecret   = "e2e-secret-key"
	testPassword = "Passw0rd!"
)

var codePattern = regexp.MustCompile(`code is (\d{6})`)

// mailbox is a fake SendGrid v3 mail/send endpoint.
type mailbox struct {
	mu   sync.Mutex
	sent map[string][]string // recipient -> message bodies
	fail bool
}

func (m *mailbox) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v3/mail/send" || r.Header.Get("Authorization") != "Bearer test-sendgrid-key" {
		http.Error(w, "unexpected request", http.StatusBadRequest)
		return
	}

	var mail struct {
		Personalizations []struct {
			To []struct {
				Email string `json:"email"`
			} `json:"to"`
		} `json:"personalizations"`
		Content []struct {
			Value string `json:"value"`
		} `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&mail); err != nil || len(mail.Personalizations) == 0 || len(mail.Content) == 0 {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		http.Error(w, "provider down", http.StatusServiceUnavailable)
		return
	}
	to := mail.Personalizations[0].To[0].Email
	m.sent[to] = append(m.sent[to], mail.Content[0].Value)
	w.WriteHeader(http.StatusAccepted)
}

func (m *mailbox) setFailing(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

// lastCode returns the most recent 2FA code mailed to email.
func (m *mailbox) lastCode(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.sent[email]
	require.NotEmpty(t, msgs, "no mail sent to %s", email)
	match := codePattern.FindStringSubmatch(msgs[len(msgs)-1])
	require.Len(t, match, 2, "mail did not contain a code")
	return match[1]
}

func (m *mailbox) count(email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent[email])
}

// service is a running auth service.
type service struct {
	URL  string
	Mail *mailbox
}

func (s *service) client() *authsdk.SDKClient {
	return authsdk.NewSDKClient(s.URL)
}

// startService boots the auth service with relaxed rate limits. env
// overrides or extends the base configuration.
func startService(t *testing.T, env map[string]string) *service {
	t.Helper()

	mail := &mailbox{sent: make(map[string][]string)}
	provider := httptest.NewServer(mail)
	t.Cleanup(provider.Close)

	dir := t.TempDir()
	base := map[string]string{
		"ENV":               "test",
		"LOG_LEVEL":         "error",
		"SECRET_KEY":        testSecret,
		"DATABASE_FILE":     filepath.Join(dir, "projectx.db"),
		"PEPPER_FILE":       filepath.Join(dir, "pepper"),
		"EMAIL_PROVIDER":    "sendgrid",
		"SENDGRID_API_KEY":  "test-sendgrid-key",
		"SENDGRID_BASE_URL": provider.URL,
		"EMAIL_FROM":        "no-reply@projectx.test",

		// Tests make many rapid requests from one address.
		"RATELIMIT_REGISTER_REQUESTS":   "1000",
		"RATELIMIT_REGISTER_WINDOW_SEC": "60",
		"RATELIMIT_REGISTER_BURST":      "1000",
		"RATELIMIT_LOGIN_REQUESTS":      "1000",
		"RATELIMIT_LOGIN_WINDOW_SEC":    "60",
		"RATELIMIT_LOGIN_BURST":         "1000",
		"RATELIMIT_VERIFY_REQUESTS":     "1000",
		"RATELIMIT_VERIFY_WINDOW_SEC":   "60",
		"RATELIMIT_VERIFY_BURST":        "1000",
	}
	for k, v := range env {
		base[k] = v
	}
	for k, v := range base {
		t.Setenv(k, v)
	}

	cfg, err := app.LoadConfig()
	require.NoError(t, err)

	application, err := app.New(cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		srv.Close()
		if err := application.Shutdown(); err != nil {
			t.Logf("shutdown: %v", err)
		}
	})

	return &service{URL: srv.URL, Mail: mail}
}

// defaultLimits removes the relaxed overrides so the stock profiles apply.
func defaultLimits() map[string]string {
	env := make(map[string]string)
	for _, route := range []string{"REGISTER", "LOGIN", "VERIFY"} {
		for _, field := range []string{"REQUESTS", "WINDOW_SEC", "BURST"} {
			env["RATELIMIT_"+route+"_"+field] = "0"
		}
	}
	return env
}

// registerUser creates an account with testPassword.
func registerUser(t *testing.T, c *authsdk.SDKClient, name, email, role string) {
	t.Helper()
	_, err := c.Register(t.Context(), authsdk.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: testPassword,
		Role:     role,
	})
	require.NoError(t, err, "register %s", email)
}

// loginUser logs in without 2FA and returns the profile.
func loginUser(t *testing.T, c *authsdk.SDKClient, email string) *authsdk.UserProfile {
	t.Helper()
	resp, err := c.Login(t.Context(), email, testPassword)
	require.NoError(t, err)
	require.False(t, resp.Pending(), "expected a direct login")
	require.NotNil(t, resp.User)
	require.NotNil(t, c.SessionCookie(), "session cookie should be set")
	return resp.User
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}

// startContainer runs image and returns host:port for exposed.
func startContainer(t *testing.T, req testcontainers.ContainerRequest, exposed nat.Port) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in -short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, exposed)
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func startPostgres(t *testing.T) string {
	t.Helper()
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "projectx",
			"POSTGRES_PASSWORD": "projectx",
			"POSTGRES_DB":       "projectx",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, nat.Port("5432/tcp"))
	return fmt.Sprintf("postgres://projectx:projectx@%s/projectx?sslmode=disable", addr)
}

func startRedis(t *testing.T) string {
	t.Helper()
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}, nat.Port("6379/tcp"))
	return fmt.Sprintf("redis://%s/0", addr)
}
