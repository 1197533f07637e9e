package app

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	authhttp "github.com/aussiebroadwan/projectx/internal/auth/http"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "projectx", cfg.Issuer)
	require.Equal(t, 24*time.Hour, cfg.SessionTTL)
	require.Equal(t, 10*time.Minute, cfg.ChallengeTTL)
	require.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	require.Equal(t, ChallengeMemory, cfg.ChallengeStore)
	require.Equal(t, EmailLog, cfg.EmailProvider)
	require.Equal(t, 5*time.Second, cfg.NotifyTimeout)
	require.False(t, cfg.IsProduction())
	require.Equal(t, authhttp.DefaultRateLimits(), cfg.RateLimits())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("ENV", "prod")
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("CHALLENGE_STORE", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/projectx")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.True(t, cfg.IsProduction())
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 2*time.Hour, cfg.SessionTTL)
	require.Equal(t, ChallengeRedis, cfg.ChallengeStore)
	require.Equal(t, DriverPostgres, cfg.DatabaseDriver)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{"SECRET_KEY": ""}, "SECRET_KEY"},
		{"postgres without url", map[string]string{"DATABASE_DRIVER": "postgres"}, "DATABASE_URL"},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql"}, "DATABASE_DRIVER"},
		{"redis without url", map[string]string{"CHALLENGE_STORE": "redis"}, "REDIS_URL"},
		{"unknown challenge store", map[string]string{"CHALLENGE_STORE": "disk"}, "CHALLENGE_STORE"},
		{"sendgrid without key", map[string]string{"EMAIL_PROVIDER": "sendgrid"}, "SENDGRID_API_KEY"},
		{"unknown provider", map[string]string{"EMAIL_PROVIDER": "pigeon"}, "EMAIL_PROVIDER"},
		{"bad port", map[string]string{"PORT": "70000"}, "PORT"},
		{"bad trusted proxy", map[string]string{"TRUSTED_PROXIES": "10.0.0.0/8,not-an-ip"}, "TRUSTED_PROXIES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SECRET_KEY", "s3cret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig_TrustedProxies(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.1")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("172.16.0.1/32"),
	}, cfg.RateLimits().TrustedProxies)
}

func TestLoadConfig_MissingSecretSentinel(t *testing.T) {
	t.Setenv("SECRET_KEY", "   ")

	_, err := LoadConfig()
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestConfig_RateLimits(t *testing.T) {
	cfg := Config{
		LoginRequests:  3,
		LoginWindowSec: 30,
		LoginBurst:     1,
		// Incomplete override is ignored.
		VerifyRequests: 100,
	}

	limits := cfg.RateLimits()
	def := authhttp.DefaultRateLimits()

	require.Equal(t, 3, limits.Login.RequestsPerWindow)
	require.Equal(t, 30*time.Second, limits.Login.Window)
	require.Equal(t, 1, limits.Login.Burst)
	require.Equal(t, def.Verify, limits.Verify)
	require.Equal(t, def.Register, limits.Register)
	require.Equal(t, def.Default, limits.Default)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is fine", func(t *testing.T) {
		t.Setenv("SECRET_KEY", "s3cret")
		_, err := loadConfig(filepath.Join(dir, "absent.env"))
		require.NoError(t, err)
	})

	t.Run("values are read", func(t *testing.T) {
		path := filepath.Join(dir, "good.env")
		require.NoError(t, os.WriteFile(path, []byte("SECRET_KEY=from-file\nTOKEN_ISSUER=file-issuer\n"), 0o600))

		cfg, err := loadConfig(path)
		require.NoError(t, err)
		require.Equal(t, "file-issuer", cfg.Issuer)
	})

	t.Run("unreadable file is an error", func(t *testing.T) {
		t.Setenv("SECRET_KEY", "s3cret")
		path := filepath.Join(dir, "dir.env")
		require.NoError(t, os.Mkdir(path, 0o700))

		_, err := loadConfig(path)
		require.Error(t, err)
		require.Contains(t, err.Error(), "dir.env")
	})
}
