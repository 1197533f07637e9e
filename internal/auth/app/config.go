package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"strings"
	"time"

	authhttp "github.com/aussiebroadwan/projectx/internal/auth/http"
	"github.com/aussiebroadwan/projectx/pkg/httpx"
	"github.com/spf13/viper"
)

// Backend selectors.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ChallengeMemory = "memory"
	ChallengeRedis  = "redis"

	EmailLog      = "log"
	EmailSendGrid = "sendgrid"
)

// ErrMissingSecret is returned by LoadConfig when SECRET_KEY is unset. The
// service cannot sign or verify sessions without it.
var ErrMissingSecret = errors.New("config: SECRET_KEY must be set")

// Config is read from the environment and an optional .env file.
type Config struct {
	Env       string `mapstructure:"ENV"`        // dev, staging, prod (default: dev)
	LogLevel  string `mapstructure:"LOG_LEVEL"`  // debug, info, warn, error (default: info)
	LogFormat string `mapstructure:"LOG_FORMAT"` // json, text (default: json)
	Port      int    `mapstructure:"PORT"`       // default: 8080

	SecretKey  string        `mapstructure:"SECRET_KEY"`   // Required: HS256 signing secret
	Issuer     string        `mapstructure:"TOKEN_ISSUER"` // default: projectx
	SessionTTL time.Duration `mapstructure:"SESSION_TTL"`  // token exp and cookie max-age (default: 24h)

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"` // sqlite, postgres (default: sqlite)
	DatabaseFile   string `mapstructure:"DATABASE_FILE"`   // SQLite path (default: projectx.db)
	DatabaseURL    string `mapstructure:"DATABASE_URL"`    // Postgres DSN
	PepperFile     string `mapstructure:"PEPPER_FILE"`     // default: pepper

	ChallengeStore string        `mapstructure:"CHALLENGE_STORE"` // memory, redis (default: memory)
	ChallengeTTL   time.Duration `mapstructure:"CHALLENGE_TTL"`   // default: 10m
	RedisURL       string        `mapstructure:"REDIS_URL"`       // redis://host:6379/0
	RedisPrefix    string        `mapstructure:"REDIS_PREFIX"`    // default: projectx:2fa

	EmailProvider   string        `mapstructure:"EMAIL_PROVIDER"`    // log, sendgrid (default: log)
	SendGridAPIKey  string        `mapstructure:"SENDGRID_API_KEY"`  // required for sendgrid
	SendGridBaseURL string        `mapstructure:"SENDGRID_BASE_URL"` // default: https://api.sendgrid.com
	EmailFrom       string        `mapstructure:"EMAIL_FROM"`        // sender address
	NotifyTimeout   time.Duration `mapstructure:"NOTIFY_TIMEOUT"`    // default: 5s

	ShutdownGracePeriod  time.Duration `mapstructure:"SHUTDOWN_GRACE_PERIOD"` // default: 10s
	HousekeepingInterval time.Duration `mapstructure:"HOUSEKEEPING_INTERVAL"` // default: 1m

	// TrustedProxies is a comma separated list of CIDRs whose forwarding
	// headers the rate limiter believes. Empty: socket address only.
	TrustedProxies string         `mapstructure:"TRUSTED_PROXIES"`
	trustedProxies []netip.Prefix // parsed by validate

	RegisterRequests  int `mapstructure:"RATELIMIT_REGISTER_REQUESTS"`
	RegisterWindowSec int `mapstructure:"RATELIMIT_REGISTER_WINDOW_SEC"`
	RegisterBurst     int `mapstructure:"RATELIMIT_REGISTER_BURST"`
	LoginRequests     int `mapstructure:"RATELIMIT_LOGIN_REQUESTS"`
	LoginWindowSec    int `mapstructure:"RATELIMIT_LOGIN_WINDOW_SEC"`
	LoginBurst        int `mapstructure:"RATELIMIT_LOGIN_BURST"`
	VerifyRequests    int `mapstructure:"RATELIMIT_VERIFY_REQUESTS"`
	VerifyWindowSec   int `mapstructure:"RATELIMIT_VERIFY_WINDOW_SEC"`
	VerifyBurst       int `mapstructure:"RATELIMIT_VERIFY_BURST"`
}

// LoadConfig reads .env (if present) and the environment. Environment
// variables win over .env. It fails on a missing secret or an inconsistent
// backend selection.
func LoadConfig() (Config, error) {
	return loadConfig(".env")
}

func loadConfig(envFile string) (Config, error) {
	v := viper.New()

	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		// A missing .env is normal outside local dev; a broken one is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read %s: %w", envFile, err)
		}
	}

	v.AutomaticEnv()

	v.SetDefault("ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("PORT", 8080)
	v.SetDefault("SECRET_KEY", "")
	v.SetDefault("TOKEN_ISSUER", "projectx")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("DATABASE_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_FILE", "projectx.db")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("PEPPER_FILE", "pepper")
	v.SetDefault("CHALLENGE_STORE", ChallengeMemory)
	v.SetDefault("CHALLENGE_TTL", "10m")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_PREFIX", "projectx:2fa")
	v.SetDefault("EMAIL_PROVIDER", EmailLog)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("SENDGRID_BASE_URL", "https://api.sendgrid.com")
	v.SetDefault("EMAIL_FROM", "no-reply@projectx.local")
	v.SetDefault("NOTIFY_TIMEOUT", "5s")
	v.SetDefault("SHUTDOWN_GRACE_PERIOD", "10s")
	v.SetDefault("HOUSEKEEPING_INTERVAL", "1m")
	v.SetDefault("TRUSTED_PROXIES", "")
	for _, route := range []string{"REGISTER", "LOGIN", "VERIFY"} {
		for _, field := range []string{"REQUESTS", "WINDOW_SEC", "BURST"} {
			v.SetDefault("RATELIMIT_"+route+"_"+field, 0)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return ErrMissingSecret
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}

	proxies, err := httpx.ParseTrustedProxies(c.TrustedProxies)
	if err != nil {
		return fmt.Errorf("config: TRUSTED_PROXIES: %w", err)
	}
	c.trustedProxies = proxies

	c.DatabaseDriver = strings.ToLower(c.DatabaseDriver)
	switch c.DatabaseDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set when DATABASE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("config: unknown DATABASE_DRIVER %q", c.DatabaseDriver)
	}

	c.ChallengeStore = strings.ToLower(c.ChallengeStore)
	switch c.ChallengeStore {
	case ChallengeMemory:
	case ChallengeRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL must be set when CHALLENGE_STORE=redis")
		}
	default:
		return fmt.Errorf("config: unknown CHALLENGE_STORE %q", c.ChallengeStore)
	}

	c.EmailProvider = strings.ToLower(c.EmailProvider)
	switch c.EmailProvider {
	case EmailLog:
	case EmailSendGrid:
		if c.SendGridAPIKey == "" || c.EmailFrom == "" {
			return errors.New("config: SENDGRID_API_KEY and EMAIL_FROM must be set when EMAIL_PROVIDER=sendgrid")
		}
	default:
		return fmt.Errorf("config: unknown EMAIL_PROVIDER %q", c.EmailProvider)
	}

	return nil
}

// IsProduction reports whether cookies must be Secure and 2FA codes must
// never reach the logs.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// RateLimits applies any RATELIMIT_* overrides to the stock profiles. An
// override is used only when all three of its fields are positive.
func (c Config) RateLimits() authhttp.RateLimits {
	limits := authhttp.DefaultRateLimits()
	limits.Register = override(limits.Register, c.RegisterRequests, c.RegisterWindowSec, c.RegisterBurst)
	limits.Login = override(limits.Login, c.LoginRequests, c.LoginWindowSec, c.LoginBurst)
	limits.Verify = override(limits.Verify, c.VerifyRequests, c.VerifyWindowSec, c.VerifyBurst)
	limits.TrustedProxies = c.trustedProxies
	return limits
}

func override(def httpx.RateLimitConfig, requests, windowSec, burst int) httpx.RateLimitConfig {
	cfg := httpx.RateLimitConfig{
		RequestsPerWindow: requests,
		Window:            time.Duration(windowSec) * time.Second,
		Burst:             burst,
	}
	if !cfg.Valid() {
		return def
	}
	return cfg
}
