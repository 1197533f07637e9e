package http

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/aussiebroadwan/projectx/internal/auth/domain"
	"github.com/aussiebroadwan/projectx/internal/auth/guard"
	"github.com/aussiebroadwan/projectx/internal/auth/service"
	"github.com/aussiebroadwan/projectx/internal/auth/store"
	"github.com/aussiebroadwan/projectx/pkg/httpx"
	"github.com/aussiebroadwan/projectx/pkg/slogx"

	_ "github.com/aussiebroadwan/projectx/api/projectx" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RateLimits holds the per-route limiter profiles.
type RateLimits struct {
	Register httpx.RateLimitConfig
	Login    httpx.RateLimitConfig
	Verify   httpx.RateLimitConfig
	Default  httpx.RateLimitConfig

	// TrustedProxies are the peers whose X-Forwarded-For / X-Real-IP
	// headers are believed. Empty means key on the socket address only.
	TrustedProxies []netip.Prefix
}

// DefaultRateLimits returns the stock profiles.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Register: httpx.RegisterLimit,
		Login:    httpx.LoginLimit,
		Verify:   httpx.VerifyLimit,
		Default:  httpx.DefaultLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	guard *guard.Guard

	AuthService *service.AuthService
	UserService *service.UserService

	// Challenges is pinged by /readyz when set (Redis); nil for the memory store.
	Challenges Pinger
	Cookies    CookieConfig
	Limits     RateLimits
}

func NewRouter(
	g *guard.Guard,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		guard:        g,
		logger:       logger,
		Limits:       DefaultRateLimits(),
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			projectx API
//	@version		0.1.0
//	@description	Authentication for the projectx project tracker. Sessions are carried in an
//	@description	httpOnly "jwt" cookie set by /auth/login or /auth/verify-2fa.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/projectx
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
//
//	@securityDefinitions.apikey	CookieAuth
//	@in							cookie
//	@name						jwt
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		AuthService: r.AuthService,
		Cookies:     r.Cookies,
		Guard:       r.guard,
	}

	// POST /auth/register - 5 per hour per IP
	r.Mux.Handle("POST /auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(r.Limits.Register, r.Limits.TrustedProxies...),
		),
	)

	// POST /auth/login - 5 per minute per IP (password brute force)
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(r.Limits.Login, r.Limits.TrustedProxies...),
		),
	)

	// POST /auth/verify-2fa - 3 per minute per IP (code brute force)
	r.Mux.Handle("POST /auth/verify-2fa",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyTwoFactor),
			httpx.RateLimitByIP(r.Limits.Verify, r.Limits.TrustedProxies...),
		),
	)

	// enable-2fa and disable-2fa take a user_id and need no session, matching
	// the existing clients. Anyone who knows an id can toggle that account's
	// 2FA; they are only rate limited. Put them behind RequireUser once the
	// clients send the cookie.
	r.Mux.Handle("POST /auth/enable-2fa",
		httpx.Chain(http.HandlerFunc(h.HandleEnableTwoFactor),
			httpx.RateLimitByIP(r.Limits.Default, r.Limits.TrustedProxies...),
		),
	)
	r.Mux.Handle("POST /auth/disable-2fa",
		httpx.Chain(http.HandlerFunc(h.HandleDisableTwoFactor),
			httpx.RateLimitByIP(r.Limits.Default, r.Limits.TrustedProxies...),
		),
	)
	r.Mux.Handle("POST /auth/logout", http.HandlerFunc(h.HandleLogout))
}

func (r *Router) registerUsers() {
	h := &UsersHandler{UserService: r.UserService}

	r.Mux.Handle("GET /auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			r.guard.RequireUser(),
			httpx.RateLimitByUser(r.Limits.Default, r.Limits.TrustedProxies...),
		),
	)

	r.Mux.Handle("GET /users",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			r.guard.RequireUser(),
			guard.RequireRole(domain.RoleManager, domain.RoleAdmin),
			httpx.RateLimitByUser(r.Limits.Default, r.Limits.TrustedProxies...),
		),
	)
}

func (r *Router) registerSystem() {
	// Health checks are unlimited; probes poll them frequently.
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Challenges))
}
