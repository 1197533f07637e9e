package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/projectx/pkg/authsdk"
)

// CookieConfig controls the session cookie attributes.
type CookieConfig struct {
	// Secure is set in production so the cookie only travels over TLS.
	Secure bool
	// MaxAge matches the token lifetime.
	MaxAge time.Duration
}

func (c CookieConfig) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     authsdk.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c CookieConfig) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authsdk.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
