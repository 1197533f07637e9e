package authsdk

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// CookieName is the session cookie set by login and cleared by logout.
const CookieName = "jwt"

// SDKClient is a client for the projectx auth API. It keeps the session
// cookie in its own jar, so one SDKClient is one browser-like session.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client with a fresh cookie jar.
func NewSDKClient(baseURL string) *SDKClient {
	jar, _ := cookiejar.New(nil) // only fails on a bad PublicSuffixList option
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
	}
}

// SessionCookie returns the session cookie the server last set, or nil.
// The value is opaque; it is exposed for tests and debugging.
func (c *SDKClient) SessionCookie() *http.Cookie {
	if c.HTTPClient.Jar == nil {
		return nil
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil
	}
	for _, ck := range c.HTTPClient.Jar.Cookies(u) {
		if ck.Name == CookieName {
			return ck
		}
	}
	return nil
}
