package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultSendGridBaseURL is the SendGrid v3 API root.
	DefaultSendGridBaseURL = "https://api.sendgrid.com"

	httpClientTimeout = 15 * time.Second
)

// ErrNotConfigured is returned when a provider is missing credentials.
var ErrNotConfigured = errors.New("notify: provider not configured")

// SendGridClient sends email through the SendGrid v3 mail/send API. Any
// provider speaking the same JSON shape (or a local mock) works by pointing
// BaseURL at it.
type SendGridClient struct {
	APIKey     string
	BaseURL    string
	From       string
	HTTPClient *http.Client
}

// NewSendGridClient returns a client for apiKey sending as from. An empty
// baseURL means DefaultSendGridBaseURL.
func NewSendGridClient(apiKey, baseURL, from string) *SendGridClient {
	if baseURL == "" {
		baseURL = DefaultSendGridBaseURL
	}
	return &SendGridClient{
		APIKey:     apiKey,
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		From:       from,
		HTTPClient: &http.Client{Timeout: httpClientTimeout},
	}
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgMail struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

// Send posts msg to {BaseURL}/v3/mail/send. Any non-2xx status is an error.
// The message body is never logged.
func (c *SendGridClient) Send(ctx context.Context, msg Message) error {
	if c.APIKey == "" || c.From == "" {
		return ErrNotConfigured
	}

	raw, err := json.Marshal(sgMail{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: msg.To, Name: msg.ToName}}}},
		From:             sgAddress{Email: c.From},
		Subject:          msg.Subject,
		Content:          []sgContent{{Type: "text/plain", Value: msg.Text}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v3/mail/send", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("sendgrid: request failed status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
