// Package notify delivers transactional email such as 2FA codes.
package notify

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 5 * time.Second

// Message is a plain-text email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
}

// Notifier sends a message. Implementations must honour ctx cancellation.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Result is the outcome of a delivery. A failed delivery is data for the
// caller to log, never a reason to fail the request that triggered it.
type Result struct {
	Delivered bool
	Err       error
	Elapsed   time.Duration
}

// Dispatch sends msg through n with the given timeout (DefaultTimeout when
// non-positive) and reports what happened.
func Dispatch(ctx context.Context, n Notifier, timeout time.Duration, msg Message) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := n.Send(ctx, msg)
	return Result{
		Delivered: err == nil,
		Err:       err,
		Elapsed:   time.Since(start),
	}
}

// TwoFactorCodeMessage builds the email carrying a login code.
func TwoFactorCodeMessage(to, name, code string, ttl time.Duration) Message {
	greeting := "Hi"
	if name != "" {
		greeting = "Hi " + name
	}
	return Message{
		To:      to,
		ToName:  name,
		Subject: "Your verification code",
		Text: fmt.Sprintf(
			"%s,\n\nYour verification code is %s. It expires in %d minutes.\n\n"+
				"If you did not try to sign in, you can ignore this email.\n",
			greeting, code, int(ttl.Round(time.Minute).Minutes()),
		),
	}
}
