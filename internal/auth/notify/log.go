package notify

import (
	"context"
	"log/slog"
)

// LogNotifier "delivers" email by logging the recipient and subject. It is
// the default outside production so local logins work without a provider.
type LogNotifier struct {
	Logger *slog.Logger

	// IncludeBody also logs the message text, which carries the 2FA code.
	// Development only.
	IncludeBody bool
}

func (n LogNotifier) Send(ctx context.Context, msg Message) error {
	log := n.Logger
	if log == nil {
		log = slog.Default()
	}

	attrs := []any{"to", msg.To, "subject", msg.Subject}
	if n.IncludeBody {
		attrs = append(attrs, "text", msg.Text)
	}
	log.InfoContext(ctx, "email not sent (log provider)", attrs...)
	return nil
}
