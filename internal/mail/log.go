package mail

import (
	"context"
	"log/slog"
)

// LogMailer writes messages to the log instead of sending them.
// Used in development so links can be copied from the console.
type LogMailer struct{}

func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}

	slog.InfoContext(ctx, "email sent (dev mode)",
		"type", msg.Kind,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
