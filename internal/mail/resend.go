package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

type ResendMailer struct {
	client  *resend.Client
	from    string
	timeout time.Duration
}

func NewResendMailer(apiKey, from string, timeout time.Duration) *ResendMailer {
	return &ResendMailer{
		client:  resend.NewClient(apiKey),
		from:    from,
		timeout: timeout,
	}
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}

	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
	}

	_, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}

	slog.InfoContext(ctx, "email sent", "type", msg.Kind, "to", msg.To)
	return nil
}
