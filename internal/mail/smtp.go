package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"
)

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPMailer struct {
	dialer  sender
	from    string
	timeout time.Duration
}

func NewSMTPMailer(host string, port int, username, password, from string, timeout time.Duration) *SMTPMailer {
	return &SMTPMailer{
		dialer:  gomail.NewDialer(host, port, username, password),
		from:    from,
		timeout: timeout,
	}
}

// Send delivers msg over SMTP. gomail has no context support, so the
// deadline is enforced around the dial-and-send call; a send that outlives
// it finishes in the background and its result is logged.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}

	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Text)

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(gm)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp: %w", err)
		}
		slog.InfoContext(ctx, "email sent", "type", msg.Kind, "to", msg.To)
		return nil
	case <-ctx.Done():
		go func() {
			if err := <-done; err != nil {
				slog.Warn("late smtp send failed", "type", msg.Kind, "to", msg.To, "error", err)
			}
		}()
		return fmt.Errorf("smtp: %w", ctx.Err())
	}
}
