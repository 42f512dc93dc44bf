// Package mail delivers the account notification emails.
package mail

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNoRecipient = errors.New("no recipient specified")

// Message is a plain text email to a single recipient.
type Message struct {
	To      string
	Subject string
	Text    string
	// Kind tags the message in logs (confirmation, password_reset, ...).
	Kind string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

const (
	ProviderLog    = "log"
	ProviderResend = "resend"
	ProviderSMTP   = "smtp"
)

type Options struct {
	Provider     string
	From         string
	Timeout      time.Duration
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

// New builds the mailer selected by opts.Provider.
func New(opts Options) (Mailer, error) {
	switch opts.Provider {
	case "", ProviderLog:
		return NewLogMailer(), nil
	case ProviderResend:
		if opts.ResendAPIKey == "" {
			return nil, errors.New("mail provider resend requires RESEND_API_KEY")
		}
		return NewResendMailer(opts.ResendAPIKey, opts.From, opts.Timeout), nil
	case ProviderSMTP:
		if opts.SMTPHost == "" {
			return nil, errors.New("mail provider smtp requires SMTP_HOST")
		}
		return NewSMTPMailer(opts.SMTPHost, opts.SMTPPort, opts.SMTPUsername, opts.SMTPPassword, opts.From, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", opts.Provider)
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
