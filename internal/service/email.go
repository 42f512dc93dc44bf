package service

import (
	"context"
	"fmt"

	"github.com/templui/usermap/internal/mail"
	"github.com/templui/usermap/internal/model"
	"github.com/templui/usermap/internal/token"
)

const (
	EmailConfirmation    = "confirmation"
	EmailWelcome         = "welcome"
	EmailPasswordReset   = "password_reset"
	EmailPasswordChanged = "password_changed"
)

// EmailService renders the account emails and hands them to a mail.Mailer.
type EmailService struct {
	mailer  mail.Mailer
	appURL  string
	appName string
}

func NewEmailService(mailer mail.Mailer, appURL, appName string) *EmailService {
	return &EmailService{
		mailer:  mailer,
		appURL:  appURL,
		appName: appName,
	}
}

// ConfirmationURL is the link that confirms a registration.
func (s *EmailService) ConfirmationURL(user *model.User) string {
	return fmt.Sprintf("%s/confirm/%s/%s", s.appURL, token.EncodeID(user.ID), user.ConfirmationKey)
}

// PasswordResetURL is the link that opens the set password form.
func (s *EmailService) PasswordResetURL(user *model.User, resetToken string) string {
	return fmt.Sprintf("%s/password-reset/%s/%s", s.appURL, token.EncodeID(user.ID), resetToken)
}

func (s *EmailService) SendConfirmation(ctx context.Context, user *model.User) error {
	subject, body := confirmationEmailTemplate(user.Name, s.ConfirmationURL(user), s.appName)
	return s.send(ctx, EmailConfirmation, user.Email, subject, body)
}

func (s *EmailService) SendWelcome(ctx context.Context, user *model.User) error {
	subject, body := welcomeEmailTemplate(user.Name, s.appURL+"/login", s.appName)
	return s.send(ctx, EmailWelcome, user.Email, subject, body)
}

func (s *EmailService) SendPasswordReset(ctx context.Context, user *model.User, resetToken, validity string) error {
	subject, body := passwordResetEmailTemplate(user.Name, s.PasswordResetURL(user, resetToken), validity, s.appName)
	return s.send(ctx, EmailPasswordReset, user.Email, subject, body)
}

func (s *EmailService) SendPasswordChanged(ctx context.Context, user *model.User) error {
	subject, body := passwordChangedEmailTemplate(user.Name, s.appURL+"/password-reset", s.appName)
	return s.send(ctx, EmailPasswordChanged, user.Email, subject, body)
}

func (s *EmailService) send(ctx context.Context, kind, to, subject, body string) error {
	return s.mailer.Send(ctx, mail.Message{
		To:      to,
		Subject: subject,
		Text:    body,
		Kind:    kind,
	})
}
