package mail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	err   error
	delay time.Duration
	sent  []*gomail.Message
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	time.Sleep(f.delay)
	f.sent = append(f.sent, m...)
	return f.err
}

func TestNew_SelectsProvider(t *testing.T) {
	m, err := New(Options{Provider: ProviderLog})
	require.NoError(t, err)
	assert.IsType(t, &LogMailer{}, m)

	m, err = New(Options{Provider: ProviderSMTP, SMTPHost: "localhost", SMTPPort: 25})
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m)

	m, err = New(Options{Provider: ProviderResend, ResendAPIKey: "re_test"})
	require.NoError(t, err)
	assert.IsType(t, &ResendMailer{}, m)

	_, err = New(Options{Provider: ProviderResend})
	assert.Error(t, err)

	_, err = New(Options{Provider: "pigeon"})
	assert.Error(t, err)
}

func TestLogMailer_RequiresRecipient(t *testing.T) {
	err := NewLogMailer().Send(context.Background(), Message{Subject: "hi"})
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestSMTPMailer_Send(t *testing.T) {
	fake := &fakeDialer{}
	m := &SMTPMailer{dialer: fake, from: "noreply@example.org", timeout: time.Second}

	err := m.Send(context.Background(), Message{To: "a@x.com", Subject: "Hello", Text: "body"})
	require.NoError(t, err)
	require.Len(t, fake.sent, 1)
	assert.Equal(t, []string{"a@x.com"}, fake.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"noreply@example.org"}, fake.sent[0].GetHeader("From"))
}

func TestSMTPMailer_PropagatesFailure(t *testing.T) {
	boom := errors.New("connection refused")
	m := &SMTPMailer{dialer: &fakeDialer{err: boom}, timeout: time.Second}

	err := m.Send(context.Background(), Message{To: "a@x.com"})
	assert.ErrorIs(t, err, boom)
}

func TestSMTPMailer_Timeout(t *testing.T) {
	m := &SMTPMailer{dialer: &fakeDialer{delay: 200 * time.Millisecond}, timeout: 10 * time.Millisecond}

	err := m.Send(context.Background(), Message{To: "a@x.com"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
