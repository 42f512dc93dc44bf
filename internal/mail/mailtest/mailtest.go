// Package mailtest provides an in-memory mail.Mailer for tests.
package mailtest

import (
	"context"
	"sync"

	"github.com/templui/usermap/internal/mail"
)

// Recorder keeps every message it is asked to send.
// Setting Err makes every Send fail with it.
type Recorder struct {
	mu   sync.Mutex
	sent []mail.Message
	Err  error
}

func (r *Recorder) Send(ctx context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *Recorder) Sent() []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]mail.Message, len(r.sent))
	copy(out, r.sent)
	return out
}

// OfKind returns the sent messages tagged with kind.
func (r *Recorder) OfKind(kind string) []mail.Message {
	var out []mail.Message
	for _, m := range r.Sent() {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}
