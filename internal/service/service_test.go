package service

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/templui/usermap/internal/db/dbtest"
	"github.com/templui/usermap/internal/mail"
	"github.com/templui/usermap/internal/mail/mailtest"
	"github.com/templui/usermap/internal/model"
	"github.com/templui/usermap/internal/repository"
	"github.com/templui/usermap/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct horse battery"

// countingRepository records how many confirmation writes reached the database.
type countingRepository struct {
	repository.UserRepository
	confirmCalls atomic.Int32
	confirmWins  atomic.Int32
}

func (r *countingRepository) MarkConfirmed(ctx context.Context, id string) (bool, error) {
	r.confirmCalls.Add(1)
	won, err := r.UserRepository.MarkConfirmed(ctx, id)
	if won {
		r.confirmWins.Add(1)
	}
	return won, err
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	repo      *countingRepository
	mailer    *mailtest.Recorder
	lifecycle *Lifecycle
	auth      *AuthService
	users     *UserService
	clock     *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := &countingRepository{UserRepository: repository.NewUserRepository(dbtest.New(t))}
	mailer := &mailtest.Recorder{}
	lifecycle := NewLifecycle(repo, true)
	emails := NewEmailService(mailer, "http://localhost:8090", "User Map")
	auth := NewAuthService(repo, lifecycle, emails, AuthOptions{
		AppName:       "User Map",
		JWTSecret:     "test-secret-test-secret-test-secret",
		JWTExpiry:     time.Hour,
		ResetExpiry:   72 * time.Hour,
		BcryptCost:    bcrypt.MinCost,
		DefaultActive: true,
	})
	clock := &testClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	auth.SetClock(clock.Now)

	return &fixture{
		repo:      repo,
		mailer:    mailer,
		lifecycle: lifecycle,
		auth:      auth,
		users:     NewUserService(repo, lifecycle, nil),
		clock:     clock,
	}
}

func registration(email string, role model.Role) validation.Registration {
	return validation.Registration{
		Email:           email,
		Password:        testPassword,
		PasswordConfirm: testPassword,
		Name:            "Ada Lovelace",
		Role:            int(role),
		Latitude:        51.5,
		Longitude:       -0.12,
	}
}

func (f *fixture) register(t *testing.T, email string, role model.Role) *model.User {
	t.Helper()
	user, err := f.auth.Register(context.Background(), registration(email, role))
	require.NoError(t, err)
	return user
}

func (f *fixture) registerConfirmed(t *testing.T, email string, role model.Role) *model.User {
	t.Helper()
	user := f.register(t, email, role)
	result, err := f.auth.ConfirmRegistration(context.Background(), encodedID(user), user.ConfirmationKey)
	require.NoError(t, err)
	require.Equal(t, ConfirmResultConfirmed, result)
	user.IsConfirmed = true
	return user
}

// linkParts pulls the two path segments following prefix out of a mailed link.
func linkParts(t *testing.T, msg mail.Message, prefix string) (string, string) {
	t.Helper()
	for _, line := range strings.Split(msg.Text, "\n") {
		line = strings.TrimSpace(line)
		u, err := url.Parse(line)
		if err != nil || !strings.HasPrefix(u.Path, prefix) {
			continue
		}
		parts := strings.Split(strings.TrimPrefix(u.Path, prefix), "/")
		require.Len(t, parts, 2)
		return parts[0], parts[1]
	}
	t.Fatalf("no %s link in %q", prefix, msg.Text)
	return "", ""
}
