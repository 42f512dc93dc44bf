package service

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/usermap/internal/model"
	"github.com/templui/usermap/internal/token"
	"github.com/templui/usermap/internal/validation"
)

func encodedID(user *model.User) string {
	return token.EncodeID(user.ID)
}

func TestRegisterConfirmLoginScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.register(t, "a@x.com", model.RoleUser)
	assert.Equal(t, StateUnconfirmed, f.lifecycle.CurrentState(user))
	assert.True(t, user.IsActive)

	_, err := f.auth.Login(ctx, "a@x.com", testPassword)
	assert.ErrorIs(t, err, ErrUnconfirmedAccount)

	confirmations := f.mailer.OfKind(EmailConfirmation)
	require.Len(t, confirmations, 1)
	uid, key := linkParts(t, confirmations[0], "/confirm/")

	result, err := f.auth.ConfirmRegistration(ctx, uid, key)
	require.NoError(t, err)
	assert.Equal(t, ConfirmResultConfirmed, result)

	loggedIn, err := f.auth.Login(ctx, "A@X.com ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.Len(t, f.mailer.OfKind(EmailWelcome), 1)
}

func TestRegister_NormalizesAndRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)

	user := f.register(t, " Mixed@Example.ORG", model.RoleDeveloper)
	assert.Equal(t, "mixed@example.org", user.Email)
	assert.Len(t, user.ConfirmationKey, 64)

	_, err := f.auth.Register(context.Background(), registration("mixed@example.org", model.RoleUser))
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestRegister_InvalidForm(t *testing.T) {
	f := newFixture(t)

	form := registration("a@x.com", model.RoleUser)
	form.PasswordConfirm = "does not match at all"

	_, err := f.auth.Register(context.Background(), form)

	var formErr *FormError
	require.ErrorAs(t, err, &formErr)
	assert.True(t, formErr.Result.Has("password2"))
	assert.Empty(t, f.mailer.Sent())
}

func TestRegister_MailFailureKeepsAccount(t *testing.T) {
	f := newFixture(t)
	f.mailer.Err = errors.New("smtp down")

	user, err := f.auth.Register(context.Background(), registration("a@x.com", model.RoleUser))

	assert.ErrorIs(t, err, ErrMailDispatch)
	require.NotNil(t, user)
	stored, err := f.users.ByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsConfirmed)
}

func TestConfirm_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "a@x.com", model.RoleUser)

	first, err := f.auth.ConfirmRegistration(ctx, encodedID(user), user.ConfirmationKey)
	require.NoError(t, err)
	second, err := f.auth.ConfirmRegistration(ctx, encodedID(user), user.ConfirmationKey)
	require.NoError(t, err)

	assert.Equal(t, ConfirmResultConfirmed, first)
	assert.Equal(t, ConfirmResultAlreadyConfirmed, second)
	assert.EqualValues(t, 1, f.repo.confirmWins.Load())
	assert.EqualValues(t, 1, f.repo.confirmCalls.Load(), "already confirmed accounts are not written")
	assert.Len(t, f.mailer.OfKind(EmailWelcome), 1)

	stored, err := f.users.ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsConfirmed)
}

func TestConfirm_WrongKeyIsInvalidLinkWhetherOrNotAccountExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unconfirmed := f.register(t, "a@x.com", model.RoleUser)
	confirmed := f.registerConfirmed(t, "b@x.com", model.RoleUser)
	wrongKey, err := token.NewConfirmationKey()
	require.NoError(t, err)

	cases := map[string]string{
		"unconfirmed account": encodedID(unconfirmed),
		"confirmed account":   encodedID(confirmed),
		"unassigned id":       token.EncodeID(uuid.New().String()),
	}

	for name, uid := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := f.auth.ConfirmRegistration(ctx, uid, wrongKey)
			require.NoError(t, err)
			assert.Equal(t, ConfirmResultInvalidLink, result)
		})
	}

	assert.EqualValues(t, 1, f.repo.confirmCalls.Load(), "only the setup confirmation wrote")
}

func TestConfirm_MalformedOrUnassignedID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "a@x.com", model.RoleUser)

	for _, uid := range []string{"", "%%%", "YQ==", token.EncodeID("no-such-user")} {
		result, err := f.auth.ConfirmRegistration(ctx, uid, user.ConfirmationKey)
		require.NoError(t, err)
		assert.Equal(t, ConfirmResultInvalidLink, result, uid)
	}
}

func TestConfirm_ConcurrentCallsConfirmOnce(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "a@x.com", model.RoleUser)

	const workers = 8
	results := make([]ConfirmResult, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			r, err := f.auth.ConfirmRegistration(context.Background(), encodedID(user), user.ConfirmationKey)
			assert.NoError(t, err)
			results[i] = r
		}()
	}
	close(start)
	wg.Wait()

	counts := map[ConfirmResult]int{}
	for _, r := range results {
		counts[r]++
	}
	assert.Equal(t, 1, counts[ConfirmResultConfirmed])
	assert.Equal(t, workers-1, counts[ConfirmResultAlreadyConfirmed])
	assert.Len(t, f.mailer.OfKind(EmailWelcome), 1)
}

func TestLogin_BadPasswordNeverRevealsAccountState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "unconfirmed@x.com", model.RoleUser)
	inactive := f.registerConfirmed(t, "inactive@x.com", model.RoleUser)
	_, err := f.users.SetActive(ctx, inactive.Email, false)
	require.NoError(t, err)
	f.registerConfirmed(t, "ok@x.com", model.RoleUser)

	for _, email := range []string{"unconfirmed@x.com", "inactive@x.com", "ok@x.com", "nobody@x.com"} {
		_, err := f.auth.Login(ctx, email, "wrong password entirely")
		assert.ErrorIs(t, err, ErrBadCredentials, email)
	}

	_, err = f.auth.Login(ctx, "inactive@x.com", testPassword)
	assert.ErrorIs(t, err, ErrInactiveAccount)
}

func TestLogin_InactiveCheckedBeforeUnconfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@x.com", model.RoleUser)
	_, err := f.users.SetActive(ctx, "a@x.com", false)
	require.NoError(t, err)

	// Only one reason is reported; inactive wins.
	_, err = f.auth.Login(ctx, "a@x.com", testPassword)
	assert.ErrorIs(t, err, ErrInactiveAccount)
	assert.NotErrorIs(t, err, ErrUnconfirmedAccount)

	_, err = f.users.SetActive(ctx, "a@x.com", true)
	require.NoError(t, err)
	_, err = f.auth.Login(ctx, "a@x.com", testPassword)
	assert.ErrorIs(t, err, ErrUnconfirmedAccount)
}

func TestSession_RoundTripAndInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.registerConfirmed(t, "a@x.com", model.RoleUser)

	rec := httptest.NewRecorder()
	require.NoError(t, f.auth.StartSession(rec, user))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, AuthCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	authed, err := f.auth.Authenticate(ctx, cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = f.users.SetActive(ctx, user.Email, false)
	require.NoError(t, err)
	_, err = f.auth.Authenticate(ctx, cookies[0].Value)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSession_Expires(t *testing.T) {
	f := newFixture(t)
	user := f.registerConfirmed(t, "a@x.com", model.RoleUser)

	signed, _, err := f.auth.GenerateJWT(user)
	require.NoError(t, err)

	f.clock.Advance(time.Hour + time.Second)
	_, err = f.auth.Authenticate(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestPasswordReset_FullFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.registerConfirmed(t, "a@x.com", model.RoleUser)

	oldSession, _, err := f.auth.GenerateJWT(user)
	require.NoError(t, err)

	require.NoError(t, f.auth.RequestPasswordReset(ctx, validation.PasswordResetRequest{Email: "A@x.com"}))
	resets := f.mailer.OfKind(EmailPasswordReset)
	require.Len(t, resets, 1)
	assert.Contains(t, resets[0].Text, "3 days")
	uid, resetToken := linkParts(t, resets[0], "/password-reset/")

	verified, err := f.auth.VerifyPasswordReset(ctx, uid, resetToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)

	newPassword := "a brand new passphrase"
	_, err = f.auth.ResetPassword(ctx, uid, resetToken, validation.SetPassword{
		NewPassword:        newPassword,
		NewPasswordConfirm: newPassword,
	})
	require.NoError(t, err)

	_, err = f.auth.VerifyPasswordReset(ctx, uid, resetToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpired, "link dies with the old password")

	_, err = f.auth.Authenticate(ctx, oldSession)
	assert.ErrorIs(t, err, ErrInvalidSession, "other sessions end")

	_, err = f.auth.Login(ctx, "a@x.com", newPassword)
	assert.NoError(t, err)
	_, err = f.auth.Login(ctx, "a@x.com", testPassword)
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.Len(t, f.mailer.OfKind(EmailPasswordChanged), 1)
}

func TestPasswordReset_ValidityWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerConfirmed(t, "a@x.com", model.RoleUser)

	require.NoError(t, f.auth.RequestPasswordReset(ctx, validation.PasswordResetRequest{Email: "a@x.com"}))
	uid, resetToken := linkParts(t, f.mailer.OfKind(EmailPasswordReset)[0], "/password-reset/")

	f.clock.Advance(72*time.Hour - time.Second)
	_, err := f.auth.VerifyPasswordReset(ctx, uid, resetToken)
	assert.NoError(t, err)

	f.clock.Advance(2 * time.Second)
	_, err = f.auth.VerifyPasswordReset(ctx, uid, resetToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestPasswordReset_InvalidatedByPasswordChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.registerConfirmed(t, "a@x.com", model.RoleUser)

	require.NoError(t, f.auth.RequestPasswordReset(ctx, validation.PasswordResetRequest{Email: "a@x.com"}))
	uid, resetToken := linkParts(t, f.mailer.OfKind(EmailPasswordReset)[0], "/password-reset/")

	next := "another strong passphrase"
	_, err := f.auth.ChangePassword(ctx, user, validation.PasswordChange{
		CurrentPassword:    testPassword,
		NewPassword:        next,
		NewPasswordConfirm: next,
	})
	require.NoError(t, err)

	_, err = f.auth.VerifyPasswordReset(ctx, uid, resetToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestPasswordReset_TokenBoundToAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerConfirmed(t, "a@x.com", model.RoleUser)
	other := f.registerConfirmed(t, "b@x.com", model.RoleUser)

	require.NoError(t, f.auth.RequestPasswordReset(ctx, validation.PasswordResetRequest{Email: "a@x.com"}))
	_, resetToken := linkParts(t, f.mailer.OfKind(EmailPasswordReset)[0], "/password-reset/")

	_, err := f.auth.VerifyPasswordReset(ctx, encodedID(other), resetToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)

	_, err = f.auth.VerifyPasswordReset(ctx, "!!", resetToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpired)

	_, err = f.auth.VerifyPasswordReset(ctx, encodedID(other), resetToken+"x")
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestPasswordReset_ConcurrentConsumeOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerConfirmed(t, "a@x.com", model.RoleUser)

	require.NoError(t, f.auth.RequestPasswordReset(ctx, validation.PasswordResetRequest{Email: "a@x.com"}))
	uid, resetToken := linkParts(t, f.mailer.OfKind(EmailPasswordReset)[0], "/password-reset/")

	const workers = 4
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pw := "concurrent passphrase " + string(rune('a'+i))
			_, errs[i] = f.auth.ResetPassword(ctx, uid, resetToken, validation.SetPassword{NewPassword: pw, NewPasswordConfirm: pw})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidOrExpired)
	}
	assert.Equal(t, 1, succeeded)
}

func TestRequestPasswordReset_SilentForUnknownAndInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerConfirmed(t, "inactive@x.com", model.RoleUser)
	_, err := f.users.SetActive(ctx, "inactive@x.com", false)
	require.NoError(t, err)
	sentBefore := len(f.mailer.Sent())

	assert.NoError(t, f.auth.RequestPasswordReset(ctx, validation.PasswordResetRequest{Email: "nobody@x.com"}))
	assert.NoError(t, f.auth.RequestPasswordReset(ctx, validation.PasswordResetRequest{Email: "inactive@x.com"}))
	assert.Len(t, f.mailer.Sent(), sentBefore)
}

func TestChangePassword_RequiresCurrentPassword(t *testing.T) {
	f := newFixture(t)
	user := f.registerConfirmed(t, "a@x.com", model.RoleUser)

	next := "another strong passphrase"
	_, err := f.auth.ChangePassword(context.Background(), user, validation.PasswordChange{
		CurrentPassword:    "not the password",
		NewPassword:        next,
		NewPasswordConfirm: next,
	})
	assert.ErrorIs(t, err, ErrInvalidCurrentPassword)
}

func TestChangePassword_ReissuedSessionStaysValid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.registerConfirmed(t, "a@x.com", model.RoleUser)

	next := "another strong passphrase"
	updated, err := f.auth.ChangePassword(ctx, user, validation.PasswordChange{
		CurrentPassword:    testPassword,
		NewPassword:        next,
		NewPasswordConfirm: next,
	})
	require.NoError(t, err)
	assert.Equal(t, user.SessionVersion+1, updated.SessionVersion)

	signed, _, err := f.auth.GenerateJWT(updated)
	require.NoError(t, err)
	_, err = f.auth.Authenticate(ctx, signed)
	assert.NoError(t, err)
}

func TestFormatValidity(t *testing.T) {
	assert.Equal(t, "3 days", formatValidity(72*time.Hour))
	assert.Equal(t, "24 hours", formatValidity(24*time.Hour))
	assert.Equal(t, "1 hour", formatValidity(time.Hour))
	assert.Equal(t, "30 minutes", formatValidity(30*time.Minute))
}
