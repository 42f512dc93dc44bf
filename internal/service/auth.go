package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/templui/usermap/internal/model"
	"github.com/templui/usermap/internal/repository"
	"github.com/templui/usermap/internal/token"
	"github.com/templui/usermap/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrBadCredentials         = errors.New("please enter a correct email and password")
	ErrInactiveAccount        = errors.New("the user is not active")
	ErrUnconfirmedAccount     = errors.New("please confirm your registration email first")
	ErrEmailAlreadyExists     = errors.New("email already exists")
	ErrInvalidOrExpired       = errors.New("the password reset link is invalid or has expired")
	ErrInvalidSession         = errors.New("invalid session")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	ErrMailDispatch           = errors.New("failed to send email")
)

const (
	AuthCookieName  = "auth_token"
	sessionAudience = "session"
)

// FormError carries field errors back to the handler that rendered the form.
type FormError struct {
	Result validation.Result
}

func (e *FormError) Error() string {
	if len(e.Result.Errors) == 0 {
		return "invalid form"
	}
	first := e.Result.Errors[0]
	return fmt.Sprintf("invalid form: %s: %s", first.Field, first.Message)
}

// SessionClaims is the payload of the auth_token cookie.
type SessionClaims struct {
	UserID         string `json:"user_id"`
	SessionVersion int    `json:"sv"`
	jwt.RegisteredClaims
}

type AuthOptions struct {
	AppName       string
	JWTSecret     string
	JWTExpiry     time.Duration
	ResetExpiry   time.Duration
	BcryptCost    int
	IsProduction  bool
	DefaultActive bool
}

type AuthService struct {
	userRepository repository.UserRepository
	lifecycle      *Lifecycle
	emailService   *EmailService
	resetTokens    *token.ResetTokens
	jwtSecret      string
	jwtExpiry      time.Duration
	bcryptCost     int
	isProduction   bool
	appName        string
	now            func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

func NewAuthService(
	userRepository repository.UserRepository,
	lifecycle *Lifecycle,
	emailService *EmailService,
	opts AuthOptions,
) *AuthService {
	cost := opts.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	s := &AuthService{
		userRepository: userRepository,
		lifecycle:      lifecycle,
		emailService:   emailService,
		jwtSecret:      opts.JWTSecret,
		jwtExpiry:      opts.JWTExpiry,
		bcryptCost:     cost,
		isProduction:   opts.IsProduction,
		appName:        opts.AppName,
		now:            time.Now,
	}
	s.resetTokens = token.NewResetTokens(opts.JWTSecret, opts.AppName, opts.ResetExpiry, token.WithResetClock(s.clock))
	return s
}

// SetClock replaces the time source used for sessions and reset tokens.
func (s *AuthService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *AuthService) clock() time.Time {
	return s.now()
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *AuthService) ComparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// Register creates an unconfirmed account and mails its confirmation link.
// If the mail cannot be sent the account is kept and the returned error
// wraps ErrMailDispatch alongside the created user.
func (s *AuthService) Register(ctx context.Context, form validation.Registration) (*model.User, error) {
	form.Email = validation.NormalizeEmail(form.Email)

	result := validation.Check(form)
	if !result.Valid() {
		return nil, &FormError{Result: result}
	}

	_, err := s.userRepository.ByEmail(ctx, form.Email)
	if err == nil {
		return nil, ErrEmailAlreadyExists
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := s.HashPassword(form.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	key, err := token.NewConfirmationKey()
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:              uuid.New().String(),
		Email:           form.Email,
		PasswordHash:    hash,
		Name:            form.Name,
		Website:         form.Website,
		Role:            model.Role(form.Role),
		Latitude:        form.Latitude,
		Longitude:       form.Longitude,
		EmailUpdates:    form.EmailUpdates,
		ConfirmationKey: key,
	}
	s.lifecycle.Initialize(user)

	err = s.userRepository.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role.Label())

	err = s.emailService.SendConfirmation(ctx, user)
	if err != nil {
		slog.ErrorContext(ctx, "failed to send confirmation email", "error", err, "user_id", user.ID)
		return user, fmt.Errorf("%w: %w", ErrMailDispatch, err)
	}

	return user, nil
}

// ConfirmRegistration checks a confirmation link. Link problems are reported
// as ConfirmResultInvalidLink with a nil error; only infrastructure failures
// return an error. A mismatched key is always InvalidLink, even for an
// account that is already confirmed.
func (s *AuthService) ConfirmRegistration(ctx context.Context, encodedID, key string) (ConfirmResult, error) {
	id, err := token.DecodeID(encodedID)
	if err != nil {
		return ConfirmResultInvalidLink, nil
	}

	user, err := s.userRepository.ByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ConfirmResultInvalidLink, nil
	}
	if err != nil {
		return ConfirmResultInvalidLink, fmt.Errorf("failed to get user: %w", err)
	}

	if !token.KeysEqual(user.ConfirmationKey, key) {
		return ConfirmResultInvalidLink, nil
	}

	result, err := s.lifecycle.Confirm(ctx, user)
	if err != nil {
		return ConfirmResultInvalidLink, err
	}

	if result == ConfirmResultConfirmed {
		err = s.emailService.SendWelcome(ctx, user)
		if err != nil {
			slog.WarnContext(ctx, "failed to send welcome email", "error", err, "user_id", user.ID)
		}
	}

	return result, nil
}

// Login is the authentication gate. The password is always checked first,
// so account state is only revealed to someone who knows the password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = validation.NormalizeEmail(email)

	user, err := s.userRepository.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// equalize timing with the known-email path
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	err = s.ComparePassword(password, user.PasswordHash)
	if err != nil {
		return nil, ErrBadCredentials
	}

	if !user.IsActive {
		return nil, ErrInactiveAccount
	}
	if !user.IsConfirmed {
		return nil, ErrUnconfirmedAccount
	}

	slog.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.bcryptCost)
		if err != nil {
			slog.Error("failed to generate dummy hash", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *AuthService) GenerateJWT(user *model.User) (string, time.Time, error) {
	now := s.now()
	expiry := now.Add(s.jwtExpiry)
	claims := SessionClaims{
		UserID:         user.ID,
		SessionVersion: user.SessionVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.appName,
			Audience:  jwt.ClaimStrings{sessionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiry, nil
}

func (s *AuthService) VerifyJWT(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	},
		jwt.WithAudience(sessionAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock),
	)
	if err != nil {
		return nil, err
	}

	if claims.UserID == "" {
		return nil, ErrInvalidSession
	}

	return claims, nil
}

// Authenticate resolves a session cookie value to the signed-in user.
// Sessions die when the password changes or the account can no longer sign in.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*model.User, error) {
	claims, err := s.VerifyJWT(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	user, err := s.userRepository.ByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.SessionVersion != claims.SessionVersion || !user.CanSignIn() {
		return nil, ErrInvalidSession
	}

	return user, nil
}

func (s *AuthService) SetJWTCookie(w http.ResponseWriter, token string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Expires:  expiry,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *AuthService) ClearJWTCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

// StartSession issues a session cookie for user.
func (s *AuthService) StartSession(w http.ResponseWriter, user *model.User) error {
	tokenString, expiry, err := s.GenerateJWT(user)
	if err != nil {
		return fmt.Errorf("failed to generate session: %w", err)
	}
	s.SetJWTCookie(w, tokenString, expiry)
	return nil
}

// RequestPasswordReset mails a reset link. Unknown and inactive addresses
// succeed silently so the form cannot be used to discover which emails have accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, form validation.PasswordResetRequest) error {
	form.Email = validation.NormalizeEmail(form.Email)

	result := validation.Check(form)
	if !result.Valid() {
		return &FormError{Result: result}
	}

	user, err := s.userRepository.ByEmail(ctx, form.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		slog.InfoContext(ctx, "password reset requested for non-existent email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !user.IsActive {
		slog.InfoContext(ctx, "password reset requested for inactive account", "user_id", user.ID)
		return nil
	}

	resetToken, err := s.resetTokens.Issue(user.ID, user.PasswordHash)
	if err != nil {
		return err
	}

	err = s.emailService.SendPasswordReset(ctx, user, resetToken, formatValidity(s.resetTokens.Validity()))
	if err != nil {
		slog.ErrorContext(ctx, "failed to send password reset email", "error", err, "user_id", user.ID)
		return fmt.Errorf("%w: %w", ErrMailDispatch, err)
	}

	slog.InfoContext(ctx, "password reset link sent", "user_id", user.ID)
	return nil
}

// VerifyPasswordReset returns the account a reset link belongs to.
// Every failure collapses into ErrInvalidOrExpired.
func (s *AuthService) VerifyPasswordReset(ctx context.Context, encodedID, resetToken string) (*model.User, error) {
	id, err := token.DecodeID(encodedID)
	if err != nil {
		return nil, ErrInvalidOrExpired
	}

	claims, err := s.resetTokens.Parse(resetToken)
	if err != nil || claims.Subject != id {
		return nil, ErrInvalidOrExpired
	}

	user, err := s.userRepository.ByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidOrExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.IsActive || !s.resetTokens.Matches(claims, user.PasswordHash) {
		return nil, ErrInvalidOrExpired
	}

	return user, nil
}

// ResetPassword consumes a reset link. The hash swap is conditional on the
// hash the link was issued for, so of two concurrent resets only one wins.
func (s *AuthService) ResetPassword(ctx context.Context, encodedID, resetToken string, form validation.SetPassword) (*model.User, error) {
	user, err := s.VerifyPasswordReset(ctx, encodedID, resetToken)
	if err != nil {
		return nil, err
	}

	result := validation.Check(form)
	if !result.Valid() {
		return nil, &FormError{Result: result}
	}

	err = s.replacePassword(ctx, user, form.NewPassword)
	if errors.Is(err, errPasswordRace) {
		return nil, ErrInvalidOrExpired
	}
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "password reset completed", "user_id", user.ID)
	return user, nil
}

// ChangePassword updates the password of a signed-in user. Other sessions
// end; the caller should reissue the current one from the returned user.
func (s *AuthService) ChangePassword(ctx context.Context, user *model.User, form validation.PasswordChange) (*model.User, error) {
	result := validation.Check(form)
	if !result.Valid() {
		return nil, &FormError{Result: result}
	}

	current, err := s.userRepository.ByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	err = s.ComparePassword(form.CurrentPassword, current.PasswordHash)
	if err != nil {
		return nil, ErrInvalidCurrentPassword
	}

	err = s.replacePassword(ctx, current, form.NewPassword)
	if errors.Is(err, errPasswordRace) {
		return nil, ErrInvalidCurrentPassword
	}
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "password changed", "user_id", current.ID)
	return current, nil
}

var errPasswordRace = errors.New("password changed concurrently")

func (s *AuthService) replacePassword(ctx context.Context, user *model.User, newPassword string) error {
	newHash, err := s.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	ok, err := s.userRepository.ReplacePasswordHash(ctx, user.ID, user.PasswordHash, newHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if !ok {
		return errPasswordRace
	}

	user.PasswordHash = newHash
	user.SessionVersion++

	err = s.emailService.SendPasswordChanged(ctx, user)
	if err != nil {
		slog.WarnContext(ctx, "failed to send password changed email", "error", err, "user_id", user.ID)
	}

	return nil
}

func formatValidity(d time.Duration) string {
	hours := int(d.Hours())
	switch {
	case hours >= 48 && hours%24 == 0:
		return fmt.Sprintf("%d days", hours/24)
	case hours == 1:
		return "1 hour"
	case hours > 1:
		return fmt.Sprintf("%d hours", hours)
	default:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
}
