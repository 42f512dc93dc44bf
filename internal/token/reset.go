package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const resetAudience = "password_reset"

// ErrInvalidReset covers every reason a reset token is rejected.
var ErrInvalidReset = errors.New("invalid or expired reset token")

// ResetClaims binds a reset token to one account and its current password hash.
type ResetClaims struct {
	Fingerprint string `json:"fp"`
	jwt.RegisteredClaims
}

// ResetTokens issues and checks password reset tokens. Tokens are not stored:
// they expire after validity and die as soon as the password hash changes.
type ResetTokens struct {
	secret   []byte
	issuer   string
	validity time.Duration
	now      func() time.Time
}

type ResetOption func(*ResetTokens)

// WithResetClock injects a custom clock (useful for tests).
func WithResetClock(now func() time.Time) ResetOption {
	return func(t *ResetTokens) {
		if now != nil {
			t.now = now
		}
	}
}

func NewResetTokens(secret, issuer string, validity time.Duration, opts ...ResetOption) *ResetTokens {
	t := &ResetTokens{
		secret:   []byte(secret),
		issuer:   issuer,
		validity: validity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Validity is the configured lifetime of an issued token.
func (t *ResetTokens) Validity() time.Duration {
	return t.validity
}

// Issue creates a token for the account identified by userID.
func (t *ResetTokens) Issue(userID, passwordHash string) (string, error) {
	now := t.now()
	claims := ResetClaims{
		Fingerprint: t.fingerprint(userID, passwordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{resetAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.validity)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}
	return signed, nil
}

// Parse checks signature, audience and expiry and returns the claims.
// The fingerprint still has to be checked against the stored hash with Matches.
func (t *ResetTokens) Parse(tokenString string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(resetAudience),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReset, err)
	}
	if claims.Subject == "" || claims.Fingerprint == "" {
		return nil, ErrInvalidReset
	}
	return claims, nil
}

// Matches reports whether the claims were issued against this password hash.
func (t *ResetTokens) Matches(claims *ResetClaims, passwordHash string) bool {
	expected := t.fingerprint(claims.Subject, passwordHash)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(claims.Fingerprint)) == 1
}

func (t *ResetTokens) fingerprint(userID, passwordHash string) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(resetAudience))
	mac.Write([]byte{0})
	mac.Write([]byte(userID))
	mac.Write([]byte{0})
	mac.Write([]byte(passwordHash))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
