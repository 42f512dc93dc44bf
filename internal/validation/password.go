package validation

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordRunes = 12
	// bcrypt silently ignores everything after 72 bytes
	maxPasswordBytes = 72
	// name and mailbox fragments shorter than this are too common to reject on
	minSimilarFragment = 4
)

var commonPasswordFragments = []string{
	"password", "passwort", "123456", "qwerty", "azerty", "admin", "letmein",
	"welcome", "monkey", "dragon", "master", "sunshine", "usermap",
}

// ValidatePassword checks a new password on its own: length, not only
// digits, no well known fragment.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordRunes {
		return errors.New("password must be at least 12 characters")
	}

	if len(password) > maxPasswordBytes {
		return errors.New("password must not exceed 72 bytes")
	}

	if strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) == -1 {
		return errors.New("password can't be entirely numeric")
	}

	lower := strings.ToLower(password)
	for _, fragment := range commonPasswordFragments {
		if strings.Contains(lower, fragment) {
			return errors.New("password is too common, please choose a stronger one")
		}
	}

	return nil
}

// PasswordResemblesAccount reports whether password contains the mailbox
// name of email or any word of the display name.
func PasswordResemblesAccount(password, email, name string) bool {
	lower := strings.ToLower(password)

	fragments := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if local, _, ok := strings.Cut(strings.ToLower(email), "@"); ok {
		fragments = append(fragments, local)
	}

	for _, fragment := range fragments {
		if utf8.RuneCountInString(fragment) >= minSimilarFragment && strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
