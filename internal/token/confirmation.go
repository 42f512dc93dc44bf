package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// confirmationKeyBytes gives 256 bits of entropy.
const confirmationKeyBytes = 32

// NewConfirmationKey returns a fresh random key for a new account.
func NewConfirmationKey() (string, error) {
	b := make([]byte, confirmationKeyBytes)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate confirmation key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// KeysEqual compares a submitted key with the stored one in constant time.
func KeysEqual(stored, submitted string) bool {
	if stored == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}
