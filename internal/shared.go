package internal

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/xerrors"
)

// NewOAuth2State returns a random state of 32 bytes in hex.
func NewOAuth2State() (string, error) {
	return RandomHex(32)
}

// RandomHex returns n random bytes in hex.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", xerrors.Errorf("error while reading random: %w", err)
	}
	return hex.EncodeToString(b), nil
}
