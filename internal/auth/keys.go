// Package auth provides key-format checks and admin-secret verification.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// MaxKeyLength bounds user keys so junk input never reaches the record store.
const MaxKeyLength = 128

// keySecretBytes is the random part of generated keys (hex encoded, 32 chars).
const keySecretBytes = 16

// ErrInvalidKeyFormat indicates the key does not match the recognized format.
var ErrInvalidKeyFormat = errors.New("invalid user key format")

// KeyFormat recognizes user keys by a fixed prefix convention.
// Keys are opaque beyond that: "TESTA" is valid for prefix "TEST".
type KeyFormat struct {
	Prefix string
}

// NewKeyFormat creates a KeyFormat for the given prefix.
func NewKeyFormat(prefix string) KeyFormat {
	return KeyFormat{Prefix: prefix}
}

// Validate returns ErrInvalidKeyFormat if key is empty, longer than
// MaxKeyLength, or lacks the prefix. The rest of the key is opaque.
func (f KeyFormat) Validate(key string) error {
	if key == "" || len(key) > MaxKeyLength {
		return ErrInvalidKeyFormat
	}
	if !strings.HasPrefix(key, f.Prefix) {
		return ErrInvalidKeyFormat
	}
	return nil
}

// Valid is a boolean convenience around Validate.
func (f KeyFormat) Valid(key string) bool {
	return f.Validate(key) == nil
}

// Generate creates a new random key carrying the prefix.
func (f KeyFormat) Generate() (string, error) {
	secret := make([]byte, keySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return f.Prefix + strings.ToUpper(hex.EncodeToString(secret)), nil
}

// KeyHint returns a log-safe hint for a key: the first four characters and
// the total length.
func KeyHint(key string) string {
	if len(key) <= 4 {
		return fmt.Sprintf("%s(len=%d)", strings.Repeat("*", len(key)), len(key))
	}
	return fmt.Sprintf("%s…(len=%d)", key[:4], len(key))
}
