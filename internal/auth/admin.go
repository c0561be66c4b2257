package auth

import (
	"crypto/subtle"
	"strings"
)

// AdminVerifier checks the out-of-band administrative secret.
// A configured Argon2id PHC hash takes precedence over a plaintext secret.
// With neither configured every check fails.
type AdminVerifier struct {
	secret string
	hash   string
}

// NewAdminVerifier creates an AdminVerifier from the configured secret and hash.
func NewAdminVerifier(secret, hash string) *AdminVerifier {
	return &AdminVerifier{secret: secret, hash: strings.TrimSpace(hash)}
}

// Configured reports whether any admin secret is set.
func (v *AdminVerifier) Configured() bool {
	return v.secret != "" || v.hash != ""
}

// Verify reports whether supplied exactly equals the configured secret.
// An empty supplied value never matches.
func (v *AdminVerifier) Verify(supplied string) bool {
	if supplied == "" || !v.Configured() {
		return false
	}

	if v.hash != "" {
		ok, err := VerifySecret(supplied, v.hash)
		return err == nil && ok
	}

	return subtle.ConstantTimeCompare([]byte(supplied), []byte(v.secret)) == 1
}
