package auth

import (
	"strings"
	"testing"
)

func TestKeyFormat_Validate(t *testing.T) {
	t.Parallel()

	f := NewKeyFormat("TEST")

	tests := []struct {
		name  string
		key   string
		valid bool
	}{
		{"prefix plus suffix", "TESTA", true},
		{"generated style", "TEST0A1B2C3D", true},
		{"prefix only", "TEST", true},
		{"empty", "", false},
		{"wrong prefix", "PRODA", false},
		{"lowercase prefix", "testA", false},
		{"prefix not at start", "ATEST", false},
		{"punctuation in suffix", "TEST.x", true},
		{"whitespace in suffix", "TEST A", true},
		{"too long", "TEST" + strings.Repeat("A", MaxKeyLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := f.Validate(tt.key)
			if tt.valid && err != nil {
				t.Errorf("Validate(%q) unexpected error: %v", tt.key, err)
			}
			if !tt.valid && err != ErrInvalidKeyFormat {
				t.Errorf("Validate(%q) = %v, want ErrInvalidKeyFormat", tt.key, err)
			}
		})
	}
}

func TestKeyFormat_Generate(t *testing.T) {
	t.Parallel()

	f := NewKeyFormat("TEST")

	key1, err := f.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	key2, err := f.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !f.Valid(key1) {
		t.Errorf("generated key %q should be valid", key1)
	}
	if len(key1) != len("TEST")+2*keySecretBytes {
		t.Errorf("unexpected key length %d", len(key1))
	}
	if key1 == key2 {
		t.Error("generated keys should be unique")
	}
}

func TestKeyHint(t *testing.T) {
	t.Parallel()

	if got := KeyHint("TESTABCDEF"); !strings.HasPrefix(got, "TEST") || strings.Contains(got, "ABCDEF") {
		t.Errorf("KeyHint leaked key: %s", got)
	}
	if got := KeyHint("ab"); strings.Contains(got, "ab") {
		t.Errorf("short key leaked: %s", got)
	}
}

func TestAdminVerifier_Plaintext(t *testing.T) {
	t.Parallel()

	v := NewAdminVerifier("s3cret", "")

	tests := []struct {
		supplied string
		want     bool
	}{
		{"s3cret", true},
		{"s3cret ", false},
		{"S3CRET", false},
		{"s3cre", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := v.Verify(tt.supplied); got != tt.want {
			t.Errorf("Verify(%q) = %v, want %v", tt.supplied, got, tt.want)
		}
	}
}

func TestAdminVerifier_Hash(t *testing.T) {
	t.Parallel()

	hash, err := HashSecret("s3cret")
	if err != nil {
		t.Fatalf("HashSecret: %v", err)
	}

	// The hash wins over a conflicting plaintext value.
	v := NewAdminVerifier("other", hash)

	if !v.Verify("s3cret") {
		t.Error("expected hashed secret to verify")
	}
	if v.Verify("other") {
		t.Error("plaintext should be ignored when a hash is configured")
	}
}

func TestAdminVerifier_Unconfigured(t *testing.T) {
	t.Parallel()

	v := NewAdminVerifier("", "")

	if v.Configured() {
		t.Error("expected Configured to be false")
	}
	if v.Verify("") || v.Verify("anything") {
		t.Error("unconfigured verifier must reject everything")
	}
}
