package auth

import (
	"strings"
	"testing"
)

func TestHashSecret_Format(t *testing.T) {
	t.Parallel()

	hash, err := HashSecret("admin-secret")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=4$") {
		t.Errorf("Hash should be in PHC format, got: %s", hash)
	}

	if parts := strings.Split(hash, "$"); len(parts) != 6 {
		t.Errorf("Hash should have 6 parts, got: %d", len(parts))
	}
}

func TestHashSecret_Uniqueness(t *testing.T) {
	t.Parallel()

	hash1, err := HashSecret("same")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}
	hash2, err := HashSecret("same")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	if hash1 == hash2 {
		t.Error("Same secret should produce different hashes due to random salt")
	}
}

func TestVerifySecret(t *testing.T) {
	t.Parallel()

	hash, err := HashSecret("admin-secret")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	tests := []struct {
		name   string
		secret string
		want   bool
	}{
		{"exact", "admin-secret", true},
		{"different case", "Admin-secret", false},
		{"trailing space", "admin-secret ", false},
		{"prefix only", "admin", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := VerifySecret(tt.secret, hash)
			if err != nil {
				t.Fatalf("VerifySecret error: %v", err)
			}
			if got != tt.want {
				t.Errorf("VerifySecret(%q) = %v, want %v", tt.secret, got, tt.want)
			}
		})
	}
}

func TestVerifySecret_InvalidHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"wrong algorithm", "$argon2i$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA"},
		{"too few parts", "$argon2id$v=19$m=65536"},
		{"bad params", "$argon2id$v=19$bogus$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=65536,t=3,p=4$!!!$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := VerifySecret("secret", tt.hash); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}
