package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidSecret = errors.New("invalid webhook secret")
	ErrWeakSecret    = errors.New("webhook secret must be at least 16 characters")
)

// HashSecret returns the bcrypt hash of a webhook secret, for MPESA_WEBHOOK_SECRET_HASH.
func HashSecret(secret string) (string, error) {
	if len(secret) < 16 {
		return "", ErrWeakSecret
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hashed), nil
}

// SecretVerifier checks the shared secret the payment provider sends with each callback.
// A verifier built from an empty hash accepts every request.
type SecretVerifier struct {
	hash []byte
}

// NewSecretVerifier returns a verifier for a bcrypt hash produced by HashSecret.
func NewSecretVerifier(hash string) (*SecretVerifier, error) {
	if hash == "" {
		return &SecretVerifier{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid webhook secret hash: %w", err)
	}
	return &SecretVerifier{hash: []byte(hash)}, nil
}

// Enabled reports whether callbacks must carry a secret.
func (v *SecretVerifier) Enabled() bool {
	return v != nil && len(v.hash) > 0
}

// Verify compares secret with the configured hash.
func (v *SecretVerifier) Verify(secret string) error {
	if !v.Enabled() {
		return nil
	}
	if secret == "" {
		return ErrInvalidSecret
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(secret)); err != nil {
		return ErrInvalidSecret
	}
	return nil
}
