package random

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Random is the source of unguessable session tokens
type Random interface {
	// Token returns n random bytes encoded as unpadded base64url
	Token(n int) (string, error)
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Token reads n bytes from crypto/rand
func (r *CryptoRandom) Token(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
