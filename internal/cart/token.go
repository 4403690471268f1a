package cart

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const tokenBytes = 32

// NewToken returns an unguessable URL-safe guest cart token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate cart token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
