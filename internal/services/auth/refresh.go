package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

const refreshTokenBytes = 32

// NewRefreshToken returns an opaque url-safe token. Refresh tokens are random
// handles, never decoded server-side.
func NewRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func NewSessionID() string {
	return uuid.NewString()
}
