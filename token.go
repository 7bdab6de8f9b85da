package auth

import (
	"crypto/rand"
	"encoding/base64"
	"io"
)

const lifecycleTokenBytes = 32

// generateToken returns a random url safe token
func generateToken() (string, error) {
	b := make([]byte, lifecycleTokenBytes)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", internalError(err, "failed to generate token")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
