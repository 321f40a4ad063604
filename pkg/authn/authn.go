package authn

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrUnauthorized = errors.New("unauthorized")

// ParseBearerToken extracts the token from an Authorization header.
func ParseBearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

// HashToken is the stored form of a bearer token. Plaintext tokens never
// reach the database.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
