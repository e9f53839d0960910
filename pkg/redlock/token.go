package redlock

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// 160 bits, above the 128 a lease token needs to be unguessable
const tokenBytes = 20

// fresh random value for one acquisition attempt
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate lease token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
