package repository

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// nonceBytes gives 128 bits of entropy per nonce
const nonceBytes = 16

func newNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
