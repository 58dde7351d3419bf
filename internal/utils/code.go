package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// Visually ambiguous characters (0/O, 1/I/L) are excluded so codes can
	// be read aloud or copied from a screen by a child.
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

	SessionCodeLength = 6
)

// GenerateSessionCode returns a random share code like "Q7K2PX". Uniqueness
// against live sessions is enforced at insert time; callers regenerate on
// collision.
func GenerateSessionCode() (string, error) {
	code := make([]byte, SessionCodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))

	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate session code: %w", err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}

	return string(code), nil
}
