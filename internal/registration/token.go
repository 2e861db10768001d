package registration

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// TokenLength is the number of characters in an issued webhook token.
	TokenLength   = 16
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var alphabetSize = big.NewInt(int64(len(tokenAlphabet)))

// GenerateToken returns a token drawn uniformly from the alphanumeric
// alphabet using the system's cryptographic random source.
func GenerateToken() (string, error) {
	buf := make([]byte, TokenLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		buf[i] = tokenAlphabet[n.Int64()]
	}

	return string(buf), nil
}

// ValidToken reports whether s has the shape of an issued token.
func ValidToken(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}
