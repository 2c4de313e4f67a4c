package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateRandomHex returns n random bytes hex-encoded (2n characters).
// Used for storage credential keys.
func GenerateRandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
