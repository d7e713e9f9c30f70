package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// NewVerificationCode generates a 6-character uppercase hex code for
// registration email verification.
func NewVerificationCode() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}
