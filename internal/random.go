package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const resetSecretSize = 32

// NewOTP generates a numeric one-time code of the requested length. Each digit
// is drawn independently from crypto/rand over [0,10), so the code is uniform
// over the full digit range with no modulo bias.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}

// NewResetSecret returns 32 bytes of cryptographically secure randomness for
// use as a reset token secret.
func NewResetSecret() ([resetSecretSize]byte, error) {
	var secret [resetSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// EncodeResetToken renders a reset secret as the opaque token handed to the
// caller.
func EncodeResetToken(secret [resetSecretSize]byte) string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(secret[:])
}

// DecodeResetToken parses a caller-supplied token back into its secret bytes.
func DecodeResetToken(token string) ([resetSecretSize]byte, error) {
	var secret [resetSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return secret, err
	}
	if len(raw) != resetSecretSize {
		return secret, errors.New("invalid reset token size")
	}

	copy(secret[:], raw)
	return secret, nil
}

// HashResetSecret hashes a reset secret for storage.
func HashResetSecret(secret [resetSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// HashCredentialBytes hashes an arbitrary credential (OTP digits) for storage.
func HashCredentialBytes(secret []byte) [32]byte {
	return sha256.Sum256(secret)
}

// IsNumericString reports whether v consists solely of ASCII digits.
func IsNumericString(v string) bool {
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return true
}
