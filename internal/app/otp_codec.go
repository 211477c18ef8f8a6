/**
 * @description
 * Code generation and hashing primitives for one-time passcodes. Codes are
 * drawn from a cryptographically secure source and only their keyed hash is
 * ever persisted, so a leaked otps table does not leak usable codes.
 *
 * @dependencies
 * - crypto/rand: CSPRNG for code generation.
 * - crypto/hmac, crypto/sha256: Keyed hashing and digest comparison.
 */

package app

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	otpCodeMin = 100000
	otpCodeMax = 999999
)

// OtpCodec generates and hashes numeric one-time codes with a server-side secret.
type OtpCodec struct {
	secret []byte
}

// NewOtpCodec creates a codec keyed with the given server-side secret.
func NewOtpCodec(secret []byte) *OtpCodec {
	return &OtpCodec{secret: secret}
}

// GenerateCode returns a random 6-digit code in [100000, 999999].
func (c *OtpCodec) GenerateCode() (string, error) {
	span := big.NewInt(otpCodeMax - otpCodeMin + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+otpCodeMin), nil
}

// HashCode computes the hex-encoded HMAC-SHA256 of a code.
func (c *OtpCodec) HashCode(code string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// Matches compares a submitted code against a stored hash. The comparison is
// on digests, so equality checking does not leak plaintext timing.
func (c *OtpCodec) Matches(code, storedHash string) bool {
	return hmac.Equal([]byte(c.HashCode(code)), []byte(storedHash))
}
