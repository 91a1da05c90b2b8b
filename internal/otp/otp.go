// Package otp implements time-based one-time-password generation and
// verification for step-up authentication.
//
// Codes follow the standard TOTP construction (RFC 6238: HMAC-SHA1 over the
// 30-second time counter, 6 digits). Verification requires an exact match
// against the code for the current time step; there is no clock-skew
// tolerance window. That matches the historical behavior of this system and
// is a known hardening gap rather than an oversight.
package otp

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
)

// SecretBytes is the raw length of a generated secret: 160 bits, the
// recommended key size for HMAC-SHA1 based OTP.
const SecretBytes = 20

// Digits is the number of digits in a generated code.
const Digits = 6

// GenerateSecret produces a fresh random secret, base32-encoded for display
// and storage. The encoded form is 32 characters.
func GenerateSecret() (string, error) {
	key := make([]byte, SecretBytes)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate otp secret: %w", err)
	}
	return base32.StdEncoding.EncodeToString(key), nil
}

// Code derives the 6-digit code for the given base32 secret at the given
// instant. The same secret and 30-second time step always yield the same code.
func Code(secret string, at time.Time) (string, error) {
	code, err := totp.GenerateCode(secret, at)
	if err != nil {
		return "", fmt.Errorf("failed to derive otp code: %w", err)
	}
	return code, nil
}

// Verify reports whether the supplied code equals the code freshly derived
// from the secret at the given instant. A secret that cannot be decoded
// verifies as false.
func Verify(secret, supplied string, at time.Time) bool {
	code, err := Code(secret, at)
	if err != nil {
		return false
	}
	return code == supplied
}
