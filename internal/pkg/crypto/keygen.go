// Package crypto provides cryptographic utilities for MediaHost.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Character sets for token generation.
const (
	// LowercaseAlphabet contains the lowercase latin letters.
	LowercaseAlphabet = "abcdefghijklmnopqrstuvwxyz"

	// UppercaseAlphabet contains the uppercase latin letters.
	UppercaseAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// Digits contains the decimal digits.
	Digits = "0123456789"

	// Symbols contains the printable special characters used in salts
	// and API key tokens.
	Symbols = "!@#$%^&*()-_=+[]{}:;,.<>/?~`\\"
)

// Key generation errors
var (
	// ErrInvalidHexKey indicates the hex key is malformed or wrong length.
	ErrInvalidHexKey = errors.New("invalid hex key: must be 64 hex characters (32 bytes)")

	// ErrInvalidLength indicates a requested random string length below 1.
	ErrInvalidLength = errors.New("random string length must be at least 1")
)

// RandomString generates a random string of the given length using
// characters from the provided character set.
func RandomString(length int, charset string) (string, error) {
	if length < 1 {
		return "", ErrInvalidLength
	}
	if charset == "" {
		return "", errors.New("charset must not be empty")
	}

	result := make([]byte, length)
	charsetLen := len(charset)

	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	for i := 0; i < length; i++ {
		result[i] = charset[int(randomBytes[i])%charsetLen]
	}

	return string(result), nil
}

// GenerateMasterKey generates a random 32-byte master key for AES-256.
// Returns the key as a 64-character hex string.
func GenerateMasterKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate master key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// ParseHexKey parses a hex-encoded key string into bytes.
// Expects 64 hex characters (32 bytes).
func ParseHexKey(hexKey string) ([]byte, error) {
	hexKey = strings.TrimSpace(hexKey)

	if len(hexKey) != KeySize*2 {
		return nil, ErrInvalidHexKey
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHexKey, err)
	}

	return key, nil
}
