// Package crypto provides cryptographic utilities for MediaHost.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBytes computes the hex-encoded SHA-256 digest of the given bytes.
func HashBytes(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// HashString computes the hex-encoded SHA-256 digest of the given string.
// This is the one-way hash used for both salted passwords
// (HashString(password + salt)) and API key tokens.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// ValidateSHA256 validates that a string is a valid SHA-256 hex digest.
func ValidateSHA256(hash string) bool {
	if len(hash) != 64 {
		return false
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
