// Package domain contains the core business entities for MediaHost.
package domain

import (
	"time"
)

// User represents a registered account in the system.
// Users own uploaded content and can hold multiple API keys.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Username is the unique lowercase username for login and display.
	Username string `json:"username"`

	// PasswordHash is the hex SHA-256 digest of password+salt.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// Salt is the per-user random salt appended to the password before hashing.
	Salt string `json:"-"`

	// OTPSecretEnc is the AES-256-GCM encrypted TOTP secret used for
	// step-up verification. Stored as base64(nonce || ciphertext || tag).
	OTPSecretEnc string `json:"-"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at"`

	// MaxFileUpload is the per-file upload quota in bytes.
	MaxFileUpload int64 `json:"max_file_upload"`

	// MaxTotalUpload is the total upload quota in bytes across all content.
	MaxTotalUpload int64 `json:"max_total_upload"`
}

// NewUser creates a new User with the given credentials and quotas.
func NewUser(username, passwordHash, salt, otpSecretEnc string, maxFileUpload, maxTotalUpload int64) *User {
	return &User{
		Username:       username,
		PasswordHash:   passwordHash,
		Salt:           salt,
		OTPSecretEnc:   otpSecretEnc,
		CreatedAt:      time.Now().UTC(),
		MaxFileUpload:  maxFileUpload,
		MaxTotalUpload: maxTotalUpload,
	}
}
