// Package domain contains the core business entities for MediaHost.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// APIKey represents a long-lived API credential owned by a user.
// Only a one-way hash of the secret token is ever persisted; the plaintext
// token is returned to the caller exactly once, at generation time.
type APIKey struct {
	// UserID is the ID of the user who owns this key.
	UserID int64 `json:"user_id"`

	// KeyID is the opaque public identifier of the key record.
	KeyID uuid.UUID `json:"id"`

	// Description is a human-readable description of the key's purpose.
	Description string `json:"description"`

	// CreatedAt is the timestamp when the key was generated.
	CreatedAt time.Time `json:"created_at"`

	// HashedToken is the hex SHA-256 digest of the secret token.
	// The plaintext is not recoverable from this value.
	HashedToken string `json:"-"`

	// Rights is the capability subset granted to this key.
	Rights RightSet `json:"rights"`
}

// NewAPIKey creates a new APIKey record for the given owner.
func NewAPIKey(userID int64, description, hashedToken string, rights RightSet) *APIKey {
	return &APIKey{
		UserID:      userID,
		KeyID:       uuid.New(),
		Description: description,
		CreatedAt:   time.Now().UTC(),
		HashedToken: hashedToken,
		Rights:      rights,
	}
}
