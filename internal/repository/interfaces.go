// Package repository defines data access interfaces for MediaHost.
// These interfaces abstract database operations, allowing for different
// implementations (SQLite, PostgreSQL, mocks for testing) while keeping the
// service layer clean.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/prn-tf/mediahost/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user and fills in the generated ID.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *domain.User) error

	// Delete deletes a user by ID.
	Delete(ctx context.Context, id int64) error

	// List returns all users.
	List(ctx context.Context) ([]*domain.User, error)

	// ExistsByUsername checks if a user with the given username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// =============================================================================
// API Key Repository
// =============================================================================

// APIKeyRepository defines the interface for API key data access.
// Only the one-way hash of a key's secret token is ever stored.
type APIKeyRepository interface {
	// Create creates a new API key record.
	Create(ctx context.Context, key *domain.APIKey) error

	// GetByHashedToken retrieves an API key by the hash of its secret token.
	// This is the primary method used for authentication.
	GetByHashedToken(ctx context.Context, hashedToken string) (*domain.APIKey, error)

	// GetByKeyID retrieves an API key by its opaque identifier.
	GetByKeyID(ctx context.Context, keyID uuid.UUID) (*domain.APIKey, error)

	// ListByUserID returns all API keys for a user.
	ListByUserID(ctx context.Context, userID int64) ([]*domain.APIKey, error)

	// DeleteByKeyID deletes an API key by its opaque identifier.
	DeleteByKeyID(ctx context.Context, keyID uuid.UUID) error

	// DeleteByUserID deletes all API keys belonging to a user.
	DeleteByUserID(ctx context.Context, userID int64) error
}

// =============================================================================
// Chunk Repository
// =============================================================================

// ChunkRepository defines the persistence contract for uploaded chunks.
// Insert and DeleteFrom must each be transactionally atomic.
type ChunkRepository interface {
	// Insert persists a single chunk row.
	Insert(ctx context.Context, chunk *domain.Chunk) error

	// GetByIndex retrieves one chunk of a content by sequence index.
	GetByIndex(ctx context.Context, contentID string, index int32) (*domain.Chunk, error)

	// ListByContentID returns all chunks of a content ordered by index.
	ListByContentID(ctx context.Context, contentID string) ([]*domain.Chunk, error)

	// DeleteFrom deletes every chunk of a content with index >= sinceIndex.
	// Returns the total declared size of the deleted chunks.
	DeleteFrom(ctx context.Context, contentID string, sinceIndex int32) (int64, error)

	// TotalSizeByUser returns the summed declared size of every chunk owned
	// by the user, used for quota accounting.
	TotalSizeByUser(ctx context.Context, userID int64) (int64, error)
}

// =============================================================================
// Content Repository
// =============================================================================

// ContentRepository defines the interface for content metadata access.
type ContentRepository interface {
	// Create creates a content metadata row. Written once an upload finishes.
	Create(ctx context.Context, content *domain.Content) error

	// GetByContentID retrieves content metadata by content ID.
	GetByContentID(ctx context.Context, contentID string) (*domain.Content, error)

	// ListByUserID returns all content owned by a user.
	ListByUserID(ctx context.Context, userID int64) ([]*domain.Content, error)

	// Update updates mutable content properties (privacy, filename).
	Update(ctx context.Context, content *domain.Content) error

	// Delete deletes a content metadata row by content ID.
	Delete(ctx context.Context, contentID string) error

	// ExistsByContentID checks if a content ID is already taken.
	ExistsByContentID(ctx context.Context, contentID string) (bool, error)
}
