package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/repository"
)

// apiKeyRepository implements repository.APIKeyRepository for SQLite.
type apiKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new SQLite API key repository.
func NewAPIKeyRepository(db *DB) repository.APIKeyRepository {
	return &apiKeyRepository{db: db}
}

const apiKeyColumns = `key_id, user_id, description, created_at, hashed_token, rights`

// Create creates a new API key record.
func (r *apiKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	query := `
		INSERT INTO user_apikeys (key_id, user_id, description, created_at, hashed_token, rights)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		key.KeyID.String(),
		key.UserID,
		key.Description,
		key.CreatedAt.Format(time.RFC3339),
		key.HashedToken,
		key.Rights.Encode(),
	)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}

	return nil
}

// scanAPIKey reads one API key row.
func scanAPIKey(row interface{ Scan(...interface{}) error }) (*domain.APIKey, error) {
	key := &domain.APIKey{}
	var keyID, createdAt string
	var rights int64

	err := row.Scan(
		&keyID,
		&key.UserID,
		&key.Description,
		&createdAt,
		&key.HashedToken,
		&rights,
	)
	if err != nil {
		return nil, err
	}

	key.KeyID, err = uuid.Parse(keyID)
	if err != nil {
		return nil, fmt.Errorf("invalid key id %q: %w", keyID, err)
	}
	key.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	key.Rights = domain.DecodeRightSet(rights)

	return key, nil
}

// GetByHashedToken retrieves an API key by the hash of its secret token.
func (r *apiKeyRepository) GetByHashedToken(ctx context.Context, hashedToken string) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM user_apikeys WHERE hashed_token = ?`

	key, err := scanAPIKey(r.db.QueryRowContext(ctx, query, hashedToken))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key by token: %w", err)
	}

	return key, nil
}

// GetByKeyID retrieves an API key by its opaque identifier.
func (r *apiKeyRepository) GetByKeyID(ctx context.Context, keyID uuid.UUID) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM user_apikeys WHERE key_id = ?`

	key, err := scanAPIKey(r.db.QueryRowContext(ctx, query, keyID.String()))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key by id: %w", err)
	}

	return key, nil
}

// ListByUserID returns all API keys for a user.
func (r *apiKeyRepository) ListByUserID(ctx context.Context, userID int64) ([]*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM user_apikeys WHERE user_id = ? ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*domain.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// DeleteByKeyID deletes an API key by its opaque identifier.
func (r *apiKeyRepository) DeleteByKeyID(ctx context.Context, keyID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM user_apikeys WHERE key_id = ?`, keyID.String())
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrAPIKeyNotFound
	}

	return nil
}

// DeleteByUserID deletes all API keys belonging to a user.
func (r *apiKeyRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_apikeys WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete api keys: %w", err)
	}
	return nil
}
