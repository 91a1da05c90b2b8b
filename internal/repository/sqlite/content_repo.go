package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/repository"
)

// contentRepository implements repository.ContentRepository for SQLite.
type contentRepository struct {
	db *DB
}

// NewContentRepository creates a new SQLite content repository.
func NewContentRepository(db *DB) repository.ContentRepository {
	return &contentRepository{db: db}
}

const contentColumns = `content_id, user_id, privacy, file_name, created_at`

// Create creates a content metadata row.
func (r *contentRepository) Create(ctx context.Context, content *domain.Content) error {
	query := `
		INSERT INTO media_properties (content_id, user_id, privacy, file_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		content.ContentID,
		content.UserID,
		int(content.Privacy),
		content.FileName,
		content.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create content metadata: %w", err)
	}

	return nil
}

// scanContent reads one content metadata row.
func scanContent(row interface{ Scan(...interface{}) error }) (*domain.Content, error) {
	content := &domain.Content{}
	var privacy int
	var createdAt string

	err := row.Scan(
		&content.ContentID,
		&content.UserID,
		&privacy,
		&content.FileName,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	content.Privacy = domain.PrivacyType(privacy)
	content.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return content, nil
}

// GetByContentID retrieves content metadata by content ID.
func (r *contentRepository) GetByContentID(ctx context.Context, contentID string) (*domain.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM media_properties WHERE content_id = ?`

	content, err := scanContent(r.db.QueryRowContext(ctx, query, contentID))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get content: %w", err)
	}

	return content, nil
}

// ListByUserID returns all content owned by a user.
func (r *contentRepository) ListByUserID(ctx context.Context, userID int64) ([]*domain.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM media_properties WHERE user_id = ? ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	defer rows.Close()

	var contents []*domain.Content
	for rows.Next() {
		content, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		contents = append(contents, content)
	}

	return contents, rows.Err()
}

// Update updates mutable content properties.
func (r *contentRepository) Update(ctx context.Context, content *domain.Content) error {
	query := `UPDATE media_properties SET privacy = ?, file_name = ? WHERE content_id = ?`

	result, err := r.db.ExecContext(ctx, query,
		int(content.Privacy),
		content.FileName,
		content.ContentID,
	)
	if err != nil {
		return fmt.Errorf("failed to update content: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrContentNotFound
	}

	return nil
}

// Delete deletes a content metadata row by content ID.
func (r *contentRepository) Delete(ctx context.Context, contentID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM media_properties WHERE content_id = ?`, contentID)
	if err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrContentNotFound
	}

	return nil
}

// ExistsByContentID checks if a content ID is already taken.
func (r *contentRepository) ExistsByContentID(ctx context.Context, contentID string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM media_properties WHERE content_id = ?)`, contentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check content id: %w", err)
	}

	return exists != 0, nil
}
