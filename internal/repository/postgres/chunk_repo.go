package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/repository"
)

// chunkRepository implements repository.ChunkRepository for PostgreSQL.
type chunkRepository struct {
	db *DB
}

// NewChunkRepository creates a new PostgreSQL chunk repository.
func NewChunkRepository(db *DB) repository.ChunkRepository {
	return &chunkRepository{db: db}
}

// Insert persists a single chunk row.
func (r *chunkRepository) Insert(ctx context.Context, chunk *domain.Chunk) error {
	query := `
		INSERT INTO media_content (content_id, idx, total_size, compressed, payload)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		chunk.ContentID,
		chunk.Index,
		chunk.TotalSize,
		chunk.Compressed,
		chunk.Payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	return nil
}

// GetByIndex retrieves one chunk of a content by sequence index.
func (r *chunkRepository) GetByIndex(ctx context.Context, contentID string, index int32) (*domain.Chunk, error) {
	query := `
		SELECT content_id, idx, total_size, compressed, payload
		FROM media_content
		WHERE content_id = $1 AND idx = $2
	`

	chunk := &domain.Chunk{}
	err := r.db.Pool.QueryRow(ctx, query, contentID, index).Scan(
		&chunk.ContentID,
		&chunk.Index,
		&chunk.TotalSize,
		&chunk.Compressed,
		&chunk.Payload,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}

	return chunk, nil
}

// ListByContentID returns all chunks of a content ordered by index.
func (r *chunkRepository) ListByContentID(ctx context.Context, contentID string) ([]*domain.Chunk, error) {
	query := `
		SELECT content_id, idx, total_size, compressed, payload
		FROM media_content
		WHERE content_id = $1
		ORDER BY idx
	`

	rows, err := r.db.Pool.Query(ctx, query, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		chunk := &domain.Chunk{}
		if err := rows.Scan(&chunk.ContentID, &chunk.Index, &chunk.TotalSize, &chunk.Compressed, &chunk.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// DeleteFrom deletes every chunk of a content with index >= sinceIndex and
// returns the total declared size of the deleted rows. Runs in a single
// transaction so the sum and the delete observe the same rows.
func (r *chunkRepository) DeleteFrom(ctx context.Context, contentID string, sinceIndex int32) (int64, error) {
	var reclaimed int64

	err := r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(SUM(total_size), 0) FROM media_content WHERE content_id = $1 AND idx >= $2`,
			contentID, sinceIndex,
		).Scan(&reclaimed)
		if err != nil {
			return fmt.Errorf("failed to sum chunk sizes: %w", err)
		}

		_, err = tx.Exec(ctx,
			`DELETE FROM media_content WHERE content_id = $1 AND idx >= $2`,
			contentID, sinceIndex,
		)
		if err != nil {
			return fmt.Errorf("failed to delete chunks: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return reclaimed, nil
}

// TotalSizeByUser returns the summed declared size of every chunk belonging
// to the user's finished content.
func (r *chunkRepository) TotalSizeByUser(ctx context.Context, userID int64) (int64, error) {
	query := `
		SELECT COALESCE(SUM(mc.total_size), 0)
		FROM media_content mc
		JOIN media_properties mp ON mp.content_id = mc.content_id
		WHERE mp.user_id = $1
	`

	var total int64
	if err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum user content size: %w", err)
	}

	return total, nil
}

// compile-time interface check
var _ repository.ChunkRepository = (*chunkRepository)(nil)
