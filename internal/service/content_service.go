package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/repository"
	"github.com/prn-tf/mediahost/internal/upload"
)

// ContentService handles stored content: serving, listing, property changes,
// deletion, and the single-request upload path for small files.
type ContentService struct {
	contentRepo repository.ContentRepository
	chunkRepo   repository.ChunkRepository
	registry    *upload.Registry

	// maxUnchunked is the largest payload accepted by UploadWhole.
	maxUnchunked int64

	logger zerolog.Logger
}

// NewContentService creates a new ContentService.
func NewContentService(
	contentRepo repository.ContentRepository,
	chunkRepo repository.ChunkRepository,
	registry *upload.Registry,
	maxUnchunked int64,
	logger zerolog.Logger,
) *ContentService {
	return &ContentService{
		contentRepo:  contentRepo,
		chunkRepo:    chunkRepo,
		registry:     registry,
		maxUnchunked: maxUnchunked,
		logger:       logger.With().Str("service", "content").Logger(),
	}
}

// =============================================================================
// Retrieval
// =============================================================================

// Get returns content metadata, enforcing privacy. Private content is only
// returned to its owner or to a viewer holding the private-view override.
func (s *ContentService) Get(ctx context.Context, contentID string, viewerID int64, canViewPrivate bool) (*domain.Content, error) {
	content, err := s.contentRepo.GetByContentID(ctx, contentID)
	if err != nil {
		if errors.Is(err, domain.ErrContentNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if content.Privacy == domain.PrivacyPrivate && content.UserID != viewerID && !canViewPrivate {
		return nil, ErrContentNotFound
	}

	return content, nil
}

// GetPublic returns content metadata for anonymous viewers. Private content
// is reported as absent rather than forbidden.
func (s *ContentService) GetPublic(ctx context.Context, contentID string) (*domain.Content, error) {
	return s.Get(ctx, contentID, 0, false)
}

// Size reports the total stored (uncompressed) byte size of a content.
func (s *ContentService) Size(ctx context.Context, contentID string) (int64, error) {
	chunks, err := s.chunkRepo.ListByContentID(ctx, contentID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	var total int64
	for _, chunk := range chunks {
		total += chunk.TotalSize
	}
	return total, nil
}

// Serve writes the full decompressed byte stream of a content to w, chunk by
// chunk in index order. The caller is expected to have checked privacy via
// Get first.
func (s *ContentService) Serve(ctx context.Context, contentID string, w io.Writer) error {
	chunks, err := s.chunkRepo.ListByContentID(ctx, contentID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if len(chunks) == 0 {
		return ErrContentNotFound
	}

	for _, chunk := range chunks {
		payload := chunk.Payload
		if chunk.Compressed {
			payload, err = upload.Decompress(payload)
			if err != nil {
				s.logger.Error().Err(err).
					Str("content_id", contentID).
					Int32("index", chunk.Index).
					Msg("Failed to decompress stored chunk")
				return fmt.Errorf("%w: %v", ErrInternalError, err)
			}
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}

	return nil
}

// Query returns all content metadata owned by the user.
func (s *ContentService) Query(ctx context.Context, userID int64) ([]*domain.Content, error) {
	contents, err := s.contentRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return contents, nil
}

// =============================================================================
// Mutation
// =============================================================================

// ModifyOptionsInput carries the mutable properties of a content.
// Nil fields are left unchanged.
type ModifyOptionsInput struct {
	ContentID string
	UserID    int64

	// Admin bypasses the ownership check.
	Admin bool

	Privacy  *domain.PrivacyType
	FileName *string
}

// ModifyOptions updates privacy and file name of an owned content.
func (s *ContentService) ModifyOptions(ctx context.Context, in ModifyOptionsInput) (*domain.Content, error) {
	content, err := s.contentRepo.GetByContentID(ctx, in.ContentID)
	if err != nil {
		if errors.Is(err, domain.ErrContentNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if content.UserID != in.UserID && !in.Admin {
		return nil, ErrNotContentOwner
	}

	if in.Privacy != nil {
		content.Privacy = *in.Privacy
	}
	if in.FileName != nil {
		content.FileName = *in.FileName
	}

	if err := s.contentRepo.Update(ctx, content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("content_id", content.ContentID).
		Int64("user_id", in.UserID).
		Msg("Content options modified")

	return content, nil
}

// Delete removes a content's metadata and every stored chunk.
func (s *ContentService) Delete(ctx context.Context, contentID string, userID int64, admin bool) error {
	content, err := s.contentRepo.GetByContentID(ctx, contentID)
	if err != nil {
		if errors.Is(err, domain.ErrContentNotFound) {
			return ErrContentNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if content.UserID != userID && !admin {
		return ErrNotContentOwner
	}

	if _, err := s.chunkRepo.DeleteFrom(ctx, contentID, 0); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if err := s.contentRepo.Delete(ctx, contentID); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("content_id", contentID).
		Int64("user_id", userID).
		Msg("Content deleted")

	return nil
}

// =============================================================================
// Single-request upload
// =============================================================================

// UploadWholeInput carries a complete small upload.
type UploadWholeInput struct {
	Owner    *domain.User
	FileName string
	Privacy  domain.PrivacyType
	Payload  []byte
}

// UploadWhole stores a file whose entire payload fits in one request. It
// runs the same pipeline as chunked uploads, so quota checks, compression,
// and chunk bookkeeping behave identically.
func (s *ContentService) UploadWhole(ctx context.Context, in UploadWholeInput) (*domain.Content, error) {
	if int64(len(in.Payload)) > s.maxUnchunked {
		return nil, domain.ErrStreamOverCapacity
	}
	if len(in.Payload) == 0 {
		return nil, domain.ErrInvalidDeclaredSize
	}

	begun, err := s.registry.Begin(ctx, upload.BeginInput{
		Owner:         in.Owner,
		FileName:      in.FileName,
		Privacy:       in.Privacy,
		DeclaredTotal: int64(len(in.Payload)),
	})
	if err != nil {
		return nil, err
	}

	if err := s.registry.Push(ctx, begun.Handle, in.Payload); err != nil {
		if abortErr := s.registry.Abort(ctx, begun.Handle); abortErr != nil {
			s.logger.Error().Err(abortErr).
				Str("handle", begun.Handle).
				Msg("Failed to abort upload after push failure")
		}
		return nil, err
	}

	content, err := s.registry.Finish(ctx, begun.Handle)
	if err != nil {
		if abortErr := s.registry.Abort(ctx, begun.Handle); abortErr != nil {
			s.logger.Error().Err(abortErr).
				Str("handle", begun.Handle).
				Msg("Failed to abort upload after finish failure")
		}
		return nil, err
	}

	return content, nil
}
