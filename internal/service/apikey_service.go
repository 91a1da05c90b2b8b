package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/pkg/crypto"
	"github.com/prn-tf/mediahost/internal/repository"
)

// apiTokenCharset covers every character class used in generated API tokens.
const apiTokenCharset = crypto.LowercaseAlphabet + crypto.UppercaseAlphabet + crypto.Digits + crypto.Symbols

// APIKeyService handles API key generation and revocation.
type APIKeyService struct {
	apikeyRepo  repository.APIKeyRepository
	tokenLength int
	logger      zerolog.Logger
}

// NewAPIKeyService creates a new APIKeyService.
func NewAPIKeyService(apikeyRepo repository.APIKeyRepository, tokenLength int, logger zerolog.Logger) *APIKeyService {
	return &APIKeyService{
		apikeyRepo:  apikeyRepo,
		tokenLength: tokenLength,
		logger:      logger.With().Str("service", "apikey").Logger(),
	}
}

// GenerateInput describes a new API key.
type GenerateInput struct {
	UserID      int64
	Description string

	// Rights is the capability subset granted to the key.
	Rights domain.RightSet
}

// GenerateOutput carries the newly generated key.
type GenerateOutput struct {
	Key *domain.APIKey

	// Token is the plaintext secret, returned exactly once. Only its hash
	// is persisted.
	Token string
}

// Generate creates a new API key for the user.
func (s *APIKeyService) Generate(ctx context.Context, input GenerateInput) (*GenerateOutput, error) {
	token, err := crypto.RandomString(s.tokenLength, apiTokenCharset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	key := domain.NewAPIKey(input.UserID, input.Description, crypto.HashString(token), input.Rights)

	if err := s.apikeyRepo.Create(ctx, key); err != nil {
		s.logger.Error().Err(err).Int64("user_id", input.UserID).Msg("Failed to create api key")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("user_id", input.UserID).
		Str("key_id", key.KeyID.String()).
		Int64("rights", key.Rights.Encode()).
		Msg("API key generated")

	return &GenerateOutput{Key: key, Token: token}, nil
}

// List returns the user's API keys.
func (s *APIKeyService) List(ctx context.Context, userID int64) ([]*domain.APIKey, error) {
	keys, err := s.apikeyRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return keys, nil
}

// Expire revokes one of the user's API keys. The key must belong to the
// calling user.
func (s *APIKeyService) Expire(ctx context.Context, userID int64, keyID uuid.UUID) error {
	key, err := s.apikeyRepo.GetByKeyID(ctx, keyID)
	if err != nil {
		if errors.Is(err, domain.ErrAPIKeyNotFound) {
			return ErrAPIKeyNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if key.UserID != userID {
		return ErrNotKeyOwner
	}

	if err := s.apikeyRepo.DeleteByKeyID(ctx, keyID); err != nil {
		if errors.Is(err, domain.ErrAPIKeyNotFound) {
			return ErrAPIKeyNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", userID).Str("key_id", keyID.String()).Msg("API key expired")
	return nil
}
