package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/session"
)

// SessionService issues, refreshes, and revokes session tokens.
type SessionService struct {
	tokens     *session.TokenService
	store      session.RefreshStore
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(tokens *session.TokenService, store session.RefreshStore, accessTTL, refreshTTL time.Duration, logger zerolog.Logger) *SessionService {
	return &SessionService{
		tokens:     tokens,
		store:      store,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger.With().Str("service", "session").Logger(),
	}
}

// SessionOutput carries a freshly minted session.
type SessionOutput struct {
	// Token is the signed access token.
	Token string

	// RefreshToken identifies the refresh grant embedded in the token.
	RefreshToken string

	// ExpiresAt is the access token expiry.
	ExpiresAt time.Time
}

// Generate mints a session for the user. Session tokens carry the full
// capability set; what the caller may actually do is decided per request.
func (s *SessionService) Generate(ctx context.Context, user *domain.User) (*SessionOutput, error) {
	now := time.Now()
	refreshToken := fmt.Sprintf("%s@%d", uuid.NewString(), user.ID)
	refreshBefore := now.Add(s.refreshTTL)

	token, err := s.tokens.Mint(session.MintInput{
		UserID:        user.ID,
		Rights:        domain.FullRightSet(),
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.accessTTL),
		RefreshToken:  refreshToken,
		RefreshBefore: refreshBefore,
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to mint session token")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	err = s.tokens.RegisterRefreshToken(ctx, session.RefreshGrant{
		Token:     refreshToken,
		UserID:    user.ID,
		IssuedAt:  now,
		ExpiresAt: refreshBefore,
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to register refresh token")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("Session generated")

	return &SessionOutput{
		Token:        token,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(s.accessTTL),
	}, nil
}

// Refresh mints a replacement access token. The presented token may already
// be expired; only its refresh grant has to still be honorable.
func (s *SessionService) Refresh(ctx context.Context, rawToken string) (*SessionOutput, error) {
	claims, err := s.tokens.VerifyForRefresh(rawToken)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	now := time.Now()
	token, err := s.tokens.Refresh(ctx, claims, now, s.accessTTL)
	if err != nil {
		if errors.Is(err, domain.ErrRefreshNotHonored) {
			return nil, ErrSessionInvalid
		}
		s.logger.Error().Err(err).Int64("user_id", claims.UserID).Msg("Failed to refresh session")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", claims.UserID).Msg("Session refreshed")

	return &SessionOutput{
		Token:        token,
		RefreshToken: claims.RefreshToken,
		ExpiresAt:    now.Add(s.accessTTL),
	}, nil
}

// Expire revokes the refresh grant embedded in the caller's session claims.
// The access token itself stays valid until its expiry; it just can no
// longer be refreshed.
func (s *SessionService) Expire(ctx context.Context, claims *session.Claims) error {
	if !claims.Refreshable() {
		return nil
	}

	revoked, err := s.tokens.RevokeRefreshToken(ctx, claims.RefreshToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if revoked {
		s.logger.Info().Int64("user_id", claims.UserID).Msg("Session expired")
	}
	return nil
}

// ExpireByToken revokes a specific refresh grant of the user, as listed by
// List. Revoking someone else's grant is not permitted.
func (s *SessionService) ExpireByToken(ctx context.Context, userID int64, refreshToken string) error {
	grants, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	for _, grant := range grants {
		if grant.Token == refreshToken {
			if _, err := s.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
				return fmt.Errorf("%w: %v", ErrInternalError, err)
			}
			s.logger.Info().Int64("user_id", userID).Msg("Session expired")
			return nil
		}
	}

	return ErrSessionInvalid
}

// List returns the user's live refresh grants. Access tokens are stateless
// and cannot be enumerated; the refresh registry is the closest durable
// record of open sessions.
func (s *SessionService) List(ctx context.Context, userID int64) ([]session.RefreshGrant, error) {
	grants, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return grants, nil
}
