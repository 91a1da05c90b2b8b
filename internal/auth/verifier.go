package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/pkg/crypto"
	"github.com/prn-tf/mediahost/internal/repository"
	"github.com/prn-tf/mediahost/internal/session"
)

// basicRights is the fixed capability subset granted to password
// authentication. Passwords bootstrap a session; everything else requires a
// session token or an API key.
var basicRights = domain.NewRightSet(domain.RightGenerateSession)

// TokenVerifier verifies a session token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*session.Claims, error)
}

// CredentialVerifier resolves a credential presentation to an authenticated
// identity plus the capability subset that identity may exercise.
type CredentialVerifier struct {
	users  repository.UserRepository
	keys   repository.APIKeyRepository
	tokens TokenVerifier
	logger zerolog.Logger
}

// NewCredentialVerifier creates a credential verifier.
func NewCredentialVerifier(users repository.UserRepository, keys repository.APIKeyRepository, tokens TokenVerifier, logger zerolog.Logger) *CredentialVerifier {
	return &CredentialVerifier{
		users:  users,
		keys:   keys,
		tokens: tokens,
		logger: logger.With().Str("service", "credential-verifier").Logger(),
	}
}

// ResolveBasic validates a username/password pair.
func (v *CredentialVerifier) ResolveBasic(ctx context.Context, username, password string) ClientAuthentication {
	user, err := v.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return failureNotFound("There is no user with that username.")
		}
		v.logger.Error().Err(err).Str("username", username).Msg("Failed to look up user")
		return failureInternal("Something went wrong.")
	}

	if crypto.HashString(password+user.Salt) != user.PasswordHash {
		return failureUnauthorized("Incorrect password.")
	}

	return SuccessBasic{User: user, Rights: basicRights}
}

// ResolveAPIKey validates a presented API key token. Only the hash of the
// token is ever compared against storage.
func (v *CredentialVerifier) ResolveAPIKey(ctx context.Context, token string) ClientAuthentication {
	key, err := v.keys.GetByHashedToken(ctx, crypto.HashString(token))
	if err != nil {
		if errors.Is(err, domain.ErrAPIKeyNotFound) {
			return failureNotFound("The specified API key is invalid.")
		}
		v.logger.Error().Err(err).Msg("Failed to look up api key")
		return failureInternal("Something went wrong.")
	}

	user, err := v.users.GetByID(ctx, key.UserID)
	if err != nil {
		// A key without its user is a data-integrity violation, not a
		// caller mistake.
		v.logger.Error().Err(err).Int64("user_id", key.UserID).Str("key_id", key.KeyID.String()).Msg("API key refers to a missing user")
		return failureInternal("Something went wrong.")
	}

	return SuccessAPIKey{User: user, Rights: key.Rights, Key: key}
}

// ResolveSession validates a presented session token.
func (v *CredentialVerifier) ResolveSession(ctx context.Context, token string) ClientAuthentication {
	claims, err := v.tokens.Verify(token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTokenExpired):
			return failureUnauthorized("The session has expired.")
		case errors.Is(err, domain.ErrMalformedToken):
			return failureBadRequest("The specified session is invalid.")
		default:
			v.logger.Error().Err(err).Msg("Failed to verify session token")
			return failureInternal("Something went wrong.")
		}
	}

	user, err := v.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return failureUnauthorized("The session refers to a deleted user.")
		}
		v.logger.Error().Err(err).Int64("user_id", claims.UserID).Msg("Failed to look up session user")
		return failureInternal("Something went wrong.")
	}

	return SuccessSession{User: user, Rights: claims.Rights, Claims: claims, Token: token}
}
