// Package session implements the stateless session-token service and the
// refresh-token registry for MediaHost.
//
// A session is a signed, self-contained token carrying the subject user id,
// issue/expiry instants, and the granted rights mask. The server keeps no
// per-session state; token validity survives process restarts. The only
// server-side session state is the registry of currently honored refresh
// tokens.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/domain"
)

// Claims is the decoded payload of a session token.
type Claims struct {
	// UserID is the subject user id (the "sub" claim).
	UserID int64

	// IssuedAt is the instant the original token was minted ("iat").
	// Refreshing preserves this value.
	IssuedAt time.Time

	// ExpiresAt is the token expiry instant ("exp").
	ExpiresAt time.Time

	// Rights is the capability set granted to the session ("scope",
	// encoded as an integer bit mask on the wire).
	Rights domain.RightSet

	// RefreshToken is the refresh-token identifier embedded in the token,
	// empty when the session is not refreshable.
	RefreshToken string

	// RefreshBefore is the refresh-token's own expiry instant, zero when
	// the session is not refreshable.
	RefreshBefore time.Time
}

// Refreshable reports whether the claims carry a refresh grant.
func (c *Claims) Refreshable() bool {
	return c.RefreshToken != ""
}

// TokenService mints, verifies, and refreshes session tokens.
// Tokens are three base64url segments (header.payload.signature) signed
// with HMAC-SHA256 under a process-wide secret.
type TokenService struct {
	secret    []byte
	namespace string
	store     RefreshStore
	logger    zerolog.Logger
}

// NewTokenService creates a TokenService.
// namespace prefixes the custom refresh claims to keep them collision-free
// in the payload (e.g. "https://mediahost.example/refresh/token").
func NewTokenService(secret []byte, namespace string, store RefreshStore, logger zerolog.Logger) *TokenService {
	return &TokenService{
		secret:    secret,
		namespace: strings.TrimSuffix(namespace, "/"),
		store:     store,
		logger:    logger.With().Str("service", "session").Logger(),
	}
}

// refreshTokenClaim returns the namespaced claim key for the refresh token id.
func (s *TokenService) refreshTokenClaim() string {
	return s.namespace + "/refresh/token"
}

// refreshBeforeClaim returns the namespaced claim key for the refresh expiry.
func (s *TokenService) refreshBeforeClaim() string {
	return s.namespace + "/refresh/before"
}

// MintInput contains the claim set for a new token.
type MintInput struct {
	UserID    int64
	Rights    domain.RightSet
	IssuedAt  time.Time
	ExpiresAt time.Time

	// RefreshToken and RefreshBefore embed a refresh grant when non-zero.
	RefreshToken  string
	RefreshBefore time.Time
}

// Mint serializes the claim set into a signed token.
func (s *TokenService) Mint(in MintInput) (string, error) {
	claims := jwt.MapClaims{
		"sub":   in.UserID,
		"iat":   in.IssuedAt.Unix(),
		"exp":   in.ExpiresAt.Unix(),
		"scope": in.Rights.Encode(),
	}
	if in.RefreshToken != "" {
		claims[s.refreshTokenClaim()] = in.RefreshToken
		claims[s.refreshBeforeClaim()] = in.RefreshBefore.Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's shape and signature, then its expiry, and
// returns the decoded claims. Malformed tokens (wrong shape, bad signature)
// yield domain.ErrMalformedToken; structurally valid but expired tokens
// yield domain.ErrTokenExpired.
func (s *TokenService) Verify(token string) (*Claims, error) {
	return s.parse(token, false)
}

// Refresh mints a replacement token for the given claims. The refresh is
// honored only if the embedded refresh token is still present in the
// registry and its own expiry has not passed. The new token preserves the
// original issue instant, rights, and refresh grant; refresh tokens are
// reusable until revoked or expired, not single-use.
func (s *TokenService) Refresh(ctx context.Context, claims *Claims, now time.Time, ttl time.Duration) (string, error) {
	if !claims.Refreshable() {
		return "", domain.ErrRefreshNotHonored
	}
	if !now.Before(claims.RefreshBefore) {
		return "", domain.ErrRefreshNotHonored
	}

	honored, err := s.store.Has(ctx, claims.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to check refresh registry: %w", err)
	}
	if !honored {
		return "", domain.ErrRefreshNotHonored
	}

	return s.Mint(MintInput{
		UserID:        claims.UserID,
		Rights:        claims.Rights,
		IssuedAt:      claims.IssuedAt,
		ExpiresAt:     now.Add(ttl),
		RefreshToken:  claims.RefreshToken,
		RefreshBefore: claims.RefreshBefore,
	})
}

// RegisterRefreshToken records a refresh grant in the registry.
func (s *TokenService) RegisterRefreshToken(ctx context.Context, grant RefreshGrant) error {
	return s.store.Put(ctx, grant)
}

// RevokeRefreshToken removes a refresh grant from the registry.
// Returns true if the grant was present.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, token string) (bool, error) {
	return s.store.Delete(ctx, token)
}

// VerifyForRefresh checks shape and signature only, tolerating an expired
// access token: a refresh request naturally arrives after expiry.
func (s *TokenService) VerifyForRefresh(token string) (*Claims, error) {
	return s.parse(token, true)
}

// parse verifies and decodes a token. When allowExpired is set, an expired
// but otherwise valid token is still returned.
func (s *TokenService) parse(token string, allowExpired bool) (*Claims, error) {
	mapClaims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, mapClaims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			if !allowExpired {
				return nil, domain.ErrTokenExpired
			}
			// fall through: signature checked out, claims are populated
		} else {
			return nil, domain.ErrMalformedToken
		}
	}

	claims, err := s.decode(mapClaims)
	if err != nil {
		return nil, domain.ErrMalformedToken
	}
	return claims, nil
}

// decode extracts the typed claim set from the raw payload map.
func (s *TokenService) decode(m jwt.MapClaims) (*Claims, error) {
	sub, ok := claimInt64(m, "sub")
	if !ok {
		return nil, errors.New("missing sub claim")
	}
	iat, ok := claimInt64(m, "iat")
	if !ok {
		return nil, errors.New("missing iat claim")
	}
	exp, ok := claimInt64(m, "exp")
	if !ok {
		return nil, errors.New("missing exp claim")
	}
	scope, ok := claimInt64(m, "scope")
	if !ok {
		return nil, errors.New("missing scope claim")
	}

	claims := &Claims{
		UserID:    sub,
		IssuedAt:  time.Unix(iat, 0).UTC(),
		ExpiresAt: time.Unix(exp, 0).UTC(),
		Rights:    domain.DecodeRightSet(scope),
	}

	if raw, ok := m[s.refreshTokenClaim()]; ok {
		token, ok := raw.(string)
		if !ok {
			return nil, errors.New("malformed refresh token claim")
		}
		before, ok := claimInt64(m, s.refreshBeforeClaim())
		if !ok {
			return nil, errors.New("missing refresh expiry claim")
		}
		claims.RefreshToken = token
		claims.RefreshBefore = time.Unix(before, 0).UTC()
	}

	return claims, nil
}

// claimInt64 reads a numeric claim. JSON numbers decode as float64.
func claimInt64(m jwt.MapClaims, key string) (int64, bool) {
	switch v := m[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
