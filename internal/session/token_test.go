package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/domain"
)

const testNamespace = "https://mediahost.test"

func newTestService(store RefreshStore) *TokenService {
	return NewTokenService([]byte("0123456789abcdef0123456789abcdef"), testNamespace, store, zerolog.Nop())
}

func TestMintVerifyRoundTrip(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	now := time.Now().Truncate(time.Second)

	token, err := svc.Mint(MintInput{
		UserID:        42,
		Rights:        domain.FullRightSet(),
		IssuedAt:      now,
		ExpiresAt:     now.Add(15 * time.Minute),
		RefreshToken:  "refresh-1@42",
		RefreshBefore: now.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Rights != domain.FullRightSet() {
		t.Errorf("Rights = %b, want full set", claims.Rights)
	}
	if !claims.IssuedAt.Equal(now.UTC()) {
		t.Errorf("IssuedAt = %v, want %v", claims.IssuedAt, now.UTC())
	}
	if claims.RefreshToken != "refresh-1@42" {
		t.Errorf("RefreshToken = %q", claims.RefreshToken)
	}
	if !claims.Refreshable() {
		t.Error("expected claims to be refreshable")
	}
}

func TestMintWithoutRefreshGrant(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	now := time.Now()

	token, err := svc.Mint(MintInput{
		UserID:    7,
		Rights:    domain.NewRightSet(domain.RightUploadFile),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Refreshable() {
		t.Error("expected claims to not be refreshable")
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	now := time.Now()

	token, err := svc.Mint(MintInput{
		UserID:    1,
		Rights:    domain.FullRightSet(),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	// Flip a character in the signature segment.
	last := token[len(token)-1]
	flipped := byte('A')
	if last == 'A' {
		flipped = 'B'
	}
	tampered := token[:len(token)-1] + string(flipped)

	if _, err := svc.Verify(tampered); !errors.Is(err, domain.ErrMalformedToken) {
		t.Errorf("expected ErrMalformedToken, got %v", err)
	}

	if _, err := svc.Verify("not-a-token"); !errors.Is(err, domain.ErrMalformedToken) {
		t.Errorf("expected ErrMalformedToken for garbage, got %v", err)
	}

	if !strings.HasPrefix(token, "eyJ") {
		t.Errorf("expected a compact JWS token, got %q", token[:10])
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	now := time.Now()
	token, err := newTestService(NewMemoryStore()).Mint(MintInput{
		UserID:    1,
		Rights:    domain.FullRightSet(),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	other := NewTokenService([]byte("another-secret-key-entirely!!"), testNamespace, NewMemoryStore(), zerolog.Nop())
	if _, err := other.Verify(token); !errors.Is(err, domain.ErrMalformedToken) {
		t.Errorf("expected ErrMalformedToken under a different key, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	now := time.Now()

	token, err := svc.Mint(MintInput{
		UserID:        3,
		Rights:        domain.FullRightSet(),
		IssuedAt:      now.Add(-2 * time.Hour),
		ExpiresAt:     now.Add(-time.Hour),
		RefreshToken:  "refresh-3@3",
		RefreshBefore: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := svc.Verify(token); !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("Verify: expected ErrTokenExpired, got %v", err)
	}

	// The refresh path tolerates expiry.
	claims, err := svc.VerifyForRefresh(token)
	if err != nil {
		t.Fatalf("VerifyForRefresh: %v", err)
	}
	if claims.UserID != 3 {
		t.Errorf("UserID = %d, want 3", claims.UserID)
	}
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := newTestService(store)
	now := time.Now().Truncate(time.Second)

	grant := RefreshGrant{
		Token:     "refresh-9@9",
		UserID:    9,
		IssuedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	if err := svc.RegisterRefreshToken(ctx, grant); err != nil {
		t.Fatalf("RegisterRefreshToken: %v", err)
	}

	claims := &Claims{
		UserID:        9,
		IssuedAt:      now.Add(-time.Hour).UTC(),
		ExpiresAt:     now.Add(-time.Minute),
		Rights:        domain.FullRightSet(),
		RefreshToken:  grant.Token,
		RefreshBefore: grant.ExpiresAt,
	}

	refreshed, err := svc.Refresh(ctx, claims, now, 15*time.Minute)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	newClaims, err := svc.Verify(refreshed)
	if err != nil {
		t.Fatalf("Verify refreshed token: %v", err)
	}
	if !newClaims.IssuedAt.Equal(claims.IssuedAt) {
		t.Errorf("refresh must preserve the original issue instant: got %v, want %v", newClaims.IssuedAt, claims.IssuedAt)
	}
	if !newClaims.ExpiresAt.Equal(now.Add(15 * time.Minute).UTC().Truncate(time.Second)) {
		t.Errorf("ExpiresAt = %v", newClaims.ExpiresAt)
	}
	if newClaims.RefreshToken != grant.Token {
		t.Errorf("refresh must preserve the refresh grant, got %q", newClaims.RefreshToken)
	}

	// Refresh tokens are reusable until revoked.
	if _, err := svc.Refresh(ctx, claims, now, 15*time.Minute); err != nil {
		t.Errorf("second refresh failed: %v", err)
	}

	// After revocation the grant is no longer honored.
	revoked, err := svc.RevokeRefreshToken(ctx, grant.Token)
	if err != nil {
		t.Fatalf("RevokeRefreshToken: %v", err)
	}
	if !revoked {
		t.Error("expected the grant to have been present")
	}
	if _, err := svc.Refresh(ctx, claims, now, 15*time.Minute); !errors.Is(err, domain.ErrRefreshNotHonored) {
		t.Errorf("expected ErrRefreshNotHonored after revoke, got %v", err)
	}
}

func TestRefreshPastRefreshBefore(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(NewMemoryStore())
	now := time.Now()

	claims := &Claims{
		UserID:        1,
		IssuedAt:      now.Add(-48 * time.Hour),
		ExpiresAt:     now.Add(-47 * time.Hour),
		Rights:        domain.FullRightSet(),
		RefreshToken:  "refresh-old@1",
		RefreshBefore: now.Add(-24 * time.Hour),
	}

	if _, err := svc.Refresh(ctx, claims, now, time.Minute); !errors.Is(err, domain.ErrRefreshNotHonored) {
		t.Errorf("expected ErrRefreshNotHonored past refresh expiry, got %v", err)
	}
}

func TestRefreshNotRefreshable(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(NewMemoryStore())
	now := time.Now()

	claims := &Claims{
		UserID:    1,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Minute),
		Rights:    domain.FullRightSet(),
	}

	if _, err := svc.Refresh(ctx, claims, now, time.Minute); !errors.Is(err, domain.ErrRefreshNotHonored) {
		t.Errorf("expected ErrRefreshNotHonored without a grant, got %v", err)
	}
}
