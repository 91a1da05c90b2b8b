// Package session implements the stateless session-token service and the
// refresh-token registry for MediaHost.
package session

import (
	"context"
	"sync"
	"time"
)

// RefreshGrant is one honorable refresh token. Grants carry enough metadata
// for list-sessions and expire-session to enumerate and revoke them; the
// access tokens themselves are stateless and cannot be listed.
type RefreshGrant struct {
	// Token is the refresh-token identifier (format: uuid@userid).
	Token string `json:"token"`

	// UserID is the user the grant was issued to.
	UserID int64 `json:"user_id"`

	// IssuedAt is when the grant was registered.
	IssuedAt time.Time `json:"issued_at"`

	// ExpiresAt is the grant's own expiry; refreshes stop being honored
	// at this instant even if the grant was never revoked.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the grant is past its expiry.
func (g RefreshGrant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// RefreshStore is the registry of currently honored refresh tokens.
// The memory implementation suits single-node deployments; the redis
// implementation lets refresh grants survive a process restart.
type RefreshStore interface {
	// Put records a grant, overwriting any grant with the same token.
	Put(ctx context.Context, grant RefreshGrant) error

	// Has reports whether a non-expired grant exists for the token.
	Has(ctx context.Context, token string) (bool, error)

	// Delete removes a grant. Returns true if it was present.
	Delete(ctx context.Context, token string) (bool, error)

	// ListByUser returns all non-expired grants for a user.
	ListByUser(ctx context.Context, userID int64) ([]RefreshGrant, error)
}

// MemoryStore implements RefreshStore with an in-process map.
// Grants do not survive restarts.
type MemoryStore struct {
	mu      sync.Mutex
	grants  map[string]RefreshGrant
	stopCh  chan struct{}
	stopped bool
}

// NewMemoryStore creates a new in-memory refresh store.
func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		grants: make(map[string]RefreshGrant),
		stopCh: make(chan struct{}),
	}

	// Background janitor for grants that expire without being revoked.
	go ms.cleanupLoop()

	return ms
}

// cleanupLoop periodically removes expired grants.
func (m *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.cleanup(time.Now())
		}
	}
}

// Stop stops the janitor goroutine.
func (m *MemoryStore) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.stopped {
		close(m.stopCh)
		m.stopped = true
	}
}

// cleanup removes expired grants.
func (m *MemoryStore) cleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for token, grant := range m.grants {
		if grant.Expired(now) {
			delete(m.grants, token)
		}
	}
}

// Put records a grant.
func (m *MemoryStore) Put(ctx context.Context, grant RefreshGrant) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.grants[grant.Token] = grant
	return nil
}

// Has reports whether a non-expired grant exists for the token.
func (m *MemoryStore) Has(ctx context.Context, token string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	grant, exists := m.grants[token]
	if !exists {
		return false, nil
	}
	if grant.Expired(time.Now()) {
		delete(m.grants, token)
		return false, nil
	}
	return true, nil
}

// Delete removes a grant.
func (m *MemoryStore) Delete(ctx context.Context, token string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.grants[token]; exists {
		delete(m.grants, token)
		return true, nil
	}
	return false, nil
}

// ListByUser returns all non-expired grants for a user.
func (m *MemoryStore) ListByUser(ctx context.Context, userID int64) ([]RefreshGrant, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	result := make([]RefreshGrant, 0)
	for _, grant := range m.grants {
		if grant.UserID == userID && !grant.Expired(now) {
			result = append(result, grant)
		}
	}
	return result, nil
}

// Ensure MemoryStore implements RefreshStore.
var _ RefreshStore = (*MemoryStore)(nil)
