package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prn-tf/mediahost/internal/domain"
)

// userCacheTTL bounds how stale a cached user record may get.
const userCacheTTL = 5 * time.Minute

// CachedUserRepository wraps a UserRepository with read-through caching.
// User records sit on the hot path of every authenticated request, so basic
// and API-key auth would otherwise hit the database twice per call.
type CachedUserRepository struct {
	inner UserRepository
	cache Cache
	keys  CacheKey
}

// NewCachedUserRepository wraps the given repository with a cache.
func NewCachedUserRepository(inner UserRepository, cache Cache) *CachedUserRepository {
	return &CachedUserRepository{inner: inner, cache: cache}
}

// Create creates a new user.
func (r *CachedUserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.inner.Create(ctx, user)
}

// GetByID retrieves a user by ID, hitting the cache first.
func (r *CachedUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if user, ok := r.cached(ctx, r.keys.UserByID(id)); ok {
		return user, nil
	}

	user, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.store(ctx, user)
	return user, nil
}

// GetByUsername retrieves a user by username, hitting the cache first.
func (r *CachedUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if user, ok := r.cached(ctx, r.keys.UserByUsername(username)); ok {
		return user, nil
	}

	user, err := r.inner.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	r.store(ctx, user)
	return user, nil
}

// Update updates an existing user and invalidates its cache entries. The
// previous record is fetched first so a renamed user's old username key is
// dropped as well.
func (r *CachedUserRepository) Update(ctx context.Context, user *domain.User) error {
	previous, err := r.inner.GetByID(ctx, user.ID)
	if err == nil {
		r.invalidate(ctx, previous)
	}

	if err := r.inner.Update(ctx, user); err != nil {
		return err
	}
	r.invalidate(ctx, user)
	return nil
}

// Delete deletes a user by ID and invalidates its cache entries.
func (r *CachedUserRepository) Delete(ctx context.Context, id int64) error {
	// Fetch first so the username key can be dropped too.
	user, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}

	r.invalidate(ctx, user)
	return nil
}

// List returns all users. Not cached.
func (r *CachedUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	return r.inner.List(ctx)
}

// ExistsByUsername checks if a user with the given username exists.
func (r *CachedUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if _, ok := r.cached(ctx, r.keys.UserByUsername(username)); ok {
		return true, nil
	}
	return r.inner.ExistsByUsername(ctx, username)
}

// cached looks up and decodes a user. Cache failures read as misses.
func (r *CachedUserRepository) cached(ctx context.Context, key string) (*domain.User, bool) {
	payload, err := r.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}

	var user domain.User
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil, false
	}
	return &user, true
}

// store writes a user under both its keys. Best effort.
func (r *CachedUserRepository) store(ctx context.Context, user *domain.User) {
	payload, err := json.Marshal(user)
	if err != nil {
		return
	}

	_ = r.cache.Set(ctx, r.keys.UserByID(user.ID), payload, userCacheTTL)
	_ = r.cache.Set(ctx, r.keys.UserByUsername(user.Username), payload, userCacheTTL)
}

// invalidate drops a user's cache entries.
func (r *CachedUserRepository) invalidate(ctx context.Context, user *domain.User) {
	_ = r.cache.DeleteMulti(ctx, r.keys.UserByID(user.ID), r.keys.UserByUsername(user.Username))
}

// Ensure CachedUserRepository implements UserRepository.
var _ UserRepository = (*CachedUserRepository)(nil)
