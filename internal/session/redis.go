// Package session implements the stateless session-token service and the
// refresh-token registry for MediaHost.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// refreshKeyPrefix namespaces refresh grants in the shared redis keyspace.
const refreshKeyPrefix = "mediahost:refresh:"

// RedisStore implements RefreshStore on redis. Grants are stored as JSON
// values with a TTL equal to their remaining lifetime, so redis expiry and
// grant expiry coincide and no janitor is needed.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a redis-backed refresh store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// refreshKey builds the redis key for a refresh token.
func refreshKey(token string) string {
	return refreshKeyPrefix + token
}

// Put records a grant with a TTL matching its expiry.
func (r *RedisStore) Put(ctx context.Context, grant RefreshGrant) error {
	ttl := time.Until(grant.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh grant: %w", err)
	}

	if err := r.client.Set(ctx, refreshKey(grant.Token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store refresh grant: %w", err)
	}
	return nil
}

// Has reports whether a grant exists for the token.
func (r *RedisStore) Has(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, refreshKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check refresh grant: %w", err)
	}
	return n > 0, nil
}

// Delete removes a grant. Returns true if it was present.
func (r *RedisStore) Delete(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Del(ctx, refreshKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete refresh grant: %w", err)
	}
	return n > 0, nil
}

// ListByUser scans the refresh keyspace and returns the user's grants.
// The grant population is small (one per live session), so a SCAN walk
// is acceptable here.
func (r *RedisStore) ListByUser(ctx context.Context, userID int64) ([]RefreshGrant, error) {
	result := make([]RefreshGrant, 0)

	iter := r.client.Scan(ctx, 0, refreshKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		payload, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Expired between SCAN and GET.
				continue
			}
			return nil, fmt.Errorf("failed to read refresh grant: %w", err)
		}

		var grant RefreshGrant
		if err := json.Unmarshal(payload, &grant); err != nil {
			continue
		}
		if grant.UserID == userID {
			result = append(result, grant)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan refresh grants: %w", err)
	}

	return result, nil
}

// Ensure RedisStore implements RefreshStore.
var _ RefreshStore = (*RedisStore)(nil)
