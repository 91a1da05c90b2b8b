package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prn-tf/mediahost/internal/repository"
)

func TestCacheSetGet(t *testing.T) {
	ctx := context.Background()
	cache := NewCache()
	t.Cleanup(cache.Stop)

	if _, err := cache.Get(ctx, "absent"); !errors.Is(err, repository.ErrCacheMiss) {
		t.Fatalf("Get(absent) error = %v, want ErrCacheMiss", err)
	}

	value := []byte("payload")
	if err := cache.Set(ctx, "key", value, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := cache.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get = %q, want %q", got, value)
	}

	// The cache hands out copies; mutating one must not poison the entry.
	got[0] = 'X'
	again, err := cache.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(again, value) {
		t.Errorf("Get after mutation = %q, want %q", again, value)
	}
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	cache := NewCache()
	t.Cleanup(cache.Stop)

	if err := cache.Set(ctx, "short", []byte("v"), time.Nanosecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(time.Millisecond)

	if _, err := cache.Get(ctx, "short"); !errors.Is(err, repository.ErrCacheMiss) {
		t.Errorf("Get(expired) error = %v, want ErrCacheMiss", err)
	}

	// cleanup drops the expired entry from the map as well.
	cache.cleanup()
	cache.mu.RLock()
	_, exists := cache.items["short"]
	cache.mu.RUnlock()
	if exists {
		t.Error("expired entry survived cleanup")
	}
}

func TestCacheDelete(t *testing.T) {
	ctx := context.Background()
	cache := NewCache()
	t.Cleanup(cache.Stop)

	for _, key := range []string{"a", "b", "c"} {
		if err := cache.Set(ctx, key, []byte(key), 0); err != nil {
			t.Fatalf("Set %s: %v", key, err)
		}
	}

	if err := cache.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := cache.Get(ctx, "a"); !errors.Is(err, repository.ErrCacheMiss) {
		t.Errorf("Get(deleted) error = %v, want ErrCacheMiss", err)
	}

	if err := cache.DeleteMulti(ctx, "b", "c", "never-existed"); err != nil {
		t.Fatalf("DeleteMulti: %v", err)
	}
	for _, key := range []string{"b", "c"} {
		if _, err := cache.Get(ctx, key); !errors.Is(err, repository.ErrCacheMiss) {
			t.Errorf("Get(%s) error = %v, want ErrCacheMiss", key, err)
		}
	}
}

func TestCacheStopTwice(t *testing.T) {
	cache := NewCache()
	cache.Stop()
	cache.Stop()
}
