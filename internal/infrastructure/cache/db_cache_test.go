package cache

import (
	"context"
	"testing"
	"time"

	"civicfix/internal/infrastructure/persistence/gormstore/storetest"
)

func setupDBCache(t *testing.T) *DBCache {
	t.Helper()
	return NewDBCache(storetest.Open(t))
}

func TestDBCacheSetGetDelete(t *testing.T) {
	cache := setupDBCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "issue_status:1", "REPORTED", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := cache.Get(ctx, "issue_status:1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "REPORTED" {
		t.Fatalf("Get() = %q, found=%v", value, found)
	}

	if err := cache.Set(ctx, "issue_status:1", "IN_PROGRESS", 0); err != nil {
		t.Fatalf("Set(update) error = %v", err)
	}
	value, found, err = cache.Get(ctx, "issue_status:1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "IN_PROGRESS" {
		t.Fatalf("Get() after update = %q, found=%v", value, found)
	}

	if err := cache.Delete(ctx, "issue_status:1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, found, err = cache.Get(ctx, "issue_status:1")
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if found {
		t.Fatalf("Get() expected found=false after delete")
	}
}

func TestDBCacheExpiresEntries(t *testing.T) {
	cache := setupDBCache(t)
	ctx := context.Background()

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }

	if err := cache.Set(ctx, "issue_status:2", "RESOLVED", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, found, _ := cache.Get(ctx, "issue_status:2"); !found {
		t.Fatalf("Get() before expiry found=false")
	}

	clock = clock.Add(2 * time.Minute)
	if _, found, _ := cache.Get(ctx, "issue_status:2"); found {
		t.Fatalf("Get() after expiry found=true")
	}
}

func TestDBCacheRejectsEmptyKey(t *testing.T) {
	cache := setupDBCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "", "v", 0); err == nil {
		t.Fatalf("Set() expected error for empty key")
	}
	if _, _, err := cache.Get(ctx, ""); err == nil {
		t.Fatalf("Get() expected error for empty key")
	}
	if err := cache.Delete(ctx, ""); err == nil {
		t.Fatalf("Delete() expected error for empty key")
	}
}

func TestRedisCacheUnavailableIsNoop(t *testing.T) {
	cache, err := NewRedisCache("redis://127.0.0.1:1/0", "civicfix:")
	if err != nil {
		t.Fatalf("NewRedisCache() error = %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	cache.SetAvailable(false)

	ctx := context.Background()
	if err := cache.Set(ctx, "issue_status:1", "REPORTED", time.Minute); err != nil {
		t.Fatalf("Set() while unavailable error = %v", err)
	}
	if _, found, err := cache.Get(ctx, "issue_status:1"); err != nil || found {
		t.Fatalf("Get() while unavailable = found %v, err %v", found, err)
	}

	if _, err := NewRedisCache("://bad", ""); err == nil {
		t.Fatalf("NewRedisCache() expected error for bad url")
	}
}
