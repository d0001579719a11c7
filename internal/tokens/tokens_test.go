package tokens

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestMemoryStoreIsSingleUse(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Put(ctx, KindConfirm, "h1", "user-1", time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Take(ctx, KindReset, "h1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected kinds to be separate, got %v", err)
	}
	userID, err := store.Take(ctx, KindConfirm, "h1")
	if err != nil || userID != "user-1" {
		t.Fatalf("expected user-1, got %q %v", userID, err)
	}
	if _, err := store.Take(ctx, KindConfirm, "h1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second take to fail, got %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Put(ctx, KindReset, "h", "user-1", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.Take(ctx, KindReset, "h"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired token, got %v", err)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	store := NewRedisStore(client)
	ctx := context.Background()

	hash := uuid.NewString()
	if err := store.Put(ctx, KindConfirm, hash, "user-9", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	userID, err := store.Take(ctx, KindConfirm, hash)
	if err != nil || userID != "user-9" {
		t.Fatalf("expected user-9, got %q %v", userID, err)
	}
	if _, err := store.Take(ctx, KindConfirm, hash); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second take to fail, got %v", err)
	}
}
