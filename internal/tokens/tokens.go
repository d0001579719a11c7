// Package tokens keeps one-time tokens (email confirmation, password reset)
// keyed by their hash.
package tokens

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Kind string

const (
	KindConfirm Kind = "confirm"
	KindReset   Kind = "reset"
)

var ErrNotFound = errors.New("token not found or expired")

type Store interface {
	Put(ctx context.Context, kind Kind, hash, userID string, ttl time.Duration) error
	// Take returns the user bound to the token and removes it, so a token is
	// redeemable once.
	Take(ctx context.Context, kind Kind, hash string) (string, error)
}

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "thesisboard:token:"}
}

func (s *RedisStore) key(kind Kind, hash string) string {
	return s.prefix + string(kind) + ":" + hash
}

func (s *RedisStore) Put(ctx context.Context, kind Kind, hash, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(kind, hash), userID, ttl).Err()
}

func (s *RedisStore) Take(ctx context.Context, kind Kind, hash string) (string, error) {
	userID, err := s.client.GetDel(ctx, s.key(kind, hash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return userID, err
}

type memoryEntry struct {
	userID    string
	expiresAt time.Time
}

// MemoryStore is used when no redis is configured. Tokens do not survive a
// restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Put(_ context.Context, kind Kind, hash, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
	s.entries[string(kind)+":"+hash] = memoryEntry{userID: userID, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) Take(_ context.Context, kind Kind, hash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(kind) + ":" + hash
	entry, ok := s.entries[key]
	if !ok {
		return "", ErrNotFound
	}
	delete(s.entries, key)
	if !s.now().Before(entry.expiresAt) {
		return "", ErrNotFound
	}
	return entry.userID, nil
}
