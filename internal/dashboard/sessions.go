package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lufespi/gestor-academico/internal/config"
	"github.com/lufespi/gestor-academico/internal/metrics"
	"github.com/lufespi/gestor-academico/internal/session"
)

const (
	sessionCookie = "tb_sid"
	refreshCookie = "tb_refresh"
)

// Sessions holds one session.Store per browser, keyed by the tb_sid cookie.
// The least recently used store is closed when the cache is full.
type Sessions struct {
	mu       sync.Mutex
	cache    *lru.Cache[string, *session.Store]
	newStore func() *session.Store
	resume   time.Duration
	secure   bool
	logger   *slog.Logger
}

func NewSessions(cfg config.Config, factory func() *session.Store, logger *slog.Logger) (*Sessions, error) {
	size := cfg.SessionCacheSize
	if size <= 0 {
		size = 1024
	}
	resume := cfg.BackendTimeout
	if resume <= 0 {
		resume = 10 * time.Second
	}
	cache, err := lru.NewWithEvict[string, *session.Store](size, func(_ string, store *session.Store) {
		store.Close()
		metrics.ActiveSessions.Dec()
	})
	if err != nil {
		return nil, err
	}
	return &Sessions{cache: cache, newStore: factory, resume: resume, secure: cfg.CookieSecure, logger: logger}, nil
}

// Acquire returns the store of the requesting browser, creating one when the
// browser has none. A new store resumes from the tb_refresh cookie in the
// background, so callers may observe the loading state.
func (s *Sessions) Acquire(w http.ResponseWriter, r *http.Request) *session.Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		if store, ok := s.cache.Get(cookie.Value); ok {
			return store
		}
	}

	sid := uuid.NewString()
	store := s.newStore()
	s.cache.Add(sid, store)
	metrics.ActiveSessions.Inc()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.secure,
	})

	var refreshToken string
	if cookie, err := r.Cookie(refreshCookie); err == nil {
		refreshToken = cookie.Value
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.resume)
		defer cancel()
		if err := store.Start(ctx, refreshToken); err != nil {
			s.logger.Info("session resume failed", "err", err)
		}
	}()
	return store
}

// Lookup returns the store of the requesting browser without creating one.
func (s *Sessions) Lookup(r *http.Request) (*session.Store, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	return s.cache.Get(cookie.Value)
}

func (s *Sessions) Len() int {
	return s.cache.Len()
}

// Purge closes every store.
func (s *Sessions) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
}
