package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"shopify-oauth-installer/internal/domain"
	"shopify-oauth-installer/internal/ports"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

// MemoryNonceStore keeps pending sessions in a bounded, expiring LRU.
// It only works for a single instance; use Redis or MongoDB when scaled out.
// Once size sessions are pending, issuing another drops the oldest one and
// its callback will be rejected.
type MemoryNonceStore struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, domain.Session]
	now      func() time.Time
	logger   zerolog.Logger
}

// NewMemoryNonceStore creates a store holding at most size pending sessions,
// none of which outlives maxTTL.
func NewMemoryNonceStore(size int, maxTTL time.Duration, logger zerolog.Logger) *MemoryNonceStore {
	return &MemoryNonceStore{
		sessions: expirable.NewLRU[string, domain.Session](size, nil, maxTTL),
		now:      time.Now,
		logger:   logger,
	}
}

var _ ports.NonceStore = (*MemoryNonceStore)(nil)

// Issue mints a nonce for shop and records the pending session
func (s *MemoryNonceStore) Issue(ctx context.Context, shop string, ttl time.Duration) (string, error) {
	if shop == "" {
		return "", errors.New("shop cannot be empty")
	}

	nonce, err := newNonce()
	if err != nil {
		return "", err
	}

	now := s.now()
	s.mu.Lock()
	evicted := s.sessions.Add(nonce, domain.Session{
		Shop:      shop,
		State:     nonce,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	s.mu.Unlock()

	// Add only reports capacity evictions; expiry and Consume are not counted.
	if evicted {
		s.logger.Warn().
			Str("shop", shop).
			Msg("Nonce store full, evicted oldest pending install")
	}
	return nonce, nil
}

// Consume removes the session for nonce and reports whether it belonged to shop and was still live
func (s *MemoryNonceStore) Consume(ctx context.Context, shop string, nonce string) (bool, error) {
	if nonce == "" {
		return false, nil
	}

	s.mu.Lock()
	session, ok := s.sessions.Peek(nonce)
	if ok {
		s.sessions.Remove(nonce)
	}
	s.mu.Unlock()

	if !ok {
		return false, nil
	}
	return session.Shop == shop && !session.Expired(s.now()), nil
}
