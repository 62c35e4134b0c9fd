package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopify-oauth-installer/internal/ports"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "shopify:oauth:state:"

// RedisNonceStore shares pending sessions between instances. Keys expire with
// the nonce TTL and are removed atomically with GETDEL on consumption.
type RedisNonceStore struct {
	client redis.UniversalClient
}

// NewRedisNonceStore creates a Redis backed nonce store
func NewRedisNonceStore(client redis.UniversalClient) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

var _ ports.NonceStore = (*RedisNonceStore)(nil)

// Issue mints a nonce for shop and stores it with the given TTL
func (s *RedisNonceStore) Issue(ctx context.Context, shop string, ttl time.Duration) (string, error) {
	if shop == "" {
		return "", errors.New("shop cannot be empty")
	}

	// A collision on 128 random bits means the random source is broken, but
	// SETNX keeps an existing session from being overwritten regardless.
	for i := 0; i < 3; i++ {
		nonce, err := newNonce()
		if err != nil {
			return "", err
		}

		ok, err := s.client.SetNX(ctx, redisKeyPrefix+nonce, shop, ttl).Result()
		if err != nil {
			return "", fmt.Errorf("failed to save session: %w", err)
		}
		if ok {
			return nonce, nil
		}
	}
	return "", errors.New("failed to save session: nonce collision")
}

// Consume deletes the nonce and reports whether it was issued for shop
func (s *RedisNonceStore) Consume(ctx context.Context, shop string, nonce string) (bool, error) {
	if nonce == "" {
		return false, nil
	}

	stored, err := s.client.GetDel(ctx, redisKeyPrefix+nonce).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume session: %w", err)
	}
	return stored == shop, nil
}
