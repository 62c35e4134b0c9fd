package shopify

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"shopify-oauth-installer/internal/domain"
)

// RetryConfig bounds how often and how patiently a failed Shopify call is repeated
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig allows one retry after a short pause.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     1,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// backoff returns the pause before the given retry (1-based). A Retry-After
// from Shopify takes precedence, capped at MaxBackoff.
func (rc RetryConfig) backoff(retry int, lastErr error) time.Duration {
	wait := rc.InitialBackoff
	for i := 1; i < retry; i++ {
		wait *= 2
	}

	var upstreamErr *domain.UpstreamError
	if errors.As(lastErr, &upstreamErr) && upstreamErr.RetryAfter > 0 {
		wait = upstreamErr.RetryAfter
	}

	if rc.MaxBackoff > 0 && wait > rc.MaxBackoff {
		wait = rc.MaxBackoff
	}
	return wait
}

// shouldRetry reports whether err is worth another attempt. Transport errors,
// throttling and server errors are; client errors and cancellation are not.
func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var upstreamErr *domain.UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Retryable()
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
