package domain

import (
	"errors"
	"fmt"
	"time"
)

// Client input errors. These never reach the upstream calls.
var (
	ErrMissingShop      = errors.New("missing shop parameter")
	ErrStateMismatch    = errors.New("state does not match state cookie")
	ErrInvalidSignature = errors.New("hmac validation failed")
	ErrMissingCode      = errors.New("missing authorization code")
	ErrNonceRejected    = errors.New("nonce unknown, expired or already used")
)

// UpstreamError is returned when Shopify answers with a non-success status.
type UpstreamError struct {
	Call       string
	StatusCode int
	Body       string
	// RetryAfter is the delay Shopify asked for on 429 responses, if any.
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Call, e.StatusCode, e.Body)
}

// Retryable reports whether the call may succeed if repeated.
func (e *UpstreamError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
