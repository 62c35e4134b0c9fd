package ports

import (
	"context"
	"time"
)

// NonceStore records the nonces handed out to installing clients so that
// each one validates exactly one callback.
type NonceStore interface {
	// Issue mints a fresh nonce bound to shop that expires after ttl.
	Issue(ctx context.Context, shop string, ttl time.Duration) (string, error)

	// Consume reports whether nonce was issued for shop and is still live,
	// invalidating it in the same step. A second Consume of the same nonce
	// returns false.
	Consume(ctx context.Context, shop string, nonce string) (bool, error)
}
