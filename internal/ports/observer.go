package ports

import "time"

// UpstreamObserver is told about every completed call to Shopify
type UpstreamObserver interface {
	ObserveUpstream(call string, elapsed time.Duration, err error)
}
