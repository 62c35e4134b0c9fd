package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Install outcomes
const (
	InstallRedirected  = "redirected"
	InstallMissingShop = "missing_shop"
	InstallError       = "error"
)

// Callback outcomes
const (
	CallbackSuccess          = "success"
	CallbackStateMismatch    = "state_mismatch"
	CallbackInvalidSignature = "invalid_signature"
	CallbackMissingCode      = "missing_code"
	CallbackNonceRejected    = "nonce_rejected"
	CallbackUpstreamError    = "upstream_error"
)

// Metrics holds the Prometheus collectors for the install handshake
type Metrics struct {
	installs         *prometheus.CounterVec
	callbacks        *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

// New registers the handshake collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		installs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopify_oauth",
			Name:      "installs_total",
			Help:      "Install requests by outcome.",
		}, []string{"outcome"}),
		callbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopify_oauth",
			Name:      "callbacks_total",
			Help:      "Callback requests by outcome.",
		}, []string{"outcome"}),
		upstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shopify_oauth",
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of calls to Shopify, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"call", "result"}),
	}
}

// ObserveInstall counts one install request
func (m *Metrics) ObserveInstall(outcome string) {
	m.installs.WithLabelValues(outcome).Inc()
}

// ObserveCallback counts one callback request
func (m *Metrics) ObserveCallback(outcome string) {
	m.callbacks.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records the duration of a call to Shopify
func (m *Metrics) ObserveUpstream(call string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.upstreamDuration.WithLabelValues(call, result).Observe(elapsed.Seconds())
}
