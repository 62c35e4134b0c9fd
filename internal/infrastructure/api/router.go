package api

import (
	"net/http"
	"time"

	"shopify-oauth-installer/internal/application"
	"shopify-oauth-installer/internal/infrastructure/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterConfig carries what the router needs besides the service itself
type RouterConfig struct {
	NonceTTL       time.Duration
	SecureCookies  bool
	AllowedOrigins []string
	Gatherer       prometheus.Gatherer
}

// NewRouter wires the public routes of the installer
func NewRouter(
	cfg RouterConfig,
	oauthService *application.OAuthService,
	m *metrics.Metrics,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Shopify OAuth installer is running"))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	h := &oauthHandlers{
		service:       oauthService,
		metrics:       m,
		logger:        logger,
		nonceTTL:      cfg.NonceTTL,
		secureCookies: cfg.SecureCookies,
	}
	r.Get("/shopify", h.install)
	r.Get("/shopify/callback", h.callback)

	return r
}

// requestLogger logs one line per request with zerolog
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("duration", time.Since(start)).
					Str("requestId", middleware.GetReqID(r.Context())).
					Msg("HTTP request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
