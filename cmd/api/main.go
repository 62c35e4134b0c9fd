package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopify-oauth-installer/internal/application"
	"shopify-oauth-installer/internal/config"
	apiinfra "shopify-oauth-installer/internal/infrastructure/api"
	"shopify-oauth-installer/internal/infrastructure/metrics"
	"shopify-oauth-installer/internal/infrastructure/repository"
	shopifyinfra "shopify-oauth-installer/internal/infrastructure/shopify"
	"shopify-oauth-installer/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// memoryStoreSize caps pending installs held by the in-memory nonce store
const memoryStoreSize = 10000

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger = logger.Level(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nonces, closeStore, err := newNonceStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.NonceStore).Msg("Failed to initialize nonce store")
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	handshakeMetrics := metrics.New(registry)

	retryConfig := shopifyinfra.DefaultRetryConfig()
	retryConfig.MaxRetries = cfg.UpstreamMaxRetries
	retryConfig.InitialBackoff = cfg.UpstreamRetryBackoff

	shopifyClient := shopifyinfra.NewClientWithOptions(
		cfg.APIKey,
		cfg.APISecret,
		&http.Client{Timeout: cfg.UpstreamTimeout},
		retryConfig,
		logger,
	)

	oauthService := application.NewOAuthService(
		application.OAuthConfig{
			Scopes:      cfg.Scopes,
			RedirectURI: shopifyinfra.BuildRedirectURI(cfg.AppURL),
			NonceTTL:    cfg.NonceTTL,
		},
		nonces,
		shopifyClient,
		handshakeMetrics,
		logger,
	)

	router := apiinfra.NewRouter(apiinfra.RouterConfig{
		NonceTTL:       cfg.NonceTTL,
		SecureCookies:  cfg.SecureCookies(),
		AllowedOrigins: cfg.AllowedOrigins,
		Gatherer:       registry,
	}, oauthService, handshakeMetrics, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("redirectUri", shopifyinfra.BuildRedirectURI(cfg.AppURL)).
			Str("nonceStore", cfg.NonceStore).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("Server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
	logger.Info().Msg("Server stopped")
}

// newNonceStore builds the configured nonce store and returns a function
// releasing its connections.
func newNonceStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (ports.NonceStore, func(), error) {
	switch cfg.NonceStore {
	case config.NonceStoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Info().Msg("Using Redis nonce store")
		return repository.NewRedisNonceStore(client), func() { client.Close() }, nil

	case config.NonceStoreMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		disconnect := func() { client.Disconnect(context.Background()) }
		if err := client.Ping(ctx, nil); err != nil {
			disconnect()
			return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
		}
		store := repository.NewMongoNonceStore(client.Database(cfg.MongoDatabase))
		if err := store.EnsureIndexes(ctx); err != nil {
			disconnect()
			return nil, nil, err
		}
		logger.Info().Str("database", cfg.MongoDatabase).Msg("Using MongoDB nonce store")
		return store, disconnect, nil

	default:
		logger.Warn().Msg("Using in-memory nonce store; pending installs do not survive restarts or span instances")
		return repository.NewMemoryNonceStore(memoryStoreSize, cfg.NonceTTL, logger), func() {}, nil
	}
}
