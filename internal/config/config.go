package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Nonce store backends
const (
	NonceStoreMemory = "memory"
	NonceStoreRedis  = "redis"
	NonceStoreMongo  = "mongo"
)

// Config is the immutable service configuration, built once at startup
// and passed to every component that needs it.
type Config struct {
	Port     string
	AppURL   string
	LogLevel zerolog.Level

	// Shopify app credentials
	APIKey    string
	APISecret string
	Scopes    string

	NonceStore string
	NonceTTL   time.Duration

	RedisURL      string
	MongoURI      string
	MongoDatabase string

	UpstreamTimeout      time.Duration
	UpstreamMaxRetries   int
	UpstreamRetryBackoff time.Duration

	AllowedOrigins []string
}

// Load reads the .env file when present and builds a Config from the environment.
func Load() (Config, error) {
	// A missing .env is fine; variables may come from the real environment.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using getenv as the variable source.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		Port:          get("PORT", "3000"),
		AppURL:        strings.TrimSuffix(get("APP_URL", "http://localhost:3000"), "/"),
		APIKey:        get("SHOPIFY_API_PUBLIC_KEY", ""),
		APISecret:     get("SHOPIFY_API_SECRET_KEY", ""),
		Scopes:        get("SHOPIFY_SCOPES", "write_products"),
		NonceStore:    strings.ToLower(get("NONCE_STORE", NonceStoreMemory)),
		RedisURL:      get("REDIS_URL", "redis://localhost:6379/0"),
		MongoURI:      get("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: get("MONGODB_DATABASE", "shopify_oauth"),
	}

	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("SHOPIFY_API_PUBLIC_KEY environment variable is required")
	}
	if cfg.APISecret == "" {
		return Config{}, fmt.Errorf("SHOPIFY_API_SECRET_KEY environment variable is required")
	}

	switch cfg.NonceStore {
	case NonceStoreMemory, NonceStoreRedis, NonceStoreMongo:
	default:
		return Config{}, fmt.Errorf("NONCE_STORE must be one of memory, redis, mongo; got %q", cfg.NonceStore)
	}

	level, err := zerolog.ParseLevel(get("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	if cfg.NonceTTL, err = parseDuration(get("NONCE_TTL", "10m"), "NONCE_TTL"); err != nil {
		return Config{}, err
	}
	if cfg.UpstreamTimeout, err = parseDuration(get("UPSTREAM_TIMEOUT", "10s"), "UPSTREAM_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if cfg.UpstreamRetryBackoff, err = parseDuration(get("UPSTREAM_RETRY_BACKOFF", "250ms"), "UPSTREAM_RETRY_BACKOFF"); err != nil {
		return Config{}, err
	}

	retries, err := strconv.Atoi(get("UPSTREAM_MAX_RETRIES", "1"))
	if err != nil || retries < 0 {
		return Config{}, fmt.Errorf("UPSTREAM_MAX_RETRIES must be a non-negative integer")
	}
	cfg.UpstreamMaxRetries = retries

	for _, origin := range strings.Split(get("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	return cfg, nil
}

// SecureCookies reports whether cookies should carry the Secure attribute.
func (c Config) SecureCookies() bool {
	return strings.HasPrefix(c.AppURL, "https://")
}

func parseDuration(raw, name string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return d, nil
}
