package application

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"shopify-oauth-installer/internal/domain"
	"shopify-oauth-installer/internal/ports"

	"github.com/rs/zerolog"
)

// OAuthConfig is the part of the service configuration the handshake needs
type OAuthConfig struct {
	Scopes      string
	RedirectURI string
	NonceTTL    time.Duration
}

// OAuthService runs both halves of the Shopify install handshake: it starts
// the authorization redirect and verifies the callback before exchanging the
// code and fetching the shop.
type OAuthService struct {
	config   OAuthConfig
	nonces   ports.NonceStore
	client   ports.ShopifyClient
	observer ports.UpstreamObserver
	logger   zerolog.Logger
}

// NewOAuthService creates a new OAuth service. observer may be nil.
func NewOAuthService(
	config OAuthConfig,
	nonces ports.NonceStore,
	client ports.ShopifyClient,
	observer ports.UpstreamObserver,
	logger zerolog.Logger,
) *OAuthService {
	return &OAuthService{
		config:   config,
		nonces:   nonces,
		client:   client,
		observer: observer,
		logger:   logger,
	}
}

// InstallRedirect is where the installing merchant is sent, and the state
// value that must come back on the callback.
type InstallRedirect struct {
	URL   string
	State string
}

// BeginInstall mints a nonce bound to shop and builds the authorization URL.
// It makes no call to Shopify.
func (s *OAuthService) BeginInstall(ctx context.Context, shop string) (*InstallRedirect, error) {
	if shop == "" {
		return nil, domain.ErrMissingShop
	}

	state, err := s.nonces.Issue(ctx, shop, s.config.NonceTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue nonce: %w", err)
	}

	s.logger.Info().
		Str("shop", shop).
		Str("scopes", s.config.Scopes).
		Msg("Starting OAuth install")

	return &InstallRedirect{
		URL:   s.client.GenerateAuthURL(shop, s.config.Scopes, s.config.RedirectURI, state),
		State: state,
	}, nil
}

// CompleteInstall verifies a callback and, only when it is genuine, trades
// the code for an access token and fetches the shop with it. cookieState is
// the state cookie set by BeginInstall, empty when absent.
//
// Verification failures return one of the domain sentinel errors and never
// reach Shopify. The access token does not leave this method.
func (s *OAuthService) CompleteInstall(ctx context.Context, query url.Values, cookieState string) (json.RawMessage, error) {
	params := domain.ParseCallbackParams(query)

	if cookieState == "" || subtle.ConstantTimeCompare([]byte(cookieState), []byte(params.State)) != 1 {
		return nil, domain.ErrStateMismatch
	}

	if !s.client.VerifyCallback(params.Raw) {
		return nil, domain.ErrInvalidSignature
	}

	if params.Code == "" {
		return nil, domain.ErrMissingCode
	}

	ok, err := s.nonces.Consume(ctx, params.Shop, params.State)
	if err != nil {
		return nil, fmt.Errorf("failed to consume nonce: %w", err)
	}
	if !ok {
		return nil, domain.ErrNonceRejected
	}

	start := time.Now()
	accessToken, err := s.client.ExchangeToken(ctx, params.Shop, params.Code)
	s.observe("access_token", start, err)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	resource, err := s.client.GetShop(ctx, params.Shop, accessToken)
	s.observe("shop", start, err)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("shop", params.Shop).
		Msg("OAuth install completed")

	return resource, nil
}

func (s *OAuthService) observe(call string, start time.Time, err error) {
	if s.observer != nil {
		s.observer.ObserveUpstream(call, time.Since(start), err)
	}
}
