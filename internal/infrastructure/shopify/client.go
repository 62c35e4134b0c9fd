package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"shopify-oauth-installer/internal/domain"
	"shopify-oauth-installer/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

const (
	// AccessTokenHeader carries the access token on Admin API requests.
	AccessTokenHeader = "X-Shopify-Access-Token"

	maxResponseBody = 1 << 20
	maxErrorBody    = 512
)

type client struct {
	apiKey      string
	apiSecret   string
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      zerolog.Logger
}

// NewClient creates a Shopify client with a 10 second timeout and the default retry policy
func NewClient(apiKey, apiSecret string) ports.ShopifyClient {
	return NewClientWithOptions(apiKey, apiSecret, &http.Client{Timeout: 10 * time.Second}, DefaultRetryConfig(), zerolog.Nop())
}

// NewClientWithOptions creates a client using httpClient for transport and
// retryConfig for failed calls. The http.Client timeout bounds each attempt.
func NewClientWithOptions(
	apiKey, apiSecret string,
	httpClient *http.Client,
	retryConfig RetryConfig,
	logger zerolog.Logger,
) ports.ShopifyClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &client{
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		httpClient:  httpClient,
		retryConfig: retryConfig,
		logger:      logger,
	}
}

// GenerateAuthURL builds the authorize URL using the client's API key
func (c *client) GenerateAuthURL(shop, scopes, redirectURI, state string) string {
	return BuildInstallURL(shop, c.apiKey, scopes, state, redirectURI)
}

// VerifyCallback checks the callback hmac against the client's API secret
func (c *client) VerifyCallback(query url.Values) bool {
	return VerifyHMAC(query, c.apiSecret)
}

type accessTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
}

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}

func (c *client) ExchangeToken(ctx context.Context, shop string, code string) (string, error) {
	payload, err := json.Marshal(accessTokenRequest{
		ClientID:     c.apiKey,
		ClientSecret: c.apiSecret,
		Code:         code,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	tokenURL := BuildAccessTokenRequestURL(shop)
	body, err := c.do(ctx, "access_token", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to exchange token: %w", err)
	}

	var tokenResponse accessTokenResponse
	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResponse.AccessToken == "" {
		return "", fmt.Errorf("token response did not contain an access token")
	}

	c.logger.Debug().
		Str("shop", shop).
		Str("granted_scope", tokenResponse.Scope).
		Msg("Obtained access token")

	return tokenResponse.AccessToken, nil
}

func (c *client) GetShop(ctx context.Context, shop string, accessToken string) (json.RawMessage, error) {
	shopURL := BuildShopDataRequestURL(shop)
	body, err := c.do(ctx, "shop", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, shopURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set(AccessTokenHeader, accessToken)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}

	resource, err := unwrapShop(body)
	if err != nil {
		return nil, err
	}
	c.logShop(shop, resource)

	return resource, nil
}

// unwrapShop returns the shop object from a shop.json response. Shopify wraps
// it as {"shop": {...}}; any other valid JSON is passed through untouched.
func unwrapShop(body []byte) (json.RawMessage, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("failed to decode shop response: invalid JSON")
	}

	resource := json.RawMessage(body)
	var envelope struct {
		Shop json.RawMessage `json:"shop"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Shop) > 0 && string(envelope.Shop) != "null" {
		resource = envelope.Shop
	}
	return resource, nil
}

// logShop reads a few fields of the resource for the log line only. A shape
// goshopify.Shop cannot decode is not an error.
func (c *client) logShop(shop string, resource json.RawMessage) {
	var details goshopify.Shop
	if err := json.Unmarshal(resource, &details); err != nil {
		c.logger.Debug().Err(err).Str("shop", shop).Msg("Fetched shop resource in an unrecognised shape")
		return
	}

	c.logger.Debug().
		Str("shop", shop).
		Str("shop_name", details.Name).
		Str("myshopify_domain", details.MyshopifyDomain).
		Msg("Fetched shop resource")
}

// do sends the request built by newRequest, retrying per the retry config,
// and returns the body of the first 2xx response.
func (c *client) do(ctx context.Context, call string, newRequest func(context.Context) (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.retryConfig.backoff(attempt, lastErr)
			c.logger.Warn().
				Err(lastErr).
				Str("call", call).
				Int("retry", attempt).
				Dur("wait", wait).
				Msg("Retrying Shopify request")
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		body, err := c.send(ctx, call, newRequest)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !shouldRetry(ctx, err) {
			break
		}
	}
	return nil, lastErr
}

func (c *client) send(ctx context.Context, call string, newRequest func(context.Context) (*http.Request, error)) ([]byte, error) {
	req, err := newRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", call, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", call, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", call, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &domain.UpstreamError{
			Call:       call,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return body, nil
}
