package ports

import (
	"context"
	"encoding/json"
	"net/url"
)

// ShopifyClient defines the calls needed to run the install handshake with Shopify
type ShopifyClient interface {
	// GenerateAuthURL builds the authorization URL the merchant is redirected to.
	GenerateAuthURL(shop, scopes, redirectURI, state string) string

	// VerifyCallback reports whether the callback query carries a valid hmac.
	VerifyCallback(query url.Values) bool

	// ExchangeToken trades a one-time authorization code for an access token.
	ExchangeToken(ctx context.Context, shop string, code string) (string, error)

	// GetShop fetches the shop resource with the given access token.
	GetShop(ctx context.Context, shop string, accessToken string) (json.RawMessage, error)
}
