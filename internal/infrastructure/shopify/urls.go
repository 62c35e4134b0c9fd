package shopify

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	callbackPath    = "/shopify/callback"
	authorizePath   = "/admin/oauth/authorize"
	accessTokenPath = "/admin/oauth/access_token"
	shopDataPath    = "/admin/shop.json"
)

// BuildRedirectURI returns the callback URL registered with Shopify for the app
// served at appURL. It must match the registered value exactly.
func BuildRedirectURI(appURL string) string {
	return strings.TrimSuffix(appURL, "/") + callbackPath
}

// BuildInstallURL returns the authorization URL on the shop's own domain.
// The shop is not validated here; Shopify rejects unknown shops itself.
func BuildInstallURL(shop, clientID, scopes, state, redirectURI string) string {
	return fmt.Sprintf(
		"https://%s%s?client_id=%s&scope=%s&state=%s&redirect_uri=%s",
		shop,
		authorizePath,
		url.QueryEscape(clientID),
		url.QueryEscape(scopes),
		url.QueryEscape(state),
		url.QueryEscape(redirectURI),
	)
}

// BuildAccessTokenRequestURL returns the endpoint that exchanges a code for a token.
func BuildAccessTokenRequestURL(shop string) string {
	return "https://" + shop + accessTokenPath
}

// BuildShopDataRequestURL returns the shop resource endpoint.
func BuildShopDataRequestURL(shop string) string {
	return "https://" + shop + shopDataPath
}
