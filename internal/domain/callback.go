package domain

import "net/url"

// Query parameter names used by the install and callback requests
const (
	ParamShop  = "shop"
	ParamCode  = "code"
	ParamState = "state"
	ParamHMAC  = "hmac"
)

// CallbackParams holds the query parameters Shopify sends to the callback URL.
// Raw keeps every parameter, including ones not named here, since all of
// them take part in the HMAC.
type CallbackParams struct {
	Shop  string
	Code  string
	State string
	HMAC  string
	Raw   url.Values
}

// ParseCallbackParams extracts the well-known callback parameters from query.
func ParseCallbackParams(query url.Values) CallbackParams {
	return CallbackParams{
		Shop:  query.Get(ParamShop),
		Code:  query.Get(ParamCode),
		State: query.Get(ParamState),
		HMAC:  query.Get(ParamHMAC),
		Raw:   query,
	}
}
