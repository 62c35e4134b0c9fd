package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const hmacParam = "hmac"

var (
	keyEscaper   = strings.NewReplacer("%", "%25", "&", "%26", "=", "%3D")
	valueEscaper = strings.NewReplacer("%", "%25", "&", "%26")
)

// CanonicalQuery renders params the way Shopify does before signing a
// callback: hmac dropped, keys sorted, key=value pairs joined by '&'.
// Repeated keys are rendered as key=["a", "b"].
func CanonicalQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == hmacParam {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		values := params[k]
		var v string
		switch len(values) {
		case 0:
		case 1:
			v = valueEscaper.Replace(values[0])
		default:
			quoted := make([]string, len(values))
			for i, value := range values {
				quoted[i] = `"` + valueEscaper.Replace(value) + `"`
			}
			v = "[" + strings.Join(quoted, ", ") + "]"
		}
		parts = append(parts, keyEscaper.Replace(k)+"="+v)
	}
	return strings.Join(parts, "&")
}

// GenerateEncryptedHash returns the hex encoded HMAC-SHA256 of message keyed by secret.
func GenerateEncryptedHash(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign computes the hmac parameter Shopify would attach to params.
func Sign(params url.Values, secret string) string {
	return GenerateEncryptedHash(secret, CanonicalQuery(params))
}

// VerifyHMAC reports whether the hmac parameter of params matches the digest
// of every other parameter. A missing hmac never verifies.
func VerifyHMAC(params url.Values, secret string) bool {
	given := params.Get(hmacParam)
	if given == "" || secret == "" {
		return false
	}
	expected := Sign(params, secret)
	return hmac.Equal([]byte(expected), []byte(given))
}
