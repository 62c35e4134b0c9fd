package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shopify-oauth-installer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shopRoundTripper sends every request to the stub server, keeping the
// original host so handlers can assert on it.
type shopRoundTripper struct {
	target *url.URL

	mu    sync.Mutex
	hosts []string
}

func (rt *shopRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	rt.hosts = append(rt.hosts, req.URL.Scheme+"://"+req.URL.Host)
	rt.mu.Unlock()

	out := req.Clone(req.Context())
	out.URL.Scheme = rt.target.Scheme
	out.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(out)
}

func newTestClient(t *testing.T, handler http.Handler, retry RetryConfig) (*client, *shopRoundTripper) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	rt := &shopRoundTripper{target: target}
	c := NewClientWithOptions("public-key", "secret-key", &http.Client{Transport: rt, Timeout: 2 * time.Second}, retry, zerolog.Nop())
	return c.(*client), rt
}

func noRetry() RetryConfig {
	return RetryConfig{MaxRetries: 0}
}

func TestGenerateAuthURLAndVerifyCallback(t *testing.T) {
	c := NewClient("public-key", "secret-key")

	authURL, err := url.Parse(c.GenerateAuthURL("test.example.com", "write_products", "https://app.example.com/shopify/callback", "nonce1"))
	require.NoError(t, err)
	assert.Equal(t, "test.example.com", authURL.Host)
	assert.Equal(t, "public-key", authURL.Query().Get("client_id"))
	assert.Equal(t, "nonce1", authURL.Query().Get("state"))

	q := url.Values{"shop": {"test.example.com"}, "code": {"abc"}, "state": {"nonce1"}}
	q.Set("hmac", Sign(q, "secret-key"))
	assert.True(t, c.VerifyCallback(q))

	q.Set("hmac", Sign(q, "other-secret"))
	assert.False(t, c.VerifyCallback(q))
}

func TestExchangeToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{
			"client_id":     "public-key",
			"client_secret": "secret-key",
			"code":          "abc123",
		}, body)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok1","scope":"write_products"}`))
	})

	c, rt := newTestClient(t, mux, noRetry())

	token, err := c.ExchangeToken(context.Background(), "test.example.com", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "tok1", token)
	assert.Equal(t, []string{"https://test.example.com"}, rt.hosts)
}

func TestExchangeToken_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non-success status", http.StatusBadRequest, `{"error":"invalid_request"}`},
		{"malformed body", http.StatusOK, `not json`},
		{"missing token", http.StatusOK, `{"scope":"write_products"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}), noRetry())

			token, err := c.ExchangeToken(context.Background(), "test.example.com", "abc123")
			require.Error(t, err)
			assert.Empty(t, token)
		})
	}
}

func TestGetShop(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bare resource", `{"id":1,"name":"Test Shop"}`, `{"id":1,"name":"Test Shop"}`},
		{"wrapped resource", `{"shop":{"id":1,"name":"Test Shop"}}`, `{"id":1,"name":"Test Shop"}`},
		{"string id", `{"id":"gid://shopify/Shop/1","name":"Test Shop"}`, `{"id":"gid://shopify/Shop/1","name":"Test Shop"}`},
		{"unparseable timestamp", `{"shop":{"created_at":"yesterday"}}`, `{"created_at":"yesterday"}`},
		{"array body", `[{"id":1}]`, `[{"id":1}]`},
		{"null shop key", `{"shop":null}`, `{"shop":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/admin/shop.json", r.URL.Path)
				assert.Equal(t, "tok1", r.Header.Get(AccessTokenHeader))
				w.Write([]byte(tt.body))
			}), noRetry())

			resource, err := c.GetShop(context.Background(), "test.example.com", "tok1")
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(resource))
		})
	}
}

func TestGetShop_InvalidJSON(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"shop":`))
	}), noRetry())

	_, err := c.GetShop(context.Background(), "test.example.com", "tok1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode shop response")
}

func TestGetShop_UpstreamError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":"[API] Invalid API key or access token"}`))
	}), DefaultRetryConfig())

	_, err := c.GetShop(context.Background(), "test.example.com", "bad")
	require.Error(t, err)

	var upstreamErr *domain.UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, "shop", upstreamErr.Call)
	assert.Equal(t, http.StatusUnauthorized, upstreamErr.StatusCode)
}

func TestRetry_ServerErrorThenSuccess(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id":1,"name":"Test Shop"}`))
	}), RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond})

	resource, err := c.GetShop(context.Background(), "test.example.com", "tok1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"Test Shop"}`, string(resource))
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetry_ExhaustedAndClientErrorsNotRetried(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int
	}{
		{"server error retried up to the limit", http.StatusInternalServerError, 3},
		{"client error not retried", http.StatusForbidden, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}), RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond})

			_, err := c.ExchangeToken(context.Background(), "test.example.com", "abc123")
			require.Error(t, err)
			assert.Equal(t, tt.wantCalls, int(calls.Load()))
		})
	}
}

func TestRetry_StopsOnCancelledContext(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}), RetryConfig{MaxRetries: 5, InitialBackoff: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.GetShop(ctx, "test.example.com", "tok1")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRetryConfigBackoff(t *testing.T) {
	rc := RetryConfig{MaxRetries: 4, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, rc.backoff(1, nil))
	assert.Equal(t, 200*time.Millisecond, rc.backoff(2, nil))
	assert.Equal(t, 300*time.Millisecond, rc.backoff(3, nil))

	throttled := &domain.UpstreamError{StatusCode: http.StatusTooManyRequests, RetryAfter: 250 * time.Millisecond}
	assert.Equal(t, 250*time.Millisecond, rc.backoff(1, throttled))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, parseRetryAfter("2"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}
