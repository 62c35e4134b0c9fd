package api

import (
	"errors"
	"net/http"
	"time"

	"shopify-oauth-installer/internal/application"
	"shopify-oauth-installer/internal/domain"
	"shopify-oauth-installer/internal/infrastructure/metrics"

	"github.com/rs/zerolog"
)

// StateCookieName is the cookie binding a callback to the install that started it
const StateCookieName = "state"

type oauthHandlers struct {
	service       *application.OAuthService
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	nonceTTL      time.Duration
	secureCookies bool
}

// install starts the OAuth flow: GET /shopify?shop=<shop>
func (h *oauthHandlers) install(w http.ResponseWriter, r *http.Request) {
	shop := r.URL.Query().Get(domain.ParamShop)

	redirect, err := h.service.BeginInstall(r.Context(), shop)
	if errors.Is(err, domain.ErrMissingShop) {
		h.metrics.ObserveInstall(metrics.InstallMissingShop)
		http.Error(w, "missing shop parameter", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.metrics.ObserveInstall(metrics.InstallError)
		h.logger.Error().Err(err).Str("shop", shop).Msg("Failed to start OAuth install")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    redirect.State,
		Path:     "/",
		MaxAge:   int(h.nonceTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	h.metrics.ObserveInstall(metrics.InstallRedirected)
	http.Redirect(w, r, redirect.URL, http.StatusFound)
}

// callback handles Shopify's redirect back: GET /shopify/callback
func (h *oauthHandlers) callback(w http.ResponseWriter, r *http.Request) {
	var cookieState string
	if c, err := r.Cookie(StateCookieName); err == nil {
		cookieState = c.Value
	}

	// The state is single use whatever the outcome.
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	query := r.URL.Query()
	shop := query.Get(domain.ParamShop)

	resource, err := h.service.CompleteInstall(r.Context(), query, cookieState)
	switch {
	case err == nil:
		h.metrics.ObserveCallback(metrics.CallbackSuccess)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(resource)
	case errors.Is(err, domain.ErrStateMismatch):
		h.reject(w, shop, err, metrics.CallbackStateMismatch, "Request origin cannot be verified", http.StatusForbidden)
	case errors.Is(err, domain.ErrInvalidSignature):
		h.reject(w, shop, err, metrics.CallbackInvalidSignature, "HMAC validation failed", http.StatusBadRequest)
	case errors.Is(err, domain.ErrMissingCode):
		h.reject(w, shop, err, metrics.CallbackMissingCode, "missing authorization code", http.StatusBadRequest)
	case errors.Is(err, domain.ErrNonceRejected):
		h.reject(w, shop, err, metrics.CallbackNonceRejected, "Request origin cannot be verified", http.StatusForbidden)
	default:
		h.metrics.ObserveCallback(metrics.CallbackUpstreamError)
		h.logger.Error().Err(err).Str("shop", shop).Msg("Failed to complete OAuth install")
		http.Error(w, "Failed to complete installation", http.StatusInternalServerError)
	}
}

func (h *oauthHandlers) reject(w http.ResponseWriter, shop string, err error, outcome string, body string, status int) {
	h.metrics.ObserveCallback(outcome)
	h.logger.Warn().Err(err).Str("shop", shop).Int("status", status).Msg("Rejected OAuth callback")
	http.Error(w, body, status)
}
