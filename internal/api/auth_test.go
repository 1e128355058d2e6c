package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"storebridge/internal/config"

	"github.com/stretchr/testify/assert"
)

func authConfig(keys ...config.APIClientKey) config.APIConfig {
	cfg := config.APIConfig{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = keys
	return cfg
}

func wrapOK(a *Auth) http.Handler {
	return a.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthRejectsMissingKey(t *testing.T) {
	a := NewAuth(authConfig(config.APIClientKey{Key: "secret"}))
	handler := wrapOK(a)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsWrongKey(t *testing.T) {
	a := NewAuth(authConfig(config.APIClientKey{Key: "secret"}))
	handler := wrapOK(a)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	req.Header.Set("X-API-Key", "not-secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthAcceptsValidKey(t *testing.T) {
	a := NewAuth(authConfig(config.APIClientKey{Key: "secret"}))
	handler := wrapOK(a)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthPermissions(t *testing.T) {
	a := NewAuth(authConfig(config.APIClientKey{
		Key:         "reader",
		Permissions: []string{"read:runs"},
	}))
	handler := wrapOK(a)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	req.Header.Set("X-API-Key", "reader")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/sync/shop-1", nil)
	req.Header.Set("X-API-Key", "reader")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthEmptyPermissionsMeanFullAccess(t *testing.T) {
	a := NewAuth(authConfig(config.APIClientKey{Key: "admin"}))
	handler := wrapOK(a)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/shop-1", nil)
	req.Header.Set("X-API-Key", "admin")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthExemptsWebhooksAndHealth(t *testing.T) {
	a := NewAuth(authConfig(config.APIClientKey{Key: "secret"}))
	handler := wrapOK(a)

	for _, path := range []string{"/health", "/webhooks/checkouts"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := authConfig(config.APIClientKey{Key: "secret"})
	cfg.RateLimit.RPS = 1
	cfg.RateLimit.Burst = 1
	a := NewAuth(cfg)
	handler := wrapOK(a)

	first := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	first.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	assert.Equal(t, http.StatusOK, rec.Code)

	second := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	second.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
