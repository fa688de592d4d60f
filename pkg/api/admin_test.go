package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akverma/glossa/pkg/breaker"
	"github.com/akverma/glossa/pkg/cache"
	"github.com/akverma/glossa/pkg/config"
	"github.com/akverma/glossa/pkg/provider"
	"github.com/akverma/glossa/pkg/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminKey = "admin-test-key"

func newAdminMux(t *testing.T) (*http.ServeMux, *breaker.Breaker, cache.ResponseCache, vault.Resolver) {
	t.Helper()

	quota := breaker.New()
	respCache := cache.NewMemoryResponseCache()
	v := vault.New("admin-test-secret", provider.KeyFormats()...)
	creds := vault.NewMemoryCredentialStore(v)

	api := NewAdminAPI(config.NewStatic(&config.Config{}), quota, respCache, creds, nil, testAdminKey)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	return mux, quota, respCache, creds
}

func adminRequest(method, path string, body []byte, key string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	return req
}

func TestAdminRejectsMissingOrWrongKey(t *testing.T) {
	mux, _, _, _ := newAdminMux(t)

	for _, key := range []string{"", "wrong-key"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, adminRequest(http.MethodGet, "/admin/status", nil, key))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "key %q", key)
	}
}

func TestAdminStatusReportsBreakerState(t *testing.T) {
	mux, quota, _, _ := newAdminMux(t)
	quota.Trip("openai", "insufficient_quota")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, adminRequest(http.MethodGet, "/admin/status", nil, testAdminKey))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Breaker struct {
			Disabled bool   `json:"disabled"`
			Provider string `json:"provider"`
			Reason   string `json:"reason"`
		} `json:"breaker"`
		Providers []string `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Breaker.Disabled)
	assert.Equal(t, "openai", resp.Breaker.Provider)
	assert.Contains(t, resp.Providers, "openai")
	assert.Contains(t, resp.Providers, "claude")
}

func TestAdminEnableClearsBreaker(t *testing.T) {
	mux, quota, _, _ := newAdminMux(t)
	quota.Trip("openai", "quota exhausted")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, adminRequest(http.MethodPost, "/admin/enable", nil, testAdminKey))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, quota.Disabled())
}

func TestAdminEnableRequiresPost(t *testing.T) {
	mux, quota, _, _ := newAdminMux(t)
	quota.Trip("openai", "quota exhausted")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, adminRequest(http.MethodGet, "/admin/enable", nil, testAdminKey))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.True(t, quota.Disabled(), "a GET must not flip the breaker")
}

func TestAdminClearCacheEmptiesEntries(t *testing.T) {
	mux, _, respCache, _ := newAdminMux(t)

	ctx := context.Background()
	require.NoError(t, respCache.Put(ctx, "some normalized text", &cache.Entry{Explanation: "cached"}, time.Hour))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, adminRequest(http.MethodPost, "/admin/cache/clear", nil, testAdminKey))
	require.Equal(t, http.StatusOK, rec.Code)

	_, found := respCache.Get(ctx, "some normalized text")
	assert.False(t, found)
}

func TestAdminCredentialsStoresKey(t *testing.T) {
	mux, _, _, creds := newAdminMux(t)

	body, _ := json.Marshal(map[string]string{
		"provider": "openai",
		"key":      "sk-testkeytestkeytestkey1234",
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, adminRequest(http.MethodPut, "/admin/credentials", body, testAdminKey))
	require.Equal(t, http.StatusOK, rec.Code)

	stored := creds.Credential(context.Background(), "openai")
	assert.Equal(t, "sk-testkeytestkeytestkey1234", stored)
}

func TestAdminCredentialsRejectsUnknownProvider(t *testing.T) {
	mux, _, _, _ := newAdminMux(t)

	body, _ := json.Marshal(map[string]string{"provider": "no-such", "key": "sk-whatever"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, adminRequest(http.MethodPut, "/admin/credentials", body, testAdminKey))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminUsageWithoutStoreIsUnavailable(t *testing.T) {
	mux, _, _, _ := newAdminMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, adminRequest(http.MethodGet, "/admin/usage", nil, testAdminKey))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminHealthNeedsNoKey(t *testing.T) {
	mux, _, _, _ := newAdminMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, adminRequest(http.MethodGet, "/admin/health", nil, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}
