package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/akverma/glossa/pkg/breaker"
	"github.com/akverma/glossa/pkg/cache"
	"github.com/akverma/glossa/pkg/config"
	"github.com/akverma/glossa/pkg/provider"
	"github.com/akverma/glossa/pkg/storage"
	"github.com/akverma/glossa/pkg/vault"
)

// AdminAPI provides the control surface: breaker re-enable, cache clearing,
// credential management, and usage/cost analytics.
type AdminAPI struct {
	cfgStore *config.Store
	quota    *breaker.Breaker
	cache    cache.ResponseCache
	creds    vault.Resolver
	store    storage.Store
	adminKey string // Simple admin authentication
}

func NewAdminAPI(cfgStore *config.Store, quota *breaker.Breaker, respCache cache.ResponseCache,
	creds vault.Resolver, store storage.Store, adminKey string) *AdminAPI {
	return &AdminAPI{
		cfgStore: cfgStore,
		quota:    quota,
		cache:    respCache,
		creds:    creds,
		store:    store,
		adminKey: adminKey,
	}
}

// RegisterRoutes registers admin endpoints
func (api *AdminAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/status", api.authenticate(api.handleStatus))
	mux.HandleFunc("/admin/enable", api.authenticate(api.handleEnable))
	mux.HandleFunc("/admin/cache/clear", api.authenticate(api.handleClearCache))
	mux.HandleFunc("/admin/credentials", api.authenticate(api.handleCredentials))
	mux.HandleFunc("/admin/usage", api.authenticate(api.handleUsageStats))
	mux.HandleFunc("/admin/costs", api.authenticate(api.handleCostStats))
	mux.HandleFunc("/admin/logs", api.authenticate(api.handleLogs))
	mux.HandleFunc("/admin/health", api.handleHealth)
}

// authenticate middleware checks admin key
func (api *AdminAPI) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Admin-Key") != api.adminKey {
			respondJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid admin key",
			})
			return
		}
		next(w, r)
	}
}

// handleStatus reports the breaker state and active provider settings.
func (api *AdminAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := api.cfgStore.Get()
	state := api.quota.Snapshot()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"breaker": map[string]interface{}{
			"disabled":    state.Disabled,
			"reason":      state.Reason,
			"provider":    state.Provider,
			"disabled_at": state.DisabledAt,
		},
		"provider":  cfg.Explain.Provider,
		"model":     cfg.Explain.Model,
		"providers": provider.Names(),
	})
}

// handleEnable is the explicit administrative re-enable; the breaker never
// clears itself.
func (api *AdminAPI) handleEnable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	api.quota.Reenable()
	respondJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
}

func (api *AdminAPI) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := api.cache.Clear(ctx); err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleCredentials stores a provider API key through the vault. The key
// only ever exists in plaintext inside this request.
func (api *AdminAPI) handleCredentials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Provider string `json:"provider"`
		Key      string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if _, ok := provider.Get(req.Provider); !ok {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown provider"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := api.creds.SetCredential(ctx, req.Provider, req.Key); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

func (api *AdminAPI) handleUsageStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if api.store == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "logging is not enabled"})
		return
	}

	from, to := parseTimeRange(r)
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := api.store.GetUsageStats(ctx, from, to)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (api *AdminAPI) handleCostStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if api.store == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "logging is not enabled"})
		return
	}

	from, to := parseTimeRange(r)
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := api.store.GetCostStats(ctx, from, to)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (api *AdminAPI) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if api.store == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "logging is not enabled"})
		return
	}

	from, to := parseTimeRange(r)
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	logs, err := api.store.ListExplainLogs(ctx, storage.LogFilters{
		IdentityKey: r.URL.Query().Get("identity"),
		Outcome:     r.URL.Query().Get("outcome"),
		From:        from,
		To:          to,
		Limit:       100,
	})
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

func (api *AdminAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":   "ok",
		"disabled": api.quota.Disabled(),
	}
	if api.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := api.store.Ping(ctx); err != nil {
			health["status"] = "degraded"
			health["storage"] = err.Error()
		}
	}
	respondJSON(w, http.StatusOK, health)
}

// parseTimeRange reads from/to query params (RFC3339), defaulting to the
// last 24 hours.
func parseTimeRange(r *http.Request) (time.Time, time.Time) {
	to := time.Now()
	from := to.Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("from"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			from = parsed
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			to = parsed
		}
	}
	return from, to
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
