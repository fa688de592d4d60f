package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/akverma/glossa/pkg/api"
	"github.com/akverma/glossa/pkg/breaker"
	"github.com/akverma/glossa/pkg/cache"
	"github.com/akverma/glossa/pkg/config"
	"github.com/akverma/glossa/pkg/gateway"
	"github.com/akverma/glossa/pkg/middleware"
	"github.com/akverma/glossa/pkg/provider"
	"github.com/akverma/glossa/pkg/ratelimit"
	"github.com/akverma/glossa/pkg/storage"
	"github.com/akverma/glossa/pkg/vault"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Load Config with hot reload
	cfgStore, err := config.LoadAndWatch()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := cfgStore.Get()
	if cfg == nil {
		log.Fatal("Config could not be read")
	}
	if cfg.Security.VaultSecret == "" {
		log.Fatal("security.vault_secret must be set (GLOSSA_SECURITY_VAULT_SECRET)")
	}

	// 2. Initialize Redis (if enabled)
	var rdb *cache.Client
	if cfg.Redis.Enabled {
		rdb, err = cache.NewRedis(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Could not connect to Redis: %v", err)
		}
		fmt.Println("✅ Connected to Redis successfully!")
	}

	// 3. Credential vault, fed with every registered adapter's key format
	v := vault.New(cfg.Security.VaultSecret, provider.KeyFormats()...)

	var creds vault.Resolver
	if rdb != nil {
		creds = vault.NewRedisCredentialStore(rdb, v)
	} else {
		creds = vault.NewMemoryCredentialStore(v)
		log.Println("⚠️  Redis disabled: credentials will not survive restarts")
	}

	// 4. Quota circuit breaker (mirrored to redis when available)
	var quota *breaker.Breaker
	if rdb != nil {
		quota = breaker.NewWithMirror(rdb)
	} else {
		quota = breaker.New()
	}

	// 5. Response cache and rate-limit counters
	var respCache cache.ResponseCache
	var counters ratelimit.CounterStore
	if rdb != nil {
		respCache = cache.NewRedisResponseCache(rdb)
		counters = ratelimit.NewRedisCounterStore(rdb)
	} else {
		respCache = cache.NewMemoryResponseCache()
		counters = ratelimit.NewMemoryCounterStore()
	}
	if cfg.Cache.Enabled {
		fmt.Printf("✅ Response caching enabled (TTL: %dh)\n", cfg.Cache.DurationHours)
	}
	if cfg.RateLimit.Enabled {
		fmt.Printf("✅ Rate limiting: %d/min authenticated, %d/min anonymous\n",
			cfg.RateLimit.PerMinuteAuth, cfg.RateLimit.PerMinuteAnon)
	}

	// 6. Storage (for audit logging)
	var store storage.Store
	if cfg.Logging.Enabled && rdb != nil {
		store = storage.NewRedisStore(rdb, time.Duration(cfg.Logging.RetentionDays)*24*time.Hour)
		fmt.Printf("✅ Audit logging enabled (retention: %d days)\n", cfg.Logging.RetentionDays)
	}

	// 7. Gateway pipeline
	client := provider.NewClient(time.Duration(cfg.Explain.TimeoutSeconds) * time.Second)
	gw := gateway.New(cfgStore, quota, ratelimit.New(counters), respCache, creds, client, store)
	fmt.Printf("✅ Provider: %s (available: %v)\n", cfg.Explain.Provider, provider.Names())

	// 8. HTTP surface
	mux := http.NewServeMux()

	var explain http.Handler = api.NewExplainHandler(gw)
	explain = middleware.GlobalThrottle(cfg.Server.GlobalRPS, cfg.Server.GlobalBurst)(explain)
	mux.Handle("/explain", explain)

	// Metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Admin API
	if cfg.Admin.Key != "" {
		adminAPI := api.NewAdminAPI(cfgStore, quota, respCache, creds, store, cfg.Admin.Key)
		adminAPI.RegisterRoutes(mux)
		fmt.Println("✅ Admin API enabled at /admin/*")
	} else {
		log.Println("⚠️  Admin API disabled: admin.key not set")
	}

	handler := middleware.RequestLogger(mux)

	// 9. Start Server
	fmt.Println("\n🚀 Glossa Features Active:")
	fmt.Println("   - Explain:         http://localhost" + cfg.Server.Port + "/explain")
	fmt.Println("   - Metrics:         http://localhost" + cfg.Server.Port + "/metrics")
	fmt.Println("   - Health Check:    http://localhost" + cfg.Server.Port + "/health")
	fmt.Println("\n📊 Configuration can be hot-reloaded by editing configs/config.yaml")
	fmt.Printf("\n🎯 Server listening on %s\n", cfg.Server.Port)

	if err := http.ListenAndServe(cfg.Server.Port, handler); err != nil {
		log.Fatal("Server failed:", err)
	}
}
