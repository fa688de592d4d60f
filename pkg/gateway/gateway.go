// Package gateway composes the explanation pipeline: security pre-checks,
// sanitization, rate limiting, cache, provider dispatch, and the quota
// circuit breaker, in that exact order.
package gateway

import (
	"context"
	"log"
	"time"

	"github.com/akverma/glossa/pkg/breaker"
	"github.com/akverma/glossa/pkg/cache"
	"github.com/akverma/glossa/pkg/config"
	"github.com/akverma/glossa/pkg/provider"
	"github.com/akverma/glossa/pkg/ratelimit"
	"github.com/akverma/glossa/pkg/sanitize"
	"github.com/akverma/glossa/pkg/storage"
	"github.com/akverma/glossa/pkg/vault"
	"github.com/google/uuid"
)

// ProviderCaller issues one outbound provider call. Satisfied by
// *provider.Client; tests substitute a double.
type ProviderCaller interface {
	Do(ctx context.Context, adapter provider.Adapter, key, prompt, model string, maxTokens int, temperature float64) *provider.Result
}

// Gateway is the single entry point the UI layer calls. One Gateway serves
// many concurrent requests; all mutable state lives behind the injected
// limiter, cache, and breaker.
type Gateway struct {
	cfgStore *config.Store
	quota    *breaker.Breaker
	limiter  *ratelimit.Limiter
	cache    cache.ResponseCache
	creds    vault.Resolver
	client   ProviderCaller
	store    storage.Store // optional; nil disables audit logging

	nowFunc func() time.Time
}

func New(cfgStore *config.Store, quota *breaker.Breaker, limiter *ratelimit.Limiter,
	respCache cache.ResponseCache, creds vault.Resolver, client ProviderCaller,
	store storage.Store) *Gateway {
	return &Gateway{
		cfgStore: cfgStore,
		quota:    quota,
		limiter:  limiter,
		cache:    respCache,
		creds:    creds,
		client:   client,
		store:    store,
		nowFunc:  time.Now,
	}
}

// Explain runs the full pipeline for one selection.
func (g *Gateway) Explain(ctx context.Context, raw string, selCtx SelectionContext, identity Identity, info RequestInfo) Result {
	start := g.nowFunc()
	cfg := g.cfgStore.Get()
	if cfg == nil {
		return g.finish(identity, start, Result{Status: StatusFailure, ErrorMessage: msgFailure}, "", "")
	}

	// 1. Fail fast while the feature is disabled; preserve diagnostic state.
	if g.quota.Disabled() {
		return g.finish(identity, start, Result{Status: StatusDisabled, ErrorMessage: msgDisabled}, "", "")
	}

	// 2. Request-security pre-checks, before any stateful work.
	if !checkRequestSecurity(info, cfg, g.nowFunc()) {
		return g.finish(identity, start, Result{Status: StatusInvalidRequest, ErrorMessage: msgInvalid}, "", "")
	}

	// 3. Sanitize.
	sanitized := sanitize.Sanitize(raw, sanitize.Limits{
		MinChars:                  cfg.Explain.MinSelectionLength,
		MaxChars:                  cfg.Explain.MaxSelectionLength,
		MinWords:                  cfg.Explain.MinWords,
		MaxWords:                  cfg.Explain.MaxWords,
		BlockedWords:              cfg.Explain.BlockedWords,
		BlockedWordsCaseSensitive: cfg.Explain.BlockedWordsCaseSensitive,
		BlockedWordsWholeWordOnly: cfg.Explain.BlockedWordsWholeWordOnly,
	})
	if !sanitized.OK {
		return g.finish(identity, start, Result{
			Status:       StatusRejected,
			ErrorMessage: rejectionMessage(sanitized.Reason, sanitized.BlockedTerm),
			RejectReason: sanitized.Reason,
		}, "", "")
	}

	// 4. Rate limit.
	if cfg.RateLimit.Enabled {
		if !g.limiter.CheckAndIncrement(ctx, identity.Key(), ceilingsFor(identity, cfg)) {
			return g.finish(identity, start, Result{Status: StatusRateLimited, ErrorMessage: msgRateLimited}, "", "")
		}
	}

	// 5. Cache lookup on the normalized text.
	if cfg.Cache.Enabled {
		if entry, hit := g.cache.Get(ctx, sanitized.Text); hit {
			cacheHits.Inc()
			return g.finish(identity, start, Result{
				Success:     true,
				Status:      StatusOK,
				Explanation: entry.Explanation,
				Cached:      true,
			}, entry.Provider, entry.Model)
		}
		cacheMisses.Inc()
	}

	// 6. Resolve adapter and credential.
	adapter, ok := provider.Get(cfg.Explain.Provider)
	if !ok {
		log.Printf("[GATEWAY] unknown provider %q configured", cfg.Explain.Provider)
		return g.finish(identity, start, Result{Status: StatusNotConfigured, ErrorMessage: msgNotConfigured}, "", "")
	}
	key := g.creds.Credential(ctx, adapter.Name())
	if key == "" {
		return g.finish(identity, start, Result{Status: StatusNotConfigured, ErrorMessage: msgNotConfigured}, adapter.Name(), "")
	}

	// 7. Build prompt and dispatch.
	model := provider.ResolveModel(adapter, cfg.Explain.Model)
	prompt := provider.BuildPrompt(provider.PromptSpec{
		Template:          cfg.Explain.PromptTemplate,
		LanguageDirective: cfg.Explain.LanguageDirective,
		ContextBefore:     selCtx.Before,
		ContextAfter:      selCtx.After,
	}, sanitized.Text)

	callStart := g.nowFunc()
	outcome := g.client.Do(ctx, adapter, key, prompt, model, cfg.Explain.MaxTokens, cfg.Explain.Temperature)
	providerLatency.WithLabelValues(adapter.Name()).Observe(g.nowFunc().Sub(callStart).Seconds())

	// 8. Quota failure trips the breaker for everyone.
	if outcome.QuotaExceeded {
		log.Printf("[GATEWAY] quota exceeded on %s: %s", adapter.Name(), outcome.ErrorDetail)
		breakerTrips.Inc()
		g.quota.Trip(adapter.Name(), outcome.ErrorDetail)
		return g.finishWithError(identity, start, Result{Status: StatusDisabled, ErrorMessage: msgDisabled},
			adapter.Name(), model, outcome.ErrorDetail)
	}

	// 9. Any other failure surfaces a generic message; detail stays here.
	if !outcome.Success {
		log.Printf("[GATEWAY] provider call failed (transport=%v): %s", outcome.Transport, outcome.ErrorDetail)
		return g.finishWithError(identity, start, Result{Status: StatusFailure, ErrorMessage: msgFailure},
			adapter.Name(), model, outcome.ErrorDetail)
	}

	// 10. Success: populate the cache and report metrics.
	if cfg.Cache.Enabled {
		ttl := time.Duration(cfg.Cache.DurationHours) * time.Hour
		if err := g.cache.Put(ctx, sanitized.Text, &cache.Entry{
			Explanation: outcome.Explanation,
			Provider:    adapter.Name(),
			Model:       model,
			CreatedAt:   g.nowFunc(),
		}, ttl); err != nil {
			log.Printf("[GATEWAY] cache write failed: %v", err)
		}
	}
	tokensUsedHistogram.Observe(float64(outcome.TokensUsed))

	return g.finish(identity, start, Result{
		Success:     true,
		Status:      StatusOK,
		Explanation: outcome.Explanation,
		TokensUsed:  outcome.TokensUsed,
		Cost:        outcome.Cost,
	}, adapter.Name(), model)
}

func ceilingsFor(identity Identity, cfg *config.Config) ratelimit.Ceilings {
	if identity.Kind == Authenticated {
		return ratelimit.Ceilings{
			Minute: cfg.RateLimit.PerMinuteAuth,
			Hour:   cfg.RateLimit.PerHourAuth,
			Day:    cfg.RateLimit.PerDayAuth,
		}
	}
	return ratelimit.Ceilings{
		Minute: cfg.RateLimit.PerMinuteAnon,
		Hour:   cfg.RateLimit.PerHourAnon,
		Day:    cfg.RateLimit.PerDayAnon,
	}
}

func (g *Gateway) finish(identity Identity, start time.Time, result Result, providerName, model string) Result {
	return g.finishWithError(identity, start, result, providerName, model, "")
}

// finishWithError records metrics and persists the audit entry (async, like
// every other write off the request path).
func (g *Gateway) finishWithError(identity Identity, start time.Time, result Result, providerName, model, detail string) Result {
	requestsTotal.WithLabelValues(string(result.Status)).Inc()

	if g.store != nil {
		entry := storage.ExplainLog{
			ID:          uuid.NewString(),
			Timestamp:   start,
			IdentityKey: identity.Key(),
			Outcome:     string(result.Status),
			Provider:    providerName,
			Model:       model,
			TokensUsed:  result.TokensUsed,
			CostUSD:     result.Cost,
			CacheHit:    result.Cached,
			Duration:    g.nowFunc().Sub(start),
			Error:       detail,
		}
		go func(entry storage.ExplainLog) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := g.store.SaveExplainLog(ctx, &entry); err != nil {
				log.Printf("[GATEWAY] failed to persist audit entry %s: %v", entry.ID, err)
			}
		}(entry)
	}

	return result
}
