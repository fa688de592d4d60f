package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/akverma/glossa/pkg/breaker"
	"github.com/akverma/glossa/pkg/cache"
	"github.com/akverma/glossa/pkg/config"
	"github.com/akverma/glossa/pkg/provider"
	"github.com/akverma/glossa/pkg/ratelimit"
	"github.com/akverma/glossa/pkg/sanitize"
	"github.com/akverma/glossa/pkg/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "sk-testkeytestkeytestkey1234"

// stubCaller stands in for the outbound provider client.
type stubCaller struct {
	mu     sync.Mutex
	calls  int
	result *provider.Result
}

func (s *stubCaller) Do(_ context.Context, _ provider.Adapter, _, _, _ string, _ int, _ float64) *provider.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	cpy := *s.result
	return &cpy
}

func (s *stubCaller) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func successResult() *provider.Result {
	return &provider.Result{
		Success:     true,
		Explanation: "A concise explanation.",
		TokensUsed:  42,
		Cost:        0.0001,
	}
}

type testEnv struct {
	gw     *Gateway
	caller *stubCaller
	quota  *breaker.Breaker
	cfg    *config.Config
}

func newTestEnv(t *testing.T, mutate func(cfg *config.Config)) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.Explain.Provider = "openai"
	cfg.Cache.Enabled = true
	cfg.Security.VaultSecret = "test-secret"
	if mutate != nil {
		mutate(cfg)
	}
	cfgStore := config.NewStatic(cfg)

	v := vault.New(cfg.Security.VaultSecret, provider.KeyFormats()...)
	creds := vault.NewMemoryCredentialStore(v)
	require.NoError(t, creds.SetCredential(context.Background(), "openai", testKey))

	caller := &stubCaller{result: successResult()}
	quota := breaker.New()

	gw := New(
		cfgStore,
		quota,
		ratelimit.New(ratelimit.NewMemoryCounterStore()),
		cache.NewMemoryResponseCache(),
		creds,
		caller,
		nil,
	)
	return &testEnv{gw: gw, caller: caller, quota: quota, cfg: cfgStore.Get()}
}

func validInfo() RequestInfo {
	return RequestInfo{
		Method:           "POST",
		ClientID:         "client-4f8a2b1c",
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) Firefox/130.0",
		ClientTimestamp:  time.Now(),
		ProxyHeaderCount: 1,
	}
}

func TestExplainSuccess(t *testing.T) {
	env := newTestEnv(t, nil)

	result := env.gw.Explain(context.Background(), "The quick brown fox", SelectionContext{},
		AnonymousIdentity("1.2.3.4"), validInfo())

	require.True(t, result.Success)
	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, "A concise explanation.", result.Explanation)
	assert.False(t, result.Cached)
	assert.Equal(t, 42, result.TokensUsed)
	assert.Greater(t, result.Cost, 0.0)
	assert.Equal(t, 1, env.caller.callCount())
}

func TestSecondIdenticalRequestIsServedFromCache(t *testing.T) {
	env := newTestEnv(t, nil)

	first := env.gw.Explain(context.Background(), "The quick brown fox", SelectionContext{},
		AnonymousIdentity("1.2.3.4"), validInfo())
	require.True(t, first.Success)
	require.False(t, first.Cached)

	second := env.gw.Explain(context.Background(), "The quick brown fox", SelectionContext{},
		AnonymousIdentity("5.6.7.8"), validInfo())
	require.True(t, second.Success)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Explanation, second.Explanation)
	assert.Equal(t, 1, env.caller.callCount(), "cache hit must not reach the provider")
}

func TestRawVariantsNormalizingIdenticallyShareACacheEntry(t *testing.T) {
	env := newTestEnv(t, nil)

	env.gw.Explain(context.Background(), "The  quick   brown fox", SelectionContext{},
		AnonymousIdentity("1.2.3.4"), validInfo())
	second := env.gw.Explain(context.Background(), "The <b>quick</b> brown fox", SelectionContext{},
		AnonymousIdentity("1.2.3.4"), validInfo())

	assert.True(t, second.Cached)
	assert.Equal(t, 1, env.caller.callCount())
}

func TestDisabledBreakerFailsFast(t *testing.T) {
	env := newTestEnv(t, nil)
	env.quota.Trip("openai", "insufficient_quota")

	result := env.gw.Explain(context.Background(), "The quick brown fox", SelectionContext{},
		AnonymousIdentity("1.2.3.4"), validInfo())

	assert.Equal(t, StatusDisabled, result.Status)
	assert.False(t, result.Success)
	assert.Equal(t, 0, env.caller.callCount(), "disabled feature must not touch the provider")
}

func TestQuotaFailureTripsBreakerOneWay(t *testing.T) {
	env := newTestEnv(t, nil)
	env.caller.result = &provider.Result{QuotaExceeded: true, ErrorDetail: "openai status 403: type=insufficient_quota"}

	first := env.gw.Explain(context.Background(), "The quick brown fox", SelectionContext{},
		AnonymousIdentity("1.2.3.4"), validInfo())
	assert.Equal(t, StatusDisabled, first.Status)
	require.True(t, env.quota.Disabled())

	state := env.quota.Snapshot()
	assert.Equal(t, "openai", state.Provider)
	assert.Contains(t, state.Reason, "insufficient_quota")

	// Even a would-be-successful request stays disabled until re-enable.
	env.caller.result = successResult()
	second := env.gw.Explain(context.Background(), "Completely different text", SelectionContext{},
		AnonymousIdentity("9.9.9.9"), validInfo())
	assert.Equal(t, StatusDisabled, second.Status)
	assert.Equal(t, 1, env.caller.callCount())

	// Explicit administrative re-enable restores service.
	env.quota.Reenable()
	third := env.gw.Explain(context.Background(), "Completely different text", SelectionContext{},
		AnonymousIdentity("9.9.9.9"), validInfo())
	assert.True(t, third.Success)
}

func TestProviderFailureDoesNotTripBreaker(t *testing.T) {
	env := newTestEnv(t, nil)
	env.caller.result = &provider.Result{ErrorDetail: "openai malformed body: unexpected EOF"}

	result := env.gw.Explain(context.Background(), "The quick brown fox", SelectionContext{},
		AnonymousIdentity("1.2.3.4"), validInfo())

	assert.Equal(t, StatusFailure, result.Status)
	assert.Equal(t, msgFailure, result.ErrorMessage, "internal detail must not leak")
	assert.False(t, env.quota.Disabled())

	// The failure was not cached; a retry reaches the provider again.
	env.gw.Explain(context.Background(), "The quick brown fox", SelectionContext{},
		AnonymousIdentity("1.2.3.4"), validInfo())
	assert.Equal(t, 2, env.caller.callCount())
}

func TestTransportFailureDoesNotTripBreaker(t *testing.T) {
	env := newTestEnv(t, nil)
	env.caller.result = &provider.Result{Transport: true, ErrorDetail: "transport failure calling openai: context deadline exceeded"}

	result := env.gw.Explain(context.Background(), "The quick brown fox", SelectionContext{},
		AnonymousIdentity("1.2.3.4"), validInfo())

	assert.Equal(t, StatusFailure, result.Status)
	assert.False(t, env.quota.Disabled(), "a timeout is not a quota signal")
}

func TestSanitizerRejectionSurfacesReason(t *testing.T) {
	env := newTestEnv(t, nil)

	tooShort := env.gw.Explain(context.Background(), "ab", SelectionContext{},
		AnonymousIdentity("1.2.3.4"), validInfo())
	assert.Equal(t, StatusRejected, tooShort.Status)
	assert.Equal(t, sanitize.ReasonTooShort, tooShort.RejectReason)

	dangerous := env.gw.Explain(context.Background(), "look <script>alert(1)</script>", SelectionContext{},
		AnonymousIdentity("1.2.3.4"), validInfo())
	assert.Equal(t, StatusRejected, dangerous.Status)
	assert.Equal(t, sanitize.ReasonDangerousPattern, dangerous.RejectReason)
	assert.Equal(t, 0, env.caller.callCount())
}

func TestBlockedWordRejectionNamesTheTerm(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Explain.BlockedWords = []string{"forbidden"}
		cfg.Explain.BlockedWordsWholeWordOnly = true
	})

	result := env.gw.Explain(context.Background(), "this forbidden word", SelectionContext{},
		AnonymousIdentity("1.2.3.4"), validInfo())

	assert.Equal(t, StatusRejected, result.Status)
	assert.Equal(t, sanitize.ReasonBlockedWord, result.RejectReason)
	assert.Contains(t, result.ErrorMessage, "forbidden")
}

func TestRateLimitDeniesAfterCeiling(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.PerMinuteAnon = 2
		cfg.Cache.Enabled = false
	})

	texts := []string{"first unique text", "second unique text", "third unique text"}
	identity := AnonymousIdentity("1.2.3.4")

	require.True(t, env.gw.Explain(context.Background(), texts[0], SelectionContext{}, identity, validInfo()).Success)
	require.True(t, env.gw.Explain(context.Background(), texts[1], SelectionContext{}, identity, validInfo()).Success)

	third := env.gw.Explain(context.Background(), texts[2], SelectionContext{}, identity, validInfo())
	assert.Equal(t, StatusRateLimited, third.Status)
	assert.Equal(t, msgRateLimited, third.ErrorMessage)
	assert.Equal(t, 2, env.caller.callCount())

	// A different identity is unaffected.
	other := env.gw.Explain(context.Background(), texts[2], SelectionContext{}, AnonymousIdentity("8.8.8.8"), validInfo())
	assert.True(t, other.Success)
}

func TestMissingCredentialIsNotConfigured(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Explain.Provider = "claude" // no claude credential stored
	})

	result := env.gw.Explain(context.Background(), "The quick brown fox", SelectionContext{},
		AnonymousIdentity("1.2.3.4"), validInfo())

	assert.Equal(t, StatusNotConfigured, result.Status)
	assert.Equal(t, 0, env.caller.callCount())
}

func TestSecurityFailureIsGenericInvalid(t *testing.T) {
	env := newTestEnv(t, nil)

	info := validInfo()
	info.UserAgent = "curl/8.4.0"
	result := env.gw.Explain(context.Background(), "The quick brown fox", SelectionContext{},
		AnonymousIdentity("1.2.3.4"), info)

	assert.Equal(t, StatusInvalidRequest, result.Status)
	assert.Equal(t, msgInvalid, result.ErrorMessage)
	assert.Equal(t, 0, env.caller.callCount())
}
