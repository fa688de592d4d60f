// Package provider abstracts the interchangeable AI vendors behind a single
// adapter interface. Adapters are stateless aside from static configuration
// (model lists, pricing tables); everything mutable lives in the caller.
package provider

import (
	"context"
	"net/http"
	"sort"

	"github.com/akverma/glossa/pkg/vault"
)

// Adapter is implemented once per AI vendor.
type Adapter interface {
	Name() string

	// ValidateKeyFormat is a pure predicate over a candidate API key.
	ValidateKeyFormat(key string) bool

	// Models lists the model identifiers this adapter accepts.
	Models() []string
	DefaultModel() string

	// BuildRequest constructs the outbound HTTP request for one prompt.
	BuildRequest(ctx context.Context, key, prompt, model string, maxTokens int, temperature float64) (*http.Request, error)

	// ParseResponse interprets status + body. It must distinguish a usable
	// explanation, a quota/billing failure (the only circuit-breaker
	// trigger), and everything else.
	ParseResponse(statusCode int, body []byte, model string) *Result

	// EstimateCost converts a token count into USD via the adapter's static
	// pricing table. Observability only, never admission control.
	EstimateCost(tokens int, model string) float64
}

// Result is the parsed outcome of one provider call.
type Result struct {
	Success     bool
	Explanation string
	TokensUsed  int
	Cost        float64

	// ErrorDetail is internal diagnostic text. It is logged, never surfaced
	// to end users.
	ErrorDetail string

	// QuotaExceeded marks a provider-reported billing/usage-limit failure,
	// distinct from a transient rate limit.
	QuotaExceeded bool

	// Transport marks failures where no usable HTTP response arrived.
	Transport bool
}

var registry = map[string]Adapter{}

// Register adds an adapter under its name. Called from adapter init.
func Register(a Adapter) {
	registry[a.Name()] = a
}

// Get resolves an adapter by its registered key.
func Get(name string) (Adapter, bool) {
	a, ok := registry[name]
	return a, ok
}

// Names lists the registered adapter keys, sorted for stable output.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KeyFormats exposes every adapter's key predicate for the vault.
func KeyFormats() []vault.KeyFormat {
	formats := make([]vault.KeyFormat, 0, len(registry))
	for _, name := range Names() {
		adapter := registry[name]
		formats = append(formats, adapter.ValidateKeyFormat)
	}
	return formats
}

// ResolveModel returns model when the adapter recognizes it, otherwise the
// adapter's default.
func ResolveModel(a Adapter, model string) string {
	for _, m := range a.Models() {
		if m == model {
			return model
		}
	}
	return a.DefaultModel()
}
