package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// maxResponseBytes bounds how much of a provider response is read.
const maxResponseBytes = 1 << 20

// Client issues provider calls with a short timeout and per-adapter
// transport circuit protection. Only transport-level failures (no usable
// HTTP response) count against the breaker; provider error bodies do not,
// and nothing here is ever retried.
type Client struct {
	httpClient *http.Client

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (c *Client) breakerFor(name string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[name]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    fmt.Sprintf("provider-%s", name),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	c.breakers[name] = cb
	return cb
}

type httpOutcome struct {
	statusCode int
	body       []byte
}

// Do builds, sends, and parses one provider call.
func (c *Client) Do(ctx context.Context, adapter Adapter, key, prompt, model string, maxTokens int, temperature float64) *Result {
	req, err := adapter.BuildRequest(ctx, key, prompt, model, maxTokens, temperature)
	if err != nil {
		return &Result{ErrorDetail: fmt.Sprintf("build request: %v", err), Transport: true}
	}

	outcome, err := c.breakerFor(adapter.Name()).Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		return httpOutcome{statusCode: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		// Includes timeouts, connection failures, and an open transport
		// breaker. None of these are quota signals.
		return &Result{ErrorDetail: fmt.Sprintf("transport failure calling %s: %v", adapter.Name(), err), Transport: true}
	}

	response := outcome.(httpOutcome)
	return adapter.ParseResponse(response.statusCode, response.body, model)
}
