package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

const (
	claudeEndpoint   = "https://api.anthropic.com/v1/messages"
	claudeAPIVersion = "2023-06-01"
)

var claudeKeyPattern = regexp.MustCompile(`^sk-ant-[A-Za-z0-9_-]{20,250}$`)

// claudePricing is USD per 1k tokens (blended input rate; observability only).
var claudePricing = map[string]float64{
	"claude-3-5-sonnet-20241022": 0.0030,
	"claude-3-5-haiku-20241022":  0.0008,
	"claude-3-opus-20240229":     0.0150,
}

// ClaudeAdapter speaks the messages API with the custom api-key header plus
// a pinned API version.
type ClaudeAdapter struct{}

func init() {
	Register(&ClaudeAdapter{})
}

func (a *ClaudeAdapter) Name() string { return "claude" }

func (a *ClaudeAdapter) ValidateKeyFormat(key string) bool {
	return claudeKeyPattern.MatchString(key)
}

func (a *ClaudeAdapter) Models() []string {
	return []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-opus-20240229",
	}
}

func (a *ClaudeAdapter) DefaultModel() string { return "claude-3-5-haiku-20241022" }

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (a *ClaudeAdapter) BuildRequest(ctx context.Context, key, prompt, model string, maxTokens int, temperature float64) (*http.Request, error) {
	body, err := json.Marshal(claudeRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages:    []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", key)
	req.Header.Set("anthropic-version", claudeAPIVersion)
	return req, nil
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *claudeError `json:"error"`
}

type claudeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (a *ClaudeAdapter) ParseResponse(statusCode int, body []byte, model string) *Result {
	var parsed claudeResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if statusCode < 200 || statusCode >= 300 {
		detail := fmt.Sprintf("claude status %d", statusCode)
		var quota bool
		if decodeErr == nil && parsed.Error != nil {
			detail = fmt.Sprintf("claude status %d: type=%s message=%s",
				statusCode, parsed.Error.Type, parsed.Error.Message)
			quota = a.detectQuotaExceeded(statusCode, parsed.Error)
		}
		return &Result{ErrorDetail: detail, QuotaExceeded: quota}
	}

	if decodeErr != nil {
		return &Result{ErrorDetail: fmt.Sprintf("claude malformed body: %v", decodeErr)}
	}

	var explanation string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			explanation = strings.TrimSpace(block.Text)
			break
		}
	}
	if explanation == "" {
		return &Result{ErrorDetail: "claude response missing text content"}
	}

	tokens := parsed.Usage.InputTokens + parsed.Usage.OutputTokens
	if tokens == 0 {
		tokens = CountTokens(model, explanation)
	}

	return &Result{
		Success:     true,
		Explanation: explanation,
		TokensUsed:  tokens,
		Cost:        a.EstimateCost(tokens, model),
	}
}

// detectQuotaExceeded is the sole circuit-breaker trigger for this adapter.
// The messages API reports billing problems as billing_error or as
// invalid_request_error with credit-balance phrasing, so the keyword
// heuristic carries more weight here than for OpenAI.
func (a *ClaudeAdapter) detectQuotaExceeded(statusCode int, apiErr *claudeError) bool {
	if apiErr.Type == "billing_error" {
		return true
	}
	if apiErr.Type == "rate_limit_error" || apiErr.Type == "overloaded_error" {
		return false
	}
	if statusCode == http.StatusPaymentRequired {
		return true
	}
	return messageSuggestsQuota(apiErr.Message)
}

func (a *ClaudeAdapter) EstimateCost(tokens int, model string) float64 {
	pricePer1k, ok := claudePricing[model]
	if !ok {
		pricePer1k = claudePricing[a.DefaultModel()]
	}
	return (float64(tokens) / 1000.0) * pricePer1k
}
