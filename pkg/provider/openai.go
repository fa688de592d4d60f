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

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

var openAIKeyPattern = regexp.MustCompile(`^sk-[A-Za-z0-9_-]{20,250}$`)

// openAIPricing is USD per 1k tokens (blended input rate; observability only).
var openAIPricing = map[string]float64{
	"gpt-4o":        0.0050,
	"gpt-4o-mini":   0.00015,
	"gpt-4-turbo":   0.0100,
	"gpt-3.5-turbo": 0.0005,
}

// OpenAIAdapter speaks the chat-completions API with bearer-token auth.
type OpenAIAdapter struct{}

func init() {
	Register(&OpenAIAdapter{})
}

func (a *OpenAIAdapter) Name() string { return "openai" }

func (a *OpenAIAdapter) ValidateKeyFormat(key string) bool {
	// Claude keys share the sk- prefix; keep the formats disjoint.
	if strings.HasPrefix(key, "sk-ant-") {
		return false
	}
	return openAIKeyPattern.MatchString(key)
}

func (a *OpenAIAdapter) Models() []string {
	return []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo"}
}

func (a *OpenAIAdapter) DefaultModel() string { return "gpt-4o-mini" }

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (a *OpenAIAdapter) BuildRequest(ctx context.Context, key, prompt, model string, maxTokens int, temperature float64) (*http.Request, error) {
	body, err := json.Marshal(openAIRequest{
		Model:       model,
		Messages:    []openAIMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	return req, nil
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *openAIError `json:"error"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

func (a *OpenAIAdapter) ParseResponse(statusCode int, body []byte, model string) *Result {
	var parsed openAIResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if statusCode < 200 || statusCode >= 300 {
		detail := fmt.Sprintf("openai status %d", statusCode)
		var quota bool
		if decodeErr == nil && parsed.Error != nil {
			detail = fmt.Sprintf("openai status %d: type=%s code=%s message=%s",
				statusCode, parsed.Error.Type, parsed.Error.Code, parsed.Error.Message)
			quota = a.detectQuotaExceeded(statusCode, parsed.Error)
		}
		return &Result{ErrorDetail: detail, QuotaExceeded: quota}
	}

	if decodeErr != nil {
		return &Result{ErrorDetail: fmt.Sprintf("openai malformed body: %v", decodeErr)}
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return &Result{ErrorDetail: "openai response missing explanation content"}
	}

	explanation := strings.TrimSpace(parsed.Choices[0].Message.Content)
	tokens := parsed.Usage.TotalTokens
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
// Structured fields first; the keyword heuristic is a fallback for error
// bodies that only carry a message.
func (a *OpenAIAdapter) detectQuotaExceeded(statusCode int, apiErr *openAIError) bool {
	if apiErr.Type == "insufficient_quota" || apiErr.Code == "insufficient_quota" {
		return true
	}
	if apiErr.Type == "rate_limit_error" {
		return false
	}
	if statusCode == http.StatusPaymentRequired {
		return true
	}
	return messageSuggestsQuota(apiErr.Message)
}

func (a *OpenAIAdapter) EstimateCost(tokens int, model string) float64 {
	pricePer1k, ok := openAIPricing[model]
	if !ok {
		pricePer1k = openAIPricing[a.DefaultModel()]
	}
	return (float64(tokens) / 1000.0) * pricePer1k
}
