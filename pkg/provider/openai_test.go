package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIKeyFormat(t *testing.T) {
	a := &OpenAIAdapter{}

	assert.True(t, a.ValidateKeyFormat("sk-abcdefghijklmnopqrstuvwxyz123456"))
	assert.False(t, a.ValidateKeyFormat("sk-short"))
	assert.False(t, a.ValidateKeyFormat("pk-abcdefghijklmnopqrstuvwxyz123456"))
	assert.False(t, a.ValidateKeyFormat("sk-ant-REDACTED"), "claude keys are not openai keys")
	assert.False(t, a.ValidateKeyFormat(""))
}

func TestOpenAIBuildRequest(t *testing.T) {
	a := &OpenAIAdapter{}

	req, err := a.BuildRequest(context.Background(), "sk-testkeytestkeytestkey123", "explain this", "gpt-4o-mini", 500, 0.3)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", req.URL.String())
	assert.Equal(t, "Bearer sk-testkeytestkeytestkey123", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	var parsed openAIRequest
	require.NoError(t, json.Unmarshal(body, &parsed))
	assert.Equal(t, "gpt-4o-mini", parsed.Model)
	assert.Equal(t, 500, parsed.MaxTokens)
	require.Len(t, parsed.Messages, 1)
	assert.Equal(t, "user", parsed.Messages[0].Role)
	assert.Equal(t, "explain this", parsed.Messages[0].Content)
}

func TestOpenAIParseSuccess(t *testing.T) {
	a := &OpenAIAdapter{}
	body := `{"choices":[{"message":{"content":"  A short explanation.  "}}],"usage":{"prompt_tokens":40,"completion_tokens":20,"total_tokens":60}}`

	result := a.ParseResponse(200, []byte(body), "gpt-4o-mini")
	require.True(t, result.Success)
	assert.Equal(t, "A short explanation.", result.Explanation)
	assert.Equal(t, 60, result.TokensUsed)
	assert.InDelta(t, 60.0/1000.0*0.00015, result.Cost, 1e-9)
	assert.False(t, result.QuotaExceeded)
}

func TestOpenAIQuotaExceededTripsOnStructuredError(t *testing.T) {
	a := &OpenAIAdapter{}
	body := `{"error":{"type":"insufficient_quota"}}`

	result := a.ParseResponse(403, []byte(body), "gpt-4o-mini")
	require.False(t, result.Success)
	assert.True(t, result.QuotaExceeded)
	assert.Contains(t, result.ErrorDetail, "insufficient_quota")
}

func TestOpenAIQuotaExceededOnBillingMessage(t *testing.T) {
	a := &OpenAIAdapter{}
	body := `{"error":{"type":"invalid_request_error","message":"Your billing account has a problem"}}`

	result := a.ParseResponse(403, []byte(body), "gpt-4o-mini")
	assert.True(t, result.QuotaExceeded)
}

func TestOpenAIRateLimitIsNotQuota(t *testing.T) {
	a := &OpenAIAdapter{}
	body := `{"error":{"type":"rate_limit_error","message":"Rate limit reached for requests"}}`

	result := a.ParseResponse(429, []byte(body), "gpt-4o-mini")
	require.False(t, result.Success)
	assert.False(t, result.QuotaExceeded, "plain rate limiting must never trip the breaker")
}

func TestOpenAIMalformedBodyIsGenericFailure(t *testing.T) {
	a := &OpenAIAdapter{}

	result := a.ParseResponse(200, []byte(`{{not json`), "gpt-4o-mini")
	require.False(t, result.Success)
	assert.False(t, result.QuotaExceeded)
	assert.Contains(t, result.ErrorDetail, "malformed")
}

func TestOpenAIMissingContentIsFailure(t *testing.T) {
	a := &OpenAIAdapter{}

	result := a.ParseResponse(200, []byte(`{"choices":[]}`), "gpt-4o-mini")
	require.False(t, result.Success)
	assert.False(t, result.QuotaExceeded)
}

func TestOpenAIEstimateCostFallsBackToDefaultModel(t *testing.T) {
	a := &OpenAIAdapter{}
	assert.Equal(t, a.EstimateCost(1000, a.DefaultModel()), a.EstimateCost(1000, "unknown-model"))
}
