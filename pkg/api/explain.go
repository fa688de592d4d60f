package api

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/akverma/glossa/pkg/gateway"
)

// ExplainRequest is the wire shape the UI layer posts.
type ExplainRequest struct {
	Text    string `json:"text"`
	Context struct {
		Before string `json:"before,omitempty"`
		After  string `json:"after,omitempty"`
	} `json:"context"`
	// ClientID is the page-issued identifier; its absence or implausible
	// shape is treated as bot traffic.
	ClientID string `json:"client_id"`
	// Timestamp is the client's unix time in seconds, used for the replay
	// skew check.
	Timestamp int64 `json:"timestamp"`
}

// ExplainResponse mirrors the gateway result with only user-safe fields.
type ExplainResponse struct {
	Success     bool    `json:"success"`
	Explanation string  `json:"explanation,omitempty"`
	Cached      bool    `json:"cached,omitempty"`
	TokensUsed  int     `json:"tokens_used,omitempty"`
	Cost        float64 `json:"cost,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// ExplainHandler adapts HTTP to the gateway entry point.
type ExplainHandler struct {
	gw *gateway.Gateway
}

func NewExplainHandler(gw *gateway.Gateway) *ExplainHandler {
	return &ExplainHandler{gw: gw}
}

func (h *ExplainHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ExplainRequest
	if r.Body != nil {
		// A malformed body falls through with zero values; the gateway's
		// security checks reject it without leaking why.
		json.NewDecoder(r.Body).Decode(&req)
	}

	info := gateway.RequestInfo{
		Method:           r.Method,
		Origin:           r.Header.Get("Origin"),
		ClientID:         req.ClientID,
		UserAgent:        r.UserAgent(),
		ProxyHeaderCount: countProxyHeaders(r),
	}
	if req.Timestamp > 0 {
		info.ClientTimestamp = time.Unix(req.Timestamp, 0)
	}

	result := h.gw.Explain(r.Context(), req.Text, gateway.SelectionContext{
		Before: req.Context.Before,
		After:  req.Context.After,
	}, identityFrom(r), info)

	respondJSON(w, statusCodeFor(result.Status), ExplainResponse{
		Success:     result.Success,
		Explanation: result.Explanation,
		Cached:      result.Cached,
		TokensUsed:  result.TokensUsed,
		Cost:        result.Cost,
		Error:       result.ErrorMessage,
	})
}

// identityFrom trusts the host platform's auth header when present and falls
// back to the client IP.
func identityFrom(r *http.Request) gateway.Identity {
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		return gateway.AuthenticatedIdentity(userID)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return gateway.AnonymousIdentity(host)
}

var proxyHeaders = []string{"X-Forwarded-For", "X-Real-IP", "Forwarded", "Via", "X-Forwarded-Host"}

func countProxyHeaders(r *http.Request) int {
	var count int
	for _, header := range proxyHeaders {
		count += len(r.Header.Values(header))
	}
	return count
}

func statusCodeFor(status gateway.Status) int {
	switch status {
	case gateway.StatusOK:
		return http.StatusOK
	case gateway.StatusInvalidRequest:
		return http.StatusBadRequest
	case gateway.StatusRejected:
		return http.StatusUnprocessableEntity
	case gateway.StatusRateLimited:
		return http.StatusTooManyRequests
	case gateway.StatusDisabled, gateway.StatusNotConfigured:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
