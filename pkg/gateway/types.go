package gateway

import (
	"fmt"
	"time"

	"github.com/akverma/glossa/pkg/sanitize"
)

// IdentityKind separates the two rate-limit populations.
type IdentityKind string

const (
	Authenticated IdentityKind = "authenticated"
	Anonymous     IdentityKind = "anonymous"
)

// Identity is used only as a rate-limit and audit key; it never travels with
// the selection text.
type Identity struct {
	Kind IdentityKind
	// ID is the user ID for authenticated identities, the client IP for
	// anonymous ones.
	ID string
}

func AuthenticatedIdentity(userID string) Identity {
	return Identity{Kind: Authenticated, ID: userID}
}

func AnonymousIdentity(ip string) Identity {
	return Identity{Kind: Anonymous, ID: ip}
}

func (i Identity) Key() string {
	switch i.Kind {
	case Authenticated:
		return fmt.Sprintf("user:%s", i.ID)
	default:
		return fmt.Sprintf("ip:%s", i.ID)
	}
}

// SelectionContext is the text immediately around the selection, supplied by
// the UI layer. Each side is independently length-capped downstream.
type SelectionContext struct {
	Before string
	After  string
}

// RequestInfo carries the transport-level facts the security pre-checks
// inspect. The HTTP layer fills it in; the gateway never touches the raw
// request.
type RequestInfo struct {
	Method           string
	Origin           string
	ClientID         string
	UserAgent        string
	ClientTimestamp  time.Time
	ProxyHeaderCount int
}

// Status classifies the outcome of one Explain call.
type Status string

const (
	StatusOK             Status = "ok"
	StatusDisabled       Status = "disabled"
	StatusInvalidRequest Status = "invalid-request"
	StatusRejected       Status = "rejected"
	StatusRateLimited    Status = "rate-limited"
	StatusNotConfigured  Status = "not-configured"
	StatusFailure        Status = "failure"
)

// Result is the single value every Explain call returns. ErrorMessage only
// ever holds one of the coarse pre-defined messages; internal detail stays
// in the diagnostic log.
type Result struct {
	Success      bool
	Status       Status
	Explanation  string
	Cached       bool
	TokensUsed   int
	Cost         float64
	ErrorMessage string
	RejectReason sanitize.Reason
}

// Coarse user-facing messages. These are the only strings that cross the
// trust boundary on failure.
const (
	msgDisabled      = "Explanations are temporarily unavailable."
	msgInvalid       = "Invalid request."
	msgRateLimited   = "Too many requests. Please try again later."
	msgNotConfigured = "The explanation service is not configured."
	msgFailure       = "Could not generate an explanation. Please try again."
)

func rejectionMessage(reason sanitize.Reason, blockedTerm string) string {
	switch reason {
	case sanitize.ReasonTooShort:
		return "The selected text is too short to explain."
	case sanitize.ReasonTooLong:
		return "The selected text is too long to explain."
	case sanitize.ReasonWordCount:
		return "The selected text has too few or too many words."
	case sanitize.ReasonBlockedWord:
		return fmt.Sprintf("The selection contains a blocked term: %q.", blockedTerm)
	default:
		return "The selected text cannot be processed."
	}
}
