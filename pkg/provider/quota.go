package provider

import "strings"

// messageSuggestsQuota applies the keyword heuristic over free-text provider
// error messages. It is deliberately conservative: a false positive here
// disables the feature for every user, so pure rate-limit phrasing is
// excluded before any quota keyword is considered.
func messageSuggestsQuota(message string) bool {
	msg := strings.ToLower(message)
	if msg == "" {
		return false
	}
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate-limit") ||
		strings.Contains(msg, "too many requests") {
		return false
	}
	for _, keyword := range []string{"quota", "billing", "insufficient", "credit balance", "payment"} {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}
