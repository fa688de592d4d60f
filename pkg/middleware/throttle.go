package middleware

import (
	"net/http"

	"golang.org/x/time/rate"
)

// GlobalThrottle caps the whole process's inbound rate. It sits in front of
// the per-identity fixed windows as a blunt DoS guard; rps <= 0 disables it.
func GlobalThrottle(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = int(rps)
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
