// Package ratelimit enforces fixed-window request ceilings per identity.
// The window starts at the first request and self-expires; one counter per
// identity per window keeps memory bounded. The fixed-window design (rather
// than a sliding log) is deliberate: reset happens exactly at the window
// boundary, never retroactively.
package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Window is one rolling counting interval.
type Window struct {
	Name     string
	Duration time.Duration
}

// Windows are checked in order; the first denial short-circuits the rest,
// leaving later counters untouched.
var Windows = []Window{
	{Name: "minute", Duration: time.Minute},
	{Name: "hour", Duration: time.Hour},
	{Name: "day", Duration: 24 * time.Hour},
}

// Ceilings holds the per-window maximums for one identity kind.
type Ceilings struct {
	Minute int
	Hour   int
	Day    int
}

func (c Ceilings) forWindow(name string) int {
	switch name {
	case "minute":
		return c.Minute
	case "hour":
		return c.Hour
	case "day":
		return c.Day
	}
	return 0
}

// CounterStore increments the counter stored at key, creating it with the
// given expiry on first use, and returns the post-increment count. The
// increment must be atomic per key.
type CounterStore interface {
	Incr(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// Limiter applies the three-window check against a counter store.
type Limiter struct {
	store CounterStore
}

func New(store CounterStore) *Limiter {
	return &Limiter{store: store}
}

// CheckAndIncrement returns true when the identity is still under every
// ceiling. A zero ceiling disables that window. Counter-store failures fail
// open: a broken redis must not take the feature down with it.
func (l *Limiter) CheckAndIncrement(ctx context.Context, identityKey string, ceilings Ceilings) bool {
	for _, window := range Windows {
		ceiling := ceilings.forWindow(window.Name)
		if ceiling <= 0 {
			continue
		}

		key := fmt.Sprintf("ratelimit:%s:%s", identityKey, window.Name)
		count, err := l.store.Incr(ctx, key, window.Duration)
		if err != nil {
			log.Printf("[RATELIMIT] counter store error for %s: %v (failing open)", key, err)
			continue
		}

		if count > int64(ceiling) {
			log.Printf("[RATELIMIT] possible abuse: %s exceeded %s ceiling (%d)",
				identityKey, window.Name, ceiling)
			return false
		}
	}
	return true
}
