// Package breaker holds the global auto-disable switch for the explanation
// feature. It trips the instant any provider reports a quota/billing failure
// and stays tripped until an explicit administrative re-enable; billing
// problems need a human, so there is no self-healing timer.
package breaker

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/akverma/glossa/pkg/cache"
	"github.com/redis/go-redis/v9"
)

const stateKey = "breaker:state"

// State is the diagnostic snapshot recorded at trip time.
type State struct {
	Disabled   bool      `json:"disabled"`
	Reason     string    `json:"reason"`
	Provider   string    `json:"provider"`
	DisabledAt time.Time `json:"disabled_at"`
}

// Breaker is a process-wide singleton, injected into every component that
// needs it. The in-memory state is authoritative; when a redis client is
// supplied the state is mirrored there best-effort so restarts and sibling
// instances observe the switch.
type Breaker struct {
	mu    sync.RWMutex
	state State
	rdb   *cache.Client
}

func New() *Breaker {
	return &Breaker{}
}

// NewWithMirror loads any persisted state, then mirrors every transition.
func NewWithMirror(rdb *cache.Client) *Breaker {
	b := &Breaker{rdb: rdb}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if data, err := rdb.Get(ctx, stateKey); err == nil {
		var persisted State
		if json.Unmarshal(data, &persisted) == nil && persisted.Disabled {
			b.state = persisted
			log.Printf("[BREAKER] restored disabled state from %s (provider=%s)",
				persisted.DisabledAt.Format(time.RFC3339), persisted.Provider)
		}
	} else if err != redis.Nil {
		log.Printf("[BREAKER] could not load persisted state: %v", err)
	}

	return b
}

// Disabled reports whether the feature is switched off.
func (b *Breaker) Disabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.Disabled
}

// Snapshot returns a copy of the current state for diagnostics.
func (b *Breaker) Snapshot() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Trip flips the switch and records why. Concurrent trips race benignly:
// the boolean is the only load-bearing field, last writer wins on metadata.
func (b *Breaker) Trip(provider, reason string) {
	b.mu.Lock()
	b.state = State{
		Disabled:   true,
		Reason:     reason,
		Provider:   provider,
		DisabledAt: time.Now(),
	}
	state := b.state
	b.mu.Unlock()

	log.Printf("[BREAKER] TRIPPED by %s: %s", provider, reason)
	b.mirror(state)
}

// Reenable clears the switch and its metadata. Only the admin surface calls
// this.
func (b *Breaker) Reenable() {
	b.mu.Lock()
	b.state = State{}
	b.mu.Unlock()

	log.Printf("[BREAKER] re-enabled by administrator")
	b.mirror(State{})
}

func (b *Breaker) mirror(state State) {
	if b.rdb == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		data, _ := json.Marshal(state)
		if err := b.rdb.Set(ctx, stateKey, data, 0); err != nil {
			log.Printf("[BREAKER] failed to mirror state: %v", err)
		}
	}()
}
