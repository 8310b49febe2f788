package server

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"atmdapp/internal/dapp"
)

type sessionEntry struct {
	session  *dapp.Session
	init     sync.Once
	lastSeen time.Time
}

// sessionRegistry keeps one dapp.Session per browser session. Entries idle
// for longer than maxIdle are dropped when new sessions arrive, and once
// maxSize entries exist the least recently used one makes room.
type sessionRegistry struct {
	env     *dapp.Env
	clock   clock.Clock
	ttl     time.Duration
	maxIdle time.Duration
	maxSize int
	onSize  func(int)

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

func newSessionRegistry(env *dapp.Env, clk clock.Clock, ttl, maxIdle time.Duration, maxSize int, onSize func(int)) *sessionRegistry {
	return &sessionRegistry{
		env:     env,
		clock:   clk,
		ttl:     ttl,
		maxIdle: maxIdle,
		maxSize: maxSize,
		onSize:  onSize,
		entries: make(map[string]*sessionEntry),
	}
}

// get returns the initialized session for id, creating it on first use.
func (r *sessionRegistry) get(ctx context.Context, id string) *dapp.Session {
	r.mu.Lock()
	now := r.clock.Now()
	e, ok := r.entries[id]
	if !ok {
		r.pruneLocked(now)
		e = &sessionEntry{session: dapp.NewSession(r.env, r.clock, r.ttl)}
		r.entries[id] = e
		if r.onSize != nil {
			r.onSize(len(r.entries))
		}
	}
	e.lastSeen = now
	r.mu.Unlock()

	e.init.Do(func() { e.session.Init(ctx) })
	return e.session
}

// pruneLocked drops idle entries and, when the registry is still full,
// evicts the least recently used ones until one more fits.
func (r *sessionRegistry) pruneLocked(now time.Time) {
	if r.maxIdle > 0 {
		for id, e := range r.entries {
			if now.Sub(e.lastSeen) > r.maxIdle {
				delete(r.entries, id)
			}
		}
	}
	if r.maxSize <= 0 {
		return
	}
	for len(r.entries) >= r.maxSize {
		var (
			oldestID string
			oldest   time.Time
		)
		for id, e := range r.entries {
			if oldestID == "" || e.lastSeen.Before(oldest) {
				oldestID, oldest = id, e.lastSeen
			}
		}
		delete(r.entries, oldestID)
	}
}

func (r *sessionRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
