// Package apicache ties the response cache, the outbound rate limiter and
// their background maintenance into one instance that fetch code shares.
package apicache

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adeilh/go-livescore/cache/memory"
	"github.com/adeilh/go-livescore/ratelimit"
)

// Manager is safe for concurrent use. Construct one per process and inject
// it into consumers; tests build their own.
type Manager struct {
	opts    Options
	log     zerolog.Logger
	store   *memory.Store
	limiter *ratelimit.Limiter

	mu      sync.Mutex
	janitor *janitor
}

// Stats combines store counters with limiter state.
type Stats struct {
	Cache    memory.Stats   `json:"cache"`
	Counters int            `json:"counters"`
	Limits   map[string]int `json:"limits"`
}

func New(opts ...Option) *Manager {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Manager{
		opts: cfg,
		log:  cfg.Logger.With().Str("component", "apicache").Logger(),
		store: memory.New(
			memory.WithMaxEntries(cfg.MaxEntries),
			memory.WithClock(cfg.Now),
		),
		limiter: ratelimit.New(
			ratelimit.WithLimits(cfg.Limits),
			ratelimit.WithClock(cfg.Now),
		),
	}
}

func (m *Manager) Get(key string) (any, bool) { return m.store.Get(key) }

func (m *Manager) Set(key string, value any, ttl time.Duration) { m.store.Set(key, value, ttl) }

// SetAt stores value as if written at insertedAt; see memory.Store.SetAt.
func (m *Manager) SetAt(key string, value any, insertedAt time.Time, ttl time.Duration) bool {
	return m.store.SetAt(key, value, insertedAt, ttl)
}

// Timestamp returns when key was written, or the zero time when absent.
func (m *Manager) Timestamp(key string) time.Time { return m.store.Timestamp(key) }

// Fresh returns the value only if it was written less than maxAge ago.
func (m *Manager) Fresh(key string, maxAge time.Duration) (any, bool) {
	return m.store.Fresh(key, maxAge)
}

func (m *Manager) Delete(key string) { m.store.Delete(key) }

func (m *Manager) Clear() { m.store.Clear() }

func (m *Manager) Len() int { return m.store.Len() }

func (m *Manager) Keys() []string { return m.store.Keys() }

func (m *Manager) CanMakeRequest(category string) bool { return m.limiter.CanMakeRequest(category) }

func (m *Manager) TrackRequest(category string) { m.limiter.TrackRequest(category) }

// TryAcquire atomically checks and records one request for category.
func (m *Manager) TryAcquire(category string) bool {
	if m.limiter.TryAcquire(category) {
		return true
	}
	m.log.Warn().
		Str("category", category).
		Int("limit", m.limiter.Limit(category)).
		Time("reset_at", m.limiter.ResetAt()).
		Msg("outbound rate limit reached")
	return false
}

// TryAcquireN atomically reserves n requests for category, all or nothing.
func (m *Manager) TryAcquireN(category string, n int) bool {
	if m.limiter.TryAcquireN(category, n) {
		return true
	}
	m.log.Warn().
		Str("category", category).
		Int("requested", n).
		Int("remaining", m.limiter.Remaining(category)).
		Time("reset_at", m.limiter.ResetAt()).
		Msg("outbound rate limit reached")
	return false
}

// Release hands back reserved requests that were never sent.
func (m *Manager) Release(category string, n int, acquiredAt time.Time) {
	m.limiter.Release(category, n, acquiredAt)
}

// Now is the manager's clock.
func (m *Manager) Now() time.Time { return m.opts.Now() }

func (m *Manager) Remaining(category string) int { return m.limiter.Remaining(category) }

// RetryAfter is how long until the current rate window closes.
func (m *Manager) RetryAfter() time.Duration {
	d := m.limiter.ResetAt().Sub(m.opts.Now())
	if d < 0 {
		return 0
	}
	return d
}

func (m *Manager) Stats() Stats {
	return Stats{
		Cache:    m.store.Stats(),
		Counters: m.limiter.Len(),
		Limits:   m.limiter.Limits(),
	}
}
