// Package ratelimit caps outbound requests per endpoint category with a
// fixed-window counter.
//
// Buckets are floor(now / window), so a burst straddling a boundary can let
// up to twice the limit through within one window's span. That matches the
// behavior callers were tuned against and is intentionally not a sliding
// window.
package ratelimit

import (
	"sync"
	"time"
)

type windowKey struct {
	category string
	bucket   int64
}

// Limiter is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	opts     Options
	counters map[windowKey]int
}

// New builds a limiter with DefaultLimits unless overridden.
func New(opts ...Option) *Limiter {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Limiter{opts: cfg, counters: make(map[windowKey]int)}
}

// CanMakeRequest reports whether category is below its ceiling in the current
// bucket. It does not record anything.
func (l *Limiter) CanMakeRequest(category string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.counters[l.keyLocked(category)] < l.opts.Limits.Of(category)
}

// TrackRequest records one attempted request for category.
func (l *Limiter) TrackRequest(category string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counters[l.keyLocked(category)]++
}

// TryAcquire checks and records in one step. Prefer it over the
// CanMakeRequest/TrackRequest pair, which races when callers interleave.
func (l *Limiter) TryAcquire(category string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := l.keyLocked(category)
	if l.counters[key] >= l.opts.Limits.Of(category) {
		return false
	}
	l.counters[key]++
	return true
}

// TryAcquireN records n requests for category only if all n fit in the
// current bucket. Nothing is recorded on refusal.
func (l *Limiter) TryAcquireN(category string, n int) bool {
	if n <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := l.keyLocked(category)
	if l.counters[key]+n > l.opts.Limits.Of(category) {
		return false
	}
	l.counters[key] += n
	return true
}

// Release returns n unused requests to the bucket that was current at
// acquiredAt. The counter never drops below zero.
func (l *Limiter) Release(category string, n int, acquiredAt time.Time) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := windowKey{category: category, bucket: l.bucket(acquiredAt)}
	left, ok := l.counters[key]
	if !ok {
		return
	}
	if left <= n {
		delete(l.counters, key)
		return
	}
	l.counters[key] = left - n
}

// Limit returns the configured ceiling for category.
func (l *Limiter) Limit(category string) int {
	return l.opts.Limits.Of(category)
}

// Limits returns a copy of the configured limit table.
func (l *Limiter) Limits() Limits {
	return l.opts.Limits.Clone()
}

// Remaining returns how many requests category may still make in this bucket.
func (l *Limiter) Remaining(category string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.opts.Limits.Of(category) - l.counters[l.keyLocked(category)]
	if n < 0 {
		return 0
	}
	return n
}

// ResetAt returns when the current bucket ends.
func (l *Limiter) ResetAt() time.Time {
	b := l.bucket(l.opts.Now())
	return time.UnixMilli((b + 1) * l.opts.Window.Milliseconds())
}

// Sweep drops counters whose bucket is before the current one.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.bucket(l.opts.Now())
	removed := 0
	for k := range l.counters {
		if k.bucket < current {
			delete(l.counters, k)
			removed++
		}
	}
	return removed
}

// Len reports how many (category, bucket) counters are held.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.counters)
}

func (l *Limiter) keyLocked(category string) windowKey {
	return windowKey{category: category, bucket: l.bucket(l.opts.Now())}
}

func (l *Limiter) bucket(t time.Time) int64 {
	ms := t.UnixMilli()
	w := l.opts.Window.Milliseconds()
	b := ms / w
	if ms < 0 && ms%w != 0 {
		b--
	}
	return b
}
