package apicache

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/adeilh/go-livescore/cache/memory"
	"github.com/adeilh/go-livescore/ratelimit"
)

const (
	DefaultCacheSweepInterval   = 5 * time.Minute
	DefaultCleanupHorizon       = 24 * time.Hour
	DefaultCounterSweepInterval = time.Minute
)

// Options holds everything fixed at construction time.
type Options struct {
	MaxEntries           int
	Limits               ratelimit.Limits
	CacheSweepInterval   time.Duration
	CleanupHorizon       time.Duration
	CounterSweepInterval time.Duration
	Now                  func() time.Time
	Logger               zerolog.Logger
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		MaxEntries:           memory.DefaultMaxEntries,
		Limits:               ratelimit.DefaultLimits(),
		CacheSweepInterval:   DefaultCacheSweepInterval,
		CleanupHorizon:       DefaultCleanupHorizon,
		CounterSweepInterval: DefaultCounterSweepInterval,
		Now:                  time.Now,
		Logger:               zerolog.Nop(),
	}
}

func WithMaxEntries(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxEntries = n
		}
	}
}

func WithLimits(limits ratelimit.Limits) Option {
	return func(o *Options) {
		if len(limits) > 0 {
			o.Limits = limits.Clone()
		}
	}
}

func WithCacheSweepInterval(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.CacheSweepInterval = d
		}
	}
}

// WithCleanupHorizon sets the absolute age past which the cache sweep drops
// an entry regardless of its TTL.
func WithCleanupHorizon(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.CleanupHorizon = d
		}
	}
}

func WithCounterSweepInterval(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.CounterSweepInterval = d
		}
	}
}

// WithClock overrides the wall clock for both the store and the limiter.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Now = now
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}
