package ratelimit

import "time"

// DefaultCategory is the fallback ceiling for categories without their own limit.
const DefaultCategory = "default"

// DefaultWindow is the length of one accounting bucket.
const DefaultWindow = time.Minute

// Limits maps an endpoint category to its per-window request ceiling.
type Limits map[string]int

// DefaultLimits mirrors the upstream plan the front-end was tuned for.
func DefaultLimits() Limits {
	return Limits{
		DefaultCategory: 10,
		"fixtures":      20,
		"leagues":       5,
		"live":          15,
	}
}

// Clone returns a copy safe to mutate.
func (l Limits) Clone() Limits {
	out := make(Limits, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Of returns the ceiling for category, falling back to the default entry.
func (l Limits) Of(category string) int {
	if n, ok := l[category]; ok {
		return n
	}
	return l[DefaultCategory]
}

type Options struct {
	Limits Limits
	Window time.Duration
	Now    func() time.Time
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{Limits: DefaultLimits(), Window: DefaultWindow, Now: time.Now}
}

// WithLimits replaces the limit table. A missing default entry is filled in
// from DefaultLimits.
func WithLimits(limits Limits) Option {
	return func(o *Options) {
		if len(limits) == 0 {
			return
		}
		l := limits.Clone()
		if _, ok := l[DefaultCategory]; !ok {
			l[DefaultCategory] = DefaultLimits()[DefaultCategory]
		}
		o.Limits = l
	}
}

// WithWindow changes the bucket length. Windows shorter than a millisecond
// are ignored.
func WithWindow(d time.Duration) Option {
	return func(o *Options) {
		if d >= time.Millisecond {
			o.Window = d
		}
	}
}

// WithClock overrides the wall clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Now = now
		}
	}
}
