package memory

import "time"

// Options controls the capacity and clock of a Store.
type Options struct {
	MaxEntries int
	Now        func() time.Time
}

type Option func(*Options)

const DefaultMaxEntries = 100

func defaultOptions() Options {
	return Options{MaxEntries: DefaultMaxEntries, Now: time.Now}
}

// WithMaxEntries caps the number of entries held at once.
func WithMaxEntries(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxEntries = n
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
