package football

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/adeilh/go-livescore/cache"
	"github.com/adeilh/go-livescore/httpx"
)

const (
	DefaultBaseURL = "https://v3.football.api-sports.io"
	APIKeyHeader   = "x-apisports-key"

	// DefaultSeason is used for standings when the caller names none.
	DefaultSeason = 2024
)

// DefaultTopLeagueIDs are Premier League, La Liga, Bundesliga, Serie A,
// Ligue 1, Champions League, Europa League and Conference League.
var DefaultTopLeagueIDs = []int{39, 140, 78, 135, 61, 2, 3, 848}

type Options struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	HTTP         *httpx.Client
	Shared       cache.Store
	Logger       zerolog.Logger
	Now          func() time.Time
	TopLeagueIDs []int
	Season       int
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		BaseURL:      DefaultBaseURL,
		Timeout:      10 * time.Second,
		RetryWait:    200 * time.Millisecond,
		Logger:       zerolog.Nop(),
		Now:          time.Now,
		TopLeagueIDs: append([]int(nil), DefaultTopLeagueIDs...),
		Season:       DefaultSeason,
	}
}

func WithBaseURL(url string) Option {
	return func(o *Options) {
		if url != "" {
			o.BaseURL = url
		}
	}
}

func WithAPIKey(key string) Option {
	return func(o *Options) {
		o.APIKey = key
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

// WithRetry retries transport failures and upstream 5xx answers up to count
// times, waiting wait between attempts. Every attempt is charged to the
// category budget and retrying stops at the first denied attempt.
func WithRetry(count int, wait time.Duration) Option {
	return func(o *Options) {
		if count > 0 {
			o.RetryCount = count
		}
		if wait > 0 {
			o.RetryWait = wait
		}
	}
}

// WithHTTPClient replaces the client built from BaseURL, APIKey and Timeout.
// The client should not retry on its own; see WithRetry.
func WithHTTPClient(c *httpx.Client) Option {
	return func(o *Options) {
		o.HTTP = c
	}
}

// WithSharedCache adds a second cache tier consulted on local misses.
func WithSharedCache(s cache.Store) Option {
	return func(o *Options) {
		o.Shared = s
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Now = now
		}
	}
}

func WithTopLeagues(ids ...int) Option {
	return func(o *Options) {
		if len(ids) > 0 {
			o.TopLeagueIDs = append([]int(nil), ids...)
		}
	}
}

func WithSeason(season int) Option {
	return func(o *Options) {
		if season > 0 {
			o.Season = season
		}
	}
}
