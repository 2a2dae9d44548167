// Package football fetches scores, fixtures, leagues and standings from
// api-sports, serving repeated requests from the shared cache and keeping
// upstream traffic inside the per-category request budget.
package football

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/adeilh/go-livescore/apicache"
	"github.com/adeilh/go-livescore/cache"
	"github.com/adeilh/go-livescore/httpx"
)

var (
	ErrRateLimited = errors.New("football: request budget exhausted")
	ErrNotFound    = errors.New("football: not found")
	ErrUpstream    = errors.New("football: upstream request failed")
	ErrInvalidDate = errors.New("football: date must be YYYY-MM-DD")
	ErrInvalidID   = errors.New("football: id must be positive")
)

// RateLimitError reports which category ran out and when its window resets.
// It matches ErrRateLimited with errors.Is.
type RateLimitError struct {
	Category   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("football: request budget exhausted for %q, retry in %s", e.Category, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// Endpoint categories, each with its own request ceiling.
const (
	CategoryLive     = "live"
	CategoryFixtures = "fixtures"
	CategoryLeagues  = "leagues"
)

// Cache lifetimes per resource.
const (
	LiveTTL      = time.Minute
	FixturesTTL  = 5 * time.Minute
	MatchTTL     = time.Minute
	LeaguesTTL   = 24 * time.Hour
	StandingsTTL = 6 * time.Hour
)

// matchDetailCalls is the number of upstream requests behind MatchDetails.
const matchDetailCalls = 4

const LiveMatchesKey = "liveMatches"

const TopLeaguesKey = "topLeagues"

func FixturesKey(date string) string { return "fixtures_" + date }

func LeagueMatchesKey(leagueID int, date string) string {
	return fmt.Sprintf("league_matches_%d_%s", leagueID, date)
}

func MatchKey(fixtureID int) string { return "match_" + strconv.Itoa(fixtureID) }

func StandingsKey(leagueID, season int) string {
	return fmt.Sprintf("standings_%d_%d", leagueID, season)
}

// Client is safe for concurrent use.
type Client struct {
	opts   Options
	http   *httpx.Client
	cache  *apicache.Manager
	shared cache.Store
	log    zerolog.Logger
	group  singleflight.Group
}

func New(manager *apicache.Manager, opts ...Option) *Client {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if manager == nil {
		manager = apicache.New(apicache.WithLogger(cfg.Logger))
	}
	hc := cfg.HTTP
	if hc == nil {
		headers := map[string]string{"Accept": "application/json"}
		if cfg.APIKey != "" {
			headers[APIKeyHeader] = cfg.APIKey
		}
		hc = httpx.NewClient(
			httpx.WithBaseURL(cfg.BaseURL),
			httpx.WithClientTimeout(cfg.Timeout),
			httpx.WithHeaders(headers),
		)
	}
	return &Client{
		opts:   cfg,
		http:   hc,
		cache:  manager,
		shared: cfg.Shared,
		log:    cfg.Logger.With().Str("component", "football").Logger(),
	}
}

// Today is the current upstream date according to the client's clock.
func (c *Client) Today() string { return Today(c.opts.Now()) }

func (c *Client) Season() int { return c.opts.Season }

func (c *Client) LiveMatches(ctx context.Context) ([]Match, error) {
	return fetch(ctx, c, LiveMatchesKey, LiveTTL, func(ctx context.Context) ([]Match, error) {
		return get[[]Match](ctx, c, CategoryLive, "/fixtures", map[string]string{"live": "all"})
	})
}

// FixturesByDate returns every fixture on date; an empty date means today.
func (c *Client) FixturesByDate(ctx context.Context, date string) ([]Match, error) {
	date, err := c.date(date)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, c, FixturesKey(date), FixturesTTL, func(ctx context.Context) ([]Match, error) {
		return get[[]Match](ctx, c, CategoryFixtures, "/fixtures", map[string]string{"date": date})
	})
}

// LeagueMatches narrows FixturesByDate to one league and caches the result
// under its own key.
func (c *Client) LeagueMatches(ctx context.Context, leagueID int, date string) ([]Match, error) {
	if leagueID <= 0 {
		return nil, ErrInvalidID
	}
	date, err := c.date(date)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, c, LeagueMatchesKey(leagueID, date), FixturesTTL, func(ctx context.Context) ([]Match, error) {
		all, err := c.FixturesByDate(ctx, date)
		if err != nil {
			return nil, err
		}
		return FilterByLeague(all, leagueID), nil
	})
}

// MatchDetails assembles a fixture with its events, lineups and statistics.
// All four upstream calls are reserved from the fixtures budget in one step,
// so the call is refused without spending anything when they do not fit.
// Reserved calls that are never sent are released again.
func (c *Client) MatchDetails(ctx context.Context, fixtureID int) (MatchDetails, error) {
	if fixtureID <= 0 {
		return MatchDetails{}, ErrInvalidID
	}
	return fetch(ctx, c, MatchKey(fixtureID), MatchTTL, func(ctx context.Context) (MatchDetails, error) {
		at := c.cache.Now()
		if !c.cache.TryAcquireN(CategoryFixtures, matchDetailCalls) {
			return MatchDetails{}, c.rateLimited(CategoryFixtures)
		}
		paid := newReservation(matchDetailCalls)
		defer func() {
			if n := paid.unused(); n > 0 {
				c.cache.Release(CategoryFixtures, n, at)
			}
		}()

		id := strconv.Itoa(fixtureID)
		fixtures, err := request[[]Match](ctx, c, CategoryFixtures, "/fixtures", map[string]string{"id": id}, paid)
		if err != nil {
			return MatchDetails{}, err
		}
		if len(fixtures) == 0 {
			return MatchDetails{}, fmt.Errorf("%w: fixture %d", ErrNotFound, fixtureID)
		}

		details := MatchDetails{Match: fixtures[0]}
		query := map[string]string{"fixture": id}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			details.Events, err = request[[]MatchEvent](gctx, c, CategoryFixtures, "/fixtures/events", query, paid)
			return err
		})
		g.Go(func() (err error) {
			details.Lineups, err = request[[]Lineup](gctx, c, CategoryFixtures, "/fixtures/lineups", query, paid)
			return err
		})
		g.Go(func() (err error) {
			details.Statistics, err = request[[]MatchStatistic](gctx, c, CategoryFixtures, "/fixtures/statistics", query, paid)
			return err
		})
		if err := g.Wait(); err != nil {
			return MatchDetails{}, err
		}
		return details, nil
	})
}

// TopLeagues returns the configured headline competitions in upstream order.
func (c *Client) TopLeagues(ctx context.Context) ([]TopLeague, error) {
	return fetch(ctx, c, TopLeaguesKey, LeaguesTTL, func(ctx context.Context) ([]TopLeague, error) {
		entries, err := get[[]leagueEntry](ctx, c, CategoryLeagues, "/leagues", map[string]string{"current": "true"})
		if err != nil {
			return nil, err
		}
		out := make([]TopLeague, 0, len(c.opts.TopLeagueIDs))
		for _, e := range entries {
			if !slices.Contains(c.opts.TopLeagueIDs, e.League.ID) {
				continue
			}
			out = append(out, TopLeague{
				ID:      e.League.ID,
				Name:    e.League.Name,
				Logo:    e.League.Logo,
				Country: e.Country.Name,
				Flag:    e.Country.Flag,
			})
		}
		return out, nil
	})
}

// League looks id up among the top leagues.
func (c *Client) League(ctx context.Context, id int) (TopLeague, error) {
	leagues, err := c.TopLeagues(ctx)
	if err != nil {
		return TopLeague{}, err
	}
	for _, l := range leagues {
		if l.ID == id {
			return l, nil
		}
	}
	return TopLeague{}, fmt.Errorf("%w: league %d", ErrNotFound, id)
}

// Standings returns the league table for season; zero selects the default
// season. A league without a table yields an empty slice.
func (c *Client) Standings(ctx context.Context, leagueID, season int) ([]LeagueStandings, error) {
	if leagueID <= 0 {
		return nil, ErrInvalidID
	}
	if season <= 0 {
		season = c.opts.Season
	}
	return fetch(ctx, c, StandingsKey(leagueID, season), StandingsTTL, func(ctx context.Context) ([]LeagueStandings, error) {
		entries, err := get[[]standingsEntry](ctx, c, CategoryLeagues, "/standings", map[string]string{
			"league": strconv.Itoa(leagueID),
			"season": strconv.Itoa(season),
		})
		if err != nil {
			return nil, err
		}
		out := make([]LeagueStandings, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.League)
		}
		return out, nil
	})
}

// Forget drops key from both cache tiers.
func (c *Client) Forget(ctx context.Context, key string) error {
	c.cache.Delete(key)
	if c.shared == nil {
		return nil
	}
	if err := c.shared.Delete(ctx, key); err != nil && !errors.Is(err, cache.ErrNotFound) {
		return fmt.Errorf("football: forget %q: %w", key, err)
	}
	return nil
}

// Clear empties the local cache and, when the shared tier supports it, every
// key the shared tier holds for this service. Without that a later miss
// would refill the local cache straight from the shared tier.
func (c *Client) Clear(ctx context.Context) error {
	c.cache.Clear()
	cl, ok := c.shared.(cache.Clearer)
	if !ok {
		return nil
	}
	n, err := cl.Clear(ctx)
	if err != nil {
		return fmt.Errorf("football: clear shared cache: %w", err)
	}
	c.log.Info().Int("keys", n).Msg("shared cache cleared")
	return nil
}

func (c *Client) date(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return c.Today(), nil
	}
	if !ValidDate(date) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return date, nil
}

func (c *Client) rateLimited(category string) error {
	return &RateLimitError{Category: category, RetryAfter: c.cache.RetryAfter()}
}

// fetch serves key from the local cache when younger than ttl, then from the
// shared tier, and finally from load. Concurrent misses on one key share a
// single load, which runs detached from the caller's cancellation and is
// bounded by the HTTP timeout. Entries copied from the shared tier keep
// their original write time, so ttl bounds their age across both tiers.
func fetch[T any](ctx context.Context, c *Client, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := c.fresh(key, ttl); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		if v, ok := c.fresh(key, ttl); ok {
			if t, ok := v.(T); ok {
				return t, nil
			}
		}
		lctx := context.WithoutCancel(ctx)
		if e, ok := loadShared[T](lctx, c, key); ok && c.cache.SetAt(key, e.Data, e.StoredAt, ttl) {
			return e.Data, nil
		}
		t, err := load(lctx)
		if err != nil {
			return zero, err
		}
		at := c.cache.Now()
		c.cache.SetAt(key, t, at, ttl)
		storeShared(lctx, c, key, sharedEntry[T]{StoredAt: at, Data: t}, ttl)
		return t, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared {
			c.log.Debug().Str("key", key).Msg("coalesced fetch")
		}
		return res.Val.(T), nil
	}
}

func (c *Client) fresh(key string, ttl time.Duration) (any, bool) {
	return c.cache.Fresh(key, ttl)
}

// sharedEntry is the shared-tier encoding of a cached value.
type sharedEntry[T any] struct {
	StoredAt time.Time `json:"stored_at"`
	Data     T         `json:"data"`
}

func loadShared[T any](ctx context.Context, c *Client, key string) (sharedEntry[T], bool) {
	var e sharedEntry[T]
	if c.shared == nil {
		return e, false
	}
	raw, err := c.shared.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			c.log.Warn().Err(err).Str("key", key).Msg("shared cache read failed")
		}
		return e, false
	}
	if err := json.Unmarshal(raw, &e); err != nil || e.StoredAt.IsZero() {
		c.log.Warn().Err(err).Str("key", key).Msg("shared cache entry undecodable")
		return e, false
	}
	return e, true
}

func storeShared[T any](ctx context.Context, c *Client, key string, e sharedEntry[T], ttl time.Duration) {
	if c.shared == nil {
		return
	}
	raw, err := json.Marshal(e)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("shared cache encode failed")
		return
	}
	if err := c.shared.Set(ctx, key, raw, ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("shared cache write failed")
	}
}

// reservation holds upstream calls already charged to the budget.
type reservation struct {
	left atomic.Int32
}

func newReservation(n int) *reservation {
	r := &reservation{}
	r.left.Store(int32(n))
	return r
}

func (r *reservation) take() bool {
	return r != nil && r.left.Add(-1) >= 0
}

func (r *reservation) unused() int {
	return max(int(r.left.Load()), 0)
}

// get performs one upstream request charged to category and unwraps the
// response envelope.
func get[T any](ctx context.Context, c *Client, category, path string, query map[string]string) (T, error) {
	return request[T](ctx, c, category, path, query, nil)
}

// request is get with retries. Each attempt costs one request from category,
// taken from paid when it still holds one. A denied retry returns the last
// upstream error.
func request[T any](ctx context.Context, c *Client, category, path string, query map[string]string, paid *reservation) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= c.opts.RetryCount; attempt++ {
		if attempt > 0 {
			c.log.Warn().Err(lastErr).Str("path", path).Int("attempt", attempt).Msg("retrying upstream request")
			if err := sleep(ctx, c.opts.RetryWait); err != nil {
				return zero, lastErr
			}
		}
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}
		if !paid.take() && !c.cache.TryAcquire(category) {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, c.rateLimited(category)
		}

		v, err := send[T](ctx, c, category, path, query)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return zero, lastErr
}

func send[T any](ctx context.Context, c *Client, category, path string, query map[string]string) (T, error) {
	var zero T
	started := time.Now()
	var env APIResponse[T]
	_, err := c.http.Get(ctx, path, &env, httpx.WithQuery(query))
	if err != nil {
		c.log.Error().Err(err).Str("path", path).Str("category", category).Msg("upstream request failed")
		return zero, fmt.Errorf("%w: GET %s: %w", ErrUpstream, path, err)
	}
	if msgs := env.ErrorMessages(); len(msgs) > 0 {
		c.log.Error().Strs("errors", msgs).Str("path", path).Msg("upstream reported errors")
		return zero, &envelopeError{path: path, msgs: msgs}
	}
	c.log.Debug().
		Str("path", path).
		Str("category", category).
		Int("results", env.Results).
		Dur("latency", time.Since(started)).
		Msg("upstream request")
	return env.Response, nil
}

// envelopeError carries errors reported inside a 200 response.
type envelopeError struct {
	path string
	msgs []string
}

func (e *envelopeError) Error() string {
	return fmt.Sprintf("%s: GET %s: %s", ErrUpstream, e.path, strings.Join(e.msgs, "; "))
}

func (e *envelopeError) Is(target error) bool { return target == ErrUpstream }

// retryable reports transport failures and 5xx answers.
func retryable(err error) bool {
	var env *envelopeError
	if errors.As(err, &env) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *httpx.StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
