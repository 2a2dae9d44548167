package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adeilh/go-livescore/apicache"
	"github.com/adeilh/go-livescore/auth"
	"github.com/adeilh/go-livescore/favorites"
	"github.com/adeilh/go-livescore/football"
	"github.com/adeilh/go-livescore/httpx"
	"github.com/adeilh/go-livescore/ratelimit"
)

const adminKey = "s3cret-admin"

var testNow = time.Date(2025, 3, 1, 12, 0, 30, 0, time.UTC)

var leagueNames = map[int]string{39: "Premier League", 140: "La Liga"}

func match(id, leagueID int, short, home, away string) map[string]any {
	return map[string]any{
		"fixture": map[string]any{"id": id, "status": map[string]any{"short": short}},
		"league":  map[string]any{"id": leagueID, "name": leagueNames[leagueID], "country": "England"},
		"teams": map[string]any{
			"home": map[string]any{"id": id * 10, "name": home},
			"away": map[string]any{"id": id*10 + 1, "name": away},
		},
	}
}

// upstream answers api-sports paths with canned bodies.
func upstream(t *testing.T, hits *sync.Map) *httpx.TestServer {
	t.Helper()
	routes := map[string]any{
		"/fixtures": []any{
			match(1, 39, "1H", "Arsenal", "Chelsea"),
			match(2, 39, "FT", "Liverpool", "Everton"),
			match(3, 140, "NS", "Barcelona", "Sevilla"),
		},
		"/fixtures/events":     []any{},
		"/fixtures/lineups":    []any{},
		"/fixtures/statistics": []any{},
		"/leagues": []any{
			map[string]any{"league": map[string]any{"id": 39, "name": "Premier League"}, "country": map[string]any{"name": "England"}},
		},
		"/standings": []any{
			map[string]any{"league": map[string]any{"id": 39, "season": 2024, "standings": [][]any{{map[string]any{"rank": 1}}}}},
		},
	}
	ts := httpx.NewTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := hits.LoadOrStore(r.URL.Path+"?"+r.URL.RawQuery, new(atomic.Int64))
		n.(*atomic.Int64).Add(1)
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path == "/fixtures" && r.URL.Query().Get("id") == "404" {
			body = []any{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"errors": []any{}, "response": body})
	}))
	t.Cleanup(ts.Close)
	return ts
}

// memFavorites is an in-memory favorites.Repository.
type memFavorites struct {
	mu    sync.Mutex
	items []favorites.Favorite
}

func (m *memFavorites) Add(_ context.Context, fav favorites.Favorite) error {
	if err := fav.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.items {
		if f.ClientID == fav.ClientID && f.Kind == fav.Kind && f.ID == fav.ID {
			return nil
		}
	}
	fav.CreatedAt = testNow
	m.items = append(m.items, fav)
	return nil
}

func (m *memFavorites) Remove(_ context.Context, client string, kind favorites.Kind, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, f := range m.items {
		if f.ClientID == client && f.Kind == kind && f.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return favorites.ErrNotFound
}

func (m *memFavorites) List(_ context.Context, client string, kinds ...favorites.Kind) ([]favorites.Favorite, error) {
	if err := favorites.ValidateClientID(client); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []favorites.Favorite{}
	for _, f := range m.items {
		if f.ClientID != client {
			continue
		}
		if len(kinds) > 0 && f.Kind != kinds[0] {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

type harness struct {
	client  *httpx.Client
	manager *apicache.Manager
	hits    *sync.Map
}

func newHarness(t *testing.T, limits ratelimit.Limits, opts ...Option) *harness {
	t.Helper()
	hits := &sync.Map{}
	up := upstream(t, hits)

	now := func() time.Time { return testNow }
	mopts := []apicache.Option{apicache.WithClock(now)}
	if limits != nil {
		mopts = append(mopts, apicache.WithLimits(limits))
	}
	manager := apicache.New(mopts...)
	fc := football.New(manager, football.WithBaseURL(up.BaseURL()), football.WithClock(now))

	h := New(fc, manager, append([]Option{WithClock(now)}, opts...)...)
	server := httpx.NewServer(httpx.WithoutRequestLog())
	server.RegisterRoutes(h.Register)
	ts := httpx.NewServerTestServer(server)
	t.Cleanup(ts.Close)

	return &harness{client: httpx.NewClient(httpx.WithBaseURL(ts.BaseURL())), manager: manager, hits: hits}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se *httpx.StatusError
	require.True(t, errors.As(err, &se), "expected *httpx.StatusError, got %v", err)
	return se.Code
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, nil)
	var body map[string]any
	_, err := h.client.Get(context.Background(), "/healthz", &body)
	require.NoError(t, err)
	assert.Equal(t, "ok", body["status"])
}

func TestLiveMatches(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	var all MatchList
	_, err := h.client.Get(ctx, "/api/live", &all)
	require.NoError(t, err)
	assert.Equal(t, 3, all.Count)
	assert.True(t, testNow.Equal(all.UpdatedAt), "updated_at is the cache write time")

	var found MatchList
	_, err = h.client.Get(ctx, "/api/live", &found, httpx.WithQuery(map[string]string{"q": "barcel"}))
	require.NoError(t, err)
	require.Equal(t, 1, found.Count)
	assert.Equal(t, "Barcelona", found.Matches[0].Teams.Home.Name)

	n, ok := h.hits.Load("/fixtures?live=all")
	require.True(t, ok)
	assert.EqualValues(t, 1, n.(*atomic.Int64).Load(), "second request served from cache")
}

func TestFixturesStatusFilterAndGrouping(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	var finished MatchList
	_, err := h.client.Get(ctx, "/api/fixtures", &finished, httpx.WithQuery(map[string]string{"status": "finished"}))
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", finished.Date)
	require.Equal(t, 1, finished.Count)
	assert.Equal(t, 2, finished.Matches[0].Fixture.ID)

	var grouped MatchList
	_, err = h.client.Get(ctx, "/api/fixtures", &grouped, httpx.WithQuery(map[string]string{"group": "league"}))
	require.NoError(t, err)
	assert.Empty(t, grouped.Matches)
	require.Len(t, grouped.Leagues, 2)
	assert.Equal(t, "Premier League", grouped.Leagues[0].League.Name)
	assert.Len(t, grouped.Leagues[0].Matches, 2)

	_, err = h.client.Get(ctx, "/api/fixtures", nil, httpx.WithQuery(map[string]string{"status": "postponed"}))
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = h.client.Get(ctx, "/api/fixtures", nil, httpx.WithQuery(map[string]string{"date": "March 1st"}))
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestMatchDetailsRoutes(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	var details football.MatchDetails
	_, err := h.client.Get(ctx, "/api/matches/1", &details)
	require.NoError(t, err)
	assert.Equal(t, 1, details.Fixture.ID)

	_, err = h.client.Get(ctx, "/api/matches/404", nil)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = h.client.Get(ctx, "/api/matches/abc", nil)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestRateLimitedResponse(t *testing.T) {
	h := newHarness(t, ratelimit.Limits{"leagues": 1})
	ctx := context.Background()

	_, err := h.client.Get(ctx, "/api/leagues/top", nil)
	require.NoError(t, err)

	resp, err := h.client.Get(ctx, "/api/leagues/39/standings", nil)
	assert.Equal(t, http.StatusTooManyRequests, statusOf(t, err))
	assert.Equal(t, "30", resp.Header().Get("Retry-After"))
}

func TestLeagueRoutes(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	var top []football.TopLeague
	_, err := h.client.Get(ctx, "/api/leagues/top", &top)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "England", top[0].Country)

	var league football.TopLeague
	_, err = h.client.Get(ctx, "/api/leagues/39", &league)
	require.NoError(t, err)
	assert.Equal(t, "Premier League", league.Name)

	_, err = h.client.Get(ctx, "/api/leagues/253", nil)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	var list MatchList
	_, err = h.client.Get(ctx, "/api/leagues/140/matches", &list)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)

	var tables []football.LeagueStandings
	_, err = h.client.Get(ctx, "/api/leagues/39/standings", &tables)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	_, ok := h.hits.Load("/standings?league=39&season=2024")
	assert.True(t, ok, "default season applied")

	_, err = h.client.Get(ctx, "/api/leagues/39/standings", nil, httpx.WithQuery(map[string]string{"season": "-1"}))
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestFavoritesRoutes(t *testing.T) {
	repo := &memFavorites{}
	h := newHarness(t, nil, WithFavorites(repo))
	ctx := context.Background()

	for _, path := range []string{"/api/favorites/c1/team/33", "/api/favorites/c1/teams/33", "/api/favorites/c1/league/39"} {
		resp, err := h.client.Put(ctx, path, nil, nil)
		require.NoError(t, err, path)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	}

	var list FavoriteList
	_, err := h.client.Get(ctx, "/api/favorites/c1", &list)
	require.NoError(t, err)
	assert.Equal(t, []int{33}, list.Teams)
	assert.Equal(t, []int{39}, list.Leagues)
	assert.Len(t, list.Items, 2)

	var leagues FavoriteList
	_, err = h.client.Get(ctx, "/api/favorites/c1", &leagues, httpx.WithQuery(map[string]string{"kind": "league"}))
	require.NoError(t, err)
	assert.Empty(t, leagues.Teams)
	assert.Equal(t, []int{39}, leagues.Leagues)

	_, err = h.client.Put(ctx, "/api/favorites/c1/player/10", nil, nil)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = h.client.Delete(ctx, "/api/favorites/c1/team/33", nil)
	require.NoError(t, err)
	_, err = h.client.Delete(ctx, "/api/favorites/c1/team/33", nil)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestFavoritesDisabledWithoutRepository(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.client.Get(context.Background(), "/api/favorites/c1", nil)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestAdminRoutes(t *testing.T) {
	hash, err := auth.HashKey(adminKey, 4)
	require.NoError(t, err)
	verifier, err := auth.NewAdminKeyVerifier(hash)
	require.NoError(t, err)
	mw, err := auth.NewMiddleware(verifier)
	require.NoError(t, err)

	h := newHarness(t, nil, WithAdmin(mw))
	ctx := context.Background()
	key := httpx.WithRequestHeaders(map[string]string{auth.AdminKeyHeader: adminKey})

	_, err = h.client.Get(ctx, "/api/live", nil)
	require.NoError(t, err)
	_, err = h.client.Get(ctx, "/api/leagues/top", nil)
	require.NoError(t, err)

	_, err = h.client.Get(ctx, "/admin/cache", nil)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	_, err = h.client.Get(ctx, "/admin/cache", nil, httpx.WithBearer("wrong"))
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	var report CacheReport
	_, err = h.client.Get(ctx, "/admin/cache", &report, key)
	require.NoError(t, err)
	keys := append([]string(nil), report.Keys...)
	sort.Strings(keys)
	assert.Equal(t, []string{football.LiveMatchesKey, football.TopLeaguesKey}, keys)
	assert.Equal(t, 14, report.Remaining["live"])
	assert.Equal(t, 4, report.Remaining["leagues"])
	assert.Equal(t, 20, report.Limits["fixtures"])

	resp, err := h.client.Delete(ctx, "/admin/cache", nil, key,
		httpx.WithQuery(map[string]string{"key": football.LiveMatchesKey}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	assert.Equal(t, []string{football.TopLeaguesKey}, h.manager.Keys())

	var swept CacheReport
	_, err = h.client.Post(ctx, "/admin/cache/sweep", nil, &swept, httpx.WithBearer(adminKey))
	require.NoError(t, err)
	assert.Equal(t, 1, swept.Cache.Entries)

	_, err = h.client.Delete(ctx, "/admin/cache", nil, key)
	require.NoError(t, err)
	assert.Zero(t, h.manager.Len())
}

func TestAdminDisabledWithoutMiddleware(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.client.Get(context.Background(), "/admin/cache", nil)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}
