// Package api exposes the football client, favorites and cache
// administration over HTTP.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/adeilh/go-livescore/apicache"
	"github.com/adeilh/go-livescore/auth"
	"github.com/adeilh/go-livescore/favorites"
	"github.com/adeilh/go-livescore/football"
	"github.com/adeilh/go-livescore/httpx"
)

type Handler struct {
	football  *football.Client
	cache     *apicache.Manager
	favorites favorites.Repository
	admin     *auth.Middleware
	log       zerolog.Logger
	now       func() time.Time
}

type Option func(*Handler)

// WithFavorites enables the favorites routes.
func WithFavorites(repo favorites.Repository) Option {
	return func(h *Handler) { h.favorites = repo }
}

// WithAdmin enables the /admin routes behind mw.
func WithAdmin(mw *auth.Middleware) Option {
	return func(h *Handler) { h.admin = mw }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) { h.log = logger }
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func New(client *football.Client, manager *apicache.Manager, opts ...Option) *Handler {
	h := &Handler{
		football: client,
		cache:    manager,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.log = h.log.With().Str("component", "api").Logger()
	return h
}

// Register installs the routes; it satisfies httpx.RouteRegistrar.
func (h *Handler) Register(a *httpx.App) {
	a.GET("/healthz", h.health)

	r := httpx.NewRouter(a, "/api")
	r.GET("/live", h.live).
		GET("/fixtures", h.fixtures).
		GET("/matches/:id", h.match).
		GET("/leagues/top", h.topLeagues).
		GET("/leagues/:id", h.league).
		GET("/leagues/:id/matches", h.leagueMatches).
		GET("/leagues/:id/standings", h.standings)

	if h.favorites != nil {
		r.GET("/favorites/:client", h.listFavorites).
			PUT("/favorites/:client/:kind/:id", h.addFavorite).
			DELETE("/favorites/:client/:kind/:id", h.removeFavorite)
	}

	if h.admin != nil {
		admin := httpx.NewRouter(a, "/admin", httpx.AuthMiddleware(h.admin))
		admin.GET("/cache", h.cacheStats).
			DELETE("/cache", h.cacheDelete).
			POST("/cache/sweep", h.cacheSweep)
	}
}

// MatchList is the body of the match listing endpoints. Leagues replaces
// Matches when grouping was requested.
type MatchList struct {
	Date      string                 `json:"date,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
	Count     int                    `json:"count"`
	Matches   []football.Match       `json:"matches,omitempty"`
	Leagues   []football.LeagueGroup `json:"leagues,omitempty"`
}

func (h *Handler) health(c httpx.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"entries": h.cache.Len(),
	})
}

func (h *Handler) live(c httpx.Context) error {
	matches, err := h.football.LiveMatches(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return h.matchList(c, "", football.LiveMatchesKey, matches)
}

func (h *Handler) fixtures(c httpx.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		date = h.football.Today()
	}
	matches, err := h.football.FixturesByDate(c.Request().Context(), date)
	if err != nil {
		return h.fail(c, err)
	}
	if s := c.QueryParam("status"); s != "" {
		kind, ok := football.ParseStatusKind(s)
		if !ok {
			return httpx.HTTPError(http.StatusBadRequest, "unknown status "+strconv.Quote(s))
		}
		matches = football.FilterByStatus(matches, kind)
	}
	return h.matchList(c, date, football.FixturesKey(date), matches)
}

func (h *Handler) match(c httpx.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	details, err := h.football.MatchDetails(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, details)
}

func (h *Handler) topLeagues(c httpx.Context) error {
	leagues, err := h.football.TopLeagues(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, leagues)
}

func (h *Handler) league(c httpx.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	league, err := h.football.League(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, league)
}

func (h *Handler) leagueMatches(c httpx.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	date := c.QueryParam("date")
	if date == "" {
		date = h.football.Today()
	}
	matches, err := h.football.LeagueMatches(c.Request().Context(), id, date)
	if err != nil {
		return h.fail(c, err)
	}
	return h.matchList(c, date, football.LeagueMatchesKey(id, date), matches)
}

func (h *Handler) standings(c httpx.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	season := h.football.Season()
	if s := c.QueryParam("season"); s != "" {
		season, err = strconv.Atoi(s)
		if err != nil || season <= 0 {
			return httpx.HTTPError(http.StatusBadRequest, "season must be a positive year")
		}
	}
	tables, err := h.football.Standings(c.Request().Context(), id, season)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, tables)
}

func (h *Handler) matchList(c httpx.Context, date, key string, matches []football.Match) error {
	matches = football.Search(matches, c.QueryParam("q"))
	body := MatchList{
		Date:      date,
		UpdatedAt: h.cache.Timestamp(key),
		Count:     len(matches),
	}
	if body.UpdatedAt.IsZero() {
		body.UpdatedAt = h.now()
	}
	if strings.EqualFold(c.QueryParam("group"), "league") {
		body.Leagues = football.GroupByLeague(matches)
	} else {
		body.Matches = matches
	}
	return c.JSON(http.StatusOK, body)
}

func pathID(c httpx.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, httpx.HTTPError(http.StatusBadRequest, name+" must be a positive integer")
	}
	return id, nil
}
