package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/adeilh/go-livescore/apicache"
	"github.com/adeilh/go-livescore/auth"
	"github.com/adeilh/go-livescore/httpx"
)

type CacheReport struct {
	apicache.Stats
	Keys      []string       `json:"keys"`
	Remaining map[string]int `json:"remaining"`
}

func (h *Handler) report() CacheReport {
	stats := h.cache.Stats()
	remaining := make(map[string]int, len(stats.Limits))
	for category := range stats.Limits {
		remaining[category] = h.cache.Remaining(category)
	}
	return CacheReport{Stats: stats, Keys: h.cache.Keys(), Remaining: remaining}
}

func (h *Handler) cacheStats(c httpx.Context) error {
	return c.JSON(http.StatusOK, h.report())
}

// cacheDelete drops one key from both tiers, or everything in both tiers
// when no key is given.
func (h *Handler) cacheDelete(c httpx.Context) error {
	key := c.QueryParam("key")
	if key == "" {
		if err := h.football.Clear(c.Request().Context()); err != nil {
			return h.fail(c, err)
		}
		h.audit(c).Msg("cache cleared")
		return c.NoContent(http.StatusNoContent)
	}
	if err := h.football.Forget(c.Request().Context(), key); err != nil {
		return h.fail(c, err)
	}
	h.audit(c).Str("key", key).Msg("cache key removed")
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) cacheSweep(c httpx.Context) error {
	h.cache.SweepCache()
	h.cache.SweepCounters()
	h.audit(c).Msg("cache swept")
	return c.JSON(http.StatusOK, h.report())
}

func (h *Handler) audit(c httpx.Context) *zerolog.Event {
	ev := h.log.Info().Str("remote_ip", c.RealIP())
	if p, ok := auth.PrincipalFromContext(c.Request().Context()); ok {
		ev = ev.Str("subject", p.Subject)
	}
	return ev
}
