package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/adeilh/go-livescore/favorites"
	"github.com/adeilh/go-livescore/football"
	"github.com/adeilh/go-livescore/httpx"
)

// fail maps domain errors onto HTTP errors for the server's error handler.
func (h *Handler) fail(c httpx.Context, err error) error {
	var rl *football.RateLimitError
	switch {
	case errors.As(err, &rl):
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
		return httpx.HTTPError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, football.ErrRateLimited):
		return httpx.HTTPError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, football.ErrNotFound), errors.Is(err, favorites.ErrNotFound):
		return httpx.HTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, football.ErrInvalidDate),
		errors.Is(err, football.ErrInvalidID),
		errors.Is(err, favorites.ErrInvalidKind),
		errors.Is(err, favorites.ErrInvalidClient),
		errors.Is(err, favorites.ErrInvalidID):
		return httpx.HTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, football.ErrUpstream):
		return httpx.HTTPError(http.StatusBadGateway, "upstream provider unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return httpx.HTTPError(http.StatusServiceUnavailable, "request cancelled")
	}
	if _, ok := httpx.StatusOf(err); ok {
		return err
	}
	h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return httpx.HTTPError(http.StatusInternalServerError, "internal error")
}
