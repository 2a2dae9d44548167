package api

import (
	"net/http"

	"github.com/adeilh/go-livescore/favorites"
	"github.com/adeilh/go-livescore/httpx"
)

// FavoriteList groups a client's favorites by kind.
type FavoriteList struct {
	ClientID string               `json:"client_id"`
	Teams    []int                `json:"teams"`
	Leagues  []int                `json:"leagues"`
	Items    []favorites.Favorite `json:"items"`
}

func (h *Handler) listFavorites(c httpx.Context) error {
	client := c.Param("client")
	var kinds []favorites.Kind
	if k := c.QueryParam("kind"); k != "" {
		kind, err := favorites.ParseKind(k)
		if err != nil {
			return h.fail(c, err)
		}
		kinds = append(kinds, kind)
	}
	items, err := h.favorites.List(c.Request().Context(), client, kinds...)
	if err != nil {
		return h.fail(c, err)
	}
	teams, leagues := favorites.Split(items)
	if teams == nil {
		teams = []int{}
	}
	if leagues == nil {
		leagues = []int{}
	}
	return c.JSON(http.StatusOK, FavoriteList{ClientID: client, Teams: teams, Leagues: leagues, Items: items})
}

func (h *Handler) addFavorite(c httpx.Context) error {
	fav, err := favoriteFromPath(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.favorites.Add(c.Request().Context(), fav); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) removeFavorite(c httpx.Context) error {
	fav, err := favoriteFromPath(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.favorites.Remove(c.Request().Context(), fav.ClientID, fav.Kind, fav.ID); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func favoriteFromPath(c httpx.Context) (favorites.Favorite, error) {
	kind, err := favorites.ParseKind(c.Param("kind"))
	if err != nil {
		return favorites.Favorite{}, err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return favorites.Favorite{}, err
	}
	fav := favorites.Favorite{ClientID: c.Param("client"), Kind: kind, ID: id}
	return fav, fav.Validate()
}
