package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adeilh/go-livescore/favorites"
	"github.com/lib/pq"
)

// FavoritesRepository persists favorites.Favorite records inside PostgreSQL.
type FavoritesRepository struct {
	db *sql.DB
}

var _ favorites.Repository = (*FavoritesRepository)(nil)

// NewFavoritesRepository wraps an existing *sql.DB connection.
func NewFavoritesRepository(db *sql.DB) *FavoritesRepository {
	return &FavoritesRepository{db: db}
}

func (r *FavoritesRepository) Add(ctx context.Context, fav favorites.Favorite) error {
	if err := fav.Validate(); err != nil {
		return err
	}
	const query = `INSERT INTO favorites (client_id, kind, item_id)
                   VALUES ($1, $2, $3)
                   ON CONFLICT (client_id, kind, item_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, fav.ClientID, string(fav.Kind), fav.ID)
	return translateFavoriteError(err)
}

func (r *FavoritesRepository) Remove(ctx context.Context, clientID string, kind favorites.Kind, id int) error {
	if err := (favorites.Favorite{ClientID: clientID, Kind: kind, ID: id}).Validate(); err != nil {
		return err
	}
	const query = `DELETE FROM favorites WHERE client_id = $1 AND kind = $2 AND item_id = $3`
	res, err := r.db.ExecContext(ctx, query, clientID, string(kind), id)
	if err != nil {
		return translateFavoriteError(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return favorites.ErrNotFound
	}
	return nil
}

func (r *FavoritesRepository) List(ctx context.Context, clientID string, kinds ...favorites.Kind) ([]favorites.Favorite, error) {
	if err := favorites.ValidateClientID(clientID); err != nil {
		return nil, err
	}
	filter := make([]string, 0, len(kinds))
	for _, k := range kinds {
		if !k.Valid() {
			return nil, fmt.Errorf("%w: %q", favorites.ErrInvalidKind, k)
		}
		filter = append(filter, string(k))
	}

	const query = `SELECT client_id, kind, item_id, created_at FROM favorites
                   WHERE client_id = $1 AND (cardinality($2::text[]) = 0 OR kind = ANY($2::text[]))
                   ORDER BY created_at, kind, item_id`
	rows, err := r.db.QueryContext(ctx, query, clientID, pq.Array(filter))
	if err != nil {
		return nil, translateFavoriteError(err)
	}
	defer rows.Close()

	out := make([]favorites.Favorite, 0)
	for rows.Next() {
		var (
			fav  favorites.Favorite
			kind string
		)
		if err := rows.Scan(&fav.ClientID, &kind, &fav.ID, &fav.CreatedAt); err != nil {
			return nil, err
		}
		fav.Kind = favorites.Kind(kind)
		out = append(out, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, translateFavoriteError(err)
	}
	return out, nil
}

func translateFavoriteError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23514":
			return fmt.Errorf("%w: %s", favorites.ErrInvalidKind, pqErr.Message)
		case "22P02", "22003":
			return fmt.Errorf("%w: %s", favorites.ErrInvalidID, pqErr.Message)
		}
	}
	return err
}
