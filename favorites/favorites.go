// Package favorites models the teams and competitions a visitor pins to the
// favorites tab. Visitors are anonymous and identified by a client id the
// front-end generates once and keeps in local storage.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidKind   = errors.New("favorites: kind must be team or league")
	ErrInvalidClient = errors.New("favorites: client id is required")
	ErrInvalidID     = errors.New("favorites: id must be positive")
	ErrNotFound      = errors.New("favorites: favorite not found")
)

// MaxClientIDLength bounds the client id accepted from callers.
const MaxClientIDLength = 64

type Kind string

const (
	KindTeam   Kind = "team"
	KindLeague Kind = "league"
)

// ParseKind accepts the singular or plural form in any case.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "team", "teams":
		return KindTeam, nil
	case "league", "leagues":
		return KindLeague, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (k Kind) Valid() bool {
	return k == KindTeam || k == KindLeague
}

type Favorite struct {
	ClientID  string    `json:"client_id"`
	Kind      Kind      `json:"kind"`
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate reports the first problem with f, if any.
func (f Favorite) Validate() error {
	if err := ValidateClientID(f.ClientID); err != nil {
		return err
	}
	if !f.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, f.Kind)
	}
	if f.ID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidID, f.ID)
	}
	return nil
}

func ValidateClientID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidClient
	}
	if len(id) > MaxClientIDLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidClient, MaxClientIDLength)
	}
	return nil
}

// Repository persists favorites. Add is idempotent; Remove reports
// ErrNotFound when nothing was deleted. List returns favorites oldest first,
// optionally restricted to the given kinds.
type Repository interface {
	Add(ctx context.Context, fav Favorite) error
	Remove(ctx context.Context, clientID string, kind Kind, id int) error
	List(ctx context.Context, clientID string, kinds ...Kind) ([]Favorite, error)
}

// Split partitions favorites into team and league ids, preserving order.
func Split(favs []Favorite) (teams, leagues []int) {
	for _, f := range favs {
		switch f.Kind {
		case KindTeam:
			teams = append(teams, f.ID)
		case KindLeague:
			leagues = append(leagues, f.ID)
		}
	}
	return teams, leagues
}
