package football

import (
	"strings"
	"time"
)

// StatusKind is the coarse state shown on match cards.
type StatusKind string

const (
	KindLive     StatusKind = "LIVE"
	KindHalfTime StatusKind = "HT"
	KindFinished StatusKind = "FT"
	KindUpcoming StatusKind = "UPCOMING"
)

// DateLayout is the upstream date format.
const DateLayout = "2006-01-02"

// Classify maps an api-sports short status code to a StatusKind. Unknown
// codes, including NS and TBD, are upcoming.
func Classify(short string) StatusKind {
	switch short {
	case "1H", "2H", "ET", "P", "BT", "SUSP", "INT", "LIVE":
		return KindLive
	case "HT", "BREAK":
		return KindHalfTime
	case "FT", "AET", "PEN", "CANC", "ABD", "AWD", "WO":
		return KindFinished
	default:
		return KindUpcoming
	}
}

// ParseStatusKind accepts the kinds above plus the tab names used by the
// front-end (live, finished, scheduled).
func ParseStatusKind(s string) (StatusKind, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LIVE":
		return KindLive, true
	case "HT", "HALFTIME":
		return KindHalfTime, true
	case "FT", "FINISHED":
		return KindFinished, true
	case "UPCOMING", "SCHEDULED":
		return KindUpcoming, true
	}
	return "", false
}

func (m Match) Kind() StatusKind { return Classify(m.Fixture.Status.Short) }

// FilterByStatus returns the matches of the given kind. The input is not
// modified.
func FilterByStatus(matches []Match, kind StatusKind) []Match {
	return filter(matches, func(m Match) bool { return m.Kind() == kind })
}

func FilterByLeague(matches []Match, leagueID int) []Match {
	return filter(matches, func(m Match) bool { return m.League.ID == leagueID })
}

// Search keeps matches whose team, league or country name contains query,
// case-insensitively. An empty query keeps everything.
func Search(matches []Match, query string) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return matches
	}
	return filter(matches, func(m Match) bool {
		for _, s := range []string{m.Teams.Home.Name, m.Teams.Away.Name, m.League.Name, m.League.Country} {
			if strings.Contains(strings.ToLower(s), q) {
				return true
			}
		}
		return false
	})
}

// LeagueGroup is a league with its matches, as rendered by the score list.
type LeagueGroup struct {
	League  League  `json:"league"`
	Matches []Match `json:"matches"`
}

// GroupByLeague groups matches by league in order of first appearance.
func GroupByLeague(matches []Match) []LeagueGroup {
	index := make(map[int]int)
	groups := make([]LeagueGroup, 0)
	for _, m := range matches {
		i, ok := index[m.League.ID]
		if !ok {
			i = len(groups)
			index[m.League.ID] = i
			groups = append(groups, LeagueGroup{League: m.League})
		}
		groups[i].Matches = append(groups[i].Matches, m)
	}
	return groups
}

// Today formats now as an upstream date in UTC.
func Today(now time.Time) string {
	return now.UTC().Format(DateLayout)
}

// ValidDate reports whether s is a YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func filter(matches []Match, keep func(Match) bool) []Match {
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}
