package football

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type League struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Logo    string `json:"logo"`
	Flag    string `json:"flag"`
	Season  int    `json:"season"`
	Round   string `json:"round,omitempty"`
}

type Team struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Logo   string `json:"logo"`
	Winner *bool  `json:"winner,omitempty"`
}

// Goals holds a score line; nil means the match has not produced one yet.
type Goals struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

type Score struct {
	Halftime  Goals `json:"halftime"`
	Fulltime  Goals `json:"fulltime"`
	Extratime Goals `json:"extratime"`
	Penalty   Goals `json:"penalty"`
}

type Status struct {
	Long    string `json:"long"`
	Short   string `json:"short"`
	Elapsed *int   `json:"elapsed,omitempty"`
}

type Venue struct {
	ID   *int    `json:"id"`
	Name *string `json:"name"`
	City *string `json:"city"`
}

type Fixture struct {
	ID        int     `json:"id"`
	Referee   *string `json:"referee"`
	Timezone  string  `json:"timezone"`
	Date      string  `json:"date"`
	Timestamp int64   `json:"timestamp"`
	Venue     Venue   `json:"venue"`
	Status    Status  `json:"status"`
}

type Teams struct {
	Home Team `json:"home"`
	Away Team `json:"away"`
}

type Match struct {
	Fixture Fixture `json:"fixture"`
	League  League  `json:"league"`
	Teams   Teams   `json:"teams"`
	Goals   Goals   `json:"goals"`
	Score   Score   `json:"score"`
}

type Player struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Number int     `json:"number"`
	Pos    string  `json:"pos"`
	Grid   *string `json:"grid"`
}

type LineupPlayer struct {
	Player Player `json:"player"`
}

type Coach struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Photo string `json:"photo"`
}

type Lineup struct {
	Team        Team           `json:"team"`
	Formation   string         `json:"formation"`
	StartXI     []LineupPlayer `json:"startXI"`
	Substitutes []LineupPlayer `json:"substitutes"`
	Coach       Coach          `json:"coach"`
}

type StatisticValue struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type MatchStatistic struct {
	Team       Team             `json:"team"`
	Statistics []StatisticValue `json:"statistics"`
}

type EventTime struct {
	Elapsed int  `json:"elapsed"`
	Extra   *int `json:"extra"`
}

type EventActor struct {
	ID   *int    `json:"id"`
	Name *string `json:"name"`
}

type MatchEvent struct {
	Time     EventTime  `json:"time"`
	Team     Team       `json:"team"`
	Player   EventActor `json:"player"`
	Assist   EventActor `json:"assist"`
	Type     string     `json:"type"`
	Detail   string     `json:"detail"`
	Comments *string    `json:"comments"`
}

// MatchDetails is a fixture together with its events, lineups and
// statistics, assembled from four upstream calls.
type MatchDetails struct {
	Match
	Events     []MatchEvent     `json:"events"`
	Lineups    []Lineup         `json:"lineups"`
	Statistics []MatchStatistic `json:"statistics"`
}

type TopLeague struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Logo    string `json:"logo"`
	Country string `json:"country"`
	Flag    string `json:"flag"`
}

type StandingRecord struct {
	Played int   `json:"played"`
	Win    int   `json:"win"`
	Draw   int   `json:"draw"`
	Lose   int   `json:"lose"`
	Goals  Tally `json:"goals"`
}

type Tally struct {
	For     int `json:"for"`
	Against int `json:"against"`
}

type Standing struct {
	Rank        int            `json:"rank"`
	Team        Team           `json:"team"`
	Points      int            `json:"points"`
	GoalsDiff   int            `json:"goalsDiff"`
	Group       string         `json:"group"`
	Form        string         `json:"form"`
	Status      string         `json:"status"`
	Description *string        `json:"description"`
	All         StandingRecord `json:"all"`
	Home        StandingRecord `json:"home"`
	Away        StandingRecord `json:"away"`
	Update      string         `json:"update"`
}

// LeagueStandings is one league's table; Standings holds one slice per group.
type LeagueStandings struct {
	League
	Standings [][]Standing `json:"standings"`
}

// leagueEntry is the /leagues response item.
type leagueEntry struct {
	League struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
		Logo string `json:"logo"`
	} `json:"league"`
	Country struct {
		Name string  `json:"name"`
		Code *string `json:"code"`
		Flag string  `json:"flag"`
	} `json:"country"`
}

type standingsEntry struct {
	League LeagueStandings `json:"league"`
}

type Paging struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// APIResponse is the api-sports envelope. Errors and Parameters arrive as an
// empty array when unset and as an object otherwise, so both stay raw.
type APIResponse[T any] struct {
	Get        string          `json:"get"`
	Parameters json.RawMessage `json:"parameters"`
	Errors     json.RawMessage `json:"errors"`
	Results    int             `json:"results"`
	Paging     Paging          `json:"paging"`
	Response   T               `json:"response"`
}

// ErrorMessages flattens the errors field into "field: message" strings in a
// stable order.
func (r APIResponse[T]) ErrorMessages() []string {
	raw := strings.TrimSpace(string(r.Errors))
	if raw == "" || raw == "null" || raw == "[]" || raw == "{}" {
		return nil
	}
	var list []string
	if err := json.Unmarshal(r.Errors, &list); err == nil {
		return list
	}
	var byField map[string]any
	if err := json.Unmarshal(r.Errors, &byField); err == nil {
		out := make([]string, 0, len(byField))
		for field, msg := range byField {
			out = append(out, fmt.Sprintf("%s: %v", field, msg))
		}
		sort.Strings(out)
		return out
	}
	return []string{raw}
}
