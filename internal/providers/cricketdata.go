package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jstittsworth/cricklytics/internal/cricket"
)

const (
	CricketDataName    = "cricketdata"
	CricketDataBaseURL = "https://api.cricapi.com/v1"
)

// CricketDataClient is the secondary source (CricketData.org). It has match
// listings and a player directory but no per-innings feed.
type CricketDataClient struct {
	*apiClient
}

// NewCricketDataClient creates a new CricketData.org client
func NewCricketDataClient(cfg ClientConfig, deps Deps) *CricketDataClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = CricketDataBaseURL
	}
	key := strings.TrimSpace(cfg.APIKey)
	return &CricketDataClient{
		apiClient: newAPIClient(CricketDataName, cfg, deps, func(_ *http.Request, q url.Values) {
			q.Set("apikey", key)
		}),
	}
}

// CricketData API response types
type cricketDataEnvelope struct {
	Status *string         `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type cricketDataMatch struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MatchType    string   `json:"matchType"`
	Status       string   `json:"status"`
	Venue        string   `json:"venue"`
	Date         string   `json:"date"`
	DateTimeGMT  string   `json:"dateTimeGMT"`
	Teams        []string `json:"teams"`
	SeriesID     string   `json:"series_id"`
	MatchStarted bool     `json:"matchStarted"`
	MatchEnded   bool     `json:"matchEnded"`
	TeamInfo     []struct {
		Name      string `json:"name"`
		ShortName string `json:"shortname"`
		Img       string `json:"img"`
	} `json:"teamInfo"`
}

type cricketDataPlayer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

// decodeCricketData checks the status flag. "failure" is a provider error;
// a body without any status is malformed.
func decodeCricketData(body []byte, dest interface{}) cricket.Reason {
	var env cricketDataEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return cricket.ReasonMalformedResponse
	}
	if env.Status == nil {
		return cricket.ReasonMalformedResponse
	}
	if !strings.EqualFold(*env.Status, "success") {
		return cricket.ReasonHTTPError
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return cricket.ReasonEmptyResponse
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return cricket.ReasonMalformedResponse
	}
	return cricket.ReasonNone
}

func (c *CricketDataClient) Name() string {
	return CricketDataName
}

// Teams are derived from the sides appearing in current matches
func (c *CricketDataClient) Teams(ctx context.Context) ([]cricket.Team, cricket.Reason) {
	return fetch(ctx, c.apiClient, c.currentMatches(cricket.CapabilityTeams), func(body []byte) ([]cricket.Team, cricket.Reason) {
		var matches []cricketDataMatch
		if reason := decodeCricketData(body, &matches); !reason.OK() {
			return nil, reason
		}

		seen := make(map[string]bool)
		var teams []cricket.Team
		add := func(name, short, img string) {
			key := cricket.NormalizeName(name)
			if key == "" || seen[key] {
				return
			}
			seen[key] = true
			team := cricket.Team{
				ID:   strings.ReplaceAll(key, " ", "-"),
				Name: strings.TrimSpace(name),
				Code: strings.ToUpper(short),
			}
			if img != "" {
				team.Metadata = map[string]string{"image": img}
			}
			teams = append(teams, team)
		}
		for _, m := range matches {
			for _, info := range m.TeamInfo {
				add(info.Name, info.ShortName, info.Img)
			}
			for _, name := range m.Teams {
				add(name, "", "")
			}
		}
		return teams, cricket.ReasonNone
	})
}

// Players searches the player directory. The directory carries no team
// membership, so team-scoped requests are declined before any call is made.
func (c *CricketDataClient) Players(ctx context.Context, filter cricket.PlayerFilter) ([]cricket.Player, cricket.Reason) {
	if strings.TrimSpace(filter.TeamID) != "" {
		return nil, cricket.ReasonNoData
	}

	query := url.Values{"offset": {"0"}}
	if s := strings.TrimSpace(filter.Search); s != "" {
		query.Set("search", s)
	}
	req := request{
		capability: cricket.CapabilityPlayers,
		endpoint:   "players",
		path:       "players",
		query:      query,
	}
	players, reason := fetch(ctx, c.apiClient, req, func(body []byte) ([]cricket.Player, cricket.Reason) {
		var raw []cricketDataPlayer
		if reason := decodeCricketData(body, &raw); !reason.OK() {
			return nil, reason
		}
		players := make([]cricket.Player, 0, len(raw))
		for _, p := range raw {
			if strings.TrimSpace(p.Name) == "" {
				continue
			}
			players = append(players, cricket.Player{
				ID:       p.ID,
				FullName: strings.TrimSpace(p.Name),
				Country:  p.Country,
				Role:     "Unknown",
			})
		}
		return players, cricket.ReasonNone
	})
	if !reason.OK() {
		return nil, reason
	}
	return filterPlayers(players, filter)
}

// Venues are parsed from "Ground, City" strings on current matches
func (c *CricketDataClient) Venues(ctx context.Context) ([]cricket.Venue, cricket.Reason) {
	return fetch(ctx, c.apiClient, c.currentMatches(cricket.CapabilityVenues), func(body []byte) ([]cricket.Venue, cricket.Reason) {
		var matches []cricketDataMatch
		if reason := decodeCricketData(body, &matches); !reason.OK() {
			return nil, reason
		}

		seen := make(map[string]bool)
		var venues []cricket.Venue
		for _, m := range matches {
			name, city := splitVenue(m.Venue)
			key := cricket.NormalizeName(name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			venues = append(venues, cricket.Venue{
				ID:   strings.ReplaceAll(key, " ", "-"),
				Name: name,
				City: city,
			})
		}
		return venues, cricket.ReasonNone
	})
}

func (c *CricketDataClient) Fixtures(ctx context.Context, window cricket.FixtureWindow) ([]cricket.Fixture, cricket.Reason) {
	days := window.DaysAhead
	if days <= 0 {
		days = 7
	}
	now := c.now().UTC()
	until := now.AddDate(0, 0, days)

	req := request{
		capability: cricket.CapabilityFixtures,
		endpoint:   "matches",
		path:       "matches",
		query:      url.Values{"offset": {"0"}},
		keyParams: map[string]string{
			"days": strconv.Itoa(days),
			"from": now.Format("2006-01-02"),
		},
	}
	return fetch(ctx, c.apiClient, req, func(body []byte) ([]cricket.Fixture, cricket.Reason) {
		var matches []cricketDataMatch
		if reason := decodeCricketData(body, &matches); !reason.OK() {
			return nil, reason
		}
		var fixtures []cricket.Fixture
		for _, m := range matches {
			if m.MatchStarted {
				continue
			}
			start, err := time.Parse("2006-01-02T15:04:05", m.DateTimeGMT)
			if err == nil && (start.Before(now) || start.After(until)) {
				continue
			}
			fixtures = append(fixtures, convertCricketDataMatch(m))
		}
		return fixtures, cricket.ReasonNone
	})
}

func (c *CricketDataClient) LiveMatches(ctx context.Context) ([]cricket.Fixture, cricket.Reason) {
	return fetch(ctx, c.apiClient, c.currentMatches(cricket.CapabilityLiveMatches), func(body []byte) ([]cricket.Fixture, cricket.Reason) {
		var matches []cricketDataMatch
		if reason := decodeCricketData(body, &matches); !reason.OK() {
			return nil, reason
		}
		var live []cricket.Fixture
		for _, m := range matches {
			if m.MatchStarted && !m.MatchEnded {
				live = append(live, convertCricketDataMatch(m))
			}
		}
		return live, cricket.ReasonNone
	})
}

// MatchHistory is not offered by this provider
func (c *CricketDataClient) MatchHistory(_ context.Context, _ string, _ int) ([]cricket.MatchPerformance, cricket.Reason) {
	return nil, cricket.ReasonNoData
}

func (c *CricketDataClient) currentMatches(capability cricket.Capability) request {
	return request{
		capability: capability,
		endpoint:   "currentMatches",
		path:       "currentMatches",
		query:      url.Values{"offset": {"0"}},
	}
}

func convertCricketDataMatch(m cricketDataMatch) cricket.Fixture {
	participants := make([]string, 0, 2)
	for _, info := range m.TeamInfo {
		if info.Name != "" {
			participants = append(participants, info.Name)
		}
	}
	if len(participants) == 0 {
		participants = append(participants, m.Teams...)
	}

	// dateTimeGMT carries no zone designator and parses as UTC
	start := normalizeTimestamp(m.DateTimeGMT)
	if start == "" {
		start = normalizeTimestamp(m.Date)
	}

	venue, _ := splitVenue(m.Venue)
	return cricket.Fixture{
		ID:           m.ID,
		Title:        orDefault(m.Name, strings.Join(participants, " vs ")),
		StartTime:    start,
		Format:       cricketDataFormat(m.MatchType),
		Venue:        venue,
		Status:       m.Status,
		Participants: participants,
	}
}

func cricketDataFormat(matchType string) string {
	switch strings.ToLower(strings.TrimSpace(matchType)) {
	case "t20":
		return "T20"
	case "t20i":
		return "T20I"
	case "odi":
		return "ODI"
	case "test":
		return "Test"
	case "":
		return "Unknown"
	}
	return strings.ToUpper(matchType)
}

func splitVenue(s string) (name, city string) {
	parts := strings.SplitN(s, ",", 2)
	name = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		city = strings.TrimSpace(parts[1])
	}
	return name, city
}
