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
	CricbuzzName    = "cricbuzz"
	CricbuzzBaseURL = "https://cricbuzz-cricket.p.rapidapi.com"
	CricbuzzHost    = "cricbuzz-cricket.p.rapidapi.com"
)

// CricbuzzClient is the backup source, served through RapidAPI
type CricbuzzClient struct {
	*apiClient
}

// NewCricbuzzClient creates a new Cricbuzz RapidAPI client
func NewCricbuzzClient(cfg ClientConfig, deps Deps) *CricbuzzClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = CricbuzzBaseURL
	}
	host := cfg.Host
	if host == "" {
		host = CricbuzzHost
	}
	key := strings.TrimSpace(cfg.APIKey)
	return &CricbuzzClient{
		apiClient: newAPIClient(CricbuzzName, cfg, deps, func(req *http.Request, _ url.Values) {
			// Set required RapidAPI headers
			req.Header.Set("X-RapidAPI-Key", key)
			req.Header.Set("X-RapidAPI-Host", host)
		}),
	}
}

// Cricbuzz API response types
type cricbuzzTeam struct {
	TeamID    flexString `json:"teamId"`
	TeamName  string     `json:"teamName"`
	TeamSName string     `json:"teamSName"`
	ImageID   flexString `json:"imageId"`
}

type cricbuzzPlayer struct {
	ID           flexString `json:"id"`
	Name         string     `json:"name"`
	TeamName     string     `json:"teamName"`
	BattingStyle string     `json:"battingStyle"`
	BowlingStyle string     `json:"bowlingStyle"`
}

type cricbuzzMatchList struct {
	TypeMatches []struct {
		MatchType     string `json:"matchType"`
		SeriesMatches []struct {
			SeriesAdWrapper *struct {
				SeriesName string `json:"seriesName"`
				Matches    []struct {
					MatchInfo cricbuzzMatchInfo `json:"matchInfo"`
				} `json:"matches"`
			} `json:"seriesAdWrapper"`
		} `json:"seriesMatches"`
	} `json:"typeMatches"`
}

type cricbuzzMatchInfo struct {
	MatchID     flexString `json:"matchId"`
	SeriesName  string     `json:"seriesName"`
	MatchDesc   string     `json:"matchDesc"`
	MatchFormat string     `json:"matchFormat"`
	StartDate   flexString `json:"startDate"` // epoch millis
	State       string     `json:"state"`
	Status      string     `json:"status"`
	Team1       struct {
		TeamName  string `json:"teamName"`
		TeamSName string `json:"teamSName"`
	} `json:"team1"`
	Team2 struct {
		TeamName  string `json:"teamName"`
		TeamSName string `json:"teamSName"`
	} `json:"team2"`
	VenueInfo *struct {
		ID     flexString `json:"id"`
		Ground string     `json:"ground"`
		City   string     `json:"city"`
	} `json:"venueInfo"`
}

// decodeCricbuzz extracts the payload under key. A bare message object is a
// provider error; anything else without the key is malformed.
func decodeCricbuzz(body []byte, key string, dest interface{}) cricket.Reason {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return cricket.ReasonMalformedResponse
	}
	payload, ok := obj[key]
	if !ok {
		if _, isError := obj["message"]; isError {
			return cricket.ReasonHTTPError
		}
		return cricket.ReasonMalformedResponse
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return cricket.ReasonMalformedResponse
	}
	return cricket.ReasonNone
}

func (c *CricbuzzClient) Name() string {
	return CricbuzzName
}

func (c *CricbuzzClient) Teams(ctx context.Context) ([]cricket.Team, cricket.Reason) {
	req := request{
		capability: cricket.CapabilityTeams,
		endpoint:   "teams",
		path:       "teams/v1/international",
	}
	return fetch(ctx, c.apiClient, req, func(body []byte) ([]cricket.Team, cricket.Reason) {
		var raw []cricbuzzTeam
		if reason := decodeCricbuzz(body, "list", &raw); !reason.OK() {
			return nil, reason
		}
		teams := make([]cricket.Team, 0, len(raw))
		for _, t := range raw {
			// section headers carry a name but no id
			if t.TeamID == "" || strings.TrimSpace(t.TeamName) == "" {
				continue
			}
			team := cricket.Team{
				ID:         string(t.TeamID),
				Name:       strings.TrimSpace(t.TeamName),
				Code:       strings.ToUpper(t.TeamSName),
				Country:    strings.TrimSpace(t.TeamName),
				IsNational: true,
			}
			if t.ImageID != "" {
				team.Metadata = map[string]string{"image_id": string(t.ImageID)}
			}
			teams = append(teams, team)
		}
		return teams, cricket.ReasonNone
	})
}

func (c *CricbuzzClient) Players(ctx context.Context, filter cricket.PlayerFilter) ([]cricket.Player, cricket.Reason) {
	var req request
	switch {
	case filter.TeamID != "":
		req = request{
			capability: cricket.CapabilityPlayers,
			endpoint:   "team_players",
			path:       "teams/v1/" + url.PathEscape(filter.TeamID) + "/players",
		}
	case strings.TrimSpace(filter.Search) != "":
		req = request{
			capability: cricket.CapabilityPlayers,
			endpoint:   "player_search",
			path:       "stats/v1/player/search",
			query:      url.Values{"plrN": {strings.TrimSpace(filter.Search)}},
		}
	default:
		// no unfiltered player directory
		return nil, cricket.ReasonNoData
	}

	players, reason := fetch(ctx, c.apiClient, req, func(body []byte) ([]cricket.Player, cricket.Reason) {
		var raw []cricbuzzPlayer
		if reason := decodeCricbuzz(body, "player", &raw); !reason.OK() {
			return nil, reason
		}
		players := make([]cricket.Player, 0, len(raw))
		role := "Unknown"
		for _, p := range raw {
			if p.ID == "" {
				// squad listings group players under role headers
				role = cricbuzzRole(p.Name)
				continue
			}
			players = append(players, cricket.Player{
				ID:           string(p.ID),
				FullName:     strings.TrimSpace(p.Name),
				Team:         p.TeamName,
				Role:         role,
				BattingStyle: p.BattingStyle,
				BowlingStyle: p.BowlingStyle,
			})
		}
		return players, cricket.ReasonNone
	})
	if !reason.OK() {
		return nil, reason
	}
	return filterPlayers(players, filter)
}

// Venues are collected from upcoming match listings
func (c *CricbuzzClient) Venues(ctx context.Context) ([]cricket.Venue, cricket.Reason) {
	req := request{
		capability: cricket.CapabilityVenues,
		endpoint:   "matches_upcoming",
		path:       "matches/v1/upcoming",
	}
	return fetch(ctx, c.apiClient, req, func(body []byte) ([]cricket.Venue, cricket.Reason) {
		infos, reason := decodeCricbuzzMatches(body)
		if !reason.OK() {
			return nil, reason
		}
		seen := make(map[string]bool)
		var venues []cricket.Venue
		for _, m := range infos {
			if m.VenueInfo == nil {
				continue
			}
			key := cricket.NormalizeName(m.VenueInfo.Ground)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			venues = append(venues, cricket.Venue{
				ID:   string(m.VenueInfo.ID),
				Name: strings.TrimSpace(m.VenueInfo.Ground),
				City: m.VenueInfo.City,
			})
		}
		return venues, cricket.ReasonNone
	})
}

func (c *CricbuzzClient) Fixtures(ctx context.Context, window cricket.FixtureWindow) ([]cricket.Fixture, cricket.Reason) {
	days := window.DaysAhead
	if days <= 0 {
		days = 7
	}
	now := c.now().UTC()
	until := now.AddDate(0, 0, days)

	req := request{
		capability: cricket.CapabilityFixtures,
		endpoint:   "matches_upcoming",
		path:       "matches/v1/upcoming",
		keyParams: map[string]string{
			"days": strconv.Itoa(days),
			"from": now.Format("2006-01-02"),
		},
	}
	return fetch(ctx, c.apiClient, req, func(body []byte) ([]cricket.Fixture, cricket.Reason) {
		infos, reason := decodeCricbuzzMatches(body)
		if !reason.OK() {
			return nil, reason
		}
		var fixtures []cricket.Fixture
		for _, m := range infos {
			if start, ok := epochMillis(string(m.StartDate)); ok && start.After(until) {
				continue
			}
			fixtures = append(fixtures, convertCricbuzzMatch(m))
		}
		return fixtures, cricket.ReasonNone
	})
}

func (c *CricbuzzClient) LiveMatches(ctx context.Context) ([]cricket.Fixture, cricket.Reason) {
	req := request{
		capability: cricket.CapabilityLiveMatches,
		endpoint:   "matches_live",
		path:       "matches/v1/live",
	}
	return fetch(ctx, c.apiClient, req, func(body []byte) ([]cricket.Fixture, cricket.Reason) {
		infos, reason := decodeCricbuzzMatches(body)
		if !reason.OK() {
			return nil, reason
		}
		live := make([]cricket.Fixture, 0, len(infos))
		for _, m := range infos {
			live = append(live, convertCricbuzzMatch(m))
		}
		return live, cricket.ReasonNone
	})
}

// MatchHistory is not offered by this provider
func (c *CricbuzzClient) MatchHistory(_ context.Context, _ string, _ int) ([]cricket.MatchPerformance, cricket.Reason) {
	return nil, cricket.ReasonNoData
}

func decodeCricbuzzMatches(body []byte) ([]cricbuzzMatchInfo, cricket.Reason) {
	var list cricbuzzMatchList
	if reason := decodeCricbuzz(body, "typeMatches", &list.TypeMatches); !reason.OK() {
		return nil, reason
	}
	var infos []cricbuzzMatchInfo
	for _, tm := range list.TypeMatches {
		for _, sm := range tm.SeriesMatches {
			if sm.SeriesAdWrapper == nil {
				continue
			}
			for _, m := range sm.SeriesAdWrapper.Matches {
				if m.MatchInfo.SeriesName == "" {
					m.MatchInfo.SeriesName = sm.SeriesAdWrapper.SeriesName
				}
				infos = append(infos, m.MatchInfo)
			}
		}
	}
	return infos, cricket.ReasonNone
}

func convertCricbuzzMatch(m cricbuzzMatchInfo) cricket.Fixture {
	var participants []string
	for _, name := range []string{m.Team1.TeamName, m.Team2.TeamName} {
		if name != "" {
			participants = append(participants, name)
		}
	}

	title := strings.Join(participants, " vs ")
	if m.MatchDesc != "" {
		title = strings.TrimSpace(title + ", " + m.MatchDesc)
	}

	start := ""
	if t, ok := epochMillis(string(m.StartDate)); ok {
		start = t.UTC().Format(time.RFC3339)
	}
	venue := ""
	if m.VenueInfo != nil {
		venue = m.VenueInfo.Ground
	}

	return cricket.Fixture{
		ID:           string(m.MatchID),
		Title:        orDefault(title, m.SeriesName),
		StartTime:    start,
		Format:       cricketDataFormat(m.MatchFormat),
		Venue:        venue,
		Status:       orDefault(m.Status, m.State),
		Participants: participants,
	}
}

func cricbuzzRole(header string) string {
	h := strings.ToLower(header)
	switch {
	case strings.Contains(h, "all"):
		return "All-rounder"
	case strings.Contains(h, "keeper"):
		return "Wicketkeeper"
	case strings.Contains(h, "bowl"):
		return "Bowler"
	case strings.Contains(h, "bat"):
		return "Batsman"
	}
	return "Unknown"
}

func epochMillis(s string) (time.Time, bool) {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
