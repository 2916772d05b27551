package providers

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jstittsworth/cricklytics/internal/cricket"
)

const (
	SportMonksName    = "sportmonks"
	SportMonksBaseURL = "https://cricket.sportmonks.com/api/v2.0"

	// league id of the international T20 competition
	sportMonksT20ILeague = 3

	// results listed in a team's recent form
	teamFormWindow = 10
)

// SportMonksClient is the premium source. It authenticates with an
// api_token query parameter and carries per-innings scorecards.
type SportMonksClient struct {
	*apiClient
}

// NewSportMonksClient creates a new SportMonks client
func NewSportMonksClient(cfg ClientConfig, deps Deps) *SportMonksClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = SportMonksBaseURL
	}
	token := strings.TrimSpace(cfg.APIKey)
	return &SportMonksClient{
		apiClient: newAPIClient(SportMonksName, cfg, deps, func(_ *http.Request, q url.Values) {
			q.Set("api_token", token)
		}),
	}
}

// SportMonks API response types
type sportMonksEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Message string  `json:"message"`
		Code    flexInt `json:"code"`
	} `json:"error"`
}

type sportMonksCountry struct {
	Name string `json:"name"`
}

type sportMonksTeam struct {
	ID           flexString          `json:"id"`
	Name         string              `json:"name"`
	Code         string              `json:"code"`
	ImagePath    string              `json:"image_path"`
	NationalTeam bool                `json:"national_team"`
	Country      *sportMonksCountry  `json:"country"`
	Squad        []sportMonksPlayer  `json:"squad"`
	Results      []sportMonksFixture `json:"results"`
}

type sportMonksPlayer struct {
	ID           flexString         `json:"id"`
	FullName     string             `json:"fullname"`
	FirstName    string             `json:"firstname"`
	LastName     string             `json:"lastname"`
	BattingStyle string             `json:"battingstyle"`
	BowlingStyle string             `json:"bowlingstyle"`
	ImagePath    string             `json:"image_path"`
	Country      *sportMonksCountry `json:"country"`
	Position     *struct {
		Name string `json:"name"`
	} `json:"position"`
	Career []sportMonksCareer `json:"career"`
}

// sportMonksCareer is one season-and-format line of a player's career
type sportMonksCareer struct {
	Type    string `json:"type"`
	Batting *struct {
		Matches    flexInt `json:"matches"`
		Innings    flexInt `json:"innings"`
		RunsScored flexInt `json:"runs_scored"`
		NotOuts    flexInt `json:"not_outs"`
		BallsFaced flexInt `json:"balls_faced"`
		Hundreds   flexInt `json:"hundreds"`
		Fifties    flexInt `json:"fifties"`
	} `json:"batting"`
	Bowling *struct {
		Matches flexInt   `json:"matches"`
		Overs   flexFloat `json:"overs"`
		Runs    flexInt   `json:"runs"`
		Wickets flexInt   `json:"wickets"`
	} `json:"bowling"`
}

type sportMonksVenue struct {
	ID       flexString         `json:"id"`
	Name     string             `json:"name"`
	City     string             `json:"city"`
	Capacity flexInt            `json:"capacity"`
	Country  *sportMonksCountry `json:"country"`
}

type sportMonksFixture struct {
	ID           flexString          `json:"id"`
	LeagueID     flexInt             `json:"league_id"`
	Type         string              `json:"type"`
	Round        string              `json:"round"`
	Status       string              `json:"status"`
	StartingAt   string              `json:"starting_at"`
	WinnerTeamID flexInt             `json:"winner_team_id"`
	DrawNoResult string              `json:"draw_noresult"`
	LocalTeam    *sportMonksTeam     `json:"localteam"`
	VisitorTeam  *sportMonksTeam     `json:"visitorteam"`
	Venue        *sportMonksVenue    `json:"venue"`
	Batting      []sportMonksBatting `json:"batting"`
	Bowling      []sportMonksBowling `json:"bowling"`
}

type sportMonksBatting struct {
	TeamID             flexInt           `json:"team_id"`
	Score              flexInt           `json:"score"`
	Ball               flexInt           `json:"ball"`
	FourX              flexInt           `json:"four_x"`
	SixX               flexInt           `json:"six_x"`
	Rate               flexFloat         `json:"rate"`
	CatchStumpPlayerID *flexInt          `json:"catch_stump_player_id"`
	BowlingPlayerID    *flexInt          `json:"bowling_player_id"`
	Batsman            *sportMonksPlayer `json:"batsman"`
}

type sportMonksBowling struct {
	TeamID  flexInt           `json:"team_id"`
	Overs   flexFloat         `json:"overs"`
	Runs    flexInt           `json:"runs"`
	Wickets flexInt           `json:"wickets"`
	Rate    flexFloat         `json:"rate"`
	Bowler  *sportMonksPlayer `json:"bowler"`
}

// decodeSportMonks unwraps the data envelope. An error object is a provider
// failure; a body without data is malformed.
func decodeSportMonks(body []byte, dest interface{}) cricket.Reason {
	var env sportMonksEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return cricket.ReasonMalformedResponse
	}
	if env.Error != nil {
		return cricket.ReasonHTTPError
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return cricket.ReasonMalformedResponse
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return cricket.ReasonMalformedResponse
	}
	return cricket.ReasonNone
}

func (c *SportMonksClient) Name() string {
	return SportMonksName
}

func (c *SportMonksClient) Teams(ctx context.Context) ([]cricket.Team, cricket.Reason) {
	req := request{
		capability: cricket.CapabilityTeams,
		endpoint:   "teams",
		path:       "teams",
		query:      url.Values{"include": {"country"}},
	}
	return fetch(ctx, c.apiClient, req, func(body []byte) ([]cricket.Team, cricket.Reason) {
		var raw []sportMonksTeam
		if reason := decodeSportMonks(body, &raw); !reason.OK() {
			return nil, reason
		}
		teams := make([]cricket.Team, 0, len(raw))
		for _, t := range raw {
			if strings.TrimSpace(t.Name) == "" {
				continue
			}
			teams = append(teams, c.convertTeam(t))
		}
		return teams, cricket.ReasonNone
	})
}

func (c *SportMonksClient) Players(ctx context.Context, filter cricket.PlayerFilter) ([]cricket.Player, cricket.Reason) {
	if filter.TeamID != "" {
		return c.squad(ctx, filter)
	}

	req := request{
		capability: cricket.CapabilityPlayers,
		endpoint:   "players",
		path:       "players",
		query:      url.Values{"include": {"country,position"}},
	}
	players, reason := fetch(ctx, c.apiClient, req, func(body []byte) ([]cricket.Player, cricket.Reason) {
		var raw []sportMonksPlayer
		if reason := decodeSportMonks(body, &raw); !reason.OK() {
			return nil, reason
		}
		players := make([]cricket.Player, 0, len(raw))
		for _, p := range raw {
			if player, ok := c.convertPlayer(p, nil); ok {
				players = append(players, player)
			}
		}
		return players, cricket.ReasonNone
	})
	if !reason.OK() {
		return nil, reason
	}
	return filterPlayers(players, filter)
}

func (c *SportMonksClient) squad(ctx context.Context, filter cricket.PlayerFilter) ([]cricket.Player, cricket.Reason) {
	req := request{
		capability: cricket.CapabilityPlayers,
		endpoint:   "teams",
		path:       "teams/" + url.PathEscape(filter.TeamID),
		query:      url.Values{"include": {"squad,country"}},
	}
	players, reason := fetch(ctx, c.apiClient, req, func(body []byte) ([]cricket.Player, cricket.Reason) {
		var team sportMonksTeam
		if reason := decodeSportMonks(body, &team); !reason.OK() {
			return nil, reason
		}
		players := make([]cricket.Player, 0, len(team.Squad))
		for _, p := range team.Squad {
			if player, ok := c.convertPlayer(p, &team); ok {
				players = append(players, player)
			}
		}
		return players, cricket.ReasonNone
	})
	if !reason.OK() {
		return nil, reason
	}
	return filterPlayers(players, filter)
}

func (c *SportMonksClient) Venues(ctx context.Context) ([]cricket.Venue, cricket.Reason) {
	req := request{
		capability: cricket.CapabilityVenues,
		endpoint:   "venues",
		path:       "venues",
		query:      url.Values{"include": {"country"}},
	}
	return fetch(ctx, c.apiClient, req, func(body []byte) ([]cricket.Venue, cricket.Reason) {
		var raw []sportMonksVenue
		if reason := decodeSportMonks(body, &raw); !reason.OK() {
			return nil, reason
		}
		venues := make([]cricket.Venue, 0, len(raw))
		for _, v := range raw {
			if strings.TrimSpace(v.Name) == "" {
				continue
			}
			venues = append(venues, cricket.Venue{
				ID:       string(v.ID),
				Name:     strings.TrimSpace(v.Name),
				City:     v.City,
				Country:  countryName(v.Country),
				Capacity: int(v.Capacity),
			})
		}
		return venues, cricket.ReasonNone
	})
}

func (c *SportMonksClient) Fixtures(ctx context.Context, window cricket.FixtureWindow) ([]cricket.Fixture, cricket.Reason) {
	days := window.DaysAhead
	if days <= 0 {
		days = 7
	}
	from := c.now().UTC()
	to := from.AddDate(0, 0, days)

	req := request{
		capability: cricket.CapabilityFixtures,
		endpoint:   "fixtures",
		path:       "fixtures",
		query: url.Values{
			"filter[starts_between]": {from.Format("2006-01-02") + "," + to.Format("2006-01-02")},
			"include":                {"localteam,visitorteam,venue"},
			"sort":                   {"starting_at"},
		},
	}
	return fetch(ctx, c.apiClient, req, c.decodeFixtures)
}

func (c *SportMonksClient) LiveMatches(ctx context.Context) ([]cricket.Fixture, cricket.Reason) {
	req := request{
		capability: cricket.CapabilityLiveMatches,
		endpoint:   "livescores",
		path:       "livescores",
		query:      url.Values{"include": {"localteam,visitorteam,venue"}},
	}
	return fetch(ctx, c.apiClient, req, c.decodeFixtures)
}

// MatchHistory scans recent finished scorecards for the player's innings, newest first
func (c *SportMonksClient) MatchHistory(ctx context.Context, player string, limit int) ([]cricket.MatchPerformance, cricket.Reason) {
	name := cricket.NormalizeName(player)
	if name == "" {
		return nil, cricket.ReasonNoData
	}

	req := request{
		capability: cricket.CapabilityMatchHistory,
		endpoint:   "fixtures",
		path:       "fixtures",
		query: url.Values{
			"filter[status]": {"Finished"},
			"include":        {"localteam,visitorteam,venue,batting.batsman,bowling.bowler"},
			"sort":           {"-starting_at"},
		},
		keyParams: map[string]string{"player": name},
	}
	history, reason := fetch(ctx, c.apiClient, req, func(body []byte) ([]cricket.MatchPerformance, cricket.Reason) {
		var raw []sportMonksFixture
		if reason := decodeSportMonks(body, &raw); !reason.OK() {
			return nil, reason
		}
		var history []cricket.MatchPerformance
		for _, f := range raw {
			if perf, ok := c.extractPerformance(f, name); ok {
				history = append(history, perf)
			}
		}
		for i := range history {
			history[i].MatchNumber = len(history) - i
		}
		return history, cricket.ReasonNone
	})
	if !reason.OK() {
		return nil, reason
	}
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, cricket.ReasonNone
}

// PlayerProfile looks up one player with career figures summed across formats
func (c *SportMonksClient) PlayerProfile(ctx context.Context, id string) ([]cricket.PlayerProfile, cricket.Reason) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, cricket.ReasonNoData
	}

	req := request{
		capability: cricket.CapabilityPlayerProfile,
		endpoint:   "players",
		path:       "players/" + url.PathEscape(id),
		query:      url.Values{"include": {"career,country,position"}},
	}
	return fetch(ctx, c.apiClient, req, func(body []byte) ([]cricket.PlayerProfile, cricket.Reason) {
		var raw sportMonksPlayer
		if reason := decodeSportMonks(body, &raw); !reason.OK() {
			return nil, reason
		}
		player, ok := c.convertPlayer(raw, nil)
		if !ok {
			return nil, cricket.ReasonNone
		}
		return []cricket.PlayerProfile{{
			Player:    player,
			ImagePath: raw.ImagePath,
			Career:    sportMonksCareerStats(raw.Career),
		}}, cricket.ReasonNone
	})
}

// TeamProfile looks up one team with performance derived from its results
func (c *SportMonksClient) TeamProfile(ctx context.Context, id string) ([]cricket.TeamProfile, cricket.Reason) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, cricket.ReasonNoData
	}

	req := request{
		capability: cricket.CapabilityTeamProfile,
		endpoint:   "teams",
		path:       "teams/" + url.PathEscape(id),
		query:      url.Values{"include": {"country,results"}},
	}
	return fetch(ctx, c.apiClient, req, func(body []byte) ([]cricket.TeamProfile, cricket.Reason) {
		var raw sportMonksTeam
		if reason := decodeSportMonks(body, &raw); !reason.OK() {
			return nil, reason
		}
		if strings.TrimSpace(raw.Name) == "" {
			return nil, cricket.ReasonNone
		}
		return []cricket.TeamProfile{{
			Team:        c.convertTeam(raw),
			ImagePath:   raw.ImagePath,
			Performance: sportMonksPerformance(raw),
		}}, cricket.ReasonNone
	})
}

func (c *SportMonksClient) decodeFixtures(body []byte) ([]cricket.Fixture, cricket.Reason) {
	var raw []sportMonksFixture
	if reason := decodeSportMonks(body, &raw); !reason.OK() {
		return nil, reason
	}
	fixtures := make([]cricket.Fixture, 0, len(raw))
	for _, f := range raw {
		var participants []string
		for _, t := range []*sportMonksTeam{f.LocalTeam, f.VisitorTeam} {
			if t != nil && t.Name != "" {
				participants = append(participants, t.Name)
			}
		}
		title := strings.Join(participants, " vs ")
		if f.Round != "" {
			title = strings.TrimSpace(title + ", " + f.Round)
		}
		venue := ""
		if f.Venue != nil {
			venue = f.Venue.Name
		}
		fixtures = append(fixtures, cricket.Fixture{
			ID:           string(f.ID),
			Title:        orDefault(title, "TBD"),
			StartTime:    normalizeTimestamp(f.StartingAt),
			Format:       sportMonksFormat(f),
			Venue:        venue,
			Status:       orDefault(f.Status, "NS"),
			Participants: participants,
		})
	}
	return fixtures, cricket.ReasonNone
}

// extractPerformance finds the named player's batting and bowling lines in one scorecard
func (c *SportMonksClient) extractPerformance(f sportMonksFixture, name string) (cricket.MatchPerformance, bool) {
	var (
		found  bool
		teamID int
		perf   cricket.MatchPerformance
	)

	for _, b := range f.Batting {
		if b.Batsman == nil || !matchesPlayer(*b.Batsman, name) {
			continue
		}
		found = true
		teamID = int(b.TeamID)
		perf.Runs = int(b.Score)
		perf.BallsFaced = int(b.Ball)
		perf.Fours = int(b.FourX)
		perf.Sixes = int(b.SixX)
		perf.StrikeRate = round1(float64(b.Rate))
		if perf.StrikeRate == 0 && perf.BallsFaced > 0 {
			perf.StrikeRate = round1(float64(perf.Runs) / float64(perf.BallsFaced) * 100)
		}
		perf.NotOut = b.CatchStumpPlayerID == nil && b.BowlingPlayerID == nil
		break
	}
	for _, b := range f.Bowling {
		if b.Bowler == nil || !matchesPlayer(*b.Bowler, name) {
			continue
		}
		found = true
		if teamID == 0 {
			teamID = int(b.TeamID)
		}
		perf.Wickets = int(b.Wickets)
		perf.Economy = round1(float64(b.Rate))
		if perf.Economy == 0 && b.Overs > 0 {
			perf.Economy = round1(float64(b.Runs) / float64(b.Overs))
		}
		break
	}
	if !found {
		return cricket.MatchPerformance{}, false
	}

	perf.Opponent = "Unknown"
	for _, t := range []*sportMonksTeam{f.LocalTeam, f.VisitorTeam} {
		if t != nil && string(t.ID) != "" && string(t.ID) != strconv.Itoa(teamID) {
			perf.Opponent = t.Name
		}
	}
	if f.Venue != nil {
		perf.Venue = f.Venue.Name
	}
	perf.Format = sportMonksFormat(f)
	perf.Date = dateOnly(f.StartingAt)
	perf.Result = sportMonksResult(f, teamID)
	perf.Milestone = milestone(perf.Runs)
	return perf, true
}

func (c *SportMonksClient) convertTeam(t sportMonksTeam) cricket.Team {
	team := cricket.Team{
		ID:         string(t.ID),
		Name:       strings.TrimSpace(t.Name),
		Code:       strings.ToUpper(t.Code),
		Country:    countryName(t.Country),
		IsNational: t.NationalTeam,
	}
	if t.ImagePath != "" {
		team.Metadata = map[string]string{"image": t.ImagePath}
	}
	return team
}

func (c *SportMonksClient) convertPlayer(p sportMonksPlayer, team *sportMonksTeam) (cricket.Player, bool) {
	name := strings.TrimSpace(p.FullName)
	if name == "" {
		name = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	if name == "" {
		return cricket.Player{}, false
	}

	player := cricket.Player{
		ID:           string(p.ID),
		FullName:     name,
		Country:      countryName(p.Country),
		Role:         "Unknown",
		BattingStyle: p.BattingStyle,
		BowlingStyle: p.BowlingStyle,
	}
	if p.Position != nil && p.Position.Name != "" {
		player.Role = p.Position.Name
	}
	if team != nil {
		player.Team = team.Name
		player.TeamCode = strings.ToUpper(team.Code)
		if player.Country == "" {
			player.Country = countryName(team.Country)
		}
	}
	return player, true
}

// sportMonksCareerStats sums career lines. Averages are recomputed from the
// totals; nil means the player has no recorded career.
func sportMonksCareerStats(lines []sportMonksCareer) *cricket.CareerStats {
	if len(lines) == 0 {
		return nil
	}

	var (
		stats                       cricket.CareerStats
		innings, notOuts, balls     int
		bowlingRuns, bowlingMatches int
		oversBalls                  int
	)
	for _, l := range lines {
		if l.Batting != nil {
			stats.Matches += int(l.Batting.Matches)
			stats.Runs += int(l.Batting.RunsScored)
			stats.Centuries += int(l.Batting.Hundreds)
			stats.Fifties += int(l.Batting.Fifties)
			innings += int(l.Batting.Innings)
			notOuts += int(l.Batting.NotOuts)
			balls += int(l.Batting.BallsFaced)
		}
		if l.Bowling != nil {
			bowlingMatches += int(l.Bowling.Matches)
			stats.Wickets += int(l.Bowling.Wickets)
			bowlingRuns += int(l.Bowling.Runs)
			oversBalls += oversToBalls(float64(l.Bowling.Overs))
		}
	}
	if stats.Matches == 0 {
		stats.Matches = bowlingMatches
	}
	if dismissals := innings - notOuts; dismissals > 0 {
		stats.Average = round2(float64(stats.Runs) / float64(dismissals))
	}
	if balls > 0 {
		stats.StrikeRate = round2(float64(stats.Runs) / float64(balls) * 100)
	}
	if stats.Wickets > 0 {
		stats.BowlingAverage = round2(float64(bowlingRuns) / float64(stats.Wickets))
	}
	if oversBalls > 0 {
		stats.EconomyRate = round2(float64(bowlingRuns) / (float64(oversBalls) / 6))
	}
	return &stats
}

// sportMonksPerformance tallies a team's results, newest first. nil when
// the team has no results.
func sportMonksPerformance(t sportMonksTeam) *cricket.TeamPerformance {
	if len(t.Results) == 0 {
		return nil
	}
	teamID, _ := strconv.Atoi(string(t.ID))

	results := append([]sportMonksFixture(nil), t.Results...)
	sort.SliceStable(results, func(i, j int) bool {
		return normalizeTimestamp(results[i].StartingAt) > normalizeTimestamp(results[j].StartingAt)
	})

	perf := &cricket.TeamPerformance{MatchesPlayed: len(results), RecentForm: []string{}}
	for i, f := range results {
		result := sportMonksResult(f, teamID)
		switch result {
		case cricket.ResultWon:
			perf.Wins++
		case cricket.ResultLost:
			perf.Losses++
		}
		if i < teamFormWindow {
			perf.RecentForm = append(perf.RecentForm, formLetter(result))
		}
	}
	perf.WinRate = math.Round(float64(perf.Wins)/float64(perf.MatchesPlayed)*1000) / 1000
	return perf
}

func formLetter(result string) string {
	switch result {
	case cricket.ResultWon:
		return "W"
	case cricket.ResultLost:
		return "L"
	case cricket.ResultTied:
		return "T"
	}
	return "NR"
}

// oversToBalls reads cricket notation, where 3.4 overs is 3 overs and 4 balls
func oversToBalls(overs float64) int {
	whole := math.Floor(overs)
	return int(whole)*6 + int(math.Round((overs-whole)*10))
}

func sportMonksFormat(f sportMonksFixture) string {
	switch strings.ToUpper(strings.TrimSpace(f.Type)) {
	case "T20I":
		return "T20I"
	case "ODI":
		return "ODI"
	case "TEST", "TEST/5DAY", "4DAY":
		return "Test"
	case "T20":
		return "T20"
	}
	if int(f.LeagueID) == sportMonksT20ILeague {
		return "T20I"
	}
	return "T20"
}

func sportMonksResult(f sportMonksFixture, teamID int) string {
	switch {
	case strings.TrimSpace(f.DrawNoResult) != "":
		return cricket.ResultNoResult
	case f.WinnerTeamID == 0:
		return cricket.ResultTied
	case teamID != 0 && int(f.WinnerTeamID) == teamID:
		return cricket.ResultWon
	default:
		return cricket.ResultLost
	}
}

func matchesPlayer(p sportMonksPlayer, name string) bool {
	if cricket.NormalizeName(p.FullName) == name {
		return true
	}
	return cricket.NormalizeName(p.FirstName+" "+p.LastName) == name
}

func countryName(c *sportMonksCountry) string {
	if c == nil {
		return ""
	}
	return c.Name
}

// normalizeTimestamp renders provider timestamps as RFC3339 in UTC
func normalizeTimestamp(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return s
}

func dateOnly(s string) string {
	if ts := normalizeTimestamp(s); len(ts) >= 10 {
		return ts[:10]
	}
	return s
}

func milestone(runs int) string {
	switch {
	case runs >= 100:
		return "100"
	case runs >= 50:
		return "50"
	}
	return ""
}

// filterPlayers applies the country and search filters locally
func filterPlayers(players []cricket.Player, filter cricket.PlayerFilter) ([]cricket.Player, cricket.Reason) {
	country := cricket.NormalizeName(filter.Country)
	search := cricket.NormalizeName(filter.Search)
	if country == "" && search == "" {
		return players, cricket.ReasonNone
	}

	filtered := make([]cricket.Player, 0, len(players))
	for _, p := range players {
		if country != "" && cricket.NormalizeName(p.Country) != country {
			continue
		}
		if search != "" && !strings.Contains(cricket.NormalizeName(p.FullName), search) {
			continue
		}
		filtered = append(filtered, p)
	}
	if len(filtered) == 0 {
		return nil, cricket.ReasonNoData
	}
	return filtered, cricket.ReasonNone
}
