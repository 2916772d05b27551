package cricket

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Team represents a normalized team from any provider
type Team struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Code       string            `json:"code"`
	Country    string            `json:"country"`
	IsNational bool              `json:"is_national"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Player represents a normalized player
type Player struct {
	ID           string `json:"id"`
	FullName     string `json:"full_name"`
	Team         string `json:"team"`
	TeamCode     string `json:"team_code"`
	Country      string `json:"country"`
	Role         string `json:"role"`
	BattingStyle string `json:"batting_style"`
	BowlingStyle string `json:"bowling_style"`
	Ranking      int    `json:"ranking"`
}

// Venue represents a normalized ground
type Venue struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	City     string `json:"city"`
	Country  string `json:"country"`
	Capacity int    `json:"capacity"`
}

// Fixture represents a scheduled or live match
type Fixture struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	StartTime    string   `json:"start_time"` // RFC3339
	Format       string   `json:"format"`
	Venue        string   `json:"venue"`
	Status       string   `json:"status"`
	Participants []string `json:"participants"`
}

// MatchPerformance is one player's line in one match
type MatchPerformance struct {
	MatchNumber int     `json:"match_number"`
	Opponent    string  `json:"opponent"`
	Venue       string  `json:"venue"`
	Format      string  `json:"format"`
	Date        string  `json:"date"` // YYYY-MM-DD
	Runs        int     `json:"runs"`
	BallsFaced  int     `json:"balls_faced"`
	Fours       int     `json:"fours"`
	Sixes       int     `json:"sixes"`
	StrikeRate  float64 `json:"strike_rate"`
	Wickets     int     `json:"wickets"`
	Economy     float64 `json:"economy"`
	NotOut      bool    `json:"not_out"`
	Result      string  `json:"result"` // Won, Lost, Tied, No Result
	Milestone   string  `json:"milestone,omitempty"`
}

// CareerStats aggregates a player's career across formats
type CareerStats struct {
	Matches        int     `json:"matches"`
	Runs           int     `json:"runs"`
	Average        float64 `json:"average"`
	StrikeRate     float64 `json:"strike_rate"`
	Centuries      int     `json:"centuries"`
	Fifties        int     `json:"fifties"`
	Wickets        int     `json:"wickets"`
	BowlingAverage float64 `json:"bowling_average"`
	EconomyRate    float64 `json:"economy_rate"`
}

// PlayerProfile is one player's directory entry with career figures.
// Career is nil when the provider has none.
type PlayerProfile struct {
	Player
	ImagePath string       `json:"image_path,omitempty"`
	Career    *CareerStats `json:"career_stats"`
}

// TeamPerformance summarizes a team's results, newest first in RecentForm
type TeamPerformance struct {
	MatchesPlayed int            `json:"matches_played"`
	Wins          int            `json:"wins"`
	Losses        int            `json:"losses"`
	WinRate       float64        `json:"win_rate"`
	Rankings      map[string]int `json:"current_ranking,omitempty"`
	RecentForm    []string       `json:"recent_form"`
}

// TeamProfile is one team with its performance figures.
// Performance is nil when the provider has none.
type TeamProfile struct {
	Team
	ImagePath   string           `json:"image_path,omitempty"`
	Performance *TeamPerformance `json:"performance_stats"`
}

// Match results
const (
	ResultWon      = "Won"
	ResultLost     = "Lost"
	ResultTied     = "Tied"
	ResultNoResult = "No Result"
)

// Capability names a kind of data a source can be asked for
type Capability string

const (
	CapabilityTeams        Capability = "teams"
	CapabilityPlayers      Capability = "players"
	CapabilityVenues       Capability = "venues"
	CapabilityFixtures     Capability = "fixtures"
	CapabilityLiveMatches  Capability = "live_matches"
	CapabilityMatchHistory Capability = "match_history"

	CapabilityPlayerProfile Capability = "player_profile"
	CapabilityTeamProfile   Capability = "team_profile"
)

// AllCapabilities lists every capability in a stable order
var AllCapabilities = []Capability{
	CapabilityTeams,
	CapabilityPlayers,
	CapabilityVenues,
	CapabilityFixtures,
	CapabilityLiveMatches,
	CapabilityMatchHistory,
	CapabilityPlayerProfile,
	CapabilityTeamProfile,
}

// ParseCapability validates a capability name
func ParseCapability(s string) (Capability, error) {
	c := Capability(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllCapabilities {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCapability, s)
}

// Reason explains why a source produced no data. The zero value means success.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonAuthMissing       Reason = "auth_missing"
	ReasonQuotaExceeded     Reason = "quota_exceeded"
	ReasonNetworkError      Reason = "network_error"
	ReasonHTTPError         Reason = "http_error"
	ReasonMalformedResponse Reason = "malformed_response"
	ReasonEmptyResponse     Reason = "empty_response"
	ReasonNoData            Reason = "no_data"
)

// OK reports whether the reason denotes a successful fetch
func (r Reason) OK() bool {
	return r == ReasonNone
}

// ErrUnsupportedCapability is returned when a capability is not known to the router
var ErrUnsupportedCapability = errors.New("unsupported capability")

// SourceDescriptor is the static configuration of one upstream provider.
// A zero ceiling means the window is not limited.
type SourceDescriptor struct {
	Name        string        `json:"name"`
	Priority    int           `json:"priority"`
	PerMinute   int           `json:"per_minute"`
	PerHour     int           `json:"per_hour"`
	PerDay      int           `json:"per_day"`
	MinInterval time.Duration `json:"min_interval"`
}

// PlayerFilter narrows a player listing
type PlayerFilter struct {
	TeamID  string `json:"team_id,omitempty"`
	Country string `json:"country,omitempty"`
	Search  string `json:"search,omitempty"`
}

// FixtureWindow bounds an upcoming-fixtures query
type FixtureWindow struct {
	DaysAhead int `json:"days_ahead"`
}

// Source is a single upstream provider normalized to the shared record types.
// Implementations never return errors; failures are reported as a Reason.
type Source interface {
	Name() string
	Teams(ctx context.Context) ([]Team, Reason)
	Players(ctx context.Context, filter PlayerFilter) ([]Player, Reason)
	Venues(ctx context.Context) ([]Venue, Reason)
	Fixtures(ctx context.Context, window FixtureWindow) ([]Fixture, Reason)
	LiveMatches(ctx context.Context) ([]Fixture, Reason)
	MatchHistory(ctx context.Context, player string, limit int) ([]MatchPerformance, Reason)
}

// ProfileSource is implemented by sources that can look up a single player
// or team by the source's own id
type ProfileSource interface {
	PlayerProfile(ctx context.Context, id string) ([]PlayerProfile, Reason)
	TeamProfile(ctx context.Context, id string) ([]TeamProfile, Reason)
}

// CacheKey identifies a cached provider response. Capability selects the TTL
// class and separates records decoded from a shared endpoint.
type CacheKey struct {
	Source     string
	Capability Capability
	Endpoint   string
	Params     map[string]string
}

// String renders the key with params sorted and escaped, so equal requests
// share a key and distinct param sets never collide
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString(k.Source)
	b.WriteByte(':')
	if k.Capability != "" {
		b.WriteString(string(k.Capability))
		b.WriteByte(':')
	}
	b.WriteString(k.Endpoint)

	if len(k.Params) > 0 {
		values := make(url.Values, len(k.Params))
		for p, v := range k.Params {
			values.Set(p, v)
		}
		b.WriteByte('?')
		b.WriteString(values.Encode())
	}
	return b.String()
}

// CacheProvider interface for response cache operations
type CacheProvider interface {
	Get(ctx context.Context, key CacheKey, dest interface{}) bool
	Put(ctx context.Context, key CacheKey, value interface{})
}

// QuotaProvider admits or rejects a call to an endpoint of one source
type QuotaProvider interface {
	Acquire(ctx context.Context, endpoint string) Reason
}

// NormalizeName is the identity used to de-duplicate records across sources
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
