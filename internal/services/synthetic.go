package services

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/jstittsworth/cricklytics/internal/cricket"
)

// SyntheticSource tags records produced by the generator
const SyntheticSource = "synthetic"

const defaultSyntheticCount = 10

var (
	syntheticOpponents = []string{
		"Australia", "England", "India", "Pakistan", "South Africa",
		"New Zealand", "West Indies", "Sri Lanka", "Bangladesh", "Afghanistan",
	}
	syntheticVenues = []string{
		"Eden Gardens", "Wankhede Stadium", "Melbourne Cricket Ground", "Lord's",
		"The Oval", "Sydney Cricket Ground", "Newlands", "Basin Reserve",
	}
	syntheticFormats = []string{"T20", "T20I", "ODI"}
)

type archetype struct {
	name          string
	minRuns       int
	maxRuns       int
	minSR         float64
	maxSR         float64
	dismissalProb float64
	boundaryShare float64
}

var archetypes = []archetype{
	{name: "aggressive", minRuns: 0, maxRuns: 105, minSR: 140, maxSR: 190, dismissalProb: 0.85, boundaryShare: 0.7},
	{name: "consistent", minRuns: 15, maxRuns: 75, minSR: 110, maxSR: 140, dismissalProb: 0.7, boundaryShare: 0.45},
	{name: "balanced", minRuns: 5, maxRuns: 90, minSR: 120, maxSR: 160, dismissalProb: 0.78, boundaryShare: 0.55},
}

// SyntheticGenerator produces plausible, reproducible records when no source
// has data. Output depends only on the identity and the anchor day.
type SyntheticGenerator struct {
	anchor time.Time
}

// NewSyntheticGenerator anchors generated dates to the day of now
func NewSyntheticGenerator(now time.Time) *SyntheticGenerator {
	return &SyntheticGenerator{anchor: dayStart(now)}
}

// Seed derives the PRNG seed for an identity
func Seed(identity string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(cricket.NormalizeName(identity)))
	return int64(h.Sum64() & math.MaxInt64)
}

// MatchHistory generates count entries, newest first. count <= 0 yields the default count.
func (g *SyntheticGenerator) MatchHistory(identity string, count int) []cricket.MatchPerformance {
	if count <= 0 {
		count = defaultSyntheticCount
	}

	seed := Seed(identity)
	rng := rand.New(rand.NewSource(seed))
	arch := archetypes[seed%int64(len(archetypes))]
	homeVenue := syntheticVenues[seed%int64(len(syntheticVenues))]

	history := make([]cricket.MatchPerformance, 0, count)
	daysBack := 0
	for i := 0; i < count; i++ {
		daysBack += 3 + rng.Intn(8)

		runs := arch.minRuns + rng.Intn(arch.maxRuns-arch.minRuns+1)
		sr := arch.minSR + rng.Float64()*(arch.maxSR-arch.minSR)
		balls := int(math.Round(float64(runs) * 100 / sr))
		if balls < 1 {
			balls = 1 + rng.Intn(4)
		}

		// boundaries never account for more runs than were scored
		boundaryRuns := int(float64(runs) * arch.boundaryShare * (0.8 + 0.2*rng.Float64()))
		sixes := rng.Intn(boundaryRuns/6 + 1)
		fours := (boundaryRuns - 6*sixes) / 4

		venue := homeVenue
		if rng.Float64() >= 0.5 {
			venue = syntheticVenues[rng.Intn(len(syntheticVenues))]
		}

		history = append(history, cricket.MatchPerformance{
			MatchNumber: count - i,
			Opponent:    syntheticOpponents[rng.Intn(len(syntheticOpponents))],
			Venue:       venue,
			Format:      syntheticFormats[rng.Intn(len(syntheticFormats))],
			Date:        g.anchor.AddDate(0, 0, -daysBack).Format("2006-01-02"),
			Runs:        runs,
			BallsFaced:  balls,
			Fours:       fours,
			Sixes:       sixes,
			StrikeRate:  math.Round(float64(runs)/float64(balls)*1000) / 10,
			Wickets:     syntheticWickets(rng),
			Economy:     math.Round((5.5+rng.Float64()*4.5)*10) / 10,
			NotOut:      rng.Float64() >= arch.dismissalProb,
			Result:      syntheticResult(rng),
			Milestone:   syntheticMilestone(runs),
		})
	}
	return history
}

// Archetype names the scoring profile an identity maps to
func (g *SyntheticGenerator) Archetype(identity string) string {
	return archetypes[Seed(identity)%int64(len(archetypes))].name
}

func syntheticWickets(rng *rand.Rand) int {
	r := rng.Float64()
	switch {
	case r < 0.4:
		return 0
	case r < 0.7:
		return 1
	case r < 0.9:
		return 2
	default:
		return 3
	}
}

func syntheticResult(rng *rand.Rand) string {
	r := rng.Float64()
	switch {
	case r < 0.45:
		return cricket.ResultWon
	case r < 0.9:
		return cricket.ResultLost
	default:
		return cricket.ResultTied
	}
}

func syntheticMilestone(runs int) string {
	switch {
	case runs >= 100:
		return "100"
	case runs >= 50:
		return "50"
	}
	return ""
}

var defaultTeams = []cricket.Team{
	{ID: "1", Name: "India", Code: "IND", Country: "India", IsNational: true},
	{ID: "2", Name: "Australia", Code: "AUS", Country: "Australia", IsNational: true},
	{ID: "3", Name: "England", Code: "ENG", Country: "England", IsNational: true},
	{ID: "4", Name: "Pakistan", Code: "PAK", Country: "Pakistan", IsNational: true},
	{ID: "5", Name: "South Africa", Code: "SA", Country: "South Africa", IsNational: true},
	{ID: "6", Name: "New Zealand", Code: "NZ", Country: "New Zealand", IsNational: true},
	{ID: "7", Name: "West Indies", Code: "WI", Country: "West Indies", IsNational: true},
	{ID: "8", Name: "Sri Lanka", Code: "SL", Country: "Sri Lanka", IsNational: true},
	{ID: "9", Name: "Bangladesh", Code: "BAN", Country: "Bangladesh", IsNational: true},
	{ID: "10", Name: "Afghanistan", Code: "AFG", Country: "Afghanistan", IsNational: true},
}

var defaultVenues = []cricket.Venue{
	{ID: "1", Name: "Lord's", City: "London", Country: "England", Capacity: 30000},
	{ID: "2", Name: "Eden Gardens", City: "Kolkata", Country: "India", Capacity: 66000},
	{ID: "3", Name: "Melbourne Cricket Ground", City: "Melbourne", Country: "Australia", Capacity: 100000},
	{ID: "4", Name: "The Oval", City: "London", Country: "England", Capacity: 25000},
	{ID: "5", Name: "Wankhede Stadium", City: "Mumbai", Country: "India", Capacity: 33000},
	{ID: "6", Name: "Sydney Cricket Ground", City: "Sydney", Country: "Australia", Capacity: 48000},
	{ID: "7", Name: "Newlands", City: "Cape Town", Country: "South Africa", Capacity: 25000},
	{ID: "8", Name: "Basin Reserve", City: "Wellington", Country: "New Zealand", Capacity: 11600},
}

var defaultPlayers = []cricket.Player{
	{FullName: "Virat Kohli", Team: "India", TeamCode: "IND", Country: "India", Role: "Batsman", BattingStyle: "Right-hand bat", BowlingStyle: "Right-arm medium"},
	{FullName: "Jasprit Bumrah", Team: "India", TeamCode: "IND", Country: "India", Role: "Bowler", BattingStyle: "Right-hand bat", BowlingStyle: "Right-arm fast"},
	{FullName: "Hardik Pandya", Team: "India", TeamCode: "IND", Country: "India", Role: "All-rounder", BattingStyle: "Right-hand bat", BowlingStyle: "Right-arm fast-medium"},
	{FullName: "Steve Smith", Team: "Australia", TeamCode: "AUS", Country: "Australia", Role: "Batsman", BattingStyle: "Right-hand bat", BowlingStyle: "Right-arm leg-break"},
	{FullName: "Pat Cummins", Team: "Australia", TeamCode: "AUS", Country: "Australia", Role: "Bowler", BattingStyle: "Right-hand bat", BowlingStyle: "Right-arm fast"},
	{FullName: "Joe Root", Team: "England", TeamCode: "ENG", Country: "England", Role: "Batsman", BattingStyle: "Right-hand bat", BowlingStyle: "Right-arm off-break"},
	{FullName: "Ben Stokes", Team: "England", TeamCode: "ENG", Country: "England", Role: "All-rounder", BattingStyle: "Left-hand bat", BowlingStyle: "Right-arm fast-medium"},
	{FullName: "Babar Azam", Team: "Pakistan", TeamCode: "PAK", Country: "Pakistan", Role: "Batsman", BattingStyle: "Right-hand bat", BowlingStyle: "Right-arm off-break"},
	{FullName: "Shaheen Afridi", Team: "Pakistan", TeamCode: "PAK", Country: "Pakistan", Role: "Bowler", BattingStyle: "Left-hand bat", BowlingStyle: "Left-arm fast"},
	{FullName: "Kagiso Rabada", Team: "South Africa", TeamCode: "SA", Country: "South Africa", Role: "Bowler", BattingStyle: "Left-hand bat", BowlingStyle: "Right-arm fast"},
	{FullName: "Kane Williamson", Team: "New Zealand", TeamCode: "NZ", Country: "New Zealand", Role: "Batsman", BattingStyle: "Right-hand bat", BowlingStyle: "Right-arm off-break"},
	{FullName: "Rashid Khan", Team: "Afghanistan", TeamCode: "AFG", Country: "Afghanistan", Role: "Bowler", BattingStyle: "Right-hand bat", BowlingStyle: "Right-arm leg-break"},
}

// Teams returns the default catalog of international sides
func (g *SyntheticGenerator) Teams() []cricket.Team {
	return append([]cricket.Team(nil), defaultTeams...)
}

// Venues returns the default catalog of grounds
func (g *SyntheticGenerator) Venues() []cricket.Venue {
	return append([]cricket.Venue(nil), defaultVenues...)
}

// Players returns the default players matching filter
func (g *SyntheticGenerator) Players(filter cricket.PlayerFilter) []cricket.Player {
	team := cricket.NormalizeName(filter.TeamID)
	country := cricket.NormalizeName(filter.Country)
	search := cricket.NormalizeName(filter.Search)

	players := []cricket.Player{}
	for i, p := range defaultPlayers {
		if team != "" && team != teamIDFor(p.TeamCode) && team != cricket.NormalizeName(p.TeamCode) && team != cricket.NormalizeName(p.Team) {
			continue
		}
		if country != "" && country != cricket.NormalizeName(p.Country) {
			continue
		}
		if search != "" && !strings.Contains(cricket.NormalizeName(p.FullName), search) {
			continue
		}
		p.ID = "syn-" + strconv.Itoa(i+1)
		p.Ranking = i + 1
		players = append(players, p)
	}
	return players
}

func teamIDFor(code string) string {
	for _, t := range defaultTeams {
		if t.Code == code {
			return t.ID
		}
	}
	return ""
}

var syntheticRankingFormats = []string{"T20", "ODI", "Test"}

// PlayerProfile builds a profile for id. Catalog ids ("syn-N") keep their
// catalog identity; any other id gets a placeholder name.
func (g *SyntheticGenerator) PlayerProfile(id string) cricket.PlayerProfile {
	player := cricket.Player{ID: id, FullName: "Player " + id, Role: defaultRole}
	for i, p := range defaultPlayers {
		if id == "syn-"+strconv.Itoa(i+1) {
			player = p
			player.ID = id
			player.Ranking = i + 1
			break
		}
	}
	return cricket.PlayerProfile{Player: player, Career: g.CareerStats(id)}
}

// CareerStats generates career figures seeded by the player id
func (g *SyntheticGenerator) CareerStats(id string) *cricket.CareerStats {
	rng := rand.New(rand.NewSource(Seed("player:" + id)))
	return &cricket.CareerStats{
		Matches:        50 + rng.Intn(151),
		Runs:           1000 + rng.Intn(7001),
		Average:        math.Round((25+rng.Float64()*30)*100) / 100,
		StrikeRate:     math.Round((120+rng.Float64()*40)*100) / 100,
		Centuries:      5 + rng.Intn(21),
		Fifties:        15 + rng.Intn(46),
		Wickets:        rng.Intn(151),
		BowlingAverage: math.Round((20+rng.Float64()*15)*100) / 100,
		EconomyRate:    math.Round((6+rng.Float64()*3)*100) / 100,
	}
}

// TeamProfile builds a profile for id, using the default catalog entry when
// the id is one of its ids
func (g *SyntheticGenerator) TeamProfile(id string) cricket.TeamProfile {
	team := cricket.Team{ID: id, Name: "Team " + id}
	for _, t := range defaultTeams {
		if t.ID == id {
			team = t
			break
		}
	}
	return cricket.TeamProfile{Team: team, Performance: g.TeamPerformance(id)}
}

// TeamPerformance generates results seeded by the team id. Wins and losses
// always add up to the matches played.
func (g *SyntheticGenerator) TeamPerformance(id string) *cricket.TeamPerformance {
	rng := rand.New(rand.NewSource(Seed("team:" + id)))
	matches := 100 + rng.Intn(201)
	rate := 0.55 + rng.Float64()*0.3
	wins := int(math.Round(float64(matches) * rate))

	rankings := make(map[string]int, len(syntheticRankingFormats))
	for _, format := range syntheticRankingFormats {
		rankings[format] = 1 + rng.Intn(12)
	}

	form := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		if rng.Float64() < rate {
			form = append(form, "W")
		} else {
			form = append(form, "L")
		}
	}

	return &cricket.TeamPerformance{
		MatchesPlayed: matches,
		Wins:          wins,
		Losses:        matches - wins,
		WinRate:       math.Round(float64(wins)/float64(matches)*1000) / 1000,
		Rankings:      rankings,
		RecentForm:    form,
	}
}
