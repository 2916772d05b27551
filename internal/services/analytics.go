package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jstittsworth/cricklytics/internal/cricket"
)

// Streak classifications
const (
	StreakHot     = "hot"
	StreakCold    = "cold"
	StreakSteady  = "steady"
	StreakUnknown = "unknown"
)

const recentFormWindow = 5

// RecentForm summarizes the trailing window of a history
type RecentForm struct {
	Streak        string  `json:"streak"`
	Summary       string  `json:"summary"`
	MomentumScore float64 `json:"momentum_score"`
	Window        int     `json:"window"`
}

// SplitStats aggregates one partition of a history
type SplitStats struct {
	Matches    int     `json:"matches"`
	Average    float64 `json:"average"`
	StrikeRate float64 `json:"strike_rate"`
	WinPct     float64 `json:"win_pct"`
	Runs       int     `json:"runs"`
}

// Situational holds the batting-first, batting-second and pressure splits
type Situational struct {
	Defending SplitStats `json:"defending"`
	Chasing   SplitStats `json:"chasing"`
	Pressure  SplitStats `json:"pressure"`
}

// PhaseStats is one phase-of-innings bucket
type PhaseStats struct {
	Phase      string  `json:"phase"`
	Overs      string  `json:"overs"`
	Runs       int     `json:"runs"`
	Average    float64 `json:"average"`
	StrikeRate float64 `json:"strike_rate"`
	Matches    int     `json:"matches"`
	Estimated  bool    `json:"estimated"`
}

// VenueStats aggregates matches at one venue or venue class
type VenueStats struct {
	Venue      string  `json:"venue,omitempty"`
	Matches    int     `json:"matches"`
	Average    float64 `json:"average"`
	StrikeRate float64 `json:"strike_rate"`
	Runs       int     `json:"runs"`
}

// VenueSplits partitions a history into home, away and neutral grounds
type VenueSplits struct {
	Home       VenueStats   `json:"home"`
	Away       VenueStats   `json:"away"`
	Neutral    VenueStats   `json:"neutral"`
	BestVenues []VenueStats `json:"best_venues"`
}

// AnalyticsResult is derived per request and never stored
type AnalyticsResult struct {
	HasRealData      bool         `json:"has_real_data"`
	DataSource       []string     `json:"data_source"`
	RecentForm       RecentForm   `json:"recent_form"`
	Situational      Situational  `json:"situational"`
	PhasePerformance []PhaseStats `json:"phase_performance"`
	VenueSplits      VenueSplits  `json:"venue_splits"`
	Notes            []string     `json:"notes,omitempty"`
}

type phaseModel struct {
	name       string
	overs      string
	share      float64
	multiplier float64
}

// T20 phase shares of runs and strike-rate multipliers relative to the innings
var phaseModels = []phaseModel{
	{name: "Powerplay", overs: "1-6", share: 0.35, multiplier: 1.4},
	{name: "Middle", overs: "7-15", share: 0.45, multiplier: 0.9},
	{name: "Death", overs: "16-20", share: 0.20, multiplier: 1.6},
}

const (
	phaseNote       = "Phase performance is estimated from whole-innings totals; ball-by-ball data was not used."
	situationalNote = "Defending and chasing splits alternate by match order and approximate innings order."
)

// AnalyticsEngine derives form, situational, phase and venue views from a match history
type AnalyticsEngine struct{}

func NewAnalyticsEngine() *AnalyticsEngine {
	return &AnalyticsEngine{}
}

// Analyze never fails; an empty history yields zeroed views and an unknown streak.
// history is read in the order given: recent form scores its last five
// entries and the situational split alternates by position, so callers pass
// the sequence in the order those windows should see it.
func (e *AnalyticsEngine) Analyze(history []cricket.MatchPerformance, role string) AnalyticsResult {
	result := AnalyticsResult{
		DataSource:       []string{},
		RecentForm:       e.RecentForm(history, role),
		Situational:      e.Situational(history),
		PhasePerformance: e.PhasePerformance(history),
		VenueSplits:      e.VenueSplits(history),
	}
	if len(history) > 0 {
		result.Notes = []string{situationalNote, phaseNote}
	}
	return result
}

// bowlingRoles are the normalized role labels judged on bowling figures
var bowlingRoles = map[string]bool{
	"bowler":            true,
	"allrounder":        true,
	"bowlingallrounder": true,
}

// IsBowlingRole reports whether recent form is judged on bowling figures.
// Labels are compared with case, spaces and hyphens ignored.
func IsBowlingRole(role string) bool {
	r := strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(role)))
	return bowlingRoles[r]
}

// RecentForm classifies the last five entries
func (e *AnalyticsEngine) RecentForm(history []cricket.MatchPerformance, role string) RecentForm {
	if len(history) == 0 {
		return RecentForm{Streak: StreakUnknown, Summary: "No data available"}
	}

	window := history
	if len(window) > recentFormWindow {
		window = window[len(window)-recentFormWindow:]
	}
	n := float64(len(window))

	if IsBowlingRole(role) {
		wickets := 0
		economy := 0.0
		for _, m := range window {
			wickets += m.Wickets
			economy += m.Economy
		}
		economy /= n

		streak := StreakSteady
		switch {
		case economy < 6.5 && wickets >= 3:
			streak = StreakHot
		case economy > 8.0:
			streak = StreakCold
		}
		return RecentForm{
			Streak:        streak,
			Summary:       fmt.Sprintf("%d wickets at an economy of %.1f in the last %d matches", wickets, economy, len(window)),
			MomentumScore: round1(clamp(100-economy*10+float64(wickets)*5, 20, 100)),
			Window:        len(window),
		}
	}

	runs := 0
	strikeRate := 0.0
	thirties := 0
	for _, m := range window {
		runs += m.Runs
		strikeRate += m.StrikeRate
		if m.Runs >= 30 {
			thirties++
		}
	}
	average := float64(runs) / n
	strikeRate /= n

	streak := StreakSteady
	switch {
	case average >= 35 && thirties >= 3:
		streak = StreakHot
	case average < 20:
		streak = StreakCold
	}
	return RecentForm{
		Streak:        streak,
		Summary:       fmt.Sprintf("Averaging %.1f with %d scores of 30+ in the last %d innings", average, thirties, len(window)),
		MomentumScore: round1(clamp(average*1.5+strikeRate*0.3, 20, 100)),
		Window:        len(window),
	}
}

// Situational alternates entries between defending (even index) and chasing (odd index)
func (e *AnalyticsEngine) Situational(history []cricket.MatchPerformance) Situational {
	var defending, chasing, pressure []cricket.MatchPerformance
	for i, m := range history {
		if i%2 == 0 {
			defending = append(defending, m)
		} else {
			chasing = append(chasing, m)
		}
		if m.Result == cricket.ResultLost || m.Result == cricket.ResultTied {
			pressure = append(pressure, m)
		}
	}
	return Situational{
		Defending: splitStats(defending),
		Chasing:   splitStats(chasing),
		Pressure:  splitStats(pressure),
	}
}

func splitStats(matches []cricket.MatchPerformance) SplitStats {
	if len(matches) == 0 {
		return SplitStats{}
	}
	runs, wins := 0, 0
	sr := 0.0
	for _, m := range matches {
		runs += m.Runs
		sr += m.StrikeRate
		if m.Result == cricket.ResultWon {
			wins++
		}
	}
	n := float64(len(matches))
	return SplitStats{
		Matches:    len(matches),
		Average:    round1(float64(runs) / n),
		StrikeRate: round1(sr / n),
		WinPct:     round1(float64(wins) / n * 100),
		Runs:       runs,
	}
}

// PhasePerformance apportions aggregate runs across the three T20 phases.
// Every bucket is an estimate.
func (e *AnalyticsEngine) PhasePerformance(history []cricket.MatchPerformance) []PhaseStats {
	runs, balls := 0, 0
	for _, m := range history {
		runs += m.Runs
		balls += m.BallsFaced
	}
	overallSR := 0.0
	if balls > 0 {
		overallSR = float64(runs) / float64(balls) * 100
	}

	phases := make([]PhaseStats, 0, len(phaseModels))
	for _, p := range phaseModels {
		stats := PhaseStats{
			Phase:     p.name,
			Overs:     p.overs,
			Matches:   len(history),
			Estimated: true,
		}
		if len(history) > 0 {
			stats.Runs = int(float64(runs) * p.share)
			stats.Average = round1(float64(runs) * p.share / float64(len(history)))
			stats.StrikeRate = round1(overallSR * p.multiplier)
		}
		phases = append(phases, stats)
	}
	return phases
}

// VenueSplits classifies venues by how often they recur in the history
func (e *AnalyticsEngine) VenueSplits(history []cricket.MatchPerformance) VenueSplits {
	splits := VenueSplits{BestVenues: []VenueStats{}}
	if len(history) == 0 {
		return splits
	}

	byVenue := make(map[string][]cricket.MatchPerformance)
	var order []string
	for _, m := range history {
		name := strings.TrimSpace(m.Venue)
		if name == "" {
			name = "Unknown"
		}
		if _, ok := byVenue[name]; !ok {
			order = append(order, name)
		}
		byVenue[name] = append(byVenue[name], m)
	}

	maxFreq := 0
	for _, matches := range byVenue {
		if len(matches) > maxFreq {
			maxFreq = len(matches)
		}
	}
	homeThreshold := math.Max(2, 0.7*float64(maxFreq))

	var home, away, neutral []cricket.MatchPerformance
	var best []VenueStats
	for _, name := range order {
		matches := byVenue[name]
		switch {
		case float64(len(matches)) >= homeThreshold:
			home = append(home, matches...)
		case len(matches) == 1:
			neutral = append(neutral, matches...)
		default:
			away = append(away, matches...)
		}
		if len(matches) >= 2 {
			stats := venueStats(matches)
			stats.Venue = name
			best = append(best, stats)
		}
	}

	sort.SliceStable(best, func(i, j int) bool {
		if best[i].Average != best[j].Average {
			return best[i].Average > best[j].Average
		}
		return best[i].Venue < best[j].Venue
	})
	if len(best) > 5 {
		best = best[:5]
	}

	splits.Home = venueStats(home)
	splits.Away = venueStats(away)
	splits.Neutral = venueStats(neutral)
	if best != nil {
		splits.BestVenues = best
	}
	return splits
}

func venueStats(matches []cricket.MatchPerformance) VenueStats {
	if len(matches) == 0 {
		return VenueStats{}
	}
	runs := 0
	sr := 0.0
	for _, m := range matches {
		runs += m.Runs
		sr += m.StrikeRate
	}
	n := float64(len(matches))
	return VenueStats{
		Matches:    len(matches),
		Average:    round1(float64(runs) / n),
		StrikeRate: round1(sr / n),
		Runs:       runs,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
