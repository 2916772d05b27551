package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jstittsworth/cricklytics/internal/cricket"
	"github.com/jstittsworth/cricklytics/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		ExternalAPITimeout:      2 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   time.Minute,
		SportMonksBaseURL:       "http://127.0.0.1:1",
		SportMonksPerHour:       180,
		CricketDataBaseURL:      "http://127.0.0.1:1",
		CricketDataPerDay:       100,
		CricbuzzBaseURL:         "http://127.0.0.1:1",
		CricbuzzPerDay:          200,
		MergeCapabilities:       []string{"teams", "players"},
		HistoryLimit:            20,
	}
}

// newServiceWithSources builds a service over arbitrary sources
func newServiceWithSources(sources ...cricket.Source) *CricketService {
	return &CricketService{
		router:       NewFallbackRouter(sources, newTestLogger()),
		synthetic:    NewSyntheticGenerator(fixedNow()),
		analytics:    NewAnalyticsEngine(),
		configured:   map[string]bool{},
		logger:       newTestLogger(),
		historyLimit: 20,
	}
}

func TestCricketService_UnconfiguredSourcesFallBackToSynthetic(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	svc, err := NewCricketService(testConfig(), newTestLogger(), nil, metrics)
	require.NoError(t, err)
	ctx := context.Background()

	teams, prov := svc.Teams(ctx)
	assert.Len(t, teams, 10)
	assert.False(t, prov.HasRealData)
	assert.Equal(t, []string{SyntheticSource}, prov.DataSource)

	venues, prov := svc.Venues(ctx)
	assert.Len(t, venues, 8)
	assert.Equal(t, []string{SyntheticSource}, prov.DataSource)

	history, prov := svc.MatchHistory(ctx, "Virat Kohli", 0)
	assert.Len(t, history, 20)
	assert.False(t, prov.HasRealData)

	fixtures, prov := svc.Fixtures(ctx, cricket.FixtureWindow{DaysAhead: 7})
	assert.NotNil(t, fixtures)
	assert.Empty(t, fixtures)
	assert.Empty(t, prov.DataSource)
	assert.False(t, prov.HasRealData)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.fallbacks.WithLabelValues("teams")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.fallbacks.WithLabelValues("fixtures")))

	// auth_missing never reaches the network or the quota guard
	summary := svc.UsageSummary(ctx)
	require.Len(t, summary.Sources, 3)
	for _, s := range summary.Sources {
		assert.False(t, s.Configured)
		assert.Equal(t, 0, s.Quota.Day)
		assert.Equal(t, "closed", s.Breaker)
		assert.Zero(t, s.BreakerFailures)
	}
	assert.Equal(t, "sportmonks", summary.Sources[0].Name)
	assert.Equal(t, 1, summary.Sources[0].Priority)
	assert.Equal(t, "memory", summary.Cache.Backend)
}

func TestCricketService_RealDataFromConfiguredSource(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "token", r.URL.Query().Get("api_token"))
		if strings.HasSuffix(r.URL.Path, "/teams") {
			_, _ = io.WriteString(w, `{"data":[{"id":1,"name":"India","code":"ind","national_team":true},{"id":2,"name":"Australia","code":"aus","national_team":true}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := testConfig()
	cfg.SportMonksAPIKey = "token"
	cfg.SportMonksBaseURL = srv.URL

	svc, err := NewCricketService(cfg, newTestLogger(), client, nil)
	require.NoError(t, err)
	ctx := context.Background()

	teams, prov := svc.Teams(ctx)
	require.Len(t, teams, 2)
	assert.Equal(t, "IND", teams[0].Code)
	assert.True(t, prov.HasRealData)
	assert.Equal(t, []string{"sportmonks"}, prov.DataSource)

	// second call is served from the shared cache
	_, _ = svc.Teams(ctx)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	summary := svc.UsageSummary(ctx)
	assert.True(t, summary.Sources[0].Configured)
	assert.Equal(t, 1, summary.Sources[0].Quota.Day)
	assert.Equal(t, "redis", summary.Cache.Backend)
	assert.Equal(t, uint64(1), summary.Cache.Hits)
}

func TestCricketService_InvalidRoutingConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SourcePriority = map[string][]string{"rankings": {"sportmonks"}}

	_, err := NewCricketService(cfg, newTestLogger(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cricket.ErrUnsupportedCapability)

	cfg = testConfig()
	cfg.MergeCapabilities = []string{"scores"}
	_, err = NewCricketService(cfg, newTestLogger(), nil, nil)
	assert.ErrorIs(t, err, cricket.ErrUnsupportedCapability)
}

func TestCricketService_PlayerAnalytics(t *testing.T) {
	ctx := context.Background()
	source := newMockSource("premium")

	history := battingHistory(45, 10, 60, 5, 70)
	source.On("MatchHistory", ctx, "Virat Kohli", 20).Return(history, cricket.ReasonNone)
	source.On("Players", ctx, cricket.PlayerFilter{Search: "Virat Kohli"}).
		Return([]cricket.Player{{FullName: "Virat Kohli", Role: "Batsman"}}, cricket.ReasonNone)

	svc := newServiceWithSources(source)
	result := svc.PlayerAnalytics(ctx, "Virat Kohli", "")

	assert.True(t, result.HasRealData)
	assert.Equal(t, []string{"premium"}, result.DataSource)
	assert.Equal(t, StreakHot, result.RecentForm.Streak)
	source.AssertExpectations(t)
}

func TestCricketService_PlayerAnalyticsSynthetic(t *testing.T) {
	ctx := context.Background()
	source := newMockSource("premium")
	source.On("MatchHistory", ctx, "Unknown Player", 20).Return(nil, cricket.ReasonNoData)

	svc := newServiceWithSources(source)
	result := svc.PlayerAnalytics(ctx, "Unknown Player", "Bowler")

	assert.False(t, result.HasRealData)
	assert.Equal(t, []string{SyntheticSource}, result.DataSource)
	assert.Equal(t, 20, result.Situational.Defending.Matches+result.Situational.Chasing.Matches)
	source.AssertNotCalled(t, "Players", mock.Anything, mock.Anything)
}

func TestCricketService_PlayerAnalyticsRoleLookupStopsAtFirstSource(t *testing.T) {
	ctx := context.Background()
	premium := newMockSource("premium")
	backup := newMockSource("backup")

	premium.On("MatchHistory", ctx, "Jasprit Bumrah", 20).Return(battingHistory(4, 2, 0, 1, 3), cricket.ReasonNone)
	premium.On("Players", ctx, cricket.PlayerFilter{Search: "Jasprit Bumrah"}).
		Return([]cricket.Player{{FullName: "Jasprit Bumrah", Role: "Bowler"}}, cricket.ReasonNone)

	svc := newServiceWithSources(premium, backup)
	result := svc.PlayerAnalytics(ctx, "Jasprit Bumrah", "")

	assert.Contains(t, result.RecentForm.Summary, "wickets")
	premium.AssertExpectations(t)
	backup.AssertNotCalled(t, "Players", mock.Anything, mock.Anything)
}

func TestCricketService_PlayerAnalyticsWithoutRoleRecordsNoPlayersFallback(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	svc, err := NewCricketService(testConfig(), newTestLogger(), nil, metrics)
	require.NoError(t, err)
	ctx := context.Background()

	result := svc.PlayerAnalytics(ctx, "Some Player", "")
	assert.False(t, result.HasRealData)
	assert.Contains(t, result.RecentForm.Summary, "Averaging")

	// the synthetic catalog still supplies known roles
	result = svc.PlayerAnalytics(ctx, "Jasprit Bumrah", "")
	assert.Contains(t, result.RecentForm.Summary, "wickets")

	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.fallbacks.WithLabelValues("players")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.fallbacks.WithLabelValues("match_history")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.sourceRequests.WithLabelValues("sportmonks", "auth_missing")))
}

func TestCricketService_Fetch(t *testing.T) {
	ctx := context.Background()
	source := newMockSource("premium")
	source.On("MatchHistory", ctx, "Joe Root", 20).Return([]cricket.MatchPerformance{{MatchNumber: 1}}, cricket.ReasonNone)

	svc := newServiceWithSources(source)

	result, err := svc.Fetch(ctx, "MATCH_HISTORY", FetchParams{Player: "Joe Root"})
	require.NoError(t, err)
	assert.Equal(t, []string{"premium"}, result.Contributors)

	_, err = svc.Fetch(ctx, "rankings", FetchParams{})
	assert.ErrorIs(t, err, cricket.ErrUnsupportedCapability)
}

func TestCricketService_PlayerProfile(t *testing.T) {
	ctx := context.Background()
	source := newMockProfileSource("premium")

	career := &cricket.CareerStats{Matches: 110, Runs: 4008, Average: 52.73}
	source.On("PlayerProfile", ctx, "55").
		Return([]cricket.PlayerProfile{{Player: cricket.Player{ID: "55", FullName: "Virat Kohli"}, Career: career}}, cricket.ReasonNone)
	source.On("PlayerProfile", ctx, "56").
		Return([]cricket.PlayerProfile{{Player: cricket.Player{ID: "56", FullName: "Joe Root"}}}, cricket.ReasonNone)
	source.On("PlayerProfile", ctx, "57").Return(nil, cricket.ReasonNoData)

	svc := newServiceWithSources(source)

	profile, prov := svc.PlayerProfile(ctx, "55")
	assert.True(t, prov.HasRealData)
	assert.Equal(t, []string{"premium"}, prov.DataSource)
	assert.Equal(t, career, profile.Career)

	profile, prov = svc.PlayerProfile(ctx, "56")
	assert.True(t, prov.HasRealData)
	assert.Equal(t, []string{"premium", SyntheticSource}, prov.DataSource)
	assert.Equal(t, "Joe Root", profile.FullName)
	assert.Equal(t, svc.synthetic.CareerStats("56"), profile.Career)

	profile, prov = svc.PlayerProfile(ctx, "57")
	assert.False(t, prov.HasRealData)
	assert.Equal(t, []string{SyntheticSource}, prov.DataSource)
	assert.Equal(t, "Player 57", profile.FullName)
	require.NotNil(t, profile.Career)

	source.AssertExpectations(t)
}

func TestCricketService_TeamProfile(t *testing.T) {
	ctx := context.Background()
	source := newMockProfileSource("premium")

	perf := &cricket.TeamPerformance{MatchesPlayed: 3, Wins: 2, Losses: 1, WinRate: 0.667, RecentForm: []string{"W", "L", "W"}}
	source.On("TeamProfile", ctx, "10").
		Return([]cricket.TeamProfile{{Team: cricket.Team{ID: "10", Name: "India"}, Performance: perf}}, cricket.ReasonNone)
	source.On("TeamProfile", ctx, "11").
		Return([]cricket.TeamProfile{{Team: cricket.Team{ID: "11", Name: "Ireland"}}}, cricket.ReasonNone)

	svc := newServiceWithSources(source)

	profile, prov := svc.TeamProfile(ctx, "10")
	assert.Equal(t, []string{"premium"}, prov.DataSource)
	assert.Equal(t, perf, profile.Performance)

	profile, prov = svc.TeamProfile(ctx, "11")
	assert.True(t, prov.HasRealData)
	assert.Equal(t, []string{"premium", SyntheticSource}, prov.DataSource)
	assert.Equal(t, svc.synthetic.TeamPerformance("11"), profile.Performance)
}

func TestCricketService_ProfilesFallBackToSynthetic(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	svc, err := NewCricketService(testConfig(), newTestLogger(), nil, metrics)
	require.NoError(t, err)
	ctx := context.Background()

	player, prov := svc.PlayerProfile(ctx, "syn-1")
	assert.False(t, prov.HasRealData)
	assert.Equal(t, "Virat Kohli", player.FullName)
	require.NotNil(t, player.Career)

	team, prov := svc.TeamProfile(ctx, "3")
	assert.False(t, prov.HasRealData)
	assert.Equal(t, "England", team.Name)
	require.NotNil(t, team.Performance)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.fallbacks.WithLabelValues("player_profile")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.fallbacks.WithLabelValues("team_profile")))
}
