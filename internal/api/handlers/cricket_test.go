package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jstittsworth/cricklytics/internal/services"
	"github.com/jstittsworth/cricklytics/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Count       int      `json:"count"`
		HasRealData bool     `json:"has_real_data"`
		DataSource  []string `json:"data_source"`
	} `json:"meta"`
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// setupRouter serves a service with no provider credentials, so every
// capability is answered without network access
func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	cfg := &config.Config{
		MergeCapabilities: []string{"teams", "players"},
		HistoryLimit:      20,
	}
	svc, err := services.NewCricketService(cfg, quietLogger(), nil, nil)
	require.NoError(t, err)

	h := NewCricketHandler(svc, quietLogger())
	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.GET("/teams", h.GetTeams)
	v1.GET("/players", h.GetPlayers)
	v1.GET("/venues", h.GetVenues)
	v1.GET("/fixtures", h.GetFixtures)
	v1.GET("/matches/live", h.GetLiveMatches)
	v1.GET("/players/:name", h.GetPlayerProfile)
	v1.GET("/players/:name/history", h.GetPlayerHistory)
	v1.GET("/teams/:id/stats", h.GetTeamStats)
	v1.GET("/players/:name/analytics", h.GetPlayerAnalytics)
	v1.GET("/data/:capability", h.GetCapability)
	v1.GET("/usage", h.GetUsage)
	v1.DELETE("/cache", h.ClearCache)
	return router
}

func get(t *testing.T, router *gin.Engine, path string) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestCricketHandler_SyntheticListings(t *testing.T) {
	router := setupRouter(t)

	tests := []struct {
		name      string
		path      string
		wantCount int
	}{
		{name: "teams", path: "/api/v1/teams", wantCount: 10},
		{name: "venues", path: "/api/v1/venues", wantCount: 8},
		{name: "players by country", path: "/api/v1/players?country=India", wantCount: 3},
		{name: "history with limit", path: "/api/v1/players/Virat%20Kohli/history?limit=5", wantCount: 5},
		{name: "history default limit", path: "/api/v1/players/Virat%20Kohli/history", wantCount: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := get(t, router, tt.path)

			assert.Equal(t, http.StatusOK, code)
			assert.True(t, env.Success)
			require.NotNil(t, env.Meta)
			assert.Equal(t, tt.wantCount, env.Meta.Count)
			assert.False(t, env.Meta.HasRealData)
			assert.Equal(t, []string{"synthetic"}, env.Meta.DataSource)
		})
	}
}

func TestCricketHandler_FixturesWithoutSources(t *testing.T) {
	router := setupRouter(t)

	for _, path := range []string{"/api/v1/fixtures?days_ahead=3", "/api/v1/matches/live"} {
		code, env := get(t, router, path)

		assert.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `[]`, string(env.Data))
		assert.Equal(t, 0, env.Meta.Count)
		assert.Empty(t, env.Meta.DataSource)
	}
}

func TestCricketHandler_Validation(t *testing.T) {
	router := setupRouter(t)

	for _, path := range []string{
		"/api/v1/fixtures?days_ahead=abc",
		"/api/v1/fixtures?days_ahead=-1",
		"/api/v1/players/Joe%20Root/history?limit=0",
		"/api/v1/players/Joe%20Root/history?limit=1000",
		"/api/v1/players/%20/analytics",
		"/api/v1/players/syn%3B1",
		"/api/v1/teams/%20/stats",
	} {
		code, env := get(t, router, path)

		assert.Equal(t, http.StatusBadRequest, code, path)
		assert.False(t, env.Success)
		require.NotNil(t, env.Error)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	}
}

func TestCricketHandler_PlayerAnalytics(t *testing.T) {
	router := setupRouter(t)

	code, env := get(t, router, "/api/v1/players/Jos%20Buttler/analytics?role=Batsman")
	require.Equal(t, http.StatusOK, code)

	var data struct {
		Player    string                   `json:"player"`
		Analytics services.AnalyticsResult `json:"analytics"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Jos Buttler", data.Player)
	assert.False(t, data.Analytics.HasRealData)
	assert.Equal(t, []string{"synthetic"}, data.Analytics.DataSource)
	assert.Contains(t, []string{services.StreakHot, services.StreakCold, services.StreakSteady}, data.Analytics.RecentForm.Streak)
	assert.Len(t, data.Analytics.PhasePerformance, 3)
}

func TestCricketHandler_Capability(t *testing.T) {
	router := setupRouter(t)

	code, env := get(t, router, "/api/v1/data/rankings")
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNSUPPORTED_CAPABILITY", env.Error.Code)

	code, env = get(t, router, "/api/v1/data/teams")
	require.Equal(t, http.StatusOK, code)

	var result services.FetchResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Empty(t, result.Contributors)
	assert.Len(t, result.Reasons, 3)
	assert.Equal(t, "auth_missing", string(result.Reasons["sportmonks"]))
}

func TestCricketHandler_Usage(t *testing.T) {
	router := setupRouter(t)

	code, env := get(t, router, "/api/v1/usage")
	require.Equal(t, http.StatusOK, code)

	var data struct {
		Status  string                `json:"status"`
		Summary services.UsageSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "synthetic_only", data.Status)
	assert.Len(t, data.Summary.Sources, 3)
}

func TestUsageStatus(t *testing.T) {
	configured := func(name string, exhausted bool, breaker string) services.SourceStatus {
		s := services.SourceStatus{Name: name, Configured: true, Breaker: breaker}
		s.Quota.Exhausted = exhausted
		return s
	}

	tests := []struct {
		name    string
		sources []services.SourceStatus
		want    string
	}{
		{name: "nothing configured", sources: []services.SourceStatus{{Name: "a"}}, want: "synthetic_only"},
		{name: "all healthy", sources: []services.SourceStatus{configured("a", false, "closed")}, want: "ok"},
		{name: "one exhausted", sources: []services.SourceStatus{configured("a", true, "closed"), configured("b", false, "closed")}, want: "degraded"},
		{name: "one tripped", sources: []services.SourceStatus{configured("a", false, "open"), configured("b", false, "half-open")}, want: "degraded"},
		{name: "all impaired", sources: []services.SourceStatus{configured("a", true, "closed"), configured("b", false, "open")}, want: "synthetic_only"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, usageStatus(services.UsageSummary{Sources: tt.sources}))
		})
	}
}

func TestCricketHandler_ClearCache(t *testing.T) {
	router := setupRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/cache", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"cleared":true}}`, w.Body.String())
}

func TestCricketHandler_PlayerProfile(t *testing.T) {
	router := setupRouter(t)

	code, env := get(t, router, "/api/v1/players/syn-1")
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Count)
	assert.False(t, env.Meta.HasRealData)
	assert.Equal(t, []string{"synthetic"}, env.Meta.DataSource)

	var profile struct {
		ID       string `json:"id"`
		FullName string `json:"full_name"`
		Career   *struct {
			Matches int     `json:"matches"`
			Average float64 `json:"average"`
		} `json:"career_stats"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "syn-1", profile.ID)
	assert.Equal(t, "Virat Kohli", profile.FullName)
	require.NotNil(t, profile.Career)
	assert.GreaterOrEqual(t, profile.Career.Matches, 50)
}

func TestCricketHandler_TeamStats(t *testing.T) {
	router := setupRouter(t)

	code, env := get(t, router, "/api/v1/teams/2/stats")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"synthetic"}, env.Meta.DataSource)

	var profile struct {
		Name        string `json:"name"`
		Performance *struct {
			MatchesPlayed int      `json:"matches_played"`
			Wins          int      `json:"wins"`
			Losses        int      `json:"losses"`
			RecentForm    []string `json:"recent_form"`
		} `json:"performance_stats"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "Australia", profile.Name)
	require.NotNil(t, profile.Performance)
	assert.Equal(t, profile.Performance.MatchesPlayed, profile.Performance.Wins+profile.Performance.Losses)
	assert.Len(t, profile.Performance.RecentForm, 10)
}
