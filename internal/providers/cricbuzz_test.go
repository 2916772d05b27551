package providers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jstittsworth/cricklytics/internal/cricket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cricbuzzUpcomingBody = `{"typeMatches":[{"matchType":"International","seriesMatches":[
	{"seriesAdWrapper":{"seriesName":"India tour of Australia","matches":[
		{"matchInfo":{"matchId":9001,"matchDesc":"1st Test","matchFormat":"TEST","startDate":"1710460800000","state":"Upcoming",
			"team1":{"teamName":"Australia","teamSName":"AUS"},"team2":{"teamName":"India","teamSName":"IND"},
			"venueInfo":{"id":40,"ground":"Melbourne Cricket Ground","city":"Melbourne"}}},
		{"matchInfo":{"matchId":9002,"matchDesc":"2nd Test","matchFormat":"TEST","startDate":"1730000000000","state":"Upcoming",
			"team1":{"teamName":"Australia"},"team2":{"teamName":"India"},
			"venueInfo":{"id":41,"ground":"Sydney Cricket Ground","city":"Sydney"}}}
	]}},
	{"adDetail":{"name":"ad"}}
]}]}`

func TestCricbuzzClient_Headers(t *testing.T) {
	var key, host string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("X-RapidAPI-Key")
		host = r.Header.Get("X-RapidAPI-Host")
		_, _ = io.WriteString(w, `{"list":[
			{"teamName":"Test Teams"},
			{"teamId":2,"teamName":"India","teamSName":"IND","imageId":172115},
			{"teamId":"4","teamName":"Australia","teamSName":"AUS"}
		]}`)
	}))
	defer srv.Close()

	client := NewCricbuzzClient(ClientConfig{APIKey: "rapid", BaseURL: srv.URL}, Deps{Logger: quietLogger()})
	teams, reason := client.Teams(context.Background())

	require.Equal(t, cricket.ReasonNone, reason)
	assert.Equal(t, "rapid", key)
	assert.Equal(t, CricbuzzHost, host)
	require.Len(t, teams, 2)
	assert.Equal(t, cricket.Team{
		ID: "2", Name: "India", Code: "IND", Country: "India", IsNational: true,
		Metadata: map[string]string{"image_id": "172115"},
	}, teams[0])
}

func TestCricbuzzClient_ErrorMessageAndMalformed(t *testing.T) {
	srv, _ := testServer(t, http.StatusOK, `{"message":"You are not subscribed to this API."}`)
	client := NewCricbuzzClient(ClientConfig{APIKey: "k", BaseURL: srv.URL}, Deps{Logger: quietLogger()})
	_, reason := client.Teams(context.Background())
	assert.Equal(t, cricket.ReasonHTTPError, reason)

	srv2, _ := testServer(t, http.StatusOK, `{"teams":[]}`)
	client = NewCricbuzzClient(ClientConfig{APIKey: "k", BaseURL: srv2.URL}, Deps{Logger: quietLogger()})
	_, reason = client.Teams(context.Background())
	assert.Equal(t, cricket.ReasonMalformedResponse, reason)
}

func TestCricbuzzClient_SquadRoles(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = io.WriteString(w, `{"player":[
			{"name":"BATSMEN"},
			{"id":"1413","name":"Virat Kohli","battingStyle":"Right-hand bat"},
			{"name":"ALL ROUNDER"},
			{"id":"9311","name":"Hardik Pandya","bowlingStyle":"Right-arm fast-medium"},
			{"name":"BOWLER"},
			{"id":"9","name":"Jasprit Bumrah"}
		]}`)
	}))
	defer srv.Close()

	client := NewCricbuzzClient(ClientConfig{APIKey: "k", BaseURL: srv.URL}, Deps{Logger: quietLogger()})
	players, reason := client.Players(context.Background(), cricket.PlayerFilter{TeamID: "2"})

	require.Equal(t, cricket.ReasonNone, reason)
	assert.Equal(t, "/teams/v1/2/players", path)
	require.Len(t, players, 3)
	assert.Equal(t, "Batsman", players[0].Role)
	assert.Equal(t, "All-rounder", players[1].Role)
	assert.Equal(t, "Bowler", players[2].Role)
}

func TestCricbuzzClient_PlayersWithoutFilterSkipNetwork(t *testing.T) {
	srv, hits := testServer(t, http.StatusOK, `{}`)
	client := NewCricbuzzClient(ClientConfig{APIKey: "k", BaseURL: srv.URL}, Deps{Logger: quietLogger()})

	players, reason := client.Players(context.Background(), cricket.PlayerFilter{})

	assert.Nil(t, players)
	assert.Equal(t, cricket.ReasonNoData, reason)
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestCricbuzzClient_FixturesAndVenues(t *testing.T) {
	srv, _ := testServer(t, http.StatusOK, cricbuzzUpcomingBody)
	client := NewCricbuzzClient(ClientConfig{APIKey: "k", BaseURL: srv.URL}, Deps{Cache: newMemoryCache(), Logger: quietLogger()})
	client.now = func() time.Time { return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	fixtures, reason := client.Fixtures(ctx, cricket.FixtureWindow{DaysAhead: 7})
	require.Equal(t, cricket.ReasonNone, reason)
	require.Len(t, fixtures, 1)
	assert.Equal(t, cricket.Fixture{
		ID:           "9001",
		Title:        "Australia vs India, 1st Test",
		StartTime:    "2024-03-15T00:00:00Z",
		Format:       "Test",
		Venue:        "Melbourne Cricket Ground",
		Status:       "Upcoming",
		Participants: []string{"Australia", "India"},
	}, fixtures[0])

	venues, reason := client.Venues(ctx)
	require.Equal(t, cricket.ReasonNone, reason)
	assert.Len(t, venues, 2)
	assert.Equal(t, "Sydney", venues[1].City)
}
