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

const cricketDataCurrentMatches = `{
	"apikey": "x",
	"status": "success",
	"data": [
		{
			"id": "m1", "name": "India vs Australia, 1st T20I", "matchType": "t20",
			"status": "India need 40 runs", "venue": "Eden Gardens, Kolkata",
			"dateTimeGMT": "2024-03-10T14:00:00", "teams": ["India", "Australia"],
			"teamInfo": [
				{"name": "India", "shortname": "IND", "img": "https://img/ind.png"},
				{"name": "Australia", "shortname": "AUS"}
			],
			"matchStarted": true, "matchEnded": false
		},
		{
			"id": "m2", "name": "England vs India, 2nd ODI", "matchType": "odi",
			"status": "England won by 5 wkts", "venue": "The Oval, London",
			"dateTimeGMT": "2024-03-09T10:00:00", "teams": ["England", "india"],
			"matchStarted": true, "matchEnded": true
		}
	]
}`

func TestCricketDataClient_EnvelopeStatus(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason cricket.Reason
	}{
		{name: "failure status", body: `{"status":"failure","reason":"Invalid API Key"}`, reason: cricket.ReasonHTTPError},
		{name: "missing status", body: `{"data":[]}`, reason: cricket.ReasonMalformedResponse},
		{name: "success without data", body: `{"status":"success"}`, reason: cricket.ReasonEmptyResponse},
		{name: "success with empty data", body: `{"status":"success","data":[]}`, reason: cricket.ReasonNoData},
		{name: "data of the wrong shape", body: `{"status":"success","data":{"x":1}}`, reason: cricket.ReasonMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(t, http.StatusOK, tt.body)
			client := NewCricketDataClient(ClientConfig{APIKey: "key", BaseURL: srv.URL}, Deps{Logger: quietLogger()})

			_, reason := client.Teams(context.Background())
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestCricketDataClient_TeamsAndVenuesFromCurrentMatches(t *testing.T) {
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.URL.Query().Get("apikey")
		_, _ = io.WriteString(w, cricketDataCurrentMatches)
	}))
	defer srv.Close()

	cache := newMemoryCache()
	client := NewCricketDataClient(ClientConfig{APIKey: "abc", BaseURL: srv.URL}, Deps{Cache: cache, Logger: quietLogger()})
	ctx := context.Background()

	teams, reason := client.Teams(ctx)
	require.Equal(t, cricket.ReasonNone, reason)
	assert.Equal(t, "abc", apiKey)
	require.Len(t, teams, 3)
	assert.Equal(t, cricket.Team{ID: "india", Name: "India", Code: "IND", Metadata: map[string]string{"image": "https://img/ind.png"}}, teams[0])
	assert.Equal(t, "England", teams[2].Name)

	// same endpoint, different capability, must not reuse the cached teams
	venues, reason := client.Venues(ctx)
	require.Equal(t, cricket.ReasonNone, reason)
	assert.Equal(t, []cricket.Venue{
		{ID: "eden-gardens", Name: "Eden Gardens", City: "Kolkata"},
		{ID: "the-oval", Name: "The Oval", City: "London"},
	}, venues)

	live, reason := client.LiveMatches(ctx)
	require.Equal(t, cricket.ReasonNone, reason)
	require.Len(t, live, 1)
	assert.Equal(t, cricket.Fixture{
		ID:           "m1",
		Title:        "India vs Australia, 1st T20I",
		StartTime:    "2024-03-10T14:00:00Z",
		Format:       "T20",
		Venue:        "Eden Gardens",
		Status:       "India need 40 runs",
		Participants: []string{"India", "Australia"},
	}, live[0])
}

func TestCricketDataClient_FixturesWindow(t *testing.T) {
	srv, _ := testServer(t, http.StatusOK, `{"status":"success","data":[
		{"id":"f1","name":"A vs B","matchType":"test","dateTimeGMT":"2024-03-11T04:00:00","teams":["A","B"]},
		{"id":"f2","name":"C vs D","matchType":"t20","dateTimeGMT":"2024-04-30T04:00:00","teams":["C","D"]},
		{"id":"f3","name":"E vs F","matchType":"odi","dateTimeGMT":"2024-03-09T04:00:00","teams":["E","F"],"matchStarted":true}
	]}`)
	client := NewCricketDataClient(ClientConfig{APIKey: "key", BaseURL: srv.URL}, Deps{Logger: quietLogger()})
	client.now = func() time.Time { return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC) }

	fixtures, reason := client.Fixtures(context.Background(), cricket.FixtureWindow{DaysAhead: 7})
	require.Equal(t, cricket.ReasonNone, reason)
	require.Len(t, fixtures, 1)
	assert.Equal(t, "f1", fixtures[0].ID)
	assert.Equal(t, "Test", fixtures[0].Format)
	assert.Equal(t, []string{"A", "B"}, fixtures[0].Participants)
}

func TestCricketDataClient_PlayersAndHistory(t *testing.T) {
	var search string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		search = r.URL.Query().Get("search")
		_, _ = io.WriteString(w, `{"status":"success","data":[
			{"id":"p1","name":"Jasprit Bumrah","country":"India"},
			{"id":"p2","name":"Jason Roy","country":"England"}
		]}`)
	}))
	defer srv.Close()

	client := NewCricketDataClient(ClientConfig{APIKey: "key", BaseURL: srv.URL}, Deps{Logger: quietLogger()})
	ctx := context.Background()

	players, reason := client.Players(ctx, cricket.PlayerFilter{Search: "Ja", Country: "India"})
	require.Equal(t, cricket.ReasonNone, reason)
	assert.Equal(t, "Ja", search)
	assert.Equal(t, []cricket.Player{{ID: "p1", FullName: "Jasprit Bumrah", Country: "India", Role: "Unknown"}}, players)

	history, reason := client.MatchHistory(ctx, "Jasprit Bumrah", 10)
	assert.Nil(t, history)
	assert.Equal(t, cricket.ReasonNoData, reason)
}

func TestCricketDataClient_PlayersDeclinesTeamFilter(t *testing.T) {
	srv, hits := testServer(t, http.StatusOK, `{"status":"success","data":[
		{"id":"p1","name":"Virat Kohli","country":"India"},
		{"id":"p2","name":"Steve Smith","country":"Australia"},
		{"id":"p3","name":"Joe Root","country":"England"}
	]}`)
	quota := &stubQuota{}
	client := NewCricketDataClient(ClientConfig{APIKey: "key", BaseURL: srv.URL}, Deps{Quota: quota, Logger: quietLogger()})

	players, reason := client.Players(context.Background(), cricket.PlayerFilter{TeamID: "999"})

	assert.Equal(t, cricket.ReasonNoData, reason)
	assert.Empty(t, players)
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
	assert.Empty(t, quota.endpoints)
}
