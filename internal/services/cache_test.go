package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jstittsworth/cricklytics/internal/cricket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func teamsKey(source string) cricket.CacheKey {
	return cricket.CacheKey{
		Source:     source,
		Capability: cricket.CapabilityTeams,
		Endpoint:   "teams",
		Params:     map[string]string{"page": "1", "country": "IN"},
	}
}

func TestCacheKey_ParamOrderDoesNotMatter(t *testing.T) {
	a := cricket.CacheKey{Source: "s", Endpoint: "players", Params: map[string]string{"a": "1", "b": "2"}}
	b := cricket.CacheKey{Source: "s", Endpoint: "players", Params: map[string]string{"b": "2", "a": "1"}}
	c := cricket.CacheKey{Source: "s", Endpoint: "players", Params: map[string]string{"a": "1", "b": "3"}}

	assert.Equal(t, a.String(), b.String())
	assert.NotEqual(t, a.String(), c.String())
	assert.Equal(t, "s:players?a=1&b=2", a.String())
}

func TestCacheKey_EscapesParamValues(t *testing.T) {
	injected := cricket.CacheKey{Source: "s", Endpoint: "players", Params: map[string]string{"search": "kohli&team=10"}}
	split := cricket.CacheKey{Source: "s", Endpoint: "players", Params: map[string]string{"search": "kohli", "team": "10"}}

	assert.NotEqual(t, injected.String(), split.String())
	assert.Equal(t, "s:players?search=kohli%26team%3D10", injected.String())
	assert.Equal(t, "s:players?search=kohli&team=10", split.String())
}

func TestResponseCache_PutGetAndExpiry(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	policy := TTLPolicy{
		ByCapability: map[cricket.Capability]time.Duration{cricket.CapabilityTeams: 10 * time.Minute},
		Default:      time.Minute,
	}
	cache := NewResponseCache(nil, policy, newTestLogger(), WithCacheClock(clock.Now))
	ctx := context.Background()

	teams := []cricket.Team{{ID: "1", Name: "India", Code: "IND", IsNational: true}}
	cache.Put(ctx, teamsKey("sportmonks"), teams)

	var got []cricket.Team
	require.True(t, cache.Get(ctx, teamsKey("sportmonks"), &got))
	assert.Equal(t, teams, got)

	// a different source is a different key
	var other []cricket.Team
	assert.False(t, cache.Get(ctx, teamsKey("cricbuzz"), &other))

	clock.Advance(9 * time.Minute)
	assert.True(t, cache.Get(ctx, teamsKey("sportmonks"), &got))

	clock.Advance(time.Minute)
	assert.False(t, cache.Get(ctx, teamsKey("sportmonks"), &got), "entry at exactly ttl is expired")

	stats := cache.Stats(ctx)
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, "memory", stats.Backend)

	// the expired entry is ignored, not removed, until a fresh put supersedes it
	assert.Equal(t, 1, stats.Entries)
	fresh := []cricket.Team{{ID: "1", Name: "India", Code: "IND", IsNational: true, Country: "India"}}
	cache.Put(ctx, teamsKey("sportmonks"), fresh)
	require.True(t, cache.Get(ctx, teamsKey("sportmonks"), &got))
	assert.Equal(t, fresh, got)
	assert.Equal(t, 1, cache.Stats(ctx).Entries)
}

func TestResponseCache_PutSupersedes(t *testing.T) {
	cache := NewResponseCache(NewMemoryStore(), DefaultTTLPolicy(), newTestLogger())
	ctx := context.Background()

	cache.Put(ctx, teamsKey("s"), []cricket.Team{{Name: "Old"}})
	cache.Put(ctx, teamsKey("s"), []cricket.Team{{Name: "New"}})

	var got []cricket.Team
	require.True(t, cache.Get(ctx, teamsKey("s"), &got))
	assert.Equal(t, "New", got[0].Name)
	assert.Equal(t, 1, cache.Stats(ctx).Entries)

	require.NoError(t, cache.Clear(ctx))
	assert.False(t, cache.Get(ctx, teamsKey("s"), &got))
}

func TestTTLPolicy_Defaults(t *testing.T) {
	policy := DefaultTTLPolicy()

	assert.Equal(t, 30*time.Second, policy.TTL(cricket.CapabilityLiveMatches))
	assert.Equal(t, 24*time.Hour, policy.TTL(cricket.CapabilityVenues))
	assert.Equal(t, time.Hour, policy.TTL(cricket.Capability("unknown")))
}

func TestResponseCache_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	// unrelated keys must survive Clear
	require.NoError(t, client.Set(context.Background(), "session:abc", "x", 0).Err())

	cache := NewResponseCache(NewRedisStore(client, ""), DefaultTTLPolicy(), newTestLogger())
	ctx := context.Background()

	players := []cricket.Player{{ID: "7", FullName: "MS Dhoni", Role: "Wicketkeeper"}}
	key := cricket.CacheKey{Source: "cricketdata", Capability: cricket.CapabilityPlayers, Endpoint: "players"}
	cache.Put(ctx, key, players)

	var got []cricket.Player
	require.True(t, cache.Get(ctx, key, &got))
	assert.Equal(t, players, got)
	assert.Equal(t, time.Hour, mr.TTL("cricket:cache:"+key.String()))

	stats := cache.Stats(ctx)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, "redis", stats.Backend)

	require.NoError(t, cache.Clear(ctx))
	assert.False(t, cache.Get(ctx, key, &got))
	assert.True(t, mr.Exists("session:abc"))
}
