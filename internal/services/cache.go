package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jstittsworth/cricklytics/internal/cricket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrCacheMiss is returned by a CacheStore when a key is absent
var ErrCacheMiss = errors.New("key not found")

// CacheStore is the byte-level backend behind ResponseCache
type CacheStore interface {
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// TTLPolicy maps capability classes to cache lifetimes
type TTLPolicy struct {
	ByCapability map[cricket.Capability]time.Duration
	Default      time.Duration
}

// DefaultTTLPolicy mirrors how quickly each kind of data goes stale
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		ByCapability: map[cricket.Capability]time.Duration{
			cricket.CapabilityLiveMatches:  30 * time.Second,
			cricket.CapabilityFixtures:     15 * time.Minute,
			cricket.CapabilityPlayers:      time.Hour,
			cricket.CapabilityMatchHistory: time.Hour,
			cricket.CapabilityTeams:        24 * time.Hour,
			cricket.CapabilityVenues:       24 * time.Hour,

			cricket.CapabilityPlayerProfile: time.Hour,
			cricket.CapabilityTeamProfile:   time.Hour,
		},
		Default: time.Hour,
	}
}

// TTL resolves the lifetime for a capability
func (p TTLPolicy) TTL(c cricket.Capability) time.Duration {
	if ttl, ok := p.ByCapability[c]; ok && ttl > 0 {
		return ttl
	}
	return p.Default
}

type cacheEntry struct {
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"stored_at"`
	TTL      time.Duration   `json:"ttl"`
}

// CacheStats is a read-only view of cache effectiveness
type CacheStats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Backend string `json:"backend"`
}

// ResponseCache stores normalized provider responses with per-class TTLs.
// Expiry is judged at read time.
type ResponseCache struct {
	store   CacheStore
	backend string
	policy  TTLPolicy
	now     func() time.Time
	logger  *logrus.Logger
	metrics *Metrics

	hits   atomic.Uint64
	misses atomic.Uint64
}

// CacheOption configures a ResponseCache
type CacheOption func(*ResponseCache)

// WithCacheClock overrides the clock used for expiry
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *ResponseCache) {
		c.now = now
	}
}

// WithCacheMetrics attaches Prometheus collectors
func WithCacheMetrics(m *Metrics) CacheOption {
	return func(c *ResponseCache) {
		c.metrics = m
	}
}

// NewResponseCache wraps a store. A nil store falls back to memory.
func NewResponseCache(store CacheStore, policy TTLPolicy, logger *logrus.Logger, opts ...CacheOption) *ResponseCache {
	backend := "redis"
	if store == nil {
		store = NewMemoryStore()
	}
	if _, ok := store.(*MemoryStore); ok {
		backend = "memory"
	}

	c := &ResponseCache{
		store:   store,
		backend: backend,
		policy:  policy,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get decodes a live entry into dest. Absent, expired or undecodable entries are misses.
func (c *ResponseCache) Get(ctx context.Context, key cricket.CacheKey, dest interface{}) bool {
	k := key.String()

	data, err := c.store.Get(ctx, k)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.WithFields(logrus.Fields{
				"component": "response_cache",
				"key":       k,
				"error":     err.Error(),
			}).Warn("Cache read failed")
		}
		return c.miss(key)
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return c.miss(key)
	}
	// expired entries stay until superseded; redis reclaims them by key expiry
	if c.now().Sub(entry.StoredAt) >= entry.TTL {
		return c.miss(key)
	}
	if err := json.Unmarshal(entry.Payload, dest); err != nil {
		c.logger.WithFields(logrus.Fields{
			"component": "response_cache",
			"key":       k,
			"error":     err.Error(),
		}).Warn("Cached payload did not decode")
		return c.miss(key)
	}

	c.hits.Add(1)
	c.metrics.CacheLookup(key.Source, true)
	return true
}

// Put stores value under key, replacing any previous entry
func (c *ResponseCache) Put(ctx context.Context, key cricket.CacheKey, value interface{}) {
	if err := c.put(ctx, key, value); err != nil {
		c.logger.WithFields(logrus.Fields{
			"component": "response_cache",
			"key":       key.String(),
			"error":     err.Error(),
		}).Warn("Cache write failed")
	}
}

func (c *ResponseCache) put(ctx context.Context, key cricket.CacheKey, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	ttl := c.policy.TTL(key.Capability)
	data, err := json.Marshal(cacheEntry{
		Payload:  payload,
		StoredAt: c.now(),
		TTL:      ttl,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	return c.store.Set(ctx, key.String(), data, ttl)
}

// Clear drops every entry
func (c *ResponseCache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Stats returns entry count and hit/miss counters
func (c *ResponseCache) Stats(ctx context.Context) CacheStats {
	n, err := c.store.Len(ctx)
	if err != nil {
		n = -1
	}
	return CacheStats{
		Entries: n,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Backend: c.backend,
	}
}

func (c *ResponseCache) miss(key cricket.CacheKey) bool {
	c.misses.Add(1)
	c.metrics.CacheLookup(key.Source, false)
	return false
}

// MemoryStore is an in-process CacheStore
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return data, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string][]byte)
	return nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}

// RedisStore keeps entries in Redis under a key prefix so several
// service instances share one cache
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store on an existing client
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "cricket:cache:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}
	return data, nil
}

// Clear removes only keys under the store prefix
func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *RedisStore) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return keys, nil
}
