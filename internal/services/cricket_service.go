package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jstittsworth/cricklytics/internal/cricket"
	"github.com/jstittsworth/cricklytics/internal/providers"
	"github.com/jstittsworth/cricklytics/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultRole = "Batsman"

// Provenance tells callers whether data is real and which sources supplied it
type Provenance struct {
	HasRealData bool     `json:"has_real_data"`
	DataSource  []string `json:"data_source"`
}

func realProvenance(contributors []string) Provenance {
	return Provenance{HasRealData: len(contributors) > 0, DataSource: append([]string{}, contributors...)}
}

func syntheticProvenance() Provenance {
	return Provenance{DataSource: []string{SyntheticSource}}
}

// SourceStatus is the usage view of one upstream source
type SourceStatus struct {
	Name            string     `json:"name"`
	Priority        int        `json:"priority"`
	Configured      bool       `json:"configured"`
	Breaker         string     `json:"breaker"`
	BreakerFailures uint32     `json:"breaker_failures"`
	Quota           QuotaUsage `json:"quota"`
}

// UsageSummary is a read-only snapshot of quota, breaker and cache state
type UsageSummary struct {
	Sources     []SourceStatus `json:"sources"`
	Cache       CacheStats     `json:"cache"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// CricketService answers every capability with real data when a source has
// it and with synthetic data of the same shape when none does
type CricketService struct {
	router       *FallbackRouter
	synthetic    *SyntheticGenerator
	analytics    *AnalyticsEngine
	cache        *ResponseCache
	guards       []*QuotaGuard
	breakers     *CircuitBreakerService
	configured   map[string]bool
	metrics      *Metrics
	logger       *logrus.Logger
	historyLimit int
}

type sourceFactory func(cfg providers.ClientConfig, deps providers.Deps) cricket.Source

var sourceFactories = map[string]sourceFactory{
	providers.SportMonksName: func(cfg providers.ClientConfig, deps providers.Deps) cricket.Source {
		return providers.NewSportMonksClient(cfg, deps)
	},
	providers.CricketDataName: func(cfg providers.ClientConfig, deps providers.Deps) cricket.Source {
		return providers.NewCricketDataClient(cfg, deps)
	},
	providers.CricbuzzName: func(cfg providers.ClientConfig, deps providers.Deps) cricket.Source {
		return providers.NewCricbuzzClient(cfg, deps)
	},
}

// NewCricketService wires guards, breakers, the cache and provider clients from config.
// redisClient may be nil, in which case the cache is process-local.
func NewCricketService(cfg *config.Config, logger *logrus.Logger, redisClient *redis.Client, metrics *Metrics) (*CricketService, error) {
	var store CacheStore
	if redisClient != nil {
		store = NewRedisStore(redisClient, "")
	}
	cache := NewResponseCache(store, ttlPolicyFromConfig(cfg), logger, WithCacheMetrics(metrics))
	breakers := NewCircuitBreakerService(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerTimeout, logger)

	s := &CricketService{
		synthetic:    NewSyntheticGenerator(time.Now()),
		analytics:    NewAnalyticsEngine(),
		cache:        cache,
		breakers:     breakers,
		configured:   make(map[string]bool),
		metrics:      metrics,
		logger:       logger,
		historyLimit: cfg.HistoryLimit,
	}

	var sources []cricket.Source
	for i, p := range cfg.Providers() {
		factory, ok := sourceFactories[p.Name]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", p.Name)
		}

		guard := NewQuotaGuard(cricket.SourceDescriptor{
			Name:        p.Name,
			Priority:    i + 1,
			PerMinute:   p.PerMinute,
			PerHour:     p.PerHour,
			PerDay:      p.PerDay,
			MinInterval: p.MinInterval,
		}, logger)
		s.guards = append(s.guards, guard)
		s.configured[p.Name] = p.APIKey != ""

		sources = append(sources, factory(
			providers.ClientConfig{
				APIKey:  p.APIKey,
				BaseURL: p.BaseURL,
				Host:    p.Host,
				Timeout: cfg.ExternalAPITimeout,
			},
			providers.Deps{
				Cache:   cache,
				Quota:   guard,
				Breaker: breakers.Breaker(p.Name),
				Metrics: metrics,
				Logger:  logger,
			},
		))

		if !s.configured[p.Name] {
			logger.WithFields(logrus.Fields{
				"component": "cricket_service",
				"source":    p.Name,
			}).Warn("No API key configured, source will report auth_missing")
		}
	}

	opts, err := routerOptions(cfg)
	if err != nil {
		return nil, err
	}
	s.router = NewFallbackRouter(sources, logger, opts...)

	return s, nil
}

func ttlPolicyFromConfig(cfg *config.Config) TTLPolicy {
	policy := DefaultTTLPolicy()
	overrides := map[cricket.Capability]time.Duration{
		cricket.CapabilityLiveMatches:  cfg.CacheTTLLive,
		cricket.CapabilityFixtures:     cfg.CacheTTLFixtures,
		cricket.CapabilityPlayers:      cfg.CacheTTLPlayers,
		cricket.CapabilityMatchHistory: cfg.CacheTTLHistory,
		cricket.CapabilityTeams:        cfg.CacheTTLTeams,
		cricket.CapabilityVenues:       cfg.CacheTTLVenues,

		cricket.CapabilityPlayerProfile: cfg.CacheTTLProfiles,
		cricket.CapabilityTeamProfile:   cfg.CacheTTLProfiles,
	}
	for c, ttl := range overrides {
		if ttl > 0 {
			policy.ByCapability[c] = ttl
		}
	}
	if cfg.CacheTTLDefault > 0 {
		policy.Default = cfg.CacheTTLDefault
	}
	return policy
}

func routerOptions(cfg *config.Config) ([]RouterOption, error) {
	var opts []RouterOption
	for name, order := range cfg.SourcePriority {
		capability, err := cricket.ParseCapability(name)
		if err != nil {
			return nil, fmt.Errorf("invalid source priority: %w", err)
		}
		opts = append(opts, WithPriority(capability, order...))
	}

	merge := make([]cricket.Capability, 0, len(cfg.MergeCapabilities))
	for _, name := range cfg.MergeCapabilities {
		capability, err := cricket.ParseCapability(name)
		if err != nil {
			return nil, fmt.Errorf("invalid merge capability: %w", err)
		}
		merge = append(merge, capability)
	}
	opts = append(opts, WithMerge(merge...))
	return opts, nil
}

func (s *CricketService) Teams(ctx context.Context) ([]cricket.Team, Provenance) {
	res := s.router.Teams(ctx)
	if res.Found() {
		return res.Records, realProvenance(res.Contributors)
	}
	s.fallback(cricket.CapabilityTeams, res.Reasons)
	return s.synthetic.Teams(), syntheticProvenance()
}

func (s *CricketService) Players(ctx context.Context, filter cricket.PlayerFilter) ([]cricket.Player, Provenance) {
	res := s.router.Players(ctx, filter)
	if res.Found() {
		return res.Records, realProvenance(res.Contributors)
	}
	s.fallback(cricket.CapabilityPlayers, res.Reasons)
	return s.synthetic.Players(filter), syntheticProvenance()
}

func (s *CricketService) Venues(ctx context.Context) ([]cricket.Venue, Provenance) {
	res := s.router.Venues(ctx)
	if res.Found() {
		return res.Records, realProvenance(res.Contributors)
	}
	s.fallback(cricket.CapabilityVenues, res.Reasons)
	return s.synthetic.Venues(), syntheticProvenance()
}

// Fixtures has no synthetic fallback; an empty schedule is a valid answer
func (s *CricketService) Fixtures(ctx context.Context, window cricket.FixtureWindow) ([]cricket.Fixture, Provenance) {
	res := s.router.Fixtures(ctx, window)
	return res.Records, realProvenance(res.Contributors)
}

// LiveMatches has no synthetic fallback
func (s *CricketService) LiveMatches(ctx context.Context) ([]cricket.Fixture, Provenance) {
	res := s.router.LiveMatches(ctx)
	return res.Records, realProvenance(res.Contributors)
}

// MatchHistory returns up to limit entries, newest first. limit <= 0 uses the configured default.
func (s *CricketService) MatchHistory(ctx context.Context, player string, limit int) ([]cricket.MatchPerformance, Provenance) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	res := s.router.MatchHistory(ctx, player, limit)
	if res.Found() {
		return res.Records, realProvenance(res.Contributors)
	}
	s.fallback(cricket.CapabilityMatchHistory, res.Reasons)
	return s.synthetic.MatchHistory(player, limit), syntheticProvenance()
}

// PlayerAnalytics derives analytics from the player's match history. An empty
// role is resolved from the player directory.
func (s *CricketService) PlayerAnalytics(ctx context.Context, player, role string) AnalyticsResult {
	history, prov := s.MatchHistory(ctx, player, 0)
	if role == "" {
		role = s.playerRole(ctx, player, prov.HasRealData)
	}

	result := s.analytics.Analyze(history, role)
	result.HasRealData = prov.HasRealData
	result.DataSource = prov.DataSource
	return result
}

// PlayerProfile looks a player up by provider id. A real profile without
// career figures gets synthetic ones and lists the synthetic source too.
func (s *CricketService) PlayerProfile(ctx context.Context, id string) (cricket.PlayerProfile, Provenance) {
	res := s.router.PlayerProfile(ctx, id)
	if res.Found() {
		profile := res.Records[0]
		prov := realProvenance(res.Contributors)
		if profile.Career == nil {
			profile.Career = s.synthetic.CareerStats(id)
			prov.DataSource = append(prov.DataSource, SyntheticSource)
		}
		return profile, prov
	}
	s.fallback(cricket.CapabilityPlayerProfile, res.Reasons)
	return s.synthetic.PlayerProfile(id), syntheticProvenance()
}

// TeamProfile looks a team up by provider id, filling missing performance
// figures the same way PlayerProfile fills career figures
func (s *CricketService) TeamProfile(ctx context.Context, id string) (cricket.TeamProfile, Provenance) {
	res := s.router.TeamProfile(ctx, id)
	if res.Found() {
		profile := res.Records[0]
		prov := realProvenance(res.Contributors)
		if profile.Performance == nil {
			profile.Performance = s.synthetic.TeamPerformance(id)
			prov.DataSource = append(prov.DataSource, SyntheticSource)
		}
		return profile, prov
	}
	s.fallback(cricket.CapabilityTeamProfile, res.Reasons)
	return s.synthetic.TeamProfile(id), syntheticProvenance()
}

// Fetch routes a capability by name without synthetic fallback
func (s *CricketService) Fetch(ctx context.Context, capability string, params FetchParams) (FetchResult, error) {
	c, err := cricket.ParseCapability(capability)
	if err != nil {
		return FetchResult{}, err
	}
	if c == cricket.CapabilityMatchHistory && params.Limit <= 0 {
		params.Limit = s.historyLimit
	}
	return s.router.Fetch(ctx, c, params)
}

// playerRole finds the player's listed role. Real histories ask the sources,
// stopping at the first that knows the name and never falling back to
// synthetic players; synthetic histories use the default catalog.
func (s *CricketService) playerRole(ctx context.Context, player string, real bool) string {
	filter := cricket.PlayerFilter{Search: player}
	var players []cricket.Player
	if real {
		players = s.router.FindPlayers(ctx, filter).Records
	} else {
		players = s.synthetic.Players(filter)
	}

	want := cricket.NormalizeName(player)
	for _, p := range players {
		if cricket.NormalizeName(p.FullName) == want && p.Role != "" && p.Role != "Unknown" {
			return p.Role
		}
	}
	return defaultRole
}

func (s *CricketService) fallback(capability cricket.Capability, reasons map[string]cricket.Reason) {
	s.metrics.SyntheticFallback(capability)

	fields := logrus.Fields{
		"component":  "cricket_service",
		"capability": capability,
	}
	for source, reason := range reasons {
		fields[source] = reason
	}
	s.logger.WithFields(fields).Warn("No source returned data, serving synthetic records")
}

// UsageSummary reports quota usage, breaker state and cache statistics
func (s *CricketService) UsageSummary(ctx context.Context) UsageSummary {
	summary := UsageSummary{
		Sources:     make([]SourceStatus, 0, len(s.guards)),
		GeneratedAt: time.Now().UTC(),
	}
	for _, g := range s.guards {
		desc := g.Descriptor()
		status := SourceStatus{
			Name:       desc.Name,
			Priority:   desc.Priority,
			Configured: s.configured[desc.Name],
			Breaker:    "closed",
			Quota:      g.Usage(),
		}
		if s.breakers != nil {
			status.Breaker = s.breakers.GetState(desc.Name).String()
			status.BreakerFailures = s.breakers.GetCounts(desc.Name).ConsecutiveFailures
		}
		summary.Sources = append(summary.Sources, status)
	}
	if s.cache != nil {
		summary.Cache = s.cache.Stats(ctx)
	}
	return summary
}

// ClearCache drops every cached provider response
func (s *CricketService) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear response cache: %w", err)
	}
	s.logger.WithField("component", "cricket_service").Info("Response cache cleared")
	return nil
}

// QuotaGuards exposes the guards for periodic reporting
func (s *CricketService) QuotaGuards() []*QuotaGuard {
	return s.guards
}
