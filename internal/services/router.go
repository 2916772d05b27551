package services

import (
	"context"
	"fmt"

	"github.com/jstittsworth/cricklytics/internal/cricket"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of routing one capability request. Records is never nil.
type Result[T any] struct {
	Records      []T                       `json:"records"`
	Contributors []string                  `json:"contributors"`
	Reasons      map[string]cricket.Reason `json:"reasons,omitempty"`
}

// Found reports whether any source contributed
func (r Result[T]) Found() bool {
	return len(r.Contributors) > 0
}

// FetchParams carries the arguments of every capability; each uses what it needs
type FetchParams struct {
	Filter cricket.PlayerFilter  `json:"filter"`
	Window cricket.FixtureWindow `json:"window"`
	Player string                `json:"player"`
	Limit  int                   `json:"limit"`
	ID     string                `json:"id"`
}

// FetchResult is the type-erased form of Result returned by Fetch
type FetchResult struct {
	Capability   cricket.Capability        `json:"capability"`
	Records      interface{}               `json:"records"`
	Contributors []string                  `json:"contributors"`
	Reasons      map[string]cricket.Reason `json:"reasons,omitempty"`
}

// FallbackRouter queries sources in per-capability priority order
type FallbackRouter struct {
	sources  map[string]cricket.Source
	order    []string
	priority map[cricket.Capability][]string
	merge    map[cricket.Capability]bool
	logger   *logrus.Logger
}

// RouterOption configures a FallbackRouter
type RouterOption func(*FallbackRouter)

// WithPriority sets the source order for one capability
func WithPriority(capability cricket.Capability, names ...string) RouterOption {
	return func(r *FallbackRouter) {
		r.priority[capability] = append([]string(nil), names...)
	}
}

// WithMerge marks list capabilities whose results are combined across sources
func WithMerge(capabilities ...cricket.Capability) RouterOption {
	return func(r *FallbackRouter) {
		r.merge = make(map[cricket.Capability]bool, len(capabilities))
		for _, c := range capabilities {
			if c == cricket.CapabilityTeams || c == cricket.CapabilityPlayers {
				r.merge[c] = true
			}
		}
	}
}

// NewFallbackRouter registers sources in default priority order
func NewFallbackRouter(sources []cricket.Source, logger *logrus.Logger, opts ...RouterOption) *FallbackRouter {
	r := &FallbackRouter{
		sources:  make(map[string]cricket.Source, len(sources)),
		priority: make(map[cricket.Capability][]string),
		merge: map[cricket.Capability]bool{
			cricket.CapabilityTeams:   true,
			cricket.CapabilityPlayers: true,
		},
		logger: logger,
	}
	for _, s := range sources {
		if _, dup := r.sources[s.Name()]; dup {
			continue
		}
		r.sources[s.Name()] = s
		r.order = append(r.order, s.Name())
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Order returns the sources consulted for a capability, highest priority first
func (r *FallbackRouter) Order(capability cricket.Capability) []cricket.Source {
	names, ok := r.priority[capability]
	if !ok || len(names) == 0 {
		names = r.order
	}

	ordered := make([]cricket.Source, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		s, ok := r.sources[name]
		if !ok {
			r.logger.WithFields(logrus.Fields{
				"component":  "fallback_router",
				"capability": capability,
				"source":     name,
			}).Warn("Unknown source in priority list")
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		ordered = append(ordered, s)
	}
	return ordered
}

// Merges reports whether a capability combines results across sources
func (r *FallbackRouter) Merges(capability cricket.Capability) bool {
	return r.merge[capability]
}

func (r *FallbackRouter) Teams(ctx context.Context) Result[cricket.Team] {
	call := func(s cricket.Source) ([]cricket.Team, cricket.Reason) { return s.Teams(ctx) }
	if r.Merges(cricket.CapabilityTeams) {
		return mergeAll(r, cricket.CapabilityTeams, call, func(t cricket.Team) string { return t.Name })
	}
	return firstAvailable(r, cricket.CapabilityTeams, call)
}

func (r *FallbackRouter) Players(ctx context.Context, filter cricket.PlayerFilter) Result[cricket.Player] {
	call := func(s cricket.Source) ([]cricket.Player, cricket.Reason) { return s.Players(ctx, filter) }
	if r.Merges(cricket.CapabilityPlayers) {
		return mergeAll(r, cricket.CapabilityPlayers, call, func(p cricket.Player) string { return p.FullName })
	}
	return firstAvailable(r, cricket.CapabilityPlayers, call)
}

// FindPlayers stops at the first source with matching players, whatever the merge setting
func (r *FallbackRouter) FindPlayers(ctx context.Context, filter cricket.PlayerFilter) Result[cricket.Player] {
	return firstAvailable(r, cricket.CapabilityPlayers, func(s cricket.Source) ([]cricket.Player, cricket.Reason) {
		return s.Players(ctx, filter)
	})
}

func (r *FallbackRouter) Venues(ctx context.Context) Result[cricket.Venue] {
	return firstAvailable(r, cricket.CapabilityVenues, func(s cricket.Source) ([]cricket.Venue, cricket.Reason) {
		return s.Venues(ctx)
	})
}

func (r *FallbackRouter) Fixtures(ctx context.Context, window cricket.FixtureWindow) Result[cricket.Fixture] {
	return firstAvailable(r, cricket.CapabilityFixtures, func(s cricket.Source) ([]cricket.Fixture, cricket.Reason) {
		return s.Fixtures(ctx, window)
	})
}

func (r *FallbackRouter) LiveMatches(ctx context.Context) Result[cricket.Fixture] {
	return firstAvailable(r, cricket.CapabilityLiveMatches, func(s cricket.Source) ([]cricket.Fixture, cricket.Reason) {
		return s.LiveMatches(ctx)
	})
}

func (r *FallbackRouter) MatchHistory(ctx context.Context, player string, limit int) Result[cricket.MatchPerformance] {
	return firstAvailable(r, cricket.CapabilityMatchHistory, func(s cricket.Source) ([]cricket.MatchPerformance, cricket.Reason) {
		return s.MatchHistory(ctx, player, limit)
	})
}

// PlayerProfile asks sources that support single-player lookups, in priority order
func (r *FallbackRouter) PlayerProfile(ctx context.Context, id string) Result[cricket.PlayerProfile] {
	return firstAvailable(r, cricket.CapabilityPlayerProfile, func(s cricket.Source) ([]cricket.PlayerProfile, cricket.Reason) {
		ps, ok := s.(cricket.ProfileSource)
		if !ok {
			return nil, cricket.ReasonNoData
		}
		return ps.PlayerProfile(ctx, id)
	})
}

// TeamProfile asks sources that support single-team lookups, in priority order
func (r *FallbackRouter) TeamProfile(ctx context.Context, id string) Result[cricket.TeamProfile] {
	return firstAvailable(r, cricket.CapabilityTeamProfile, func(s cricket.Source) ([]cricket.TeamProfile, cricket.Reason) {
		ps, ok := s.(cricket.ProfileSource)
		if !ok {
			return nil, cricket.ReasonNoData
		}
		return ps.TeamProfile(ctx, id)
	})
}

// Fetch dispatches by capability name. It fails only for unknown capabilities.
func (r *FallbackRouter) Fetch(ctx context.Context, capability cricket.Capability, params FetchParams) (FetchResult, error) {
	switch capability {
	case cricket.CapabilityTeams:
		return erase(capability, r.Teams(ctx)), nil
	case cricket.CapabilityPlayers:
		return erase(capability, r.Players(ctx, params.Filter)), nil
	case cricket.CapabilityVenues:
		return erase(capability, r.Venues(ctx)), nil
	case cricket.CapabilityFixtures:
		return erase(capability, r.Fixtures(ctx, params.Window)), nil
	case cricket.CapabilityLiveMatches:
		return erase(capability, r.LiveMatches(ctx)), nil
	case cricket.CapabilityMatchHistory:
		return erase(capability, r.MatchHistory(ctx, params.Player, params.Limit)), nil
	case cricket.CapabilityPlayerProfile:
		return erase(capability, r.PlayerProfile(ctx, params.ID)), nil
	case cricket.CapabilityTeamProfile:
		return erase(capability, r.TeamProfile(ctx, params.ID)), nil
	}
	return FetchResult{}, fmt.Errorf("%w: %q", cricket.ErrUnsupportedCapability, capability)
}

func erase[T any](capability cricket.Capability, res Result[T]) FetchResult {
	return FetchResult{
		Capability:   capability,
		Records:      res.Records,
		Contributors: res.Contributors,
		Reasons:      res.Reasons,
	}
}

// firstAvailable returns the first non-empty result in priority order
func firstAvailable[T any](r *FallbackRouter, capability cricket.Capability, call func(cricket.Source) ([]T, cricket.Reason)) Result[T] {
	res := Result[T]{Records: []T{}, Contributors: []string{}, Reasons: make(map[string]cricket.Reason)}

	for _, s := range r.Order(capability) {
		records, reason := call(s)
		if reason.OK() && len(records) > 0 {
			res.Records = records
			res.Contributors = []string{s.Name()}
			return res
		}
		res.Reasons[s.Name()] = emptyReason(reason)
		r.logSkip(capability, s.Name(), res.Reasons[s.Name()])
	}
	return res
}

// mergeAll queries every source and keeps the first record seen for each name
func mergeAll[T any](r *FallbackRouter, capability cricket.Capability, call func(cricket.Source) ([]T, cricket.Reason), name func(T) string) Result[T] {
	res := Result[T]{Records: []T{}, Contributors: []string{}, Reasons: make(map[string]cricket.Reason)}
	seen := make(map[string]bool)

	for _, s := range r.Order(capability) {
		records, reason := call(s)
		if !reason.OK() || len(records) == 0 {
			res.Reasons[s.Name()] = emptyReason(reason)
			r.logSkip(capability, s.Name(), res.Reasons[s.Name()])
			continue
		}

		added := 0
		for _, rec := range records {
			key := cricket.NormalizeName(name(rec))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			res.Records = append(res.Records, rec)
			added++
		}
		res.Contributors = append(res.Contributors, s.Name())

		r.logger.WithFields(logrus.Fields{
			"component":  "fallback_router",
			"capability": capability,
			"source":     s.Name(),
			"received":   len(records),
			"added":      added,
		}).Debug("Merged source results")
	}
	return res
}

func emptyReason(reason cricket.Reason) cricket.Reason {
	if reason.OK() {
		return cricket.ReasonNoData
	}
	return reason
}

func (r *FallbackRouter) logSkip(capability cricket.Capability, source string, reason cricket.Reason) {
	r.logger.WithFields(logrus.Fields{
		"component":  "fallback_router",
		"capability": capability,
		"source":     source,
		"reason":     reason,
	}).Info("Source unavailable, trying next")
}
