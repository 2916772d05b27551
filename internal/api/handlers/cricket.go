package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/jstittsworth/cricklytics/internal/cricket"
	"github.com/jstittsworth/cricklytics/internal/services"
	"github.com/jstittsworth/cricklytics/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	defaultDaysAhead = 7
	maxDaysAhead     = 60
	maxHistoryLimit  = 100
)

// CricketDataService is the facade the handlers read from
type CricketDataService interface {
	Teams(ctx context.Context) ([]cricket.Team, services.Provenance)
	Players(ctx context.Context, filter cricket.PlayerFilter) ([]cricket.Player, services.Provenance)
	Venues(ctx context.Context) ([]cricket.Venue, services.Provenance)
	Fixtures(ctx context.Context, window cricket.FixtureWindow) ([]cricket.Fixture, services.Provenance)
	LiveMatches(ctx context.Context) ([]cricket.Fixture, services.Provenance)
	MatchHistory(ctx context.Context, player string, limit int) ([]cricket.MatchPerformance, services.Provenance)
	PlayerAnalytics(ctx context.Context, player, role string) services.AnalyticsResult
	PlayerProfile(ctx context.Context, id string) (cricket.PlayerProfile, services.Provenance)
	TeamProfile(ctx context.Context, id string) (cricket.TeamProfile, services.Provenance)
	Fetch(ctx context.Context, capability string, params services.FetchParams) (services.FetchResult, error)
	UsageSummary(ctx context.Context) services.UsageSummary
	ClearCache(ctx context.Context) error
}

type CricketHandler struct {
	service CricketDataService
	logger  *logrus.Logger
}

func NewCricketHandler(service CricketDataService, logger *logrus.Logger) *CricketHandler {
	return &CricketHandler{
		service: service,
		logger:  logger,
	}
}

func meta(count int, prov services.Provenance) *utils.Meta {
	return &utils.Meta{Count: count, HasRealData: prov.HasRealData, DataSource: prov.DataSource}
}

// GetTeams lists teams from every source that has them
func (h *CricketHandler) GetTeams(c *gin.Context) {
	teams, prov := h.service.Teams(c.Request.Context())
	utils.SendSuccessWithMeta(c, teams, meta(len(teams), prov))
}

// GetPlayers lists players, optionally narrowed by team, country or name
func (h *CricketHandler) GetPlayers(c *gin.Context) {
	filter := cricket.PlayerFilter{
		TeamID:  strings.TrimSpace(c.Query("team_id")),
		Country: strings.TrimSpace(c.Query("country")),
		Search:  strings.TrimSpace(c.Query("search")),
	}
	players, prov := h.service.Players(c.Request.Context(), filter)
	utils.SendSuccessWithMeta(c, players, meta(len(players), prov))
}

func (h *CricketHandler) GetVenues(c *gin.Context) {
	venues, prov := h.service.Venues(c.Request.Context())
	utils.SendSuccessWithMeta(c, venues, meta(len(venues), prov))
}

// GetFixtures lists upcoming matches within days_ahead (default 7)
func (h *CricketHandler) GetFixtures(c *gin.Context) {
	days, err := intQuery(c, "days_ahead", defaultDaysAhead, 0, maxDaysAhead)
	if err != nil {
		utils.SendValidationError(c, "Invalid days_ahead", err.Error())
		return
	}
	fixtures, prov := h.service.Fixtures(c.Request.Context(), cricket.FixtureWindow{DaysAhead: days})
	utils.SendSuccessWithMeta(c, fixtures, meta(len(fixtures), prov))
}

func (h *CricketHandler) GetLiveMatches(c *gin.Context) {
	matches, prov := h.service.LiveMatches(c.Request.Context())
	utils.SendSuccessWithMeta(c, matches, meta(len(matches), prov))
}

// GetPlayerHistory returns a player's recent matches, newest first
func (h *CricketHandler) GetPlayerHistory(c *gin.Context) {
	name, ok := playerName(c)
	if !ok {
		return
	}
	limit, err := intQuery(c, "limit", 0, 1, maxHistoryLimit)
	if err != nil {
		utils.SendValidationError(c, "Invalid limit", err.Error())
		return
	}

	history, prov := h.service.MatchHistory(c.Request.Context(), name, limit)
	utils.SendSuccessWithMeta(c, history, meta(len(history), prov))
}

// GetPlayerAnalytics returns form, situational, phase and venue analytics
func (h *CricketHandler) GetPlayerAnalytics(c *gin.Context) {
	name, ok := playerName(c)
	if !ok {
		return
	}
	role := strings.TrimSpace(c.Query("role"))

	result := h.service.PlayerAnalytics(c.Request.Context(), name, role)
	utils.SendSuccess(c, gin.H{
		"player":    name,
		"analytics": result,
	})
}

// GetPlayerProfile returns one player with career figures. The path segment
// is the provider's player id.
func (h *CricketHandler) GetPlayerProfile(c *gin.Context) {
	id, ok := pathID(c, "name", "player")
	if !ok {
		return
	}
	profile, prov := h.service.PlayerProfile(c.Request.Context(), id)
	utils.SendSuccessWithMeta(c, profile, meta(1, prov))
}

// GetTeamStats returns one team with its performance figures
func (h *CricketHandler) GetTeamStats(c *gin.Context) {
	id, ok := pathID(c, "id", "team")
	if !ok {
		return
	}
	profile, prov := h.service.TeamProfile(c.Request.Context(), id)
	utils.SendSuccessWithMeta(c, profile, meta(1, prov))
}

// GetCapability routes any capability by name and reports per-source reasons
func (h *CricketHandler) GetCapability(c *gin.Context) {
	days, err := intQuery(c, "days_ahead", defaultDaysAhead, 0, maxDaysAhead)
	if err != nil {
		utils.SendValidationError(c, "Invalid days_ahead", err.Error())
		return
	}
	limit, err := intQuery(c, "limit", 0, 1, maxHistoryLimit)
	if err != nil {
		utils.SendValidationError(c, "Invalid limit", err.Error())
		return
	}

	params := services.FetchParams{
		Filter: cricket.PlayerFilter{
			TeamID:  c.Query("team_id"),
			Country: c.Query("country"),
			Search:  c.Query("search"),
		},
		Window: cricket.FixtureWindow{DaysAhead: days},
		Player: strings.TrimSpace(c.Query("player")),
		Limit:  limit,
		ID:     strings.TrimSpace(c.Query("id")),
	}

	result, err := h.service.Fetch(c.Request.Context(), c.Param("capability"), params)
	if errors.Is(err, cricket.ErrUnsupportedCapability) {
		utils.SendError(c, http.StatusBadRequest, utils.NewAppError(utils.ErrCodeUnsupportedCapability, "Unsupported capability", err.Error()))
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Capability fetch failed")
		utils.SendInternalError(c, "Failed to fetch data")
		return
	}
	utils.SendSuccess(c, result)
}

// GetUsage reports source quotas, breaker state and cache statistics
func (h *CricketHandler) GetUsage(c *gin.Context) {
	summary := h.service.UsageSummary(c.Request.Context())
	utils.SendSuccess(c, gin.H{
		"status":  usageStatus(summary),
		"summary": summary,
	})
}

// ClearCache drops all cached provider responses
func (h *CricketHandler) ClearCache(c *gin.Context) {
	if err := h.service.ClearCache(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("Cache clear failed")
		utils.SendInternalError(c, "Failed to clear cache")
		return
	}
	utils.SendSuccess(c, gin.H{"cleared": true})
}

// usageStatus is "ok" when a configured source has headroom, "degraded"
// when some configured source is exhausted or tripped, and "synthetic_only"
// when no configured source can serve
func usageStatus(summary services.UsageSummary) string {
	usable, impaired := 0, 0
	for _, s := range summary.Sources {
		if !s.Configured {
			continue
		}
		if s.Quota.Exhausted || s.Breaker == "open" {
			impaired++
			continue
		}
		usable++
	}
	switch {
	case usable == 0:
		return "synthetic_only"
	case impaired > 0:
		return "degraded"
	}
	return "ok"
}

func playerName(c *gin.Context) (string, bool) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		utils.SendValidationError(c, "Invalid player", "player name is required")
		return "", false
	}
	return name, true
}

// pathID reads an id path parameter made of letters, digits, '-' or '_'
func pathID(c *gin.Context, param, what string) (string, bool) {
	id := strings.TrimSpace(c.Param(param))
	if id == "" || strings.IndexFunc(id, func(r rune) bool {
		return !(r == '-' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
	}) >= 0 {
		utils.SendValidationError(c, "Invalid "+what+" id", what+" id must be letters, digits, '-' or '_'")
		return "", false
	}
	return id, true
}

// intQuery parses an optional integer query parameter within [lo, hi]
func intQuery(c *gin.Context, key string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be between %d and %d", key, lo, hi)
	}
	return v, nil
}
