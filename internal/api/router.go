package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jstittsworth/cricklytics/internal/api/handlers"
	"github.com/jstittsworth/cricklytics/internal/api/middleware"
	"github.com/jstittsworth/cricklytics/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RouterDeps are the collaborators the HTTP layer needs
type RouterDeps struct {
	Service     handlers.CricketDataService
	Redis       *redis.Client // optional
	Gatherer    prometheus.Gatherer
	CorsOrigins []string
	Logger      *logrus.Logger
}

// NewRouter builds the gin engine with middleware, health, metrics and API routes
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORS(deps.CorsOrigins))

	healthHandler := handlers.NewHealthHandler(deps.Redis)
	router.GET("/health", healthHandler.GetHealth)

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	apiV1 := router.Group("/api/v1")
	SetupRoutes(apiV1, deps.Service, deps.Logger)

	router.NoRoute(func(c *gin.Context) {
		utils.SendNotFound(c, "Route not found")
	})

	return router
}

// SetupRoutes configures all API routes on the given router group
func SetupRoutes(group *gin.RouterGroup, service handlers.CricketDataService, logger *logrus.Logger) {
	cricketHandler := handlers.NewCricketHandler(service, logger)

	// Reference data
	group.GET("/teams", cricketHandler.GetTeams)
	group.GET("/teams/:id/stats", cricketHandler.GetTeamStats)
	group.GET("/players", cricketHandler.GetPlayers)
	group.GET("/venues", cricketHandler.GetVenues)

	// Matches
	group.GET("/fixtures", cricketHandler.GetFixtures)
	group.GET("/matches/live", cricketHandler.GetLiveMatches)

	// Player history and analytics
	group.GET("/players/:name", cricketHandler.GetPlayerProfile)
	group.GET("/players/:name/history", cricketHandler.GetPlayerHistory)
	group.GET("/players/:name/analytics", cricketHandler.GetPlayerAnalytics)

	// Raw capability routing and source usage
	group.GET("/data/:capability", cricketHandler.GetCapability)
	group.GET("/usage", cricketHandler.GetUsage)
	group.DELETE("/cache", cricketHandler.ClearCache)
}
