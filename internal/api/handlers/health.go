package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	redis *redis.Client
}

// NewHealthHandler creates a health handler. redisClient may be nil.
func NewHealthHandler(redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{redis: redisClient}
}

// GetHealth always returns 200 while the process serves; a failed cache
// backend only downgrades the reported status
func (h *HealthHandler) GetHealth(c *gin.Context) {
	status := "ok"
	cache := "memory"

	if h.redis != nil {
		cache = "redis"
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.redis.Ping(ctx).Err(); err != nil {
			status = "degraded"
			cache = "redis_unreachable"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"service": "cricklytics",
		"cache":   cache,
		"time":    time.Now().UTC(),
	})
}
