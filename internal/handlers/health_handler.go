package handlers

import (
	"net/http"

	"ru-ticket/utils"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	redis redis.Cmdable
}

func NewHealthHandler(redisClient redis.Cmdable) *HealthHandler {
	return &HealthHandler{redis: redisClient}
}

// Health - GET /health
func (h *HealthHandler) Health(e *core.RequestEvent) error {
	if err := utils.RedisHealthCheck(h.redis); err != nil {
		return e.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
