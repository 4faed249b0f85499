package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/vestra-platform/vestra_service/internal/infrastructure/cache"
	"github.com/vestra-platform/vestra_service/internal/infrastructure/database"
	"github.com/vestra-platform/vestra_service/pkg/logger"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db        *sqlx.DB
	redis     cache.RedisClient
	logger    *logger.Logger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sqlx.DB, redis cache.RedisClient, logger *logger.Logger, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		redis:     redis,
		logger:    logger,
		version:   version,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health/liveness
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "alive",
		"version": h.version,
		"uptime":  time.Since(h.startTime).String(),
	})
}

// Readiness handles GET /health/readiness
func (h *HealthHandler) Readiness(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if err := database.HealthCheck(h.db); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	statusCode := http.StatusOK
	status := "ready"
	if !healthy {
		statusCode = http.StatusServiceUnavailable
		status = "unavailable"
		h.logger.Warn("Readiness check failed", "checks", checks)
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"version":   h.version,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}
