package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/malekaidoudi/creche-sub003/internal/service"
	"github.com/malekaidoudi/creche-sub003/pkg/response"
)

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	db      *sqlx.DB
	redis   *redis.Client
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, db *sqlx.DB, redisClient *redis.Client) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, db: db, redis: redisClient}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Summary returns aggregated in-process counters for dashboards.
func (h *MetricsHandler) Summary(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}

// Ready reports whether the server can take traffic, gated on the database
// only since the cache is optional.
func (h *MetricsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if h.db == nil || h.db.PingContext(ctx) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Health checks database and cache connectivity. A missing or unreachable
// Redis degrades the payload but does not fail the check, caching is optional.
func (h *MetricsHandler) Health(c *gin.Context) {
	checks := gin.H{}
	status := http.StatusOK

	dbCtx, dbCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer dbCancel()
	if h.db == nil || h.db.PingContext(dbCtx) != nil {
		checks["database"] = "down"
		status = http.StatusServiceUnavailable
	} else {
		checks["database"] = "up"
	}

	if h.redis != nil {
		redisCtx, redisCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer redisCancel()
		if err := h.redis.Ping(redisCtx).Err(); err != nil {
			checks["cache"] = "down"
		} else {
			checks["cache"] = "up"
		}
	} else {
		checks["cache"] = "disabled"
	}

	payload := gin.H{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		payload["status"] = "degraded"
	}
	c.JSON(status, payload)
}
