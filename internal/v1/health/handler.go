// Package health exposes the liveness and readiness probe endpoints.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/streamnest/chatd/internal/v1/logging"
)

// Handler manages health check endpoints.
type Handler struct {
	db          *sqlx.DB
	redisClient *redis.Client
}

// NewHandler creates a health check handler. redisClient may be nil in
// single-instance mode.
func NewHandler(db *sqlx.DB, redisClient *redis.Client) *Handler {
	return &Handler{db: db, redisClient: redisClient}
}

// LivenessResponse represents the liveness probe response.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles GET /health/live. Returns 200 if the process is alive, no
// dependency checks.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness handles GET /health/ready. Returns 200 only if all critical
// dependencies are healthy, 503 otherwise.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	postgresStatus := h.checkPostgres(ctx)
	checks["postgres"] = postgresStatus
	if postgresStatus != "healthy" {
		allHealthy = false
	}

	redisStatus := h.checkRedis(ctx)
	checks["redis"] = redisStatus
	if redisStatus != "healthy" {
		allHealthy = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) checkPostgres(ctx context.Context) string {
	if h.db == nil {
		return "unhealthy"
	}
	if err := h.db.PingContext(ctx); err != nil {
		logging.Error(ctx, "Postgres health check failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}

func (h *Handler) checkRedis(ctx context.Context) string {
	// Single-instance mode runs without Redis; consider it healthy.
	if h.redisClient == nil {
		return "healthy"
	}
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		logging.Error(ctx, "Redis health check failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}
