// Package handlers - health and readiness probes.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// HealthHandler serves the probe endpoints. Readiness checks the
// dependencies a request actually needs: postgres, redis, and NATS.
type HealthHandler struct {
	pool      *pgxpool.Pool
	redis     *redis.Client
	nats      *nats.Conn
	version   string
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler. Nil dependencies are reported as
// "not configured" rather than failing the probe.
func NewHealthHandler(pool *pgxpool.Pool, redisClient *redis.Client, natsConn *nats.Conn, version string) *HealthHandler {
	return &HealthHandler{
		pool:      pool,
		redis:     redisClient,
		nats:      natsConn,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse is the health body.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Health is the liveness probe.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	})
}

// Ready is the readiness probe: 503 until every dependency answers.
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := make(map[string]string)
	allReady := true

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if h.pool != nil {
		if err := h.pool.Ping(ctx); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
			allReady = false
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "not configured"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			allReady = false
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "not configured"
	}

	if h.nats != nil {
		if !h.nats.IsConnected() {
			checks["nats"] = "unhealthy: disconnected"
			allReady = false
		} else {
			checks["nats"] = "healthy"
		}
	} else {
		checks["nats"] = "not configured"
	}

	statusCode := http.StatusOK
	status := "healthy"
	if !allReady {
		statusCode = http.StatusServiceUnavailable
		status = "unhealthy"
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

// Live is the minimal liveness endpoint.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// RegisterRoutes mounts the probes at the root.
func (h *HealthHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/live", h.Live)
}
