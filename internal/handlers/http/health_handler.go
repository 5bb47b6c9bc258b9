package http

import (
	"context"
	"net/http"
	"time"

	"lensrelay/internal/infrastructure/monitoring"
	"lensrelay/pkg/utils"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	checker   *monitoring.HealthChecker
	startTime time.Time
	timeout   time.Duration
}

func NewHealthHandler(checker *monitoring.HealthChecker, startTime time.Time) *HealthHandler {
	return &HealthHandler{checker: checker, startTime: startTime, timeout: 2 * time.Second}
}

func (h *HealthHandler) SetupRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

// Health reports liveness only.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"uptime":    utils.FormatDuration(time.Since(h.startTime)),
	})
}

// Ready runs the dependency checks and returns 503 when any fails.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := h.checker.GetReadinessStatus(ctx)
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
