package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ReadinessChecker reports whether a dependency can serve traffic
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// HealthController answers liveness and readiness probes
type HealthController struct {
	store  ReadinessChecker
	logger *slog.Logger
}

// NewHealthController creates a new health controller
func NewHealthController(store ReadinessChecker, logger *slog.Logger) *HealthController {
	return &HealthController{store: store, logger: logger}
}

// Healthz handles GET /healthz
func (c *HealthController) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz handles GET /readyz
func (c *HealthController) Readyz(ctx *gin.Context) {
	checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := c.store.CheckReadiness(checkCtx); err != nil {
		c.logger.Warn("readiness check failed", "error", err.Error())
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"message": "measurement store unreachable",
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
