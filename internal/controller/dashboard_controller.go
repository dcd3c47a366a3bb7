package controller

import (
	"log/slog"
	"net/http"
	"time"

	"water-monitoring/internal/service"

	"github.com/gin-gonic/gin"
)

// DashboardController serves the station overview
type DashboardController struct {
	dashboard service.DashboardService
	logger    *slog.Logger
}

// NewDashboardController creates a new dashboard controller
func NewDashboardController(dashboard service.DashboardService, logger *slog.Logger) *DashboardController {
	return &DashboardController{dashboard: dashboard, logger: logger}
}

// GetDashboard handles GET /v1/dashboard
func (c *DashboardController) GetDashboard(ctx *gin.Context) {
	startTime := time.Now()

	d, err := c.dashboard.GetDashboard(ctx.Request.Context())
	if err != nil {
		writeError(ctx, c.logger, err, startTime, nil)
		return
	}

	ctx.JSON(http.StatusOK, d)
}
