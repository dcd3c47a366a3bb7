package controller

import (
	"log/slog"
	"net/http"
	"time"

	"water-monitoring/internal/service"

	"github.com/gin-gonic/gin"
)

// LocationController serves the station registry
type LocationController struct {
	locations service.LocationService
	logger    *slog.Logger
}

// NewLocationController creates a new location controller
func NewLocationController(locations service.LocationService, logger *slog.Logger) *LocationController {
	return &LocationController{locations: locations, logger: logger}
}

// ListLocations handles GET /v1/locations
func (c *LocationController) ListLocations(ctx *gin.Context) {
	startTime := time.Now()

	locations, err := c.locations.ListLocations(ctx.Request.Context())
	if err != nil {
		writeError(ctx, c.logger, err, startTime, nil)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"locations": locations,
		"count":     len(locations),
	})
}

// GetStatus handles GET /v1/locations/{id}/status
// Query parameters:
//   - level: the reading as typed; empty or non-numeric input yields no status
func (c *LocationController) GetStatus(ctx *gin.Context) {
	startTime := time.Now()

	result, err := c.locations.EvaluateStatus(ctx.Request.Context(), ctx.Param("id"), ctx.Query("level"))
	if err != nil {
		writeError(ctx, c.logger, err, startTime, nil)
		return
	}

	ctx.JSON(http.StatusOK, result)
}
