package controller

import (
	"log/slog"
	"net/http"
	"time"

	"water-monitoring/internal/middleware"
	"water-monitoring/internal/service"

	"github.com/gin-gonic/gin"
)

// FormInstanceHeader names the client form a submission comes from
const FormInstanceHeader = "X-Form-Instance"

// MeasurementController handles manual water level and rainfall entry
type MeasurementController struct {
	entries service.EntryService
	logger  *slog.Logger
}

// NewMeasurementController creates a new measurement controller
func NewMeasurementController(entries service.EntryService, logger *slog.Logger) *MeasurementController {
	return &MeasurementController{entries: entries, logger: logger}
}

// SubmitWaterLevel handles POST /v1/measurements/water-level
func (c *MeasurementController) SubmitWaterLevel(ctx *gin.Context) {
	startTime := time.Now()

	// Who may record is settled before the body is read
	if err := service.AuthorizeEntry(middleware.CurrentIdentity(ctx)); err != nil {
		writeError(ctx, c.logger, err, startTime, nil)
		return
	}

	var input service.WaterLevelInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		c.logger.Warn("invalid water level body", "error", err.Error())
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"message": "water_level must be a number and location_id a string",
		})
		return
	}

	result, err := c.entries.SubmitWaterLevel(ctx.Request.Context(), middleware.CurrentIdentity(ctx), formKey(ctx, service.KindWaterLevel), input)
	if err != nil {
		// Echo the input so the form can be retried as entered
		writeError(ctx, c.logger, err, startTime, gin.H{"input": input})
		return
	}

	ctx.JSON(statusFor(result), result)
}

// SubmitRainfall handles POST /v1/measurements/rainfall
func (c *MeasurementController) SubmitRainfall(ctx *gin.Context) {
	startTime := time.Now()

	if err := service.AuthorizeEntry(middleware.CurrentIdentity(ctx)); err != nil {
		writeError(ctx, c.logger, err, startTime, nil)
		return
	}

	var input service.RainfallInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		c.logger.Warn("invalid rainfall body", "error", err.Error())
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"message": "rainfall_amount must be a number, duration_hours an integer and location_id a string",
		})
		return
	}

	result, err := c.entries.SubmitRainfall(ctx.Request.Context(), middleware.CurrentIdentity(ctx), formKey(ctx, service.KindRainfall), input)
	if err != nil {
		writeError(ctx, c.logger, err, startTime, gin.H{"input": input})
		return
	}

	ctx.JSON(statusFor(result), result)
}

// formKey scopes the submitting form to its session. Without a header each
// session has one form per kind.
func formKey(ctx *gin.Context, kind service.Kind) string {
	form := ctx.GetHeader(FormInstanceHeader)
	if form == "" {
		form = string(kind)
	}
	if s, ok := middleware.CurrentSession(ctx); ok {
		return s.ID + ":" + form
	}
	return form
}

// statusFor reports a joined duplicate as 200 rather than a second 201
func statusFor(result *service.SubmitResult) int {
	if result.Duplicate {
		return http.StatusOK
	}
	return http.StatusCreated
}
