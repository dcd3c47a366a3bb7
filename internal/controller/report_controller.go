package controller

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"water-monitoring/internal/apperr"
	"water-monitoring/internal/export"
	"water-monitoring/internal/middleware"
	"water-monitoring/internal/service"

	"github.com/gin-gonic/gin"
)

// ReportController handles hourly and period report requests
type ReportController struct {
	reports service.ReportService
	periods service.PeriodReportService
	views   *service.ReportViews
	logger  *slog.Logger
}

// NewReportController creates a new report controller
func NewReportController(reports service.ReportService, periods service.PeriodReportService, views *service.ReportViews, logger *slog.Logger) *ReportController {
	return &ReportController{reports: reports, periods: periods, views: views, logger: logger}
}

// requireDates reads start_date and end_date, answering 400 when one is missing
func requireDates(ctx *gin.Context) (string, string, bool) {
	for _, name := range []string{"start_date", "end_date"} {
		if ctx.Query(name) == "" {
			ctx.JSON(http.StatusBadRequest, gin.H{
				"error":   "Missing required parameter",
				"message": name + " is required",
			})
			return "", "", false
		}
	}
	return ctx.Query("start_date"), ctx.Query("end_date"), true
}

// GetHourlyReport handles GET /v1/reports/hourly/{kind}
// Query parameters:
//   - start_date (required): first day, YYYY-MM-DD
//   - end_date (required): last day, YYYY-MM-DD, inclusive
//   - location_id (optional): restrict to one station; empty means all stations
func (c *ReportController) GetHourlyReport(ctx *gin.Context) {
	startTime := time.Now()

	kind, err := service.ParseKind(ctx.Param("kind"))
	if err != nil {
		writeError(ctx, c.logger, err, startTime, nil)
		return
	}

	startDate, endDate, ok := requireDates(ctx)
	if !ok {
		return
	}

	s, _ := middleware.CurrentSession(ctx)
	report, err := c.views.Fetch(ctx.Request.Context(), s.ID, service.ReportQuery{
		Kind:           kind,
		StartDate:      startDate,
		EndDate:        endDate,
		LocationFilter: ctx.Query("location_id"),
	})
	if err != nil {
		// The previous report stays available to the client
		_, hasPrevious := c.views.Last(s.ID, kind)
		writeError(ctx, c.logger, err, startTime, gin.H{"has_previous_report": hasPrevious})
		return
	}

	latency := time.Since(startTime)
	c.logger.Info("hourly report fetched",
		"kind", string(kind),
		"session_id", s.ID,
		"rows", report.RowCount,
		"latency_ms", latency.Milliseconds(),
	)
	ctx.JSON(http.StatusOK, report)
}

// GetPeriodReport handles GET /v1/reports/{period}
// Path parameter period is daily, weekly or monthly.
// Query parameters:
//   - start_date (required): first day, YYYY-MM-DD
//   - end_date (required): last day, YYYY-MM-DD, inclusive
//   - location_id (optional): restrict to one station; the per-station
//     breakdown is only returned for all stations
func (c *ReportController) GetPeriodReport(ctx *gin.Context) {
	startTime := time.Now()

	period, err := service.ParsePeriod(ctx.Param("period"))
	if err != nil {
		writeError(ctx, c.logger, err, startTime, nil)
		return
	}
	startDate, endDate, ok := requireDates(ctx)
	if !ok {
		return
	}

	report, err := c.periods.GetPeriodReport(ctx.Request.Context(), service.PeriodQuery{
		Period:         period,
		StartDate:      startDate,
		EndDate:        endDate,
		LocationFilter: ctx.Query("location_id"),
	})
	if err != nil {
		writeError(ctx, c.logger, err, startTime, nil)
		return
	}

	latency := time.Since(startTime)
	c.logger.Info("period report fetched",
		"period", string(period),
		"points", len(report.Series),
		"latency_ms", latency.Milliseconds(),
	)
	ctx.JSON(http.StatusOK, report)
}

// ExportHourlyReport handles GET /v1/reports/hourly/{kind}/export.
// It exports the session's last fetched report of that kind.
func (c *ReportController) ExportHourlyReport(ctx *gin.Context) {
	startTime := time.Now()

	kind, err := service.ParseKind(ctx.Param("kind"))
	if err != nil {
		writeError(ctx, c.logger, err, startTime, nil)
		return
	}

	s, _ := middleware.CurrentSession(ctx)
	report, ok := c.views.Last(s.ID, kind)
	if !ok {
		writeError(ctx, c.logger, apperr.NewNotFoundError("fetch a report before exporting it", nil), startTime, nil)
		return
	}

	var buf bytes.Buffer
	if err := c.reports.WriteCSV(&buf, report); err != nil {
		writeError(ctx, c.logger, err, startTime, nil)
		return
	}

	filename := c.reports.ExportFilename(kind)
	ctx.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	ctx.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
