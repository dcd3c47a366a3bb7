package controller

import (
	"log/slog"

	"water-monitoring/internal/middleware"
	"water-monitoring/internal/observability"

	"github.com/gin-gonic/gin"
)

// RouterDeps collects the controllers mounted by NewRouter
type RouterDeps struct {
	Sessions     SessionManager
	Session      *SessionController
	Locations    *LocationController
	Measurements *MeasurementController
	Reports      *ReportController
	Dashboard    *DashboardController
	Health       *HealthController
	Metrics      *observability.Metrics
	Logger       *slog.Logger
}

// NewRouter builds the gin engine with every route of the service
func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.StructuredLoggingMiddleware(d.Logger, d.Metrics))

	r.GET("/healthz", d.Health.Healthz)
	r.GET("/readyz", d.Health.Readyz)
	r.GET("/metrics", middleware.MetricsHandler())

	requireSession := middleware.RequireSession(d.Sessions, d.Logger)

	v1 := r.Group("/v1")
	{
		v1.POST("/sessions", d.Session.Login)

		current := v1.Group("/session", requireSession)
		{
			current.GET("", d.Session.Current)
			current.DELETE("", d.Session.Logout)
			current.PUT("/view", d.Session.Navigate)
		}

		locations := v1.Group("/locations", requireSession)
		{
			locations.GET("", d.Locations.ListLocations)
			locations.GET("/:id/status", d.Locations.GetStatus)
		}

		// Anonymous submissions reach the entry service, which refuses them
		measurements := v1.Group("/measurements", middleware.OptionalSession(d.Sessions))
		{
			measurements.POST("/water-level", d.Measurements.SubmitWaterLevel)
			measurements.POST("/rainfall", d.Measurements.SubmitRainfall)
		}

		reports := v1.Group("/reports", requireSession)
		{
			reports.GET("/hourly/:kind", d.Reports.GetHourlyReport)
			reports.GET("/hourly/:kind/export", d.Reports.ExportHourlyReport)
			reports.GET("/:period", d.Reports.GetPeriodReport)
		}

		v1.GET("/dashboard", requireSession, d.Dashboard.GetDashboard)
	}

	return r
}
