package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"water-monitoring/internal/apperr"
	"water-monitoring/internal/export"
	"water-monitoring/internal/model"
	"water-monitoring/internal/observability"
	"water-monitoring/internal/repository"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const dateLayout = "2006-01-02"

// ReportQuery selects an hourly report. Dates are inclusive calendar days.
type ReportQuery struct {
	Kind           Kind
	StartDate      string
	EndDate        string
	LocationFilter string
}

// DateRange is the UTC timestamp range sent to the rollup procedures
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// HourlyReport is one assembled hourly report, sorted by hour then station
type HourlyReport struct {
	Kind           Kind                           `json:"kind"`
	Range          DateRange                      `json:"range"`
	LocationFilter *string                        `json:"location_id,omitempty"`
	WaterLevel     []model.HourlyWaterLevelRollup `json:"water_level,omitempty"`
	Rainfall       []model.HourlyRainfallRollup   `json:"rainfall,omitempty"`
	RowCount       int                            `json:"row_count"`
	Empty          bool                           `json:"empty"`
	FetchedAt      time.Time                      `json:"fetched_at"`
}

// ReportService assembles hourly reports and renders them for export
type ReportService interface {
	FetchHourlyReport(ctx context.Context, q ReportQuery) (*HourlyReport, error)
	ExportFilename(kind Kind) string
	WriteCSV(w io.Writer, report *HourlyReport) error
}

type reportService struct {
	repo    repository.AggregationRepository
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
	timeout time.Duration
}

// NewReportService creates a new report service
func NewReportService(repo repository.AggregationRepository, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger, timeout time.Duration) ReportService {
	return &reportService{
		repo:    repo,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
		timeout: timeout,
	}
}

// ExpandDateRange turns inclusive calendar dates into
// [start T00:00:00Z, end T23:59:59Z].
func ExpandDateRange(startDate, endDate string) (DateRange, error) {
	start, err := time.Parse(dateLayout, strings.TrimSpace(startDate))
	if err != nil {
		return DateRange{}, apperr.NewValidationError("start_date must be a calendar date (YYYY-MM-DD)", err)
	}
	end, err := time.Parse(dateLayout, strings.TrimSpace(endDate))
	if err != nil {
		return DateRange{}, apperr.NewValidationError("end_date must be a calendar date (YYYY-MM-DD)", err)
	}
	if end.Before(start) {
		return DateRange{}, apperr.NewValidationError("end_date must not be before start_date", nil)
	}
	return DateRange{
		Start: start.UTC(),
		End:   end.UTC().Add(23*time.Hour + 59*time.Minute + 59*time.Second),
	}, nil
}

// NormalizeLocationFilter maps a blank filter to nil so the rollup procedure
// receives NULL ("all stations") and never an empty string.
func NormalizeLocationFilter(raw string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.NewValidationError("location_id must be a UUID", err)
	}
	s := id.String()
	return &s, nil
}

// FetchHourlyReport queries the rollup procedure for the requested kind.
// Zero rows is a successful, empty report.
func (s *reportService) FetchHourlyReport(ctx context.Context, q ReportQuery) (*HourlyReport, error) {
	if _, err := ParseKind(string(q.Kind)); err != nil {
		return nil, err
	}
	dr, err := ExpandDateRange(q.StartDate, q.EndDate)
	if err != nil {
		return nil, err
	}
	filter, err := NormalizeLocationFilter(q.LocationFilter)
	if err != nil {
		return nil, err
	}

	report := &HourlyReport{Kind: q.Kind, Range: dr, LocationFilter: filter}
	started := s.clock.Now()

	switch q.Kind {
	case KindWaterLevel:
		err = callCollaborator(ctx, s.timeout, "hourly water level report", func(ctx context.Context) error {
			rows, err := s.repo.HourlyWaterLevelReport(ctx, dr.Start, dr.End, filter)
			if err != nil {
				return err
			}
			SortWaterLevelRollups(rows)
			report.WaterLevel = rows
			report.RowCount = len(rows)
			return nil
		})
	case KindRainfall:
		err = callCollaborator(ctx, s.timeout, "hourly rainfall report", func(ctx context.Context) error {
			rows, err := s.repo.HourlyRainfallReport(ctx, dr.Start, dr.End, filter)
			if err != nil {
				return err
			}
			SortRainfallRollups(rows)
			report.Rainfall = rows
			report.RowCount = len(rows)
			return nil
		})
	}
	s.metrics.ReportFetchDuration.WithLabelValues(string(q.Kind)).Observe(s.clock.Since(started).Seconds())

	if err != nil {
		s.metrics.ReportFetches.WithLabelValues(string(q.Kind), "error").Inc()
		s.logger.Error("failed to fetch hourly report",
			"kind", string(q.Kind),
			"start", dr.Start,
			"end", dr.End,
			"error", err.Error(),
		)
		return nil, err
	}

	report.Empty = report.RowCount == 0
	report.FetchedAt = s.clock.Now().UTC()
	if report.Empty {
		s.metrics.ReportFetches.WithLabelValues(string(q.Kind), "empty").Inc()
	} else {
		s.metrics.ReportFetches.WithLabelValues(string(q.Kind), "success").Inc()
	}
	return report, nil
}

// ExportFilename names an export of the given kind with today's date
func (s *reportService) ExportFilename(kind Kind) string {
	return export.Filename(string(kind), s.clock.Now())
}

// WriteCSV renders the report rows as CSV
func (s *reportService) WriteCSV(w io.Writer, report *HourlyReport) error {
	if report == nil {
		return apperr.NewNotFoundError("no report to export", nil)
	}
	switch report.Kind {
	case KindWaterLevel:
		return export.WriteWaterLevelCSV(w, report.WaterLevel)
	case KindRainfall:
		return export.WriteRainfallCSV(w, report.Rainfall)
	}
	return fmt.Errorf("unknown report kind %q", report.Kind)
}

// SortWaterLevelRollups orders rows by hour, station name, then station id
func SortWaterLevelRollups(rows []model.HourlyWaterLevelRollup) {
	slices.SortStableFunc(rows, func(a, b model.HourlyWaterLevelRollup) int {
		return compareRollupKey(a.HourPeriod, a.LocationName, a.LocationID, b.HourPeriod, b.LocationName, b.LocationID)
	})
}

// SortRainfallRollups orders rows by hour, station name, then station id
func SortRainfallRollups(rows []model.HourlyRainfallRollup) {
	slices.SortStableFunc(rows, func(a, b model.HourlyRainfallRollup) int {
		return compareRollupKey(a.HourPeriod, a.LocationName, a.LocationID, b.HourPeriod, b.LocationName, b.LocationID)
	})
}

func compareRollupKey(ha time.Time, na, ia string, hb time.Time, nb, ib string) int {
	if c := ha.Compare(hb); c != 0 {
		return c
	}
	if c := strings.Compare(na, nb); c != 0 {
		return c
	}
	return strings.Compare(ia, ib)
}

// ErrReportDiscarded marks a fetch whose result arrived after it was
// superseded or after its view was closed.
var ErrReportDiscarded = errors.New("report result discarded")
