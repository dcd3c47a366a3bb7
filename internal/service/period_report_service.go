package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"water-monitoring/internal/apperr"
	"water-monitoring/internal/model"
	"water-monitoring/internal/observability"
	"water-monitoring/internal/repository"

	"github.com/jonboulle/clockwork"
)

// Period is the calendar grouping of a period report
type Period string

const (
	PeriodDaily   Period = repository.AggregationDaily
	PeriodWeekly  Period = repository.AggregationWeekly
	PeriodMonthly Period = repository.AggregationMonthly
)

// ParsePeriod accepts daily, weekly or monthly
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(raw); p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return p, nil
	}
	return "", apperr.NewValidationError(fmt.Sprintf("unknown report period %q (want daily, weekly or monthly)", raw), nil)
}

// PeriodQuery selects a period report. Dates are inclusive calendar days.
type PeriodQuery struct {
	Period         Period
	StartDate      string
	EndDate        string
	LocationFilter string
}

// PeriodPoint is the statistics of every selected station for one period
type PeriodPoint struct {
	PeriodStart     time.Time `json:"period_start"`
	AvgWaterLevel   float64   `json:"avg_water_level"`
	MinWaterLevel   float64   `json:"min_water_level"`
	MaxWaterLevel   float64   `json:"max_water_level"`
	WaterLevelCount int64     `json:"water_level_count"`
	TotalRainfall   float64   `json:"total_rainfall"`
	RainfallCount   int64     `json:"rainfall_count"`
}

// PeriodSummary contains summary statistics over a whole range
type PeriodSummary struct {
	AverageLevel    float64 `json:"average_level"`
	PeakLevel       float64 `json:"peak_level"`
	LowestLevel     float64 `json:"lowest_level"`
	TotalRainfall   float64 `json:"total_rainfall"`
	AverageRainfall float64 `json:"average_rainfall"` // per period
	WaterLevelCount int64   `json:"water_level_count"`
	RainfallCount   int64   `json:"rainfall_count"`
}

// LocationBreakdown contains the summary of one station
type LocationBreakdown struct {
	LocationID      string  `json:"location_id"`
	LocationName    string  `json:"location_name"`
	AverageLevel    float64 `json:"average_level"`
	LowestLevel     float64 `json:"lowest_level"`
	PeakLevel       float64 `json:"peak_level"`
	TotalRainfall   float64 `json:"total_rainfall"`
	WaterLevelCount int64   `json:"water_level_count"`
	RainfallCount   int64   `json:"rainfall_count"`
}

// PeriodComparison is the same range shifted back by whole years
type PeriodComparison struct {
	Range                 DateRange     `json:"range"`
	Summary               PeriodSummary `json:"summary"`
	LevelChangePercent    float64       `json:"level_change_percent"`
	RainfallChangePercent float64       `json:"rainfall_change_percent"`
}

// YearOverYear holds the comparisons that had data
type YearOverYear struct {
	OneYearAgo  *PeriodComparison `json:"one_year_ago,omitempty"`
	TwoYearsAgo *PeriodComparison `json:"two_years_ago,omitempty"`
}

// PeriodReport is the daily, weekly or monthly analysis of a range
type PeriodReport struct {
	Period         Period              `json:"period"`
	Range          DateRange           `json:"range"`
	LocationFilter *string             `json:"location_id,omitempty"`
	Series         []PeriodPoint       `json:"series"`
	Summary        PeriodSummary       `json:"summary"`
	Locations      []LocationBreakdown `json:"locations,omitempty"`
	YearOverYear   YearOverYear        `json:"year_over_year"`
	Empty          bool                `json:"empty"`
	GeneratedAt    time.Time           `json:"generated_at"`
}

// PeriodReportService aggregates measurements by calendar period
type PeriodReportService interface {
	GetPeriodReport(ctx context.Context, q PeriodQuery) (*PeriodReport, error)
	GetTrend(ctx context.Context, period Period, dr DateRange, locationFilter *string) ([]PeriodPoint, error)
}

type periodReportService struct {
	repo    repository.PeriodRepository
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
	timeout time.Duration
}

// NewPeriodReportService creates a new period report service
func NewPeriodReportService(repo repository.PeriodRepository, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger, timeout time.Duration) PeriodReportService {
	return &periodReportService{
		repo:    repo,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
		timeout: timeout,
	}
}

// GetPeriodReport builds the series, summary, per-station breakdown and
// year-over-year comparison for the requested range
func (s *periodReportService) GetPeriodReport(ctx context.Context, q PeriodQuery) (*PeriodReport, error) {
	if _, err := ParsePeriod(string(q.Period)); err != nil {
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

	started := s.clock.Now()
	levels, rainfall, err := s.fetch(ctx, q.Period, dr, filter)
	s.metrics.ReportFetchDuration.WithLabelValues(string(q.Period)).Observe(s.clock.Since(started).Seconds())
	if err != nil {
		s.metrics.ReportFetches.WithLabelValues(string(q.Period), "error").Inc()
		s.logger.Error("failed to fetch period report",
			"period", string(q.Period),
			"start", dr.Start,
			"end", dr.End,
			"error", err.Error(),
		)
		return nil, err
	}

	series := buildSeries(levels, rainfall)
	report := &PeriodReport{
		Period:         q.Period,
		Range:          dr,
		LocationFilter: filter,
		Series:         series,
		Summary:        summarize(levels, rainfall, len(series)),
		Empty:          len(series) == 0,
		GeneratedAt:    s.clock.Now().UTC(),
	}

	// Breakdown only when not filtering by a specific station
	if filter == nil {
		report.Locations = breakdownByLocation(levels, rainfall)
	}
	report.YearOverYear = s.yearOverYear(ctx, q.Period, dr, filter, report.Summary)

	if report.Empty {
		s.metrics.ReportFetches.WithLabelValues(string(q.Period), "empty").Inc()
	} else {
		s.metrics.ReportFetches.WithLabelValues(string(q.Period), "success").Inc()
	}
	return report, nil
}

// GetTrend returns just the per-period series for a resolved range
func (s *periodReportService) GetTrend(ctx context.Context, period Period, dr DateRange, locationFilter *string) ([]PeriodPoint, error) {
	levels, rainfall, err := s.fetch(ctx, period, dr, locationFilter)
	if err != nil {
		return nil, err
	}
	return buildSeries(levels, rainfall), nil
}

func (s *periodReportService) fetch(ctx context.Context, period Period, dr DateRange, filter *string) ([]model.PeriodWaterLevelAggregate, []model.PeriodRainfallAggregate, error) {
	var levels []model.PeriodWaterLevelAggregate
	err := callCollaborator(ctx, s.timeout, string(period)+" water level aggregates", func(ctx context.Context) error {
		var err error
		levels, err = s.repo.GetWaterLevelAggregates(ctx, string(period), dr.Start, dr.End, filter)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	var rainfall []model.PeriodRainfallAggregate
	err = callCollaborator(ctx, s.timeout, string(period)+" rainfall aggregates", func(ctx context.Context) error {
		var err error
		rainfall, err = s.repo.GetRainfallAggregates(ctx, string(period), dr.Start, dr.End, filter)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return levels, rainfall, nil
}

// yearOverYear compares against the same range one and two years back.
// A comparison that fails or finds no data is left out.
func (s *periodReportService) yearOverYear(ctx context.Context, period Period, dr DateRange, filter *string, current PeriodSummary) YearOverYear {
	var yoy YearOverYear
	slots := []struct {
		yearsBack int
		into      **PeriodComparison
	}{
		{1, &yoy.OneYearAgo},
		{2, &yoy.TwoYearsAgo},
	}
	for _, slot := range slots {
		yearsBack := slot.yearsBack
		shifted := DateRange{
			Start: dr.Start.AddDate(-yearsBack, 0, 0),
			End:   dr.End.AddDate(-yearsBack, 0, 0),
		}
		levels, rainfall, err := s.fetch(ctx, period, shifted, filter)
		if err != nil {
			s.logger.Warn("year-over-year comparison unavailable",
				"period", string(period),
				"years_back", yearsBack,
				"error", err.Error(),
			)
			continue
		}
		if len(levels) == 0 && len(rainfall) == 0 {
			continue
		}

		previous := summarize(levels, rainfall, len(buildSeries(levels, rainfall)))
		*slot.into = &PeriodComparison{
			Range:                 shifted,
			Summary:               previous,
			LevelChangePercent:    changePercent(current.AverageLevel, previous.AverageLevel),
			RainfallChangePercent: changePercent(current.TotalRainfall, previous.TotalRainfall),
		}
	}
	return yoy
}

// levelStats accumulates a count-weighted mean with its extremes
type levelStats struct {
	sum   float64
	count int64
	min   float64
	max   float64
}

func (a *levelStats) add(avg, lo, hi float64, count int64) {
	if count <= 0 {
		return
	}
	if a.count == 0 || lo < a.min {
		a.min = lo
	}
	if a.count == 0 || hi > a.max {
		a.max = hi
	}
	a.sum += avg * float64(count)
	a.count += count
}

func (a *levelStats) mean() float64 {
	if a.count == 0 {
		return 0
	}
	return roundToStep(a.sum/float64(a.count), waterLevelScale)
}

// buildSeries merges station rows into one point per period, oldest first
func buildSeries(levels []model.PeriodWaterLevelAggregate, rainfall []model.PeriodRainfallAggregate) []PeriodPoint {
	type bucket struct {
		start    time.Time
		level    levelStats
		rainfall float64
		rainN    int64
	}
	buckets := map[int64]*bucket{}
	get := func(t time.Time) *bucket {
		key := t.Unix()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{start: t.UTC()}
			buckets[key] = b
		}
		return b
	}

	for _, r := range levels {
		get(r.PeriodStart).level.add(r.AvgWaterLevel, r.MinWaterLevel, r.MaxWaterLevel, r.MeasurementCount)
	}
	for _, r := range rainfall {
		b := get(r.PeriodStart)
		b.rainfall += r.TotalRainfall
		b.rainN += r.MeasurementCount
	}

	points := make([]PeriodPoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, PeriodPoint{
			PeriodStart:     b.start,
			AvgWaterLevel:   b.level.mean(),
			MinWaterLevel:   b.level.min,
			MaxWaterLevel:   b.level.max,
			WaterLevelCount: b.level.count,
			TotalRainfall:   roundToStep(b.rainfall, rainfallScale),
			RainfallCount:   b.rainN,
		})
	}
	slices.SortFunc(points, func(a, b PeriodPoint) int {
		return a.PeriodStart.Compare(b.PeriodStart)
	})
	return points
}

// summarize computes summary statistics; periods is the number of points in
// the series and divides the rainfall total
func summarize(levels []model.PeriodWaterLevelAggregate, rainfall []model.PeriodRainfallAggregate, periods int) PeriodSummary {
	var level levelStats
	for _, r := range levels {
		level.add(r.AvgWaterLevel, r.MinWaterLevel, r.MaxWaterLevel, r.MeasurementCount)
	}

	var total float64
	var rainN int64
	for _, r := range rainfall {
		total += r.TotalRainfall
		rainN += r.MeasurementCount
	}

	summary := PeriodSummary{
		AverageLevel:    level.mean(),
		PeakLevel:       level.max,
		LowestLevel:     level.min,
		TotalRainfall:   roundToStep(total, rainfallScale),
		WaterLevelCount: level.count,
		RainfallCount:   rainN,
	}
	if periods > 0 {
		summary.AverageRainfall = roundToStep(total/float64(periods), rainfallScale)
	}
	return summary
}

// breakdownByLocation summarizes each station, ordered by name
func breakdownByLocation(levels []model.PeriodWaterLevelAggregate, rainfall []model.PeriodRainfallAggregate) []LocationBreakdown {
	type station struct {
		name     string
		level    levelStats
		rainfall float64
		rainN    int64
	}
	stations := map[string]*station{}
	get := func(id, name string) *station {
		st, ok := stations[id]
		if !ok {
			st = &station{name: name}
			stations[id] = st
		}
		return st
	}

	for _, r := range levels {
		get(r.LocationID, r.LocationName).level.add(r.AvgWaterLevel, r.MinWaterLevel, r.MaxWaterLevel, r.MeasurementCount)
	}
	for _, r := range rainfall {
		st := get(r.LocationID, r.LocationName)
		st.rainfall += r.TotalRainfall
		st.rainN += r.MeasurementCount
	}

	out := make([]LocationBreakdown, 0, len(stations))
	for id, st := range stations {
		out = append(out, LocationBreakdown{
			LocationID:      id,
			LocationName:    st.name,
			AverageLevel:    st.level.mean(),
			LowestLevel:     st.level.min,
			PeakLevel:       st.level.max,
			TotalRainfall:   roundToStep(st.rainfall, rainfallScale),
			WaterLevelCount: st.level.count,
			RainfallCount:   st.rainN,
		})
	}
	slices.SortFunc(out, func(a, b LocationBreakdown) int {
		if c := strings.Compare(a.LocationName, b.LocationName); c != 0 {
			return c
		}
		return strings.Compare(a.LocationID, b.LocationID)
	})
	return out
}

// changePercent returns the percentage change from previous to current,
// rounded to two decimals. Growth from zero is reported as 100%.
func changePercent(current, previous float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0.0
		}
		return 100.0
	}
	change := ((current - previous) / previous) * 100
	return math.Round(change*100) / 100
}
