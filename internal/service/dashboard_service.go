package service

import (
	"context"
	"time"

	"water-monitoring/internal/model"
	"water-monitoring/internal/repository"
	"water-monitoring/internal/threshold"

	"github.com/jonboulle/clockwork"
)

// StationStatus is a station with its latest reading and classification
type StationStatus struct {
	Location model.Location               `json:"location"`
	Latest   *model.WaterLevelMeasurement `json:"latest,omitempty"`
	Status   threshold.Status             `json:"status"`
	Message  string                       `json:"message,omitempty"`
}

// StatusCounts tallies stations per status; NoData covers stations without
// a reading or without thresholds.
type StatusCounts struct {
	Critical int `json:"critical"`
	Low      int `json:"low"`
	Normal   int `json:"normal"`
	High     int `json:"high"`
	NoData   int `json:"no_data"`
}

// trendDays is the length of the dashboard trend, today included
const trendDays = 7

// Dashboard is the overview of every station
type Dashboard struct {
	Stations    []StationStatus `json:"stations"`
	Counts      StatusCounts    `json:"counts"`
	Alerts      []StationStatus `json:"alerts"`
	Trend       []PeriodPoint   `json:"trend"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// DashboardService builds the station overview from live readings
type DashboardService interface {
	GetDashboard(ctx context.Context) (*Dashboard, error)
}

type dashboardService struct {
	locations    LocationService
	measurements repository.MeasurementRepository
	trends       PeriodReportService
	clock        clockwork.Clock
	timeout      time.Duration
}

// NewDashboardService creates a new dashboard service. A nil trends service
// leaves the trend empty.
func NewDashboardService(locations LocationService, measurements repository.MeasurementRepository, trends PeriodReportService, clock clockwork.Clock, timeout time.Duration) DashboardService {
	return &dashboardService{
		locations:    locations,
		measurements: measurements,
		trends:       trends,
		clock:        clock,
		timeout:      timeout,
	}
}

// GetDashboard classifies each station's latest water level. Alerts lists
// critical stations first, then low ones, each in registry order. Trend holds
// the daily network series of the last week.
func (s *dashboardService) GetDashboard(ctx context.Context) (*Dashboard, error) {
	locations, err := s.locations.ListLocations(ctx)
	if err != nil {
		return nil, err
	}

	var latest []model.WaterLevelMeasurement
	err = callCollaborator(ctx, s.timeout, "latest water levels", func(ctx context.Context) error {
		var err error
		latest, err = s.measurements.LatestWaterLevels(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	byLocation := make(map[string]model.WaterLevelMeasurement, len(latest))
	for _, m := range latest {
		// Ties on recorded_at keep whichever row came last
		byLocation[m.LocationID] = m
	}

	now := s.clock.Now().UTC()
	d := &Dashboard{
		Stations:    make([]StationStatus, 0, len(locations)),
		Alerts:      []StationStatus{},
		Trend:       []PeriodPoint{},
		GeneratedAt: now,
	}
	if s.trends != nil {
		trend, err := s.trends.GetTrend(ctx, PeriodDaily, trendRange(now), nil)
		if err != nil {
			return nil, err
		}
		d.Trend = trend
	}
	var critical, low []StationStatus

	for _, loc := range locations {
		st := StationStatus{Location: loc, Status: threshold.StatusNone}
		if m, ok := byLocation[loc.ID]; ok {
			m := m
			st.Latest = &m
			if t, ok := loc.Thresholds(); ok {
				st.Status = threshold.Evaluate(m.WaterLevel, t)
				st.Message = st.Status.Message()
			}
		}

		switch st.Status {
		case threshold.StatusCritical:
			d.Counts.Critical++
			critical = append(critical, st)
		case threshold.StatusLow:
			d.Counts.Low++
			low = append(low, st)
		case threshold.StatusNormal:
			d.Counts.Normal++
		case threshold.StatusHigh:
			d.Counts.High++
		default:
			d.Counts.NoData++
		}
		d.Stations = append(d.Stations, st)
	}

	d.Alerts = append(d.Alerts, critical...)
	d.Alerts = append(d.Alerts, low...)
	return d, nil
}

// trendRange covers the trendDays calendar days (UTC) ending today
func trendRange(now time.Time) DateRange {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return DateRange{
		Start: today.AddDate(0, 0, -(trendDays - 1)),
		End:   today.Add(24*time.Hour - time.Second),
	}
}
