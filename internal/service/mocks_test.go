package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"water-monitoring/internal/model"
	"water-monitoring/internal/repository"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func floatPtr(v float64) *float64 { return &v }

const (
	damID   = "5b0e8a62-6d3a-4c1e-9a57-0f0c1e9f0a01"
	canalID = "5b0e8a62-6d3a-4c1e-9a57-0f0c1e9f0a02"
	pumpID  = "5b0e8a62-6d3a-4c1e-9a57-0f0c1e9f0a03"
)

func testLocations() []model.Location {
	return []model.Location{
		{ID: damID, Name: "Main Dam Reservoir", LocationType: "Reservoir", MinLevel: floatPtr(15), MaxLevel: floatPtr(20)},
		{ID: pumpID, Name: "Pump Station 1", LocationType: "Pump Station"},
		{ID: canalID, Name: "Secondary Canal B", LocationType: "Canal", MinLevel: floatPtr(8), MaxLevel: floatPtr(12)},
	}
}

// mockLocationRepository serves a fixed registry and counts reads
type mockLocationRepository struct {
	mu        sync.Mutex
	locations []model.Location
	err       error
	getErr    error
	listCalls int
	getCalls  int
}

func (m *mockLocationRepository) ListLocations(ctx context.Context) ([]model.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.Location, len(m.locations))
	copy(out, m.locations)
	return out, nil
}

func (m *mockLocationRepository) GetLocation(ctx context.Context, id string) (*model.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, loc := range m.locations {
		if loc.ID == id {
			l := loc
			return &l, nil
		}
	}
	return nil, repository.ErrLocationNotFound
}

func (m *mockLocationRepository) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func (m *mockLocationRepository) gets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls
}

func (m *mockLocationRepository) add(loc model.Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = append(m.locations, loc)
}

// mockMeasurementRepository records inserts. When block is set, inserts wait
// for it to close (or for the context to end) after signalling started.
type mockMeasurementRepository struct {
	mu          sync.Mutex
	waterLevels []model.WaterLevelMeasurement
	rainfall    []model.RainfallMeasurement
	latest      []model.WaterLevelMeasurement
	err         error
	insertCalls int

	started chan struct{}
	block   chan struct{}
}

func (m *mockMeasurementRepository) wait(ctx context.Context) error {
	if m.started != nil {
		select {
		case m.started <- struct{}{}:
		default:
		}
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *mockMeasurementRepository) InsertWaterLevel(ctx context.Context, w *model.WaterLevelMeasurement) error {
	m.mu.Lock()
	m.insertCalls++
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	w.ID = fmt.Sprintf("wl-%d", len(m.waterLevels)+1)
	m.waterLevels = append(m.waterLevels, *w)
	return nil
}

func (m *mockMeasurementRepository) InsertRainfall(ctx context.Context, r *model.RainfallMeasurement) error {
	m.mu.Lock()
	m.insertCalls++
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	r.ID = fmt.Sprintf("rf-%d", len(m.rainfall)+1)
	m.rainfall = append(m.rainfall, *r)
	return nil
}

func (m *mockMeasurementRepository) LatestWaterLevels(ctx context.Context) ([]model.WaterLevelMeasurement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.latest, nil
}

func (m *mockMeasurementRepository) inserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCalls
}

type aggregationCall struct {
	start, end time.Time
	filter     *string
}

// mockAggregationRepository returns canned rollups and records each call
type mockAggregationRepository struct {
	mu         sync.Mutex
	waterLevel []model.HourlyWaterLevelRollup
	rainfall   []model.HourlyRainfallRollup
	err        error
	calls      []aggregationCall
}

func (m *mockAggregationRepository) HourlyWaterLevelReport(ctx context.Context, start, end time.Time, filter *string) ([]model.HourlyWaterLevelRollup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, aggregationCall{start: start, end: end, filter: filter})
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.HourlyWaterLevelRollup, len(m.waterLevel))
	copy(out, m.waterLevel)
	return out, nil
}

func (m *mockAggregationRepository) HourlyRainfallReport(ctx context.Context, start, end time.Time, filter *string) ([]model.HourlyRainfallRollup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, aggregationCall{start: start, end: end, filter: filter})
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.HourlyRainfallRollup, len(m.rainfall))
	copy(out, m.rainfall)
	return out, nil
}

type periodCall struct {
	aggregation string
	start, end  time.Time
	filter      *string
}

// mockPeriodRepository serves canned aggregates keyed by the year the
// requested range starts in, so shifted comparison ranges get their own rows
type mockPeriodRepository struct {
	mu         sync.Mutex
	waterLevel map[int][]model.PeriodWaterLevelAggregate
	rainfall   map[int][]model.PeriodRainfallAggregate
	errs       map[int]error
	calls      []periodCall
}

func (m *mockPeriodRepository) GetWaterLevelAggregates(ctx context.Context, aggregation string, start, end time.Time, filter *string) ([]model.PeriodWaterLevelAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, periodCall{aggregation: aggregation, start: start, end: end, filter: filter})
	if err := m.errs[start.Year()]; err != nil {
		return nil, err
	}
	return append([]model.PeriodWaterLevelAggregate(nil), m.waterLevel[start.Year()]...), nil
}

func (m *mockPeriodRepository) GetRainfallAggregates(ctx context.Context, aggregation string, start, end time.Time, filter *string) ([]model.PeriodRainfallAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, periodCall{aggregation: aggregation, start: start, end: end, filter: filter})
	if err := m.errs[start.Year()]; err != nil {
		return nil, err
	}
	return append([]model.PeriodRainfallAggregate(nil), m.rainfall[start.Year()]...), nil
}

func (m *mockPeriodRepository) recorded() []periodCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]periodCall(nil), m.calls...)
}

// recordingPublisher captures published alerts
type recordingPublisher struct {
	mu     sync.Mutex
	alerts []model.LevelAlert
	err    error
}

func (p *recordingPublisher) PublishAlert(ctx context.Context, alert model.LevelAlert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.alerts = append(p.alerts, alert)
	return nil
}

func (p *recordingPublisher) published() []model.LevelAlert {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.LevelAlert(nil), p.alerts...)
}
