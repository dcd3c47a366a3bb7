package repository

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"water-monitoring/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "hydro.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func createLocation(t *testing.T, db *gorm.DB, name string) model.Location {
	t.Helper()
	loc := model.Location{Name: name, LocationType: "Canal", District: "Central", Province: "North Province"}
	require.NoError(t, db.Create(&loc).Error)
	return loc
}

func TestListLocations_OrderedByName(t *testing.T) {
	db := setupTestDB(t)
	createLocation(t, db, "Secondary Canal B")
	createLocation(t, db, "Main Dam Reservoir")
	createLocation(t, db, "Pump Station 1")

	repo := NewLocationRepository(db)
	locations, err := repo.ListLocations(context.Background())
	require.NoError(t, err)

	require.Len(t, locations, 3)
	assert.Equal(t, "Main Dam Reservoir", locations[0].Name)
	assert.Equal(t, "Pump Station 1", locations[1].Name)
	assert.Equal(t, "Secondary Canal B", locations[2].Name)
	for _, loc := range locations {
		assert.NotEmpty(t, loc.ID)
	}
}

func TestGetLocation(t *testing.T) {
	db := setupTestDB(t)
	loc := createLocation(t, db, "Primary Canal Point A")
	repo := NewLocationRepository(db)

	got, err := repo.GetLocation(context.Background(), loc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Primary Canal Point A", got.Name)

	_, err = repo.GetLocation(context.Background(), "3f1c1f4e-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, ErrLocationNotFound)
}

func TestInsertWaterLevel(t *testing.T) {
	db := setupTestDB(t)
	loc := createLocation(t, db, "Main Dam Reservoir")
	repo := NewMeasurementRepository(db)

	m := &model.WaterLevelMeasurement{
		LocationID:      loc.ID,
		RecordedBy:      "officer-1",
		WaterLevel:      17.25,
		MeasurementType: model.MeasurementManual,
		RecordedAt:      time.Date(2024, 3, 10, 8, 15, 0, 0, time.UTC),
	}
	require.NoError(t, repo.InsertWaterLevel(context.Background(), m))
	assert.NotEmpty(t, m.ID)

	var stored model.WaterLevelMeasurement
	require.NoError(t, db.First(&stored, "id = ?", m.ID).Error)
	assert.Equal(t, 17.25, stored.WaterLevel)
	assert.Equal(t, "officer-1", stored.RecordedBy)
	assert.Equal(t, model.MeasurementManual, stored.MeasurementType)

	var count int64
	require.NoError(t, db.Model(&model.Location{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "insert must not touch the registry")
}

func TestInsertRainfall(t *testing.T) {
	db := setupTestDB(t)
	loc := createLocation(t, db, "Pump Station 1")
	repo := NewMeasurementRepository(db)

	notes := "after storm"
	m := &model.RainfallMeasurement{
		LocationID:      loc.ID,
		RecordedBy:      "officer-1",
		RainfallAmount:  12.5,
		DurationHours:   3,
		MeasurementType: model.MeasurementDigital,
		Notes:           &notes,
		RecordedAt:      time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.InsertRainfall(context.Background(), m))

	var stored model.RainfallMeasurement
	require.NoError(t, db.First(&stored, "id = ?", m.ID).Error)
	assert.Equal(t, 12.5, stored.RainfallAmount)
	assert.Equal(t, 3, stored.DurationHours)
	require.NotNil(t, stored.Notes)
	assert.Equal(t, "after storm", *stored.Notes)
}

func TestLatestWaterLevels(t *testing.T) {
	db := setupTestDB(t)
	dam := createLocation(t, db, "Main Dam Reservoir")
	canal := createLocation(t, db, "Secondary Canal B")
	repo := NewMeasurementRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	readings := []model.WaterLevelMeasurement{
		{LocationID: dam.ID, WaterLevel: 16.0, RecordedAt: base},
		{LocationID: dam.ID, WaterLevel: 18.5, RecordedAt: base.Add(2 * time.Hour)},
		{LocationID: canal.ID, WaterLevel: 7.2, RecordedAt: base.Add(time.Hour)},
	}
	for i := range readings {
		readings[i].RecordedBy = "seed"
		readings[i].MeasurementType = model.MeasurementAutomatic
		require.NoError(t, repo.InsertWaterLevel(ctx, &readings[i]))
	}

	latest, err := repo.LatestWaterLevels(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)

	byLocation := map[string]float64{}
	for _, m := range latest {
		byLocation[m.LocationID] = m.WaterLevel
	}
	assert.Equal(t, 18.5, byLocation[dam.ID])
	assert.Equal(t, 7.2, byLocation[canal.ID])
}

func TestSeedDatabase(t *testing.T) {
	db := setupTestDB(t)
	seeder := NewSeedRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)

	require.NoError(t, seeder.SeedDatabase(context.Background(), now, 1))

	var locations int64
	require.NoError(t, db.Model(&model.Location{}).Count(&locations).Error)
	assert.Equal(t, int64(4), locations)

	// 25 hours inclusive of both ends, one reading per station-hour
	var levels int64
	require.NoError(t, db.Model(&model.WaterLevelMeasurement{}).Count(&levels).Error)
	assert.Equal(t, int64(4*25), levels)

	// a second run leaves the store alone
	require.NoError(t, seeder.SeedDatabase(context.Background(), now, 1))
	require.NoError(t, db.Model(&model.Location{}).Count(&locations).Error)
	assert.Equal(t, int64(4), locations)
}

func TestDemoLocations_HaveThresholds(t *testing.T) {
	for _, loc := range DemoLocations() {
		th, ok := loc.Thresholds()
		require.True(t, ok, loc.Name)
		assert.Less(t, th.Min, th.Max, loc.Name)
	}
}

func TestRollupQuery_NilFilterBindsNull(t *testing.T) {
	db := setupTestDB(t)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 2, 23, 59, 59, 0, time.UTC)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return rollupQuery(tx, waterLevelReportFn, start, end, nil)
	})

	assert.Contains(t, sql, "SELECT * FROM get_hourly_water_level_report(")
	assert.Contains(t, sql, "2024-03-02 23:59:59")
	assert.True(t, strings.HasSuffix(sql, ", NULL)"), sql)
}

func TestRollupQuery_FilterBindsStationID(t *testing.T) {
	db := setupTestDB(t)
	filter := "3f1c1f4e-0000-4000-8000-000000000001"
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return rollupQuery(tx, rainfallReportFn, start, start.Add(time.Hour), &filter)
	})

	assert.Contains(t, sql, "SELECT * FROM get_hourly_rainfall_report(")
	assert.Contains(t, sql, filter)
	assert.NotContains(t, sql, "NULL")
}

func TestRollupQuery_ConvertsRangeToUTC(t *testing.T) {
	db := setupTestDB(t)
	colombo := time.FixedZone("+0530", 5*3600+30*60)
	start := time.Date(2024, 3, 1, 5, 30, 0, 0, colombo)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return rollupQuery(tx, waterLevelReportFn, start, start.Add(time.Hour), nil)
	})

	assert.Contains(t, sql, "2024-03-01 00:00:00")
}

func TestRollupFunctions_BucketInUTC(t *testing.T) {
	assert.Contains(t, hourlyWaterLevelReportFn, utcTrunc("hour", "w.recorded_at"))
	assert.Contains(t, hourlyRainfallReportFn, utcTrunc("hour", "r.recorded_at"))
	// truncating the bare timestamptz would follow the session TimeZone
	assert.NotContains(t, hourlyWaterLevelReportFn, "date_trunc('hour', w.recorded_at)")
	assert.NotContains(t, hourlyRainfallReportFn, "date_trunc('hour', r.recorded_at)")
}

func TestUTCTrunc(t *testing.T) {
	assert.Equal(t,
		"date_trunc('week', w.recorded_at AT TIME ZONE 'UTC') AT TIME ZONE 'UTC'",
		utcTrunc("week", "w.recorded_at"))
}

func TestPeriodQueries(t *testing.T) {
	db := setupTestDB(t)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)
	filter := "3f1c1f4e-0000-4000-8000-000000000002"

	tests := []struct {
		name        string
		aggregation string
		filter      *string
		build       func(*gorm.DB, string, time.Time, time.Time, *string) (*gorm.DB, error)
		contains    []string
		notContains []string
	}{
		{
			name:        "daily water level for all stations",
			aggregation: AggregationDaily,
			build:       waterLevelPeriodQuery,
			contains:    []string{utcTrunc("day", "w.recorded_at"), "AVG(w.water_level)", "2024-03-31 23:59:59"},
			notContains: []string{"w.location_id = "},
		},
		{
			name:        "weekly water level for one station",
			aggregation: AggregationWeekly,
			filter:      &filter,
			build:       waterLevelPeriodQuery,
			contains:    []string{utcTrunc("week", "w.recorded_at"), "w.location_id = ", filter},
		},
		{
			name:        "monthly rainfall for all stations",
			aggregation: AggregationMonthly,
			build:       rainfallPeriodQuery,
			contains:    []string{utcTrunc("month", "r.recorded_at"), "SUM(r.rainfall_amount)"},
			notContains: []string{"r.location_id = "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buildErr error
			sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
				q, err := tt.build(tx, tt.aggregation, start, end, tt.filter)
				buildErr = err
				if err != nil {
					return tx
				}
				return q
			})
			require.NoError(t, buildErr)
			for _, want := range tt.contains {
				assert.Contains(t, sql, want)
			}
			for _, unwanted := range tt.notContains {
				assert.NotContains(t, sql, unwanted)
			}
		})
	}
}

func TestPeriodRepository_UnknownAggregation(t *testing.T) {
	repo := NewPeriodRepository(setupTestDB(t))
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := repo.GetWaterLevelAggregates(context.Background(), "hourly", now, now, nil)
	assert.ErrorIs(t, err, ErrUnknownAggregation)

	_, err = repo.GetRainfallAggregates(context.Background(), "yearly", now, now, nil)
	assert.ErrorIs(t, err, ErrUnknownAggregation)
}
