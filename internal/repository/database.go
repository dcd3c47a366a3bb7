package repository

import (
	"context"
	"fmt"

	"water-monitoring/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenPostgres connects to the measurement store
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates the registry and measurement tables and, on PostgreSQL,
// the hourly rollup functions backing the report endpoints.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Location{},
		&model.WaterLevelMeasurement{},
		&model.RainfallMeasurement{},
	); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for _, stmt := range []string{hourlyWaterLevelReportFn, hourlyRainfallReportFn} {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create rollup function: %w", err)
		}
	}
	return nil
}

// Pinger reports store reachability for readiness checks
type Pinger struct {
	db *gorm.DB
}

// NewPinger creates a readiness checker for the given connection
func NewPinger(db *gorm.DB) *Pinger {
	return &Pinger{db: db}
}

// CheckReadiness pings the underlying connection pool
func (p *Pinger) CheckReadiness(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// utcTrunc truncates a timestamptz column in UTC whatever the session
// TimeZone, so buckets always start on UTC boundaries.
func utcTrunc(unit, column string) string {
	return fmt.Sprintf("date_trunc('%s', %s AT TIME ZONE 'UTC') AT TIME ZONE 'UTC'", unit, column)
}

var hourlyWaterLevelReportFn = `
CREATE OR REPLACE FUNCTION get_hourly_water_level_report(
	start_date timestamptz,
	end_date timestamptz,
	location_filter uuid DEFAULT NULL
)
RETURNS TABLE (
	hour_period timestamptz,
	location_id uuid,
	location_name text,
	avg_water_level double precision,
	min_water_level double precision,
	max_water_level double precision,
	measurement_count bigint
)
LANGUAGE sql STABLE AS $$
	SELECT
		` + utcTrunc("hour", "w.recorded_at") + ` AS hour_period,
		w.location_id,
		l.name::text AS location_name,
		AVG(w.water_level)::double precision,
		MIN(w.water_level)::double precision,
		MAX(w.water_level)::double precision,
		COUNT(*)
	FROM water_level_measurements w
	JOIN monitoring_locations l ON l.id = w.location_id
	WHERE w.recorded_at >= start_date
		AND w.recorded_at <= end_date
		AND (location_filter IS NULL OR w.location_id = location_filter)
	GROUP BY 1, w.location_id, l.name
	ORDER BY 1 DESC, 3
$$`

var hourlyRainfallReportFn = `
CREATE OR REPLACE FUNCTION get_hourly_rainfall_report(
	start_date timestamptz,
	end_date timestamptz,
	location_filter uuid DEFAULT NULL
)
RETURNS TABLE (
	hour_period timestamptz,
	location_id uuid,
	location_name text,
	total_rainfall double precision,
	avg_rainfall double precision,
	max_rainfall double precision,
	measurement_count bigint
)
LANGUAGE sql STABLE AS $$
	SELECT
		` + utcTrunc("hour", "r.recorded_at") + ` AS hour_period,
		r.location_id,
		l.name::text AS location_name,
		SUM(r.rainfall_amount)::double precision,
		AVG(r.rainfall_amount)::double precision,
		MAX(r.rainfall_amount)::double precision,
		COUNT(*)
	FROM rainfall_measurements r
	JOIN monitoring_locations l ON l.id = r.location_id
	WHERE r.recorded_at >= start_date
		AND r.recorded_at <= end_date
		AND (location_filter IS NULL OR r.location_id = location_filter)
	GROUP BY 1, r.location_id, l.name
	ORDER BY 1 DESC, 3
$$`
