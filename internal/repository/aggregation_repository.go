package repository

import (
	"context"
	"time"

	"water-monitoring/internal/model"

	"gorm.io/gorm"
)

// Rollup procedures created by Migrate
const (
	waterLevelReportFn = "get_hourly_water_level_report"
	rainfallReportFn   = "get_hourly_rainfall_report"
)

// AggregationRepository calls the hourly rollup procedures of the store.
// A nil locationFilter is sent as SQL NULL, meaning all stations.
type AggregationRepository interface {
	HourlyWaterLevelReport(ctx context.Context, start, end time.Time, locationFilter *string) ([]model.HourlyWaterLevelRollup, error)
	HourlyRainfallReport(ctx context.Context, start, end time.Time, locationFilter *string) ([]model.HourlyRainfallRollup, error)
}

type aggregationRepository struct {
	db *gorm.DB
}

// NewAggregationRepository creates a new aggregation repository
func NewAggregationRepository(db *gorm.DB) AggregationRepository {
	return &aggregationRepository{db: db}
}

// HourlyWaterLevelReport returns avg/min/max/count per station-hour
func (r *aggregationRepository) HourlyWaterLevelReport(ctx context.Context, start, end time.Time, locationFilter *string) ([]model.HourlyWaterLevelRollup, error) {
	var rows []model.HourlyWaterLevelRollup
	err := rollupQuery(r.db.WithContext(ctx), waterLevelReportFn, start, end, locationFilter).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// HourlyRainfallReport returns total/avg/max/count per station-hour
func (r *aggregationRepository) HourlyRainfallReport(ctx context.Context, start, end time.Time, locationFilter *string) ([]model.HourlyRainfallRollup, error) {
	var rows []model.HourlyRainfallRollup
	err := rollupQuery(r.db.WithContext(ctx), rainfallReportFn, start, end, locationFilter).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// rollupQuery binds the range and filter positionally; the filter is always
// passed, so nil reaches the procedure as NULL
func rollupQuery(tx *gorm.DB, fn string, start, end time.Time, locationFilter *string) *gorm.DB {
	return tx.Raw("SELECT * FROM "+fn+"(?, ?, ?)", start.UTC(), end.UTC(), locationFilter)
}
