package repository

import (
	"context"

	"water-monitoring/internal/model"

	"gorm.io/gorm"
)

// MeasurementRepository appends readings to the measurement store
type MeasurementRepository interface {
	InsertWaterLevel(ctx context.Context, m *model.WaterLevelMeasurement) error
	InsertRainfall(ctx context.Context, m *model.RainfallMeasurement) error
	LatestWaterLevels(ctx context.Context) ([]model.WaterLevelMeasurement, error)
}

type measurementRepository struct {
	db *gorm.DB
}

// NewMeasurementRepository creates a new measurement repository
func NewMeasurementRepository(db *gorm.DB) MeasurementRepository {
	return &measurementRepository{db: db}
}

// InsertWaterLevel appends one water level row; id and created_at are filled in on success
func (r *measurementRepository) InsertWaterLevel(ctx context.Context, m *model.WaterLevelMeasurement) error {
	return r.db.WithContext(ctx).Omit("Location").Create(m).Error
}

// InsertRainfall appends one rainfall row; id and created_at are filled in on success
func (r *measurementRepository) InsertRainfall(ctx context.Context, m *model.RainfallMeasurement) error {
	return r.db.WithContext(ctx).Omit("Location").Create(m).Error
}

// LatestWaterLevels returns the most recent water level reading per station
func (r *measurementRepository) LatestWaterLevels(ctx context.Context) ([]model.WaterLevelMeasurement, error) {
	var results []model.WaterLevelMeasurement

	latest := r.db.Model(&model.WaterLevelMeasurement{}).
		Select("location_id, MAX(recorded_at) AS recorded_at").
		Group("location_id")

	err := r.db.WithContext(ctx).
		Table("water_level_measurements AS w").
		Select("w.*").
		Joins("JOIN (?) AS latest ON latest.location_id = w.location_id AND latest.recorded_at = w.recorded_at", latest).
		Order("w.location_id").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
