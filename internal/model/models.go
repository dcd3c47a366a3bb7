package model

import (
	"time"

	"water-monitoring/internal/threshold"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Location represents a monitoring station in the location registry
type Location struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name         string   `gorm:"not null;size:255;index" json:"name"`
	LocationType string   `gorm:"not null;size:100" json:"location_type"`
	District     string   `gorm:"not null;size:255" json:"district"`
	Province     string   `gorm:"not null;size:255" json:"province"`
	Capacity     *float64 `json:"capacity,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Elevation    *float64 `json:"elevation,omitempty"`

	// Safe operating range; stations without both bounds report no status
	MinLevel *float64 `json:"min_level,omitempty"`
	MaxLevel *float64 `json:"max_level,omitempty"`
}

// TableName specifies the table name for Location
func (Location) TableName() string {
	return "monitoring_locations"
}

// BeforeCreate assigns a UUID when none is set
func (l *Location) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// Thresholds returns the station's threshold range, if configured
func (l Location) Thresholds() (threshold.Thresholds, bool) {
	if l.MinLevel == nil || l.MaxLevel == nil {
		return threshold.Thresholds{}, false
	}
	return threshold.Thresholds{Min: *l.MinLevel, Max: *l.MaxLevel}, true
}

// MeasurementType describes how a reading was taken
type MeasurementType string

const (
	MeasurementManual     MeasurementType = "Manual"
	MeasurementAutomatic  MeasurementType = "Automatic"
	MeasurementDigital    MeasurementType = "Digital"
	MeasurementCalibrated MeasurementType = "Calibrated"
)

// Valid reports whether the measurement type is one of the known kinds
func (m MeasurementType) Valid() bool {
	switch m {
	case MeasurementManual, MeasurementAutomatic, MeasurementDigital, MeasurementCalibrated:
		return true
	}
	return false
}

// WaterLevelMeasurement is a single append-only water level reading
type WaterLevelMeasurement struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Composite index serves the hourly rollup range scans
	LocationID      string          `gorm:"type:uuid;not null;index:idx_wl_location_recorded,priority:1" json:"location_id"`
	RecordedBy      string          `gorm:"not null;size:255" json:"recorded_by"`
	WaterLevel      float64         `gorm:"not null" json:"water_level"`
	MeasurementType MeasurementType `gorm:"not null;size:50" json:"measurement_type"`
	Notes           *string         `gorm:"type:text" json:"notes,omitempty"`
	RecordedAt      time.Time       `gorm:"not null;index;index:idx_wl_location_recorded,priority:2" json:"recorded_at"`

	Location Location `gorm:"foreignKey:LocationID;constraint:OnDelete:RESTRICT" json:"-"`
}

// TableName specifies the table name for WaterLevelMeasurement
func (WaterLevelMeasurement) TableName() string {
	return "water_level_measurements"
}

// BeforeCreate assigns a UUID when none is set
func (m *WaterLevelMeasurement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// RainfallMeasurement is a single append-only rainfall reading in millimetres
type RainfallMeasurement struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	LocationID      string          `gorm:"type:uuid;not null;index:idx_rf_location_recorded,priority:1" json:"location_id"`
	RecordedBy      string          `gorm:"not null;size:255" json:"recorded_by"`
	RainfallAmount  float64         `gorm:"not null" json:"rainfall_amount"`
	DurationHours   int             `gorm:"not null;default:1" json:"duration_hours"`
	MeasurementType MeasurementType `gorm:"not null;size:50" json:"measurement_type"`
	Notes           *string         `gorm:"type:text" json:"notes,omitempty"`
	RecordedAt      time.Time       `gorm:"not null;index;index:idx_rf_location_recorded,priority:2" json:"recorded_at"`

	Location Location `gorm:"foreignKey:LocationID;constraint:OnDelete:RESTRICT" json:"-"`
}

// TableName specifies the table name for RainfallMeasurement
func (RainfallMeasurement) TableName() string {
	return "rainfall_measurements"
}

// BeforeCreate assigns a UUID when none is set
func (m *RainfallMeasurement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// RainfallDurations lists the accepted accumulation windows in hours
var RainfallDurations = []int{1, 3, 6, 12, 24}

// ValidRainfallDuration reports whether hours is an accepted accumulation window
func ValidRainfallDuration(hours int) bool {
	for _, d := range RainfallDurations {
		if d == hours {
			return true
		}
	}
	return false
}

// HourlyWaterLevelRollup is one row of the hourly water level report
type HourlyWaterLevelRollup struct {
	HourPeriod       time.Time `gorm:"column:hour_period" json:"hour_period"`
	LocationID       string    `gorm:"column:location_id" json:"location_id"`
	LocationName     string    `gorm:"column:location_name" json:"location_name"`
	AvgWaterLevel    float64   `gorm:"column:avg_water_level" json:"avg_water_level"`
	MinWaterLevel    float64   `gorm:"column:min_water_level" json:"min_water_level"`
	MaxWaterLevel    float64   `gorm:"column:max_water_level" json:"max_water_level"`
	MeasurementCount int64     `gorm:"column:measurement_count" json:"measurement_count"`
}

// HourlyRainfallRollup is one row of the hourly rainfall report
type HourlyRainfallRollup struct {
	HourPeriod       time.Time `gorm:"column:hour_period" json:"hour_period"`
	LocationID       string    `gorm:"column:location_id" json:"location_id"`
	LocationName     string    `gorm:"column:location_name" json:"location_name"`
	TotalRainfall    float64   `gorm:"column:total_rainfall" json:"total_rainfall"`
	AvgRainfall      float64   `gorm:"column:avg_rainfall" json:"avg_rainfall"`
	MaxRainfall      float64   `gorm:"column:max_rainfall" json:"max_rainfall"`
	MeasurementCount int64     `gorm:"column:measurement_count" json:"measurement_count"`
}

// PeriodWaterLevelAggregate is one station's water level statistics for a
// calendar day, ISO week or month
type PeriodWaterLevelAggregate struct {
	PeriodStart      time.Time `gorm:"column:period_start" json:"period_start"`
	LocationID       string    `gorm:"column:location_id" json:"location_id"`
	LocationName     string    `gorm:"column:location_name" json:"location_name"`
	AvgWaterLevel    float64   `gorm:"column:avg_water_level" json:"avg_water_level"`
	MinWaterLevel    float64   `gorm:"column:min_water_level" json:"min_water_level"`
	MaxWaterLevel    float64   `gorm:"column:max_water_level" json:"max_water_level"`
	MeasurementCount int64     `gorm:"column:measurement_count" json:"measurement_count"`
}

// PeriodRainfallAggregate is one station's rainfall statistics for a
// calendar day, ISO week or month
type PeriodRainfallAggregate struct {
	PeriodStart      time.Time `gorm:"column:period_start" json:"period_start"`
	LocationID       string    `gorm:"column:location_id" json:"location_id"`
	LocationName     string    `gorm:"column:location_name" json:"location_name"`
	TotalRainfall    float64   `gorm:"column:total_rainfall" json:"total_rainfall"`
	MaxRainfall      float64   `gorm:"column:max_rainfall" json:"max_rainfall"`
	MeasurementCount int64     `gorm:"column:measurement_count" json:"measurement_count"`
}
