package repository

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"water-monitoring/internal/model"

	"gorm.io/gorm"
)

// SeedRepository fills an empty store with demo stations and readings
type SeedRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewSeedRepository creates a new seed repository
func NewSeedRepository(db *gorm.DB, logger *slog.Logger) *SeedRepository {
	return &SeedRepository{db: db, logger: logger}
}

// SeedDatabase creates the demo stations and `days` days of hourly readings
// ending at `now`. It is a no-op when any station already exists.
func (s *SeedRepository) SeedDatabase(ctx context.Context, now time.Time, days int) error {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&model.Location{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count locations: %w", err)
	}
	if count > 0 {
		s.logger.Info("seed skipped, registry not empty", "locations", count)
		return nil
	}

	locations := DemoLocations()
	if err := db.Create(&locations).Error; err != nil {
		return fmt.Errorf("failed to create locations: %w", err)
	}

	levels, rainfall, err := s.createMeasurements(db, locations, now, days)
	if err != nil {
		return err
	}

	s.logger.Info("seeded database",
		"locations", len(locations),
		"water_level_measurements", levels,
		"rainfall_measurements", rainfall,
	)
	return nil
}

// DemoLocations returns the demo station registry
func DemoLocations() []model.Location {
	return []model.Location{
		demoLocation("Main Dam Reservoir", "Reservoir", "Central", "North Province", 15, 20, 2500000),
		demoLocation("Primary Canal Point A", "Canal", "Riverside", "North Province", 10, 15, 0),
		demoLocation("Secondary Canal B", "Canal", "Lowland", "South Province", 8, 12, 0),
		demoLocation("Pump Station 1", "Pump Station", "Central", "North Province", 12, 16, 0),
	}
}

func demoLocation(name, kind, district, province string, minLevel, maxLevel, capacity float64) model.Location {
	loc := model.Location{
		Name:         name,
		LocationType: kind,
		District:     district,
		Province:     province,
		MinLevel:     &minLevel,
		MaxLevel:     &maxLevel,
	}
	if capacity > 0 {
		loc.Capacity = &capacity
	}
	return loc
}

// createMeasurements writes one water level and one rainfall reading per station-hour
func (s *SeedRepository) createMeasurements(db *gorm.DB, locations []model.Location, now time.Time, days int) (int, int, error) {
	rng := rand.New(rand.NewSource(now.UnixNano()))
	batchSize := 100

	end := now.UTC().Truncate(time.Hour)
	start := end.AddDate(0, 0, -days)

	levels := []model.WaterLevelMeasurement{}
	rainfall := []model.RainfallMeasurement{}
	totalLevels, totalRainfall := 0, 0

	for ts := start; !ts.After(end); ts = ts.Add(time.Hour) {
		for _, loc := range locations {
			// Wander around the middle of the safe range, occasionally straying out of it
			low, high := *loc.MinLevel, *loc.MaxLevel
			mid := (low + high) / 2
			level := mid + (rng.Float64()-0.5)*(high-low)*1.4

			levels = append(levels, model.WaterLevelMeasurement{
				LocationID:      loc.ID,
				RecordedBy:      "seed",
				WaterLevel:      roundTo(level, 1000),
				MeasurementType: model.MeasurementAutomatic,
				RecordedAt:      ts.Add(time.Duration(rng.Intn(60)) * time.Minute),
			})
			totalLevels++

			// Rain in roughly a quarter of the hours
			if rng.Intn(4) == 0 {
				rainfall = append(rainfall, model.RainfallMeasurement{
					LocationID:      loc.ID,
					RecordedBy:      "seed",
					RainfallAmount:  roundTo(rng.Float64()*12, 10),
					DurationHours:   1,
					MeasurementType: model.MeasurementAutomatic,
					RecordedAt:      ts.Add(time.Duration(rng.Intn(60)) * time.Minute),
				})
				totalRainfall++
			}
		}

		if len(levels) >= batchSize {
			if err := db.Omit("Location").Create(&levels).Error; err != nil {
				return 0, 0, fmt.Errorf("failed to create water level batch: %w", err)
			}
			levels = []model.WaterLevelMeasurement{}
		}
		if len(rainfall) >= batchSize {
			if err := db.Omit("Location").Create(&rainfall).Error; err != nil {
				return 0, 0, fmt.Errorf("failed to create rainfall batch: %w", err)
			}
			rainfall = []model.RainfallMeasurement{}
		}
	}

	if len(levels) > 0 {
		if err := db.Omit("Location").Create(&levels).Error; err != nil {
			return 0, 0, fmt.Errorf("failed to create final water level batch: %w", err)
		}
	}
	if len(rainfall) > 0 {
		if err := db.Omit("Location").Create(&rainfall).Error; err != nil {
			return 0, 0, fmt.Errorf("failed to create final rainfall batch: %w", err)
		}
	}

	return totalLevels, totalRainfall, nil
}

func roundTo(v, scale float64) float64 {
	return float64(int64(v*scale+0.5)) / scale
}
