package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"water-monitoring/internal/model"

	"gorm.io/gorm"
)

// Aggregation levels accepted by PeriodRepository
const (
	AggregationDaily   = "daily"
	AggregationWeekly  = "weekly"
	AggregationMonthly = "monthly"
)

// ErrUnknownAggregation is returned for an aggregation level other than
// daily, weekly or monthly
var ErrUnknownAggregation = errors.New("unknown aggregation level")

// PeriodRepository groups raw measurements into calendar periods per station
type PeriodRepository interface {
	GetWaterLevelAggregates(ctx context.Context, aggregation string, start, end time.Time, locationFilter *string) ([]model.PeriodWaterLevelAggregate, error)
	GetRainfallAggregates(ctx context.Context, aggregation string, start, end time.Time, locationFilter *string) ([]model.PeriodRainfallAggregate, error)
}

type periodRepository struct {
	db *gorm.DB
}

// NewPeriodRepository creates a new period repository
func NewPeriodRepository(db *gorm.DB) PeriodRepository {
	return &periodRepository{db: db}
}

// GetWaterLevelAggregates returns avg/min/max/count per station and period
func (r *periodRepository) GetWaterLevelAggregates(ctx context.Context, aggregation string, start, end time.Time, locationFilter *string) ([]model.PeriodWaterLevelAggregate, error) {
	q, err := waterLevelPeriodQuery(r.db.WithContext(ctx), aggregation, start, end, locationFilter)
	if err != nil {
		return nil, err
	}
	var rows []model.PeriodWaterLevelAggregate
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetRainfallAggregates returns total/max/count per station and period
func (r *periodRepository) GetRainfallAggregates(ctx context.Context, aggregation string, start, end time.Time, locationFilter *string) ([]model.PeriodRainfallAggregate, error) {
	q, err := rainfallPeriodQuery(r.db.WithContext(ctx), aggregation, start, end, locationFilter)
	if err != nil {
		return nil, err
	}
	var rows []model.PeriodRainfallAggregate
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// truncUnit maps an aggregation level to its date_trunc field. Weeks start on
// Monday.
func truncUnit(aggregation string) (string, error) {
	switch aggregation {
	case AggregationDaily:
		return "day", nil
	case AggregationWeekly:
		return "week", nil
	case AggregationMonthly:
		return "month", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAggregation, aggregation)
}

// periodWhere builds the shared range and optional station filter
func periodWhere(alias string, start, end time.Time, locationFilter *string) (string, []interface{}) {
	where := alias + ".recorded_at >= ? AND " + alias + ".recorded_at <= ?"
	args := []interface{}{start.UTC(), end.UTC()}
	if locationFilter != nil {
		where += " AND " + alias + ".location_id = ?"
		args = append(args, *locationFilter)
	}
	return where, args
}

func waterLevelPeriodQuery(tx *gorm.DB, aggregation string, start, end time.Time, locationFilter *string) (*gorm.DB, error) {
	unit, err := truncUnit(aggregation)
	if err != nil {
		return nil, err
	}
	where, args := periodWhere("w", start, end, locationFilter)

	sqlQuery := `
		SELECT
			` + utcTrunc(unit, "w.recorded_at") + ` AS period_start,
			w.location_id,
			l.name AS location_name,
			AVG(w.water_level) AS avg_water_level,
			MIN(w.water_level) AS min_water_level,
			MAX(w.water_level) AS max_water_level,
			COUNT(*) AS measurement_count
		FROM water_level_measurements w
		JOIN monitoring_locations l ON l.id = w.location_id
		WHERE ` + where + `
		GROUP BY 1, w.location_id, l.name
		ORDER BY 1 ASC, 3 ASC`

	return tx.Raw(sqlQuery, args...), nil
}

func rainfallPeriodQuery(tx *gorm.DB, aggregation string, start, end time.Time, locationFilter *string) (*gorm.DB, error) {
	unit, err := truncUnit(aggregation)
	if err != nil {
		return nil, err
	}
	where, args := periodWhere("r", start, end, locationFilter)

	sqlQuery := `
		SELECT
			` + utcTrunc(unit, "r.recorded_at") + ` AS period_start,
			r.location_id,
			l.name AS location_name,
			SUM(r.rainfall_amount) AS total_rainfall,
			MAX(r.rainfall_amount) AS max_rainfall,
			COUNT(*) AS measurement_count
		FROM rainfall_measurements r
		JOIN monitoring_locations l ON l.id = r.location_id
		WHERE ` + where + `
		GROUP BY 1, r.location_id, l.name
		ORDER BY 1 ASC, 3 ASC`

	return tx.Raw(sqlQuery, args...), nil
}
