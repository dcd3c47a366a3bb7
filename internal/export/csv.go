// Package export renders hourly reports as RFC 4180 CSV documents.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"water-monitoring/internal/model"
)

// ContentType is the media type of exported reports
const ContentType = "text/csv; charset=utf-8"

var (
	waterLevelHeader = []string{"hour_period", "location_id", "location_name", "avg_water_level", "min_water_level", "max_water_level", "measurement_count"}
	rainfallHeader   = []string{"hour_period", "location_id", "location_name", "total_rainfall", "avg_rainfall", "max_rainfall", "measurement_count"}
)

// Filename returns the download name for a report kind exported at now
func Filename(kind string, now time.Time) string {
	return fmt.Sprintf("%s-hourly-report-%s.csv", kind, now.UTC().Format("2006-01-02"))
}

// WriteWaterLevelCSV writes the header and one record per rollup row
func WriteWaterLevelCSV(w io.Writer, rows []model.HourlyWaterLevelRollup) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(waterLevelHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			formatTime(r.HourPeriod),
			r.LocationID,
			r.LocationName,
			formatFloat(r.AvgWaterLevel),
			formatFloat(r.MinWaterLevel),
			formatFloat(r.MaxWaterLevel),
			strconv.FormatInt(r.MeasurementCount, 10),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRainfallCSV writes the header and one record per rollup row
func WriteRainfallCSV(w io.Writer, rows []model.HourlyRainfallRollup) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rainfallHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			formatTime(r.HourPeriod),
			r.LocationID,
			r.LocationName,
			formatFloat(r.TotalRainfall),
			formatFloat(r.AvgRainfall),
			formatFloat(r.MaxRainfall),
			strconv.FormatInt(r.MeasurementCount, 10),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
