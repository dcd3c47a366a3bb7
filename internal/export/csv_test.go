package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"water-monitoring/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilename(t *testing.T) {
	now := time.Date(2024, 5, 2, 23, 10, 0, 0, time.UTC)
	assert.Equal(t, "water-level-hourly-report-2024-05-02.csv", Filename("water-level", now))
	assert.Equal(t, "rainfall-hourly-report-2024-05-02.csv", Filename("rainfall", now))
}

func TestWriteWaterLevelCSV(t *testing.T) {
	hour := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := []model.HourlyWaterLevelRollup{
		{HourPeriod: hour, LocationID: "loc-1", LocationName: "Main Dam Reservoir", AvgWaterLevel: 16.5, MinWaterLevel: 16, MaxWaterLevel: 17, MeasurementCount: 2},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWaterLevelCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, waterLevelHeader, records[0])
	assert.Equal(t, []string{"2024-05-01T10:00:00Z", "loc-1", "Main Dam Reservoir", "16.5", "16", "17", "2"}, records[1])
}

func TestWriteRainfallCSV_EmptyReportHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRainfallCSV(&buf, nil))
	assert.Equal(t, "hour_period,location_id,location_name,total_rainfall,avg_rainfall,max_rainfall,measurement_count\n", buf.String())
}

func TestWriteRainfallCSV_QuotesAwkwardNames(t *testing.T) {
	hour := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	names := []string{
		"Canal, North",
		`The "Old" Weir`,
		"Pump\nStation",
	}
	rows := make([]model.HourlyRainfallRollup, 0, len(names))
	for _, n := range names {
		rows = append(rows, model.HourlyRainfallRollup{HourPeriod: hour, LocationID: "loc", LocationName: n, TotalRainfall: 1.5, AvgRainfall: 0.75, MaxRainfall: 1, MeasurementCount: 2})
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRainfallCSV(&buf, rows))
	assert.Contains(t, buf.String(), `"Canal, North"`)
	assert.Contains(t, buf.String(), `"The ""Old"" Weir"`)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, len(names)+1)
	for i, n := range names {
		assert.Equal(t, n, records[i+1][2])
		assert.Len(t, records[i+1], len(rainfallHeader))
	}
}
