package weekly_test

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/2beens/withings2weeks/internal/measure"
	"github.com/2beens/withings2weeks/internal/weekly"
	"github.com/2beens/withings2weeks/internal/weeks"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(ts time.Time, values map[measure.Metric]float64) measure.Sample {
	return measure.Sample{
		Timestamp: ts,
		GroupID:   ts.Unix(),
		Values:    values,
	}
}

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func TestAggregate_MeanOfDailyMeans(t *testing.T) {
	samples := []measure.Sample{
		sample(at(2025, 1, 1, 7), map[measure.Metric]float64{measure.Weight: 80}),
		sample(at(2025, 1, 1, 21), map[measure.Metric]float64{measure.Weight: 82}),
		sample(at(2025, 1, 2, 7), map[measure.Metric]float64{measure.Weight: 70}),
	}

	table := weekly.Aggregate(samples)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "2025W01", table.Rows[0].Week)
	require.NotNil(t, table.Rows[0].Cells[0])
	assert.Equal(t, 75.5, *table.Rows[0].Cells[0])
}

func TestAggregate_SymmetricDays(t *testing.T) {
	samples := []measure.Sample{
		sample(at(2025, 1, 1, 7), map[measure.Metric]float64{measure.Weight: 80}),
		sample(at(2025, 1, 1, 8), map[measure.Metric]float64{measure.Weight: 82}),
		sample(at(2025, 1, 2, 7), map[measure.Metric]float64{measure.Weight: 81}),
	}

	table := weekly.Aggregate(samples)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, 81.0, *table.Rows[0].Cells[0])
}

func TestAggregate_EmptyKeepsSchema(t *testing.T) {
	table := weekly.Aggregate(nil)
	assert.True(t, table.Empty())
	assert.NotNil(t, table.Rows)
	assert.Equal(t, []string{
		"Week number",
		"Weight (kg)",
		"Muscle mass (kg)",
		"Hydration (kg)",
		"Fat mass (kg)",
		"Bone mass (kg)",
	}, table.Headers)
}

func TestAggregate_AbsentValuesAreExcluded(t *testing.T) {
	samples := []measure.Sample{
		sample(at(2024, 3, 4, 7), map[measure.Metric]float64{measure.Weight: 80, measure.FatMass: 15}),
		sample(at(2024, 3, 5, 7), map[measure.Metric]float64{measure.Weight: 78}),
		sample(at(2024, 3, 6, 7), map[measure.Metric]float64{}),
	}

	table := weekly.Aggregate(samples)
	require.Len(t, table.Rows, 1)
	row := table.Rows[0]
	assert.Equal(t, "2024W10", row.Week)

	assert.Equal(t, 79.0, *row.Cells[0])
	// muscle, hydration and bone were never measured
	assert.Nil(t, row.Cells[1])
	assert.Nil(t, row.Cells[2])
	assert.Equal(t, 15.0, *row.Cells[3])
	assert.Nil(t, row.Cells[4])
}

func TestAggregate_MissingTokensInExportDoNotPoisonMeans(t *testing.T) {
	csvData := "Date,Weight (kg),Fat mass (kg),Bone mass (kg),Muscle mass (kg),Hydration (kg)\n" +
		"2025-01-01,NaN,,,,\n" +
		"2025-01-01,80,,,,\n"

	samples, err := measure.ReadExport(strings.NewReader(csvData), time.UTC)
	require.NoError(t, err)

	table := weekly.Aggregate(samples)
	require.Len(t, table.Rows, 1)
	require.NotNil(t, table.Rows[0].Cells[0])
	assert.Equal(t, 80.0, *table.Rows[0].Cells[0])
}

func TestAggregate_NonFiniteValuesAreExcluded(t *testing.T) {
	samples := []measure.Sample{
		sample(at(2025, 1, 1, 7), map[measure.Metric]float64{measure.Weight: math.NaN(), measure.FatMass: math.Inf(1)}),
		sample(at(2025, 1, 1, 8), map[measure.Metric]float64{measure.Weight: 80}),
		sample(at(2025, 1, 2, 8), map[measure.Metric]float64{measure.Weight: 82}),
	}

	table := weekly.Aggregate(samples)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, 81.0, *table.Rows[0].Cells[0])
	// fat mass only had an infinite reading
	assert.Nil(t, table.Rows[0].Cells[3])
}

func TestAggregate_WeeksSortedAcrossYearBoundary(t *testing.T) {
	samples := []measure.Sample{
		// 2021-01-03 is a Sunday and still belongs to 2020W53
		sample(at(2021, 1, 4, 7), map[measure.Metric]float64{measure.Weight: 70}),
		sample(at(2021, 1, 3, 7), map[measure.Metric]float64{measure.Weight: 71}),
		sample(at(2020, 12, 28, 7), map[measure.Metric]float64{measure.Weight: 73}),
	}

	table := weekly.Aggregate(samples)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "2020W53", table.Rows[0].Week)
	assert.Equal(t, 72.0, *table.Rows[0].Cells[0])
	assert.Equal(t, "2021W01", table.Rows[1].Week)
	assert.Equal(t, 70.0, *table.Rows[1].Cells[0])
}

func TestDaily_UsesLocalCalendarDate(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// same UTC day, two different days in Tokyo
	samples := []measure.Sample{
		sample(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).In(tokyo), map[measure.Metric]float64{measure.Weight: 80}),
		sample(time.Date(2024, 5, 1, 16, 0, 0, 0, time.UTC).In(tokyo), map[measure.Metric]float64{measure.Weight: 82}),
	}

	daily := weekly.Daily(samples)
	require.Len(t, daily, 2)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, tokyo), daily[0].Date)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, tokyo), daily[1].Date)
}

func TestWeekly_CountsDays(t *testing.T) {
	daily := []weekly.DailyAverage{
		{Date: at(2024, 1, 1, 0), Values: map[measure.Metric]float64{measure.Weight: 80}},
		{Date: at(2024, 1, 3, 0), Values: map[measure.Metric]float64{measure.Weight: 82}},
		{Date: at(2024, 1, 8, 0), Values: map[measure.Metric]float64{measure.BoneMass: 3}},
	}

	weeklyAvgs := weekly.Weekly(daily)
	require.Len(t, weeklyAvgs, 2)
	assert.Equal(t, weeks.ID{Year: 2024, Week: 1}, weeklyAvgs[0].Week)
	assert.Equal(t, 2, weeklyAvgs[0].Days)
	assert.Equal(t, 81.0, weeklyAvgs[0].Values[measure.Weight])
	assert.Equal(t, weeks.ID{Year: 2024, Week: 2}, weeklyAvgs[1].Week)
	assert.Equal(t, 1, weeklyAvgs[1].Days)
	_, ok := weeklyAvgs[1].Values[measure.Weight]
	assert.False(t, ok)
}

func TestAggregate_RandomSamplesStayWithinBounds(t *testing.T) {
	start := at(2024, 1, 1, 0)
	var samples []measure.Sample
	for i := 0; i < 200; i++ {
		ts := start.Add(time.Duration(gofakeit.Number(0, 27*24)) * time.Hour)
		samples = append(samples, sample(ts, map[measure.Metric]float64{
			measure.Weight: gofakeit.Float64Range(60, 90),
		}))
	}

	table := weekly.Aggregate(samples)
	require.Len(t, table.Rows, 4)
	for _, row := range table.Rows {
		require.NotNil(t, row.Cells[0])
		assert.GreaterOrEqual(t, *row.Cells[0], 60.0)
		assert.LessOrEqual(t, *row.Cells[0], 90.0)
	}
}
