package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mauv0809/co-econ-etl/internal/models"
)

func entity(d time.Time, count int64) models.EntityRecord {
	return models.EntityRecord{EntityFormDate: d, CountEntityID: count, EntityStatus: "Good Standing", GoodStanding: true}
}

func TestMonthlyEntities(t *testing.T) {
	records := []models.EntityRecord{
		entity(date(2023, 3, 2), 1),
		entity(date(2023, 1, 5), 3),
		entity(date(2023, 1, 20), 2),
		entity(date(2023, 3, 31), 4),
	}

	assert.Equal(t, []models.MonthlyCount{
		{Month: date(2023, 1, 1), CountEntityID: 5},
		{Month: date(2023, 3, 1), CountEntityID: 5},
	}, MonthlyEntities(records))
}

func TestCombine(t *testing.T) {
	entities := []models.EntityRecord{
		entity(date(2022, 12, 15), 7),
		entity(date(2023, 1, 5), 3),
		entity(date(2023, 1, 20), 2),
		entity(date(2023, 2, 1), 4),
	}
	stats := []models.StatObservation{
		{Period: date(2023, 2, 1), Value: 120},
		{Period: date(2023, 1, 1), Value: 100},
		{Period: date(2023, 3, 1), Value: 90},
	}

	points := NewReshaper(testLogger()).Combine(entities, stats)

	assert.Equal(t, []models.SeriesPoint{
		{Month: date(2023, 1, 1), Series: models.SeriesStatistics, Value: 100},
		{Month: date(2023, 2, 1), Series: models.SeriesStatistics, Value: 120},
		{Month: date(2023, 1, 1), Series: models.SeriesEntities, Value: 5},
		{Month: date(2023, 2, 1), Series: models.SeriesEntities, Value: 4},
	}, points)
}

func TestCombine_OnlyOverlappingMonths(t *testing.T) {
	var entities []models.EntityRecord
	var stats []models.StatObservation

	// entities cover 2020-01..2021-12, statistics 2021-07..2022-06
	for m := 0; m < 24; m++ {
		entities = append(entities, entity(time.Date(2020, time.Month(1+m), 10, 0, 0, 0, 0, time.UTC), int64(m+1)))
	}
	for m := 0; m < 12; m++ {
		stats = append(stats, models.StatObservation{Period: time.Date(2021, time.Month(7+m), 1, 0, 0, 0, 0, time.UTC), Value: int64(100 + m)})
	}

	points := NewReshaper(testLogger()).Combine(entities, stats)

	entityMonths := make(map[time.Time]bool)
	for _, m := range MonthlyEntities(entities) {
		entityMonths[m.Month] = true
	}
	statMonths := make(map[time.Time]bool)
	for _, s := range stats {
		statMonths[s.Period] = true
	}

	k := 0
	for m := range statMonths {
		if entityMonths[m] {
			k++
		}
	}
	require.Equal(t, 6, k)
	require.Len(t, points, 2*k)

	perSeries := map[string]int{}
	for _, p := range points {
		assert.True(t, entityMonths[p.Month] && statMonths[p.Month], "month %s not in both inputs", p.Month)
		perSeries[p.Series]++
	}
	assert.Equal(t, map[string]int{models.SeriesStatistics: k, models.SeriesEntities: k}, perSeries)
}

func TestCombine_DuplicatePeriodKeepsFirst(t *testing.T) {
	entities := []models.EntityRecord{entity(date(2023, 1, 9), 1)}
	stats := []models.StatObservation{
		{Period: date(2023, 1, 1), Value: 10},
		{Period: date(2023, 1, 1), Value: 20},
	}

	points := NewReshaper(testLogger()).Combine(entities, stats)

	require.Len(t, points, 2)
	assert.Equal(t, int64(10), points[0].Value)
}

func TestCombine_NoOverlap(t *testing.T) {
	entities := []models.EntityRecord{entity(date(2023, 1, 9), 1)}
	stats := []models.StatObservation{{Period: date(2024, 1, 1), Value: 10}}

	assert.Empty(t, NewReshaper(testLogger()).Combine(entities, stats))
	assert.Empty(t, NewReshaper(testLogger()).Combine(nil, nil))
}
