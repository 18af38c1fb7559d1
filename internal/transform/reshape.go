package transform

import (
	"log/slog"
	"sort"
	"time"

	"github.com/mauv0809/co-econ-etl/internal/models"
)

// Reshaper joins the cleaned tables into the long-format graph table.
type Reshaper struct {
	logger *slog.Logger
}

// NewReshaper creates a new reshaper.
func NewReshaper(logger *slog.Logger) *Reshaper {
	return &Reshaper{logger: logger}
}

// MonthlyEntities sums entity counts per formation month, oldest first.
func MonthlyEntities(records []models.EntityRecord) []models.MonthlyCount {
	totals := make(map[time.Time]int64)
	for _, r := range records {
		totals[models.FirstOfMonth(r.EntityFormDate)] += r.CountEntityID
	}

	out := make([]models.MonthlyCount, 0, len(totals))
	for month, count := range totals {
		out = append(out, models.MonthlyCount{Month: month, CountEntityID: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// Combine inner-joins monthly entity counts with the statistics series on
// month. Only months present on both sides are kept. The result lists every
// Business Statistics point in month order, then every Business Entities point.
func (r *Reshaper) Combine(entities []models.EntityRecord, stats []models.StatObservation) []models.SeriesPoint {
	entityByMonth := make(map[time.Time]int64)
	for _, m := range MonthlyEntities(entities) {
		entityByMonth[m.Month] = m.CountEntityID
	}

	statByMonth := make(map[time.Time]int64, len(stats))
	duplicates := 0
	for _, s := range stats {
		month := models.FirstOfMonth(s.Period)
		if _, ok := statByMonth[month]; ok {
			duplicates++
			continue
		}
		statByMonth[month] = s.Value
	}
	if duplicates > 0 {
		r.logger.Warn("Duplicate statistics periods, keeping first", slog.Int("duplicates", duplicates))
	}

	months := make([]time.Time, 0, len(statByMonth))
	for month := range statByMonth {
		if _, ok := entityByMonth[month]; ok {
			months = append(months, month)
		}
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	points := make([]models.SeriesPoint, 0, 2*len(months))
	for _, month := range months {
		points = append(points, models.SeriesPoint{Month: month, Series: models.SeriesStatistics, Value: statByMonth[month]})
	}
	for _, month := range months {
		points = append(points, models.SeriesPoint{Month: month, Series: models.SeriesEntities, Value: entityByMonth[month]})
	}

	r.logger.Info("Combined graph data",
		slog.Int("entity_months", len(entityByMonth)),
		slog.Int("statistics_months", len(statByMonth)),
		slog.Int("overlapping_months", len(months)),
		slog.Int("rows", len(points)))

	return points
}
