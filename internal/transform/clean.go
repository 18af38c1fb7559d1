package transform

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mauv0809/co-econ-etl/internal/models"
)

var (
	// ErrInvalidFormationDate aborts entity cleaning; unlike statistics rows,
	// entity rows are never dropped.
	ErrInvalidFormationDate = errors.New("invalid formation date")
	// ErrInvalidCount is returned for entity counts that are not non-negative integers.
	ErrInvalidCount = errors.New("invalid entity count")
)

// periodLayout is the month-year format of the statistics dump, e.g. "Jan-2023".
const periodLayout = "Jan-2006"

// formationDateLayouts are tried in order.
var formationDateLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Cleaner type-coerces and normalizes parsed rows.
type Cleaner struct {
	logger *slog.Logger
	title  cases.Caser
}

// NewCleaner creates a cleaner that reports missing-value counts to logger.
func NewCleaner(logger *slog.Logger) *Cleaner {
	return &Cleaner{
		logger: logger,
		title:  cases.Title(language.English),
	}
}

// CleanEntities converts filings into typed records. A formation date or count
// that cannot be parsed fails the whole table.
func (c *Cleaner) CleanEntities(rows []models.EntityFiling) ([]models.EntityRecord, error) {
	c.logger.Info("Cleaning business entity data", slog.Int("rows", len(rows)))

	out := make([]models.EntityRecord, 0, len(rows))
	var missingCity, missingZip int

	for i, row := range rows {
		date, ok := parseFormationDate(row.EntityFormDate)
		if !ok {
			return nil, fmt.Errorf("row %d: %w: %q", i, ErrInvalidFormationDate, row.EntityFormDate)
		}

		count, ok := parseInteger(row.CountEntityID)
		if !ok || count < 0 {
			return nil, fmt.Errorf("row %d: %w: %q", i, ErrInvalidCount, row.CountEntityID)
		}

		city := c.cleanCity(row.PrincipalCity)
		if isMissing(row.PrincipalCity) {
			missingCity++
		}
		zip := cleanPlace(row.PrincipalZipCode)
		if isMissing(row.PrincipalZipCode) {
			missingZip++
		}

		out = append(out, models.EntityRecord{
			EntityFormDate:   date,
			CountEntityID:    count,
			EntityStatus:     row.EntityStatus,
			PrincipalCity:    city,
			PrincipalZipCode: zip,
			GoodStanding:     row.EntityStatus == models.StatusGoodStanding,
		})
	}

	c.logger.Info("Column has missing values",
		slog.String("column", models.ColPrincipalCity),
		slog.Int("missing", missingCity))
	c.logger.Info("Column has missing values",
		slog.String("column", models.ColPrincipalZipCode),
		slog.Int("missing", missingZip))

	return out, nil
}

// CleanStatistics parses periods and values, dropping rows where either fails.
func (c *Cleaner) CleanStatistics(rows []models.StatisticRow) []models.StatObservation {
	c.logger.Info("Cleaning business statistics data", slog.Int("rows", len(rows)))

	out := make([]models.StatObservation, 0, len(rows))
	var badPeriod, badValue int

	for _, row := range rows {
		period, err := time.Parse(periodLayout, strings.TrimSpace(row.Period))
		if err != nil {
			badPeriod++
			continue
		}
		value, ok := parseInteger(row.Value)
		if !ok {
			badValue++
			continue
		}
		out = append(out, models.StatObservation{
			Period: models.FirstOfMonth(period),
			Value:  value,
		})
	}

	c.logger.Info("Column has missing values",
		slog.String("column", models.ColPeriod),
		slog.Int("missing", badPeriod))
	c.logger.Info("Column has missing values",
		slog.String("column", models.ColValue),
		slog.Int("missing", badValue))
	if dropped := badPeriod + badValue; dropped > 0 {
		c.logger.Warn("Dropped statistics rows", slog.Int("dropped", dropped), slog.Int("kept", len(out)))
	}

	return out
}

// cleanCity title-cases the city before the "None" check, so "NONE" and
// "none" become Unknown too.
func (c *Cleaner) cleanCity(v *string) string {
	if isMissing(v) {
		return models.Unknown
	}
	city := c.title.String(strings.TrimSpace(*v))
	if city == "None" {
		return models.Unknown
	}
	return city
}

func cleanPlace(v *string) string {
	if isMissing(v) {
		return models.Unknown
	}
	s := strings.TrimSpace(*v)
	if s == "None" {
		return models.Unknown
	}
	return s
}

func isMissing(v *string) bool {
	return v == nil || strings.TrimSpace(*v) == ""
}

// parseFormationDate returns the calendar date at midnight UTC.
func parseFormationDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range formationDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// parseInteger accepts integral decimals such as "5" or "5.0" that fit in an
// int64. Exponent notation ("1e3") is rejected.
func parseInteger(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "eE") {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() || !d.BigInt().IsInt64() {
		return 0, false
	}
	return d.IntPart(), true
}
