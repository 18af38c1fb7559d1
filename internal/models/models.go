package models

import (
	"strconv"
	"time"
)

// Column names shared by every artifact encoding and the dashboard.
const (
	ColEntityFormDate   = "entityformdate"
	ColCountEntityID    = "count_entityid"
	ColEntityStatus     = "entitystatus"
	ColPrincipalCity    = "principalcity"
	ColPrincipalZipCode = "principalzipcode"
	ColGoodStanding     = "goodstanding"

	ColPeriod = "Period"
	ColValue  = "Value"

	ColMonth  = "month"
	ColSeries = "series"
	ColAmount = "value"
)

// Series names used in the combined graph table.
const (
	SeriesStatistics = "Business Statistics"
	SeriesEntities   = "Business Entities"
)

// Table names shared by the artifact store, the database and the HTTP surface.
const (
	TableEntities   = "business_entities"
	TableStatistics = "business_statistics"
	TableGraph      = "main_graph_data"
)

// StatusGoodStanding is the entity status counted as good standing.
const StatusGoodStanding = "Good Standing"

// Unknown replaces missing or "None" city and zip values.
const Unknown = "Unknown"

// EntityFiling is one business entity row as published, before cleaning.
// A nil city or zip means the field was missing from the payload.
type EntityFiling struct {
	EntityFormDate   string  `json:"entityformdate"`
	CountEntityID    string  `json:"count_entityid"`
	EntityStatus     string  `json:"entitystatus"`
	PrincipalCity    *string `json:"principalcity"`
	PrincipalZipCode *string `json:"principalzipcode"`
}

// EntityRecord is a cleaned business entity filing.
type EntityRecord struct {
	EntityFormDate   time.Time `json:"entityformdate"`
	CountEntityID    int64     `json:"count_entityid"`
	EntityStatus     string    `json:"entitystatus"`
	PrincipalCity    string    `json:"principalcity"`
	PrincipalZipCode string    `json:"principalzipcode"`
	GoodStanding     bool      `json:"goodstanding"`
}

// StatisticRow is one "Period,Value" record scraped from the statistics dump.
type StatisticRow struct {
	Period string `json:"Period"`
	Value  string `json:"Value"`
}

// StatObservation is a cleaned monthly statistics reading. Period is the
// first day of the month in UTC.
type StatObservation struct {
	Period time.Time `json:"Period"`
	Value  int64     `json:"Value"`
}

// MonthlyCount is the number of entity filings formed in a month.
type MonthlyCount struct {
	Month         time.Time `json:"month"`
	CountEntityID int64     `json:"count_entityid"`
}

// SeriesPoint is one row of the long-format graph table.
type SeriesPoint struct {
	Month  time.Time `json:"month"`
	Series string    `json:"series"`
	Value  int64     `json:"value"`
}

// EntityFilings converts cleaned records back to their published shape so
// they can be run through cleaning again.
func EntityFilings(records []EntityRecord) []EntityFiling {
	out := make([]EntityFiling, 0, len(records))
	for _, r := range records {
		city, zip := r.PrincipalCity, r.PrincipalZipCode
		out = append(out, EntityFiling{
			EntityFormDate:   r.EntityFormDate.Format("2006-01-02"),
			CountEntityID:    strconv.FormatInt(r.CountEntityID, 10),
			EntityStatus:     r.EntityStatus,
			PrincipalCity:    &city,
			PrincipalZipCode: &zip,
		})
	}
	return out
}

// StatisticRows converts cleaned observations back to their scraped shape.
func StatisticRows(obs []StatObservation) []StatisticRow {
	out := make([]StatisticRow, 0, len(obs))
	for _, o := range obs {
		out = append(out, StatisticRow{
			Period: o.Period.Format("Jan-2006"),
			Value:  strconv.FormatInt(o.Value, 10),
		})
	}
	return out
}

// FirstOfMonth truncates t to midnight UTC on the first day of its month.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
