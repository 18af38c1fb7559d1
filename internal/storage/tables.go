package storage

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mauv0809/co-econ-etl/internal/models"
)

const (
	csvDateLayout = "2006-01-02"
	secondsPerDay = 24 * 60 * 60
)

type entityParquet struct {
	EntityFormDate   int32  `parquet:"name=entityformdate,type=INT32,convertedtype=DATE"`
	CountEntityID    int64  `parquet:"name=count_entityid,type=INT64"`
	EntityStatus     string `parquet:"name=entitystatus,type=BYTE_ARRAY,convertedtype=UTF8"`
	PrincipalCity    string `parquet:"name=principalcity,type=BYTE_ARRAY,convertedtype=UTF8"`
	PrincipalZipCode string `parquet:"name=principalzipcode,type=BYTE_ARRAY,convertedtype=UTF8"`
	GoodStanding     bool   `parquet:"name=goodstanding,type=BOOLEAN"`
}

type statisticParquet struct {
	Period int32 `parquet:"name=Period,type=INT32,convertedtype=DATE"`
	Value  int64 `parquet:"name=Value,type=INT64"`
}

type seriesParquet struct {
	Month  int32  `parquet:"name=month,type=INT32,convertedtype=DATE"`
	Series string `parquet:"name=series,type=BYTE_ARRAY,convertedtype=UTF8"`
	Value  int64  `parquet:"name=value,type=INT64"`
}

var entitySchema = schema[models.EntityRecord, entityParquet]{
	name: "business entities",
	columns: []string{
		models.ColEntityFormDate,
		models.ColCountEntityID,
		models.ColEntityStatus,
		models.ColPrincipalCity,
		models.ColPrincipalZipCode,
		models.ColGoodStanding,
	},
	toCSV: func(r models.EntityRecord) []string {
		return []string{
			r.EntityFormDate.Format(csvDateLayout),
			strconv.FormatInt(r.CountEntityID, 10),
			r.EntityStatus,
			r.PrincipalCity,
			r.PrincipalZipCode,
			formatBool(r.GoodStanding),
		}
	},
	fromCSV: func(f []string) (models.EntityRecord, error) {
		var r models.EntityRecord
		var err error
		if r.EntityFormDate, err = parseDate(f[0]); err != nil {
			return r, err
		}
		if r.CountEntityID, err = strconv.ParseInt(f[1], 10, 64); err != nil {
			return r, fmt.Errorf("parsing %s: %w", models.ColCountEntityID, err)
		}
		r.EntityStatus = f[2]
		r.PrincipalCity = f[3]
		r.PrincipalZipCode = f[4]
		if r.GoodStanding, err = strconv.ParseBool(f[5]); err != nil {
			return r, fmt.Errorf("parsing %s: %w", models.ColGoodStanding, err)
		}
		return r, nil
	},
	toParquet: func(r models.EntityRecord) entityParquet {
		return entityParquet{
			EntityFormDate:   toDays(r.EntityFormDate),
			CountEntityID:    r.CountEntityID,
			EntityStatus:     r.EntityStatus,
			PrincipalCity:    r.PrincipalCity,
			PrincipalZipCode: r.PrincipalZipCode,
			GoodStanding:     r.GoodStanding,
		}
	},
	fromParquet: func(p entityParquet) models.EntityRecord {
		return models.EntityRecord{
			EntityFormDate:   fromDays(p.EntityFormDate),
			CountEntityID:    p.CountEntityID,
			EntityStatus:     p.EntityStatus,
			PrincipalCity:    p.PrincipalCity,
			PrincipalZipCode: p.PrincipalZipCode,
			GoodStanding:     p.GoodStanding,
		}
	},
}

var statisticSchema = schema[models.StatObservation, statisticParquet]{
	name:    "business statistics",
	columns: []string{models.ColPeriod, models.ColValue},
	toCSV: func(o models.StatObservation) []string {
		return []string{o.Period.Format(csvDateLayout), strconv.FormatInt(o.Value, 10)}
	},
	fromCSV: func(f []string) (models.StatObservation, error) {
		var o models.StatObservation
		var err error
		if o.Period, err = parseDate(f[0]); err != nil {
			return o, err
		}
		if o.Value, err = strconv.ParseInt(f[1], 10, 64); err != nil {
			return o, fmt.Errorf("parsing %s: %w", models.ColValue, err)
		}
		return o, nil
	},
	toParquet: func(o models.StatObservation) statisticParquet {
		return statisticParquet{Period: toDays(o.Period), Value: o.Value}
	},
	fromParquet: func(p statisticParquet) models.StatObservation {
		return models.StatObservation{Period: fromDays(p.Period), Value: p.Value}
	},
}

var seriesSchema = schema[models.SeriesPoint, seriesParquet]{
	name:    "main graph data",
	columns: []string{models.ColMonth, models.ColSeries, models.ColAmount},
	toCSV: func(p models.SeriesPoint) []string {
		return []string{p.Month.Format(csvDateLayout), p.Series, strconv.FormatInt(p.Value, 10)}
	},
	fromCSV: func(f []string) (models.SeriesPoint, error) {
		var p models.SeriesPoint
		var err error
		if p.Month, err = parseDate(f[0]); err != nil {
			return p, err
		}
		p.Series = f[1]
		if p.Value, err = strconv.ParseInt(f[2], 10, 64); err != nil {
			return p, fmt.Errorf("parsing %s: %w", models.ColAmount, err)
		}
		return p, nil
	},
	toParquet: func(p models.SeriesPoint) seriesParquet {
		return seriesParquet{Month: toDays(p.Month), Series: p.Series, Value: p.Value}
	},
	fromParquet: func(p seriesParquet) models.SeriesPoint {
		return models.SeriesPoint{Month: fromDays(p.Month), Series: p.Series, Value: p.Value}
	},
}

// EntityCodec returns the codec for the business entities table.
func EntityCodec(f Format) (Codec[models.EntityRecord], error) { return entitySchema.codec(f) }

// StatisticsCodec returns the codec for the business statistics table.
func StatisticsCodec(f Format) (Codec[models.StatObservation], error) { return statisticSchema.codec(f) }

// SeriesCodec returns the codec for the main graph table.
func SeriesCodec(f Format) (Codec[models.SeriesPoint], error) { return seriesSchema.codec(f) }

// toDays converts a date to days since the Unix epoch, the parquet DATE representation.
func toDays(t time.Time) int32 {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int32(d.Unix() / secondsPerDay)
}

func fromDays(days int32) time.Time {
	return time.Unix(int64(days)*secondsPerDay, 0).UTC()
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(csvDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// formatBool matches how pandas writes booleans.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
