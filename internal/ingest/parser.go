package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/mauv0809/co-econ-etl/internal/models"
)

// headerMarker starts the data section of the statistics dump.
const headerMarker = "Period,Value"

// ErrHeaderNotFound is returned when the statistics payload has no header marker.
var ErrHeaderNotFound = errors.New("header marker \"" + headerMarker + "\" not found")

// ParseEntities parses a JSON array of entity objects. Columns are the union
// of keys across all objects; absent keys, nulls and empty strings read as missing.
func ParseEntities(data []byte) ([]models.EntityFiling, error) {
	var objects []map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&objects); err != nil {
		return nil, fmt.Errorf("decoding entity records: %w", err)
	}
	if len(objects) == 0 {
		return []models.EntityFiling{}, nil
	}

	df := dataframe.LoadMaps(objects, frameOptions...)
	if df.Err != nil {
		return nil, fmt.Errorf("building entity frame: %w", df.Err)
	}

	idx := buildColumnIndex(df)
	rows := make([]models.EntityFiling, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		rows = append(rows, models.EntityFiling{
			EntityFormDate:   idx.getString(i, models.ColEntityFormDate),
			CountEntityID:    idx.getString(i, models.ColCountEntityID),
			EntityStatus:     idx.getString(i, models.ColEntityStatus),
			PrincipalCity:    idx.getOptional(i, models.ColPrincipalCity),
			PrincipalZipCode: idx.getOptional(i, models.ColPrincipalZipCode),
		})
	}

	return rows, nil
}

// dumpReplacer flattens the dump into one line. Both real control characters
// and their escaped two-character forms are handled.
var dumpReplacer = strings.NewReplacer(`\r`, "", "\r", "", `\n`, " ", "\n", " ")

// ParseStatistics scrapes "Period,Value" records out of the statistics text dump.
// Everything before the header marker is discarded. Tokens that do not split
// into exactly two fields, rows with a missing field and rows whose value is
// the literal "NA" are dropped.
func ParseStatistics(data []byte) ([]models.StatisticRow, error) {
	text := string(data)
	start := strings.Index(text, headerMarker)
	if start < 0 {
		return nil, ErrHeaderNotFound
	}

	tokens := strings.Fields(dumpReplacer.Replace(text[start:]))
	header := strings.Split(tokens[0], ",")
	if len(header) != 2 {
		return nil, fmt.Errorf("unexpected statistics header %q", tokens[0])
	}

	records := [][]string{header}
	for _, tok := range tokens[1:] {
		fields := strings.Split(tok, ",")
		if len(fields) != 2 {
			continue
		}
		records = append(records, fields)
	}
	if len(records) == 1 {
		return []models.StatisticRow{}, nil
	}

	opts := append([]dataframe.LoadOption{dataframe.HasHeader(true)}, frameOptions...)
	df := dataframe.LoadRecords(records, opts...)
	if df.Err != nil {
		return nil, fmt.Errorf("building statistics frame: %w", df.Err)
	}

	// Neq is false for missing cells, so this also drops rows without a value.
	df = df.Filter(dataframe.F{Colname: header[1], Comparator: series.Neq, Comparando: "NA"})
	if df.Err != nil {
		return nil, fmt.Errorf("filtering statistics frame: %w", df.Err)
	}

	idx := buildColumnIndex(df)
	rows := make([]models.StatisticRow, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		period := idx.getOptional(i, header[0])
		value := idx.getOptional(i, header[1])
		if period == nil || value == nil {
			continue
		}
		rows = append(rows, models.StatisticRow{Period: *period, Value: *value})
	}

	return rows, nil
}
