package ingest

import (
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// frameOptions loads every column as text; typing happens in the cleaner.
// Only empty cells and JSON nulls (printed as "<nil>") count as missing;
// "NA" and "NaN" stay plain values.
var frameOptions = []dataframe.LoadOption{
	dataframe.DetectTypes(false),
	dataframe.DefaultType(series.String),
	dataframe.NaNValues([]string{"", "<nil>"}),
}

// columnIndex maps column names of a raw frame to their series.
type columnIndex map[string]series.Series

// buildColumnIndex creates a map from column name to series.
func buildColumnIndex(df dataframe.DataFrame) columnIndex {
	idx := make(columnIndex, df.Ncol())
	for _, name := range df.Names() {
		idx[name] = df.Col(name)
	}
	return idx
}

// getOptional returns the value at row in col, or nil when the column is
// absent or the cell is missing.
func (c columnIndex) getOptional(row int, col string) *string {
	s, ok := c[col]
	if !ok || row >= s.Len() {
		return nil
	}
	e := s.Elem(row)
	if e.IsNA() {
		return nil
	}
	v := e.String()
	return &v
}

// getString is getOptional with missing cells read as "".
func (c columnIndex) getString(row int, col string) string {
	if v := c.getOptional(row, col); v != nil {
		return *v
	}
	return ""
}
