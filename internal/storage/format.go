package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Format is an artifact encoding.
type Format int

const (
	// Parquet is the columnar binary encoding.
	Parquet Format = iota + 1
	// CSV is the delimited text encoding with a leading row-index column.
	CSV
)

// ErrUnsupportedFormat is returned for paths that end in neither suffix.
var ErrUnsupportedFormat = errors.New("file must be .parquet or .csv")

// FormatFromPath selects the encoding from the path suffix.
func FormatFromPath(path string) (Format, error) {
	switch {
	case strings.HasSuffix(path, ".parquet"):
		return Parquet, nil
	case strings.HasSuffix(path, ".csv"):
		return CSV, nil
	default:
		return 0, fmt.Errorf("%q: %w", path, ErrUnsupportedFormat)
	}
}

func (f Format) String() string {
	switch f {
	case Parquet:
		return "parquet"
	case CSV:
		return "csv"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ContentType is the media type used when serving an artifact.
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv"
	default:
		return "application/vnd.apache.parquet"
	}
}
