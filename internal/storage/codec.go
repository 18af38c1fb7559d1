package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// Codec encodes and decodes one table in one format.
type Codec[T any] interface {
	Encode(rows []T) ([]byte, error)
	Decode(data []byte) ([]T, error)
}

// schema maps a record type T onto both encodings. P is the parquet row struct.
type schema[T any, P any] struct {
	name        string
	columns     []string
	toCSV       func(T) []string
	fromCSV     func([]string) (T, error)
	toParquet   func(T) P
	fromParquet func(P) T
}

func (s schema[T, P]) codec(f Format) (Codec[T], error) {
	switch f {
	case Parquet:
		return parquetCodec[T, P]{s: s}, nil
	case CSV:
		return csvCodec[T, P]{s: s}, nil
	default:
		return nil, fmt.Errorf("%s: %w", f, ErrUnsupportedFormat)
	}
}

type parquetCodec[T any, P any] struct {
	s schema[T, P]
}

func (c parquetCodec[T, P]) Encode(rows []T) ([]byte, error) {
	var buf bytes.Buffer
	pw, err := writer.NewParquetWriterFromWriter(&buf, new(P), 1)
	if err != nil {
		return nil, fmt.Errorf("creating parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, row := range rows {
		if err := pw.Write(c.s.toParquet(row)); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finishing parquet file: %w", err)
	}
	return buf.Bytes(), nil
}

func (c parquetCodec[T, P]) Decode(data []byte) ([]T, error) {
	pr, err := reader.NewParquetReader(buffer.NewBufferFileFromBytes(data), new(P), 1)
	if err != nil {
		return nil, fmt.Errorf("opening parquet data: %w", err)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	raw := make([]P, n)
	if n > 0 {
		if err := pr.Read(&raw); err != nil {
			return nil, fmt.Errorf("reading parquet rows: %w", err)
		}
	}

	rows := make([]T, 0, n)
	for _, r := range raw {
		rows = append(rows, c.s.fromParquet(r))
	}
	return rows, nil
}

// csvCodec writes pandas-style CSV: an unnamed index column, then the table columns.
type csvCodec[T any, P any] struct {
	s schema[T, P]
}

func (c csvCodec[T, P]) Encode(rows []T) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(append([]string{""}, c.s.columns...)); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	for i, row := range rows {
		if err := w.Write(append([]string{strconv.Itoa(i)}, c.s.toCSV(row)...)); err != nil {
			return nil, fmt.Errorf("writing record %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode maps columns by header name, so column order in the file does not matter.
// The first column is the row index and is skipped.
func (c csvCodec[T, P]) Decode(data []byte) ([]T, error) {
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("reading csv: missing header")
	}

	header := records[0]
	positions := make([]int, len(c.s.columns))
	for i, col := range c.s.columns {
		positions[i] = -1
		for j := 1; j < len(header); j++ {
			if header[j] == col {
				positions[i] = j
				break
			}
		}
		if positions[i] < 0 {
			return nil, fmt.Errorf("reading csv: %s table has no column %q", c.s.name, col)
		}
	}

	rows := make([]T, 0, len(records)-1)
	fields := make([]string, len(c.s.columns))
	for i, rec := range records[1:] {
		for k, pos := range positions {
			fields[k] = rec[pos]
		}
		row, err := c.s.fromCSV(fields)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
