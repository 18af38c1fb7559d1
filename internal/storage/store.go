package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mauv0809/co-econ-etl/internal/models"
)

// Store saves and loads the pipeline artifacts. The encoding of each file is
// chosen by its suffix.
type Store struct {
	logger *slog.Logger
}

// NewStore creates a new artifact store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

// SaveEntities writes cleaned entity records to path and returns them.
func (s *Store) SaveEntities(path string, rows []models.EntityRecord) ([]models.EntityRecord, error) {
	return save(s, entitySchema, path, rows)
}

// LoadEntities reads cleaned entity records from path.
func (s *Store) LoadEntities(path string) ([]models.EntityRecord, error) {
	return load(s, entitySchema, path)
}

// SaveStatistics writes cleaned statistics observations to path and returns them.
func (s *Store) SaveStatistics(path string, rows []models.StatObservation) ([]models.StatObservation, error) {
	return save(s, statisticSchema, path, rows)
}

// LoadStatistics reads cleaned statistics observations from path.
func (s *Store) LoadStatistics(path string) ([]models.StatObservation, error) {
	return load(s, statisticSchema, path)
}

// SaveSeries writes the graph table to path and returns it.
func (s *Store) SaveSeries(path string, rows []models.SeriesPoint) ([]models.SeriesPoint, error) {
	return save(s, seriesSchema, path, rows)
}

// LoadSeries reads the graph table from path.
func (s *Store) LoadSeries(path string) ([]models.SeriesPoint, error) {
	return load(s, seriesSchema, path)
}

func save[T, P any](s *Store, sc schema[T, P], path string, rows []T) ([]T, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	codec, err := sc.codec(format)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Saving data",
		slog.String("table", sc.name),
		slog.String("path", path),
		slog.String("format", format.String()),
		slog.Int("rows", len(rows)))

	data, err := codec.Encode(rows)
	if err != nil {
		return nil, fmt.Errorf("encoding %s as %s: %w", sc.name, format, err)
	}
	if err := writeFile(path, data); err != nil {
		return nil, err
	}
	return rows, nil
}

func load[T, P any](s *Store, sc schema[T, P], path string) ([]T, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	codec, err := sc.codec(format)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Loading data",
		slog.String("table", sc.name),
		slog.String("path", path),
		slog.String("format", format.String()))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	rows, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s from %s: %w", sc.name, path, err)
	}

	s.logger.Info("Loaded data", slog.String("path", path), slog.Int("rows", len(rows)))
	return rows, nil
}

// writeFile replaces path with data through a temp file in the same directory,
// so readers never see a half-written artifact.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
