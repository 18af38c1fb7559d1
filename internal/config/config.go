package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/mauv0809/co-econ-etl/internal/models"
	"github.com/mauv0809/co-econ-etl/internal/storage"
)

// Config holds the pipeline settings. Defaults mirror the repository layout:
// URL-pointer files under urls/ and artifacts under data/.
type Config struct {
	// URL-pointer files, each holding one dataset URL.
	EntityURLFile     string `envconfig:"BUSINESS_ENTITY_URL_FILE" default:"urls/business_entities_url.txt" validate:"required"`
	StatisticsURLFile string `envconfig:"BUSINESS_STATISTICS_URL_FILE" default:"urls/business_statistics_url.txt" validate:"required"`

	// Primary artifacts are written by load and read back by prep. The CSV
	// mirrors are optional extra copies for the dashboard.
	EntityPath        string `envconfig:"BUSINESS_ENTITY_PATH" default:"data/business_entities.parquet" validate:"required,artifact"`
	EntityCSVPath     string `envconfig:"BUSINESS_ENTITY_CSV_PATH" default:"data/business_entities.csv" validate:"omitempty,artifact"`
	StatisticsPath    string `envconfig:"BUSINESS_STATISTICS_PATH" default:"data/business_statistics.parquet" validate:"required,artifact"`
	StatisticsCSVPath string `envconfig:"BUSINESS_STATISTICS_CSV_PATH" default:"data/business_statistics.csv" validate:"omitempty,artifact"`
	GraphPath         string `envconfig:"MAIN_GRAPH_DATA_PATH" default:"data/main_graph_data.parquet" validate:"required,artifact"`
	GraphCSVPath      string `envconfig:"MAIN_GRAPH_DATA_CSV_PATH" default:"data/main_graph_data.csv" validate:"omitempty,artifact"`

	// Optional sinks.
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL" validate:"omitempty,url"`

	Port             int           `envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ScheduleInterval time.Duration `envconfig:"SCHEDULE_INTERVAL" default:"24h" validate:"min=1m"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
	LogFile   string `envconfig:"LOG_FILE"`
}

// Load reads a .env file if present, then the environment, then validates.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks field constraints, including that every artifact path has
// a supported suffix.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("artifact", func(fl validator.FieldLevel) bool {
		_, err := storage.FormatFromPath(fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}
	return v.Struct(c)
}

// ArtifactPaths lists every configured output path, primary paths first.
func (c *Config) ArtifactPaths() []string {
	paths := []string{c.EntityPath, c.StatisticsPath, c.GraphPath}
	for _, p := range []string{c.EntityCSVPath, c.StatisticsCSVPath, c.GraphCSVPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// TablePath returns the primary artifact path of a named table.
func (c *Config) TablePath(table string) (string, bool) {
	switch table {
	case models.TableEntities:
		return c.EntityPath, true
	case models.TableStatistics:
		return c.StatisticsPath, true
	case models.TableGraph:
		return c.GraphPath, true
	default:
		return "", false
	}
}
