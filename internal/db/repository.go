package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mauv0809/co-econ-etl/internal/models"
)

// Repository publishes the final pipeline tables. Every write replaces the
// whole table; there is no merge with earlier runs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Publish replaces all three tables in a single transaction.
func (r *Repository) Publish(ctx context.Context, entities []models.EntityRecord, stats []models.StatObservation, series []models.SeriesPoint) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := replaceEntities(ctx, tx, entities); err != nil {
			return err
		}
		if _, err := replaceStatistics(ctx, tx, stats); err != nil {
			return err
		}
		_, err := replaceSeries(ctx, tx, series)
		return err
	})
}

// ReplaceEntities replaces the business_entities table with rows.
// Returns the number of rows inserted.
func (r *Repository) ReplaceEntities(ctx context.Context, rows []models.EntityRecord) (int, error) {
	var count int
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		count, err = replaceEntities(ctx, tx, rows)
		return err
	})
	return count, err
}

// ReplaceStatistics replaces the business_statistics table with rows.
func (r *Repository) ReplaceStatistics(ctx context.Context, rows []models.StatObservation) (int, error) {
	var count int
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		count, err = replaceStatistics(ctx, tx, rows)
		return err
	})
	return count, err
}

// ReplaceSeries replaces the main_graph_data table with rows.
func (r *Repository) ReplaceSeries(ctx context.Context, rows []models.SeriesPoint) (int, error) {
	var count int
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		count, err = replaceSeries(ctx, tx, rows)
		return err
	})
	return count, err
}

func replaceEntities(ctx context.Context, tx pgx.Tx, rows []models.EntityRecord) (int, error) {
	if _, err := tx.Exec(ctx, "TRUNCATE business_entities"); err != nil {
		return 0, fmt.Errorf("truncating business entities: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO business_entities (
				entityformdate, count_entityid, entitystatus,
				principalcity, principalzipcode, goodstanding
			) VALUES ($1, $2, $3, $4, $5, $6)
		`,
			row.EntityFormDate, row.CountEntityID, row.EntityStatus,
			row.PrincipalCity, row.PrincipalZipCode, row.GoodStanding,
		)
	}

	return sendBatch(ctx, tx, batch, "inserting business entity")
}

func replaceStatistics(ctx context.Context, tx pgx.Tx, rows []models.StatObservation) (int, error) {
	if _, err := tx.Exec(ctx, "TRUNCATE business_statistics"); err != nil {
		return 0, fmt.Errorf("truncating business statistics: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`INSERT INTO business_statistics (period, value) VALUES ($1, $2)`, row.Period, row.Value)
	}

	return sendBatch(ctx, tx, batch, "inserting business statistic")
}

func replaceSeries(ctx context.Context, tx pgx.Tx, rows []models.SeriesPoint) (int, error) {
	if _, err := tx.Exec(ctx, "TRUNCATE main_graph_data"); err != nil {
		return 0, fmt.Errorf("truncating graph data: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`INSERT INTO main_graph_data (month, series, value) VALUES ($1, $2, $3)`,
			row.Month, row.Series, row.Value)
	}

	return sendBatch(ctx, tx, batch, "inserting graph point")
}

func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, what string) (int, error) {
	if batch.Len() == 0 {
		return 0, nil
	}

	br := tx.SendBatch(ctx, batch)

	count := 0
	for range batch.Len() {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return count, fmt.Errorf("%s: %w", what, err)
		}
		count++
	}

	if err := br.Close(); err != nil {
		return count, fmt.Errorf("%s: %w", what, err)
	}
	return count, nil
}

// Count returns the number of rows in one of the published tables.
func (r *Repository) Count(ctx context.Context, table string) (int, error) {
	var query string
	switch table {
	case models.TableEntities:
		query = "SELECT COUNT(*) FROM business_entities"
	case models.TableStatistics:
		query = "SELECT COUNT(*) FROM business_statistics"
	case models.TableGraph:
		query = "SELECT COUNT(*) FROM main_graph_data"
	default:
		return 0, fmt.Errorf("unknown table: %s", table)
	}

	var count int
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return count, nil
}

// Counts returns the row count of every published table.
func (r *Repository) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, 3)
	for _, table := range []string{models.TableEntities, models.TableStatistics, models.TableGraph} {
		n, err := r.Count(ctx, table)
		if err != nil {
			return nil, err
		}
		counts[table] = n
	}
	return counts, nil
}
