package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mauv0809/co-econ-etl/internal/config"
	"github.com/mauv0809/co-econ-etl/internal/ingest"
	"github.com/mauv0809/co-econ-etl/internal/logging"
	"github.com/mauv0809/co-econ-etl/internal/metrics"
	"github.com/mauv0809/co-econ-etl/internal/models"
	"github.com/mauv0809/co-econ-etl/internal/storage"
	"github.com/mauv0809/co-econ-etl/internal/transform"
)

// Stage names.
const (
	StageLoad = "load"
	StagePrep = "prep"
	StageRun  = "run"
)

// Publisher receives the final tables of a run.
type Publisher interface {
	Publish(ctx context.Context, entities []models.EntityRecord, stats []models.StatObservation, series []models.SeriesPoint) error
}

// Status describes the active run, or the last one if none is active.
type Status struct {
	Running    bool           `json:"running"`
	Stage      string         `json:"stage,omitempty"`
	RunID      string         `json:"run_id,omitempty"`
	StartedAt  time.Time      `json:"started_at,omitzero"`
	FinishedAt time.Time      `json:"finished_at,omitzero"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  Kind           `json:"error_kind,omitempty"`
	Rows       map[string]int `json:"rows,omitempty"`
}

// Runner executes the load and prep stages. Runs are serialized: a trigger
// while another run is active fails with ErrRunInProgress.
type Runner struct {
	cfg        *config.Config
	httpClient *http.Client
	publisher  Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu     sync.Mutex
	status Status
}

// NewRunner creates a runner. A nil httpClient uses http.DefaultClient.
func NewRunner(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
	}
}

// WithPublisher makes prep publish the final tables through p.
func (r *Runner) WithPublisher(p Publisher) *Runner {
	r.publisher = p
	return r
}

// WithMetrics records row counts and stage outcomes in m.
func (r *Runner) WithMetrics(m *metrics.Metrics) *Runner {
	r.metrics = m
	return r
}

// Status returns a snapshot of the current or last run.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.status
	if s.Rows != nil {
		rows := make(map[string]int, len(s.Rows))
		for k, v := range s.Rows {
			rows[k] = v
		}
		s.Rows = rows
	}
	return s
}

// Load fetches, parses, cleans and saves both source datasets.
func (r *Runner) Load(ctx context.Context) error {
	return r.execute(ctx, StageLoad, func(ctx context.Context, rc *runContext) error {
		return rc.load(ctx)
	})
}

// Prep reads the saved datasets back, combines them into the graph table
// and saves it.
func (r *Runner) Prep(ctx context.Context) error {
	return r.execute(ctx, StagePrep, func(ctx context.Context, rc *runContext) error {
		return rc.prep(ctx)
	})
}

// Run executes load then prep.
func (r *Runner) Run(ctx context.Context) error {
	return r.execute(ctx, StageRun, func(ctx context.Context, rc *runContext) error {
		if err := rc.load(ctx); err != nil {
			return err
		}
		return rc.prep(ctx)
	})
}

func (r *Runner) execute(ctx context.Context, stage string, fn func(context.Context, *runContext) error) error {
	logger, runID := logging.WithRunID(r.logger)
	started := time.Now()

	r.mu.Lock()
	if r.status.Running {
		r.mu.Unlock()
		return ErrRunInProgress
	}
	r.status = Status{
		Running:   true,
		Stage:     stage,
		RunID:     runID,
		StartedAt: started.UTC(),
		Rows:      make(map[string]int),
	}
	r.mu.Unlock()

	logger = logger.With(slog.String("stage", stage))
	logger.InfoContext(ctx, "Starting run")

	rc := &runContext{
		runner:   r,
		cfg:      r.cfg,
		client:   ingest.NewClient(r.httpClient, logger),
		cleaner:  transform.NewCleaner(logger),
		reshaper: transform.NewReshaper(logger),
		store:    storage.NewStore(logger),
		logger:   logger,
	}
	err := fn(ctx, rc)

	r.mu.Lock()
	r.status.Running = false
	r.status.FinishedAt = time.Now().UTC()
	if err != nil {
		r.status.Error = err.Error()
		r.status.ErrorKind = KindOf(err)
	}
	r.mu.Unlock()

	if err != nil {
		logger.ErrorContext(ctx, "Run failed",
			slog.String("kind", string(KindOf(err))),
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(started)))
	} else {
		logger.InfoContext(ctx, "Run complete", slog.Duration("elapsed", time.Since(started)))
	}

	r.observe(ctx, logger, stage, started, err)
	return err
}

func (r *Runner) observe(ctx context.Context, logger *slog.Logger, stage string, started time.Time, err error) {
	if r.metrics == nil {
		return
	}

	kind := ""
	if err != nil {
		kind = string(KindOf(err))
		if kind == "" {
			kind = "unknown"
		}
	}
	r.metrics.ObserveStage(stage, started, kind)

	if r.cfg.PushgatewayURL == "" {
		return
	}
	if perr := r.metrics.Push(ctx, r.cfg.PushgatewayURL); perr != nil {
		logger.WarnContext(ctx, "Could not push metrics", slog.String("error", perr.Error()))
	}
}

func (r *Runner) recordRows(table, step string, n int) {
	r.mu.Lock()
	r.status.Rows[table] = n
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ObserveRows(table, step, n)
	}
}

// runContext holds the stage components of one run, all logging with the
// run's id.
type runContext struct {
	runner   *Runner
	cfg      *config.Config
	client   *ingest.Client
	cleaner  *transform.Cleaner
	reshaper *transform.Reshaper
	store    *storage.Store
	logger   *slog.Logger
}

func (rc *runContext) load(ctx context.Context) error {
	for _, path := range rc.cfg.ArtifactPaths() {
		if _, err := storage.FormatFromPath(path); err != nil {
			return stageError(StageLoad, KindConfig, err)
		}
	}

	entityURL, err := ingest.ReadURLFile(rc.cfg.EntityURLFile)
	if err != nil {
		return stageError(StageLoad, KindConfig, err)
	}
	statsURL, err := ingest.ReadURLFile(rc.cfg.StatisticsURLFile)
	if err != nil {
		return stageError(StageLoad, KindConfig, err)
	}

	if err := rc.loadEntities(ctx, entityURL); err != nil {
		return err
	}
	return rc.loadStatistics(ctx, statsURL)
}

func (rc *runContext) loadEntities(ctx context.Context, url string) error {
	body, err := rc.client.Fetch(ctx, url)
	if err != nil {
		return stageError(StageLoad, KindTransport, fmt.Errorf("fetching business entities: %w", err))
	}

	filings, err := ingest.ParseEntities(body)
	if err != nil {
		return stageError(StageLoad, KindParse, fmt.Errorf("parsing business entities: %w", err))
	}
	rc.runner.recordRows(models.TableEntities, "parse", len(filings))

	records, err := rc.cleaner.CleanEntities(filings)
	if err != nil {
		return stageError(StageLoad, KindData, fmt.Errorf("cleaning business entities: %w", err))
	}
	rc.runner.recordRows(models.TableEntities, "clean", len(records))

	for _, path := range []string{rc.cfg.EntityPath, rc.cfg.EntityCSVPath} {
		if path == "" {
			continue
		}
		if _, err := rc.store.SaveEntities(path, records); err != nil {
			return stageError(StageLoad, KindStorage, err)
		}
	}
	return nil
}

func (rc *runContext) loadStatistics(ctx context.Context, url string) error {
	body, err := rc.client.Fetch(ctx, url)
	if err != nil {
		return stageError(StageLoad, KindTransport, fmt.Errorf("fetching business statistics: %w", err))
	}

	rows, err := ingest.ParseStatistics(body)
	if err != nil {
		return stageError(StageLoad, KindParse, fmt.Errorf("parsing business statistics: %w", err))
	}
	rc.runner.recordRows(models.TableStatistics, "parse", len(rows))

	obs := rc.cleaner.CleanStatistics(rows)
	rc.runner.recordRows(models.TableStatistics, "clean", len(obs))

	for _, path := range []string{rc.cfg.StatisticsPath, rc.cfg.StatisticsCSVPath} {
		if path == "" {
			continue
		}
		if _, err := rc.store.SaveStatistics(path, obs); err != nil {
			return stageError(StageLoad, KindStorage, err)
		}
	}
	return nil
}

func (rc *runContext) prep(ctx context.Context) error {
	for _, path := range []string{rc.cfg.GraphPath, rc.cfg.GraphCSVPath} {
		if path == "" {
			continue
		}
		if _, err := storage.FormatFromPath(path); err != nil {
			return stageError(StagePrep, KindConfig, err)
		}
	}

	entities, err := rc.store.LoadEntities(rc.cfg.EntityPath)
	if err != nil {
		return stageError(StagePrep, KindStorage, err)
	}
	stats, err := rc.store.LoadStatistics(rc.cfg.StatisticsPath)
	if err != nil {
		return stageError(StagePrep, KindStorage, err)
	}

	series := rc.reshaper.Combine(entities, stats)
	rc.runner.recordRows(models.TableGraph, "combine", len(series))

	for _, path := range []string{rc.cfg.GraphPath, rc.cfg.GraphCSVPath} {
		if path == "" {
			continue
		}
		if _, err := rc.store.SaveSeries(path, series); err != nil {
			return stageError(StagePrep, KindStorage, err)
		}
	}

	if rc.runner.publisher == nil {
		return nil
	}
	if err := rc.runner.publisher.Publish(ctx, entities, stats, series); err != nil {
		return stageError(StagePrep, KindPublish, err)
	}
	rc.logger.InfoContext(ctx, "Published tables",
		slog.Int(models.TableEntities, len(entities)),
		slog.Int(models.TableStatistics, len(stats)),
		slog.Int(models.TableGraph, len(series)))
	return nil
}
