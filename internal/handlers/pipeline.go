package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mauv0809/co-econ-etl/internal/pipeline"
)

// TableCounter reports row counts of the published database tables.
type TableCounter interface {
	Counts(ctx context.Context) (map[string]int, error)
}

// PipelineHandler handles the pipeline admin endpoints.
type PipelineHandler struct {
	runner *pipeline.Runner
	repo   TableCounter
	logger *slog.Logger
}

// NewPipelineHandler creates a new pipeline handler. repo may be nil when no
// database is configured.
func NewPipelineHandler(runner *pipeline.Runner, repo TableCounter, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{
		runner: runner,
		repo:   repo,
		logger: logger,
	}
}

// PipelineResponse is the JSON response for the trigger endpoints.
type PipelineResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Kind    string         `json:"kind,omitempty"`
	RunID   string         `json:"run_id,omitempty"`
	Rows    map[string]int `json:"rows,omitempty"`
	Elapsed string         `json:"elapsed,omitempty"`
}

// StatusResponse is the JSON response for GET /admin/pipeline/status.
type StatusResponse struct {
	pipeline.Status
	Database map[string]int `json:"database,omitempty"`
}

// Load handles POST /admin/pipeline/load
// Fetches, cleans and saves both source datasets.
func (h *PipelineHandler) Load(c echo.Context) error {
	return h.trigger(c, pipeline.StageLoad, h.runner.Load)
}

// Prep handles POST /admin/pipeline/prep
// Rebuilds the graph table from the saved datasets.
func (h *PipelineHandler) Prep(c echo.Context) error {
	return h.trigger(c, pipeline.StagePrep, h.runner.Prep)
}

// Run handles POST /admin/pipeline/run
// Runs load then prep.
func (h *PipelineHandler) Run(c echo.Context) error {
	return h.trigger(c, pipeline.StageRun, h.runner.Run)
}

func (h *PipelineHandler) trigger(c echo.Context, stage string, fn func(context.Context) error) error {
	start := time.Now()
	h.logger.Info("Pipeline triggered", slog.String("stage", stage))

	err := fn(c.Request().Context())
	elapsed := time.Since(start)

	if errors.Is(err, pipeline.ErrRunInProgress) {
		return c.JSON(http.StatusConflict, PipelineResponse{
			Success: false,
			Message: err.Error(),
		})
	}

	status := h.runner.Status()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, PipelineResponse{
			Success: false,
			Message: fmt.Sprintf("Pipeline %s failed: %v", stage, err),
			Kind:    string(pipeline.KindOf(err)),
			RunID:   status.RunID,
			Elapsed: elapsed.String(),
		})
	}

	return c.JSON(http.StatusOK, PipelineResponse{
		Success: true,
		Message: fmt.Sprintf("Pipeline %s complete", stage),
		RunID:   status.RunID,
		Rows:    status.Rows,
		Elapsed: elapsed.String(),
	})
}

// Status handles GET /admin/pipeline/status
func (h *PipelineHandler) Status(c echo.Context) error {
	resp := StatusResponse{Status: h.runner.Status()}

	if h.repo != nil {
		counts, err := h.repo.Counts(c.Request().Context())
		if err != nil {
			h.logger.Warn("Could not count database rows", slog.String("error", err.Error()))
		} else {
			resp.Database = counts
		}
	}

	return c.JSON(http.StatusOK, resp)
}
