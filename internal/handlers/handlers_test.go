package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mauv0809/co-econ-etl/internal/config"
	"github.com/mauv0809/co-econ-etl/internal/metrics"
	"github.com/mauv0809/co-econ-etl/internal/models"
	"github.com/mauv0809/co-econ-etl/internal/pipeline"
	"github.com/mauv0809/co-econ-etl/internal/storage"
)

const (
	entitiesPayload   = `[{"entityformdate": "2023-01-05T00:00:00.000", "count_entityid": "3", "entitystatus": "Good Standing", "principalcity": "denver", "principalzipcode": "80202"}]`
	statisticsPayload = "Period,Value\r\nJan-2023,100\r\nFeb-2023,120\r\n"
)

type fakeCounter struct {
	counts map[string]int
	err    error
}

func (f fakeCounter) Counts(ctx context.Context) (map[string]int, error) {
	return f.counts, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestConfig points the URL files at upstream and the artifacts at a temp dir.
func newTestConfig(t *testing.T, upstream string) *config.Config {
	t.Helper()

	dir := t.TempDir()
	entityURLFile := filepath.Join(dir, "entities_url.txt")
	statsURLFile := filepath.Join(dir, "statistics_url.txt")
	require.NoError(t, os.WriteFile(entityURLFile, []byte(upstream+"/entities.json"), 0644))
	require.NoError(t, os.WriteFile(statsURLFile, []byte(upstream+"/statistics.csv"), 0644))

	return &config.Config{
		EntityURLFile:     entityURLFile,
		StatisticsURLFile: statsURLFile,
		EntityPath:        filepath.Join(dir, "data", "business_entities.parquet"),
		StatisticsPath:    filepath.Join(dir, "data", "business_statistics.parquet"),
		GraphPath:         filepath.Join(dir, "data", "main_graph_data.csv"),
	}
}

func newUpstream(t *testing.T, entities string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/entities.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(entities))
	})
	mux.HandleFunc("/statistics.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(statisticsPayload))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newServer(cfg *config.Config, runner *pipeline.Runner, repo TableCounter, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	var mh http.Handler
	if m != nil {
		mh = m.Handler()
	}
	Register(e, New(cfg, testLogger()), NewPipelineHandler(runner, repo, testLogger()), mh)
	return e
}

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	cfg := newTestConfig(t, "http://unused")
	e := newServer(cfg, pipeline.NewRunner(cfg, nil, testLogger()), nil, nil)

	rec := serve(e, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPipelineRun(t *testing.T) {
	srv := newUpstream(t, entitiesPayload)
	cfg := newTestConfig(t, srv.URL)
	runner := pipeline.NewRunner(cfg, nil, testLogger())
	repo := fakeCounter{counts: map[string]int{models.TableGraph: 2}}
	e := newServer(cfg, runner, repo, nil)

	rec := serve(e, http.MethodPost, "/admin/pipeline/run")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PipelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.RunID)
	assert.NotEmpty(t, resp.Elapsed)
	assert.Equal(t, 2, resp.Rows[models.TableGraph])

	rec = serve(e, http.MethodGet, "/admin/pipeline/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Running)
	assert.Equal(t, pipeline.StageRun, status.Stage)
	assert.Equal(t, resp.RunID, status.RunID)
	assert.Equal(t, map[string]int{models.TableGraph: 2}, status.Database)
}

func TestPipelineLoadThenPrep(t *testing.T) {
	srv := newUpstream(t, entitiesPayload)
	cfg := newTestConfig(t, srv.URL)
	e := newServer(cfg, pipeline.NewRunner(cfg, nil, testLogger()), nil, nil)

	rec := serve(e, http.MethodPost, "/admin/pipeline/prep")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"storage"`)

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/admin/pipeline/load").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/admin/pipeline/prep").Code)
	assert.FileExists(t, cfg.GraphPath)
}

func TestPipelineRun_Failure(t *testing.T) {
	srv := newUpstream(t, `{"not": "an array"}`)
	cfg := newTestConfig(t, srv.URL)
	e := newServer(cfg, pipeline.NewRunner(cfg, nil, testLogger()), nil, nil)

	rec := serve(e, http.MethodPost, "/admin/pipeline/run")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp PipelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, string(pipeline.KindParse), resp.Kind)
	assert.Contains(t, resp.Message, "Pipeline run failed")
}

func TestPipelineStatus_DatabaseError(t *testing.T) {
	cfg := newTestConfig(t, "http://unused")
	e := newServer(cfg, pipeline.NewRunner(cfg, nil, testLogger()), fakeCounter{err: errors.New("no connection")}, nil)

	rec := serve(e, http.MethodGet, "/admin/pipeline/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "database")
}

func TestPipeline_Conflict(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/entities.json", func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(entitiesPayload))
	})
	mux.HandleFunc("/statistics.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(statisticsPayload))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := newTestConfig(t, srv.URL)
	runner := pipeline.NewRunner(cfg, nil, testLogger())
	e := newServer(cfg, runner, nil, nil)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- serve(e, http.MethodPost, "/admin/pipeline/run") }()

	require.Eventually(t, func() bool { return runner.Status().Running }, 5*time.Second, 5*time.Millisecond)

	rec := serve(e, http.MethodPost, "/admin/pipeline/load")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), pipeline.ErrRunInProgress.Error())

	close(release)
	assert.Equal(t, http.StatusOK, (<-done).Code)
}

func TestData(t *testing.T) {
	cfg := newTestConfig(t, "http://unused")
	e := newServer(cfg, pipeline.NewRunner(cfg, nil, testLogger()), nil, nil)

	rec := serve(e, http.MethodGet, "/data/companies")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(e, http.MethodGet, "/data/main_graph_data")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not been generated")

	store := storage.NewStore(testLogger())
	_, err := store.SaveSeries(cfg.GraphPath, []models.SeriesPoint{
		{Month: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Series: models.SeriesStatistics, Value: 100},
	})
	require.NoError(t, err)

	rec = serve(e, http.MethodGet, "/data/main_graph_data")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "text/csv"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), ",month,series,value\n"), rec.Body.String())
}

func TestData_Parquet(t *testing.T) {
	cfg := newTestConfig(t, "http://unused")
	e := newServer(cfg, pipeline.NewRunner(cfg, nil, testLogger()), nil, nil)

	store := storage.NewStore(testLogger())
	_, err := store.SaveStatistics(cfg.StatisticsPath, []models.StatObservation{
		{Period: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Value: 100},
	})
	require.NoError(t, err)

	rec := serve(e, http.MethodGet, "/data/business_statistics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.apache.parquet", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PAR1")))
}

func TestMetricsRoute(t *testing.T) {
	cfg := newTestConfig(t, "http://unused")
	m := metrics.New()
	m.ObserveRows(models.TableGraph, "combine", 7)
	e := newServer(cfg, pipeline.NewRunner(cfg, nil, testLogger()), nil, m)

	rec := serve(e, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "co_econ_etl_table_rows")
}
