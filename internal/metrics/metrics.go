package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "co_econ_etl"

// JobName is the Pushgateway job label for pipeline runs.
const JobName = "co_econ_etl"

// Metrics records batch pipeline outcomes on its own registry.
type Metrics struct {
	registry    *prometheus.Registry
	rows        *prometheus.GaugeVec
	duration    *prometheus.GaugeVec
	lastSuccess *prometheus.GaugeVec
	failures    *prometheus.CounterVec
}

// New creates and registers the pipeline metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_rows",
			Help:      "Rows in a table at the end of a pipeline step.",
		}, []string{"table", "step"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of the last run of a pipeline stage.",
		}, []string{"stage"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run of a pipeline stage.",
		}, []string{"stage"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Failed pipeline stage runs by error kind.",
		}, []string{"stage", "kind"}),
	}
	m.registry.MustRegister(m.rows, m.duration, m.lastSuccess, m.failures)
	return m
}

// ObserveRows records the row count of table after step (parse, clean, combine).
func (m *Metrics) ObserveRows(table, step string, n int) {
	m.rows.WithLabelValues(table, step).Set(float64(n))
}

// ObserveStage records a finished stage. kind is empty on success.
func (m *Metrics) ObserveStage(stage string, started time.Time, kind string) {
	m.duration.WithLabelValues(stage).Set(time.Since(started).Seconds())
	if kind == "" {
		m.lastSuccess.WithLabelValues(stage).SetToCurrentTime()
		return
	}
	m.failures.WithLabelValues(stage, kind).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Push sends the current values to a Pushgateway, replacing the job's group.
func (m *Metrics) Push(ctx context.Context, url string) error {
	if err := push.New(url, JobName).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
