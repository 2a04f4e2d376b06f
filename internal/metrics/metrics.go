// Package metrics exposes Prometheus instrumentation for row-store sessions
// and change batches.
package metrics

import (
	"net/http"

	"github.com/JonMunkholm/datastore/internal/datastore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "datastore"

// Batch outcomes recorded by ObserveApply.
const (
	ResultCommitted = "committed"
	ResultAborted   = "aborted"
	ResultCancelled = "cancelled"
	ResultFailed    = "failed"
)

// Metrics holds the collectors and the registry they are registered with.
type Metrics struct {
	registry *prometheus.Registry

	Statements *prometheus.CounterVec
	Batches    *prometheus.CounterVec
	Sessions   prometheus.Gauge
	RowsLoaded prometheus.Counter
	ApplyTime  prometheus.Histogram
}

// New creates a Metrics instance with its own registry, including the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_total",
			Help:      "DML statements executed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Change batches applied, by result.",
		}, []string{"result"}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sessions",
			Help:      "Row-store sessions currently open.",
		}),
		RowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Rows fetched into row stores.",
		}),
		ApplyTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_duration_seconds",
			Help:      "Wall time of change batches.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.Statements, m.Batches, m.Sessions, m.RowsLoaded, m.ApplyTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveApply records the outcome of one batch. A nil receiver is a no-op.
func (m *Metrics) ObserveApply(res datastore.ApplyResult, err error, seconds float64) {
	if m == nil {
		return
	}
	// Statements of an aborted batch were rolled back.
	if !res.Aborted && err == nil {
		m.Statements.WithLabelValues("delete", "ok").Add(float64(res.Deleted))
		m.Statements.WithLabelValues("update", "ok").Add(float64(res.Updated))
		m.Statements.WithLabelValues("insert", "ok").Add(float64(res.Inserted))
	}
	for _, f := range res.Failures {
		m.Statements.WithLabelValues(f.Type.String(), "failed").Inc()
	}

	m.Batches.WithLabelValues(batchResult(res, err)).Inc()
	m.ApplyTime.Observe(seconds)
}

func batchResult(res datastore.ApplyResult, err error) string {
	switch {
	case res.Cancelled:
		return ResultCancelled
	case res.Aborted:
		return ResultAborted
	case err != nil:
		return ResultFailed
	}
	return ResultCommitted
}
