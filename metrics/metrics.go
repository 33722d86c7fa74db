// Package metrics exposes prometheus collectors for statement execution,
// table scans, the table cache and large object resolution.
//
// A nil *Metrics is valid and records nothing, so components take an
// optional *Metrics without checking it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine collectors
type Metrics struct {
	registry *prometheus.Registry

	statements        *prometheus.CounterVec
	statementDuration *prometheus.HistogramVec
	rowsScanned       prometheus.Counter
	rowsEmitted       prometheus.Counter
	tableCache        *prometheus.CounterVec
	lobResolutions    *prometheus.CounterVec
	decodeErrors      prometheus.Counter
}

// New creates collectors registered on a private registry
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pxcat"
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "statements_total",
				Help:      "Executed statements by final state",
			},
			[]string{"status"},
		),
		statementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "statement_duration_seconds",
				Help:      "Wall time from execution start to a terminal state",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		rowsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_scanned_total",
			Help:      "Records decoded from table files",
		}),
		rowsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_emitted_total",
			Help:      "Result rows returned to callers",
		}),
		tableCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "table_cache_total",
				Help:      "Table metadata cache lookups by result",
			},
			[]string{"result"},
		),
		lobResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lob_resolutions_total",
				Help:      "Large object payloads resolved by source",
			},
			[]string{"source"},
		),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Failures decoding table, index or blob files",
		}),
	}

	m.registry.MustRegister(
		m.statements,
		m.statementDuration,
		m.rowsScanned,
		m.rowsEmitted,
		m.tableCache,
		m.lobResolutions,
		m.decodeErrors,
	)
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// StatementFinished records a statement reaching a terminal state
func (m *Metrics) StatementFinished(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.statements.WithLabelValues(status).Inc()
	m.statementDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// RowScanned counts one decoded record
func (m *Metrics) RowScanned() {
	if m == nil {
		return
	}
	m.rowsScanned.Inc()
}

// RowEmitted counts one result row
func (m *Metrics) RowEmitted() {
	if m == nil {
		return
	}
	m.rowsEmitted.Inc()
}

// CacheLookup records a table cache hit, miss or invalidation
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.tableCache.WithLabelValues(result).Inc()
}

// LOBResolved records a large object read from the given source (inline, file, cache)
func (m *Metrics) LOBResolved(source string) {
	if m == nil {
		return
	}
	m.lobResolutions.WithLabelValues(source).Inc()
}

// DecodeError counts a decode failure
func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}
