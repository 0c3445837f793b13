// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rag"

// Metrics records request, ingestion and query metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	documentsIngested prometheus.Counter
	chunksIngested    prometheus.Counter
	ingestErrors      prometheus.Counter
	documentsDeleted  prometheus.Counter

	queries       *prometheus.CounterVec
	queryDuration prometheus.Histogram
	queryResults  prometheus.Histogram
}

// New registers all collectors with reg. When db is not nil its connection
// pool statistics are exported as well.
func New(reg prometheus.Registerer, db *sql.DB) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by method, route and status code.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		documentsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Total number of documents ingested.",
		}),
		chunksIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_ingested_total",
			Help:      "Total number of chunks embedded and indexed.",
		}),
		ingestErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_errors_total",
			Help:      "Total number of failed ingestions.",
		}),
		documentsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_deleted_total",
			Help:      "Total number of documents deleted.",
		}),
		queries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of queries by outcome.",
			},
			[]string{"status"},
		),
		queryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Duration of retrieval and answer generation.",
			Buckets:   prometheus.DefBuckets,
		}),
		queryResults: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_results",
			Help:      "Number of chunks retrieved per query.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
	}

	if db != nil {
		reg.MustRegister(collectors.NewDBStatsCollector(db, "rag"))
	}

	return m
}

// ObserveHTTPRequest records one served request. route is the matched route
// pattern, not the raw path.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveIngest records the outcome of one ingestion.
func (m *Metrics) ObserveIngest(chunks int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ingestErrors.Inc()
		return
	}
	m.documentsIngested.Inc()
	m.chunksIngested.Add(float64(chunks))
}

// ObserveDelete records a deleted document.
func (m *Metrics) ObserveDelete() {
	if m == nil {
		return
	}
	m.documentsDeleted.Inc()
}

// ObserveQuery records the outcome of one query.
func (m *Metrics) ObserveQuery(results int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.queries.WithLabelValues("error").Inc()
		return
	}
	m.queries.WithLabelValues("success").Inc()
	m.queryDuration.Observe(duration.Seconds())
	m.queryResults.Observe(float64(results))
}
