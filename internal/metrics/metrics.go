// Package metrics exposes Prometheus collectors for retrieval and ingestion.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	retrieveLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookref_retrieve_latency_ms",
		Help:    "Latency of retrieve calls in milliseconds",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"outcome"})

	retrieveResults = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bookref_retrieve_results",
		Help:    "Number of passages returned per retrieve call",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
	})

	retrieveOutcome = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookref_retrieve_total",
		Help: "Retrieve calls by outcome (ok, relaxed, no_results, error)",
	}, []string{"outcome"})

	queryType = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookref_query_type_total",
		Help: "Analyzed queries by detected type",
	}, []string{"type"})

	ingestFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookref_ingest_failures_total",
		Help: "Books skipped during ingestion, by book id",
	}, []string{"book"})

	ingestRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookref_ingest_runs_total",
		Help: "Completed ingestion runs by mode (build, add, unchanged)",
	}, []string{"mode"})

	indexChunks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bookref_index_chunks",
		Help: "Chunks in the published vector index",
	})

	indexBooks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bookref_index_books",
		Help: "Books in the published vector index",
	})
)

// Retrieve outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeRelaxed   = "relaxed"
	OutcomeNoResults = "no_results"
	OutcomeError     = "error"
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(Collectors()...)
	})
}

// ObserveRetrieve records latency, outcome and result count of one retrieve call.
func ObserveRetrieve(outcome string, start time.Time, results int) {
	ensureRegistered()
	retrieveLatency.WithLabelValues(outcome).Observe(float64(time.Since(start).Milliseconds()))
	retrieveOutcome.WithLabelValues(outcome).Inc()
	if outcome != OutcomeError {
		retrieveResults.Observe(float64(results))
	}
}

// IncQueryType counts an analyzed query by type.
func IncQueryType(t string) {
	ensureRegistered()
	queryType.WithLabelValues(t).Inc()
}

// IncIngestFailure counts a book skipped during ingestion.
func IncIngestFailure(bookID string) {
	ensureRegistered()
	ingestFailures.WithLabelValues(bookID).Inc()
}

// IncIngestRun counts a completed ingestion run.
func IncIngestRun(mode string) {
	ensureRegistered()
	ingestRuns.WithLabelValues(mode).Inc()
}

// SetIndexSize publishes the size of the current index.
func SetIndexSize(books, chunks int) {
	ensureRegistered()
	indexBooks.Set(float64(books))
	indexChunks.Set(float64(chunks))
}

// Register makes sure the collectors are registered with the default registry,
// so /metrics lists them before the first observation.
func Register() {
	ensureRegistered()
}

// Collectors exposes all collectors for registration with a custom registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		retrieveLatency, retrieveResults, retrieveOutcome, queryType,
		ingestFailures, ingestRuns, indexChunks, indexBooks,
	}
}
