package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus instruments for the system
type Metrics struct {
	RecordsIngested  prometheus.Counter
	DuplicateRecords prometheus.Counter
	IngestErrors     prometheus.Counter
	JournalErrors    prometheus.Counter

	SnapshotRebuilds prometheus.Counter
	RebuildDuration  prometheus.Histogram

	AnomaliesDetected      *prometheus.GaugeVec
	CorrelationsDiscovered prometheus.Gauge

	SimulateTotal     prometheus.Counter
	SimulateDrifted   prometheus.Counter
	SimulateCacheHits prometheus.Counter
	SimulateCacheMiss prometheus.Counter
}

// New creates and registers all metrics
func New() *Metrics {
	return &Metrics{
		RecordsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitals_records_ingested_total",
			Help: "Total number of daily records accepted into the store",
		}),
		DuplicateRecords: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitals_duplicate_records_total",
			Help: "Number of record submissions rejected as duplicate dates",
		}),
		IngestErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitals_ingest_errors_total",
			Help: "Number of record submissions that failed validation or storage",
		}),
		JournalErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitals_journal_errors_total",
			Help: "Number of ingest journal write errors",
		}),
		SnapshotRebuilds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitals_snapshot_rebuilds_total",
			Help: "Number of analytical snapshot rebuilds",
		}),
		RebuildDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vitals_rebuild_duration_seconds",
			Help:    "Time spent rebuilding the analytical snapshot",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),
		AnomaliesDetected: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vitals_anomalies_detected",
				Help: "Anomalies in the current snapshot per severity",
			},
			[]string{"severity"},
		),
		CorrelationsDiscovered: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vitals_correlations_discovered",
			Help: "Correlations reported by the current snapshot",
		}),
		SimulateTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitals_simulate_total",
			Help: "Total number of what-if simulations served",
		}),
		SimulateDrifted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitals_simulate_drifted_total",
			Help: "Simulations answered outside the training distribution",
		}),
		SimulateCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitals_simulate_cache_hits_total",
			Help: "Simulations served from the per-snapshot cache",
		}),
		SimulateCacheMiss: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vitals_simulate_cache_misses_total",
			Help: "Simulations computed on cache miss",
		}),
	}
}
