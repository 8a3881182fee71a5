package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the term pool.
type Metrics struct {
	// --- Trading ---
	TradesApplied  *prometheus.CounterVec
	TradesRejected *prometheus.CounterVec
	TradeDuration  *prometheus.HistogramVec

	// --- Pool state ---
	ShareReserves         prometheus.Gauge
	BondReserves          prometheus.Gauge
	LongsOutstanding      prometheus.Gauge
	ShortsOutstanding     prometheus.Gauge
	SpotPrice             prometheus.Gauge
	GovernanceFeesAccrued prometheus.Gauge

	// --- Checkpoints & withdrawal pool ---
	CheckpointMaturations prometheus.Counter
	IdleSolverIterations  prometheus.Histogram

	// --- Persistence ---
	PersistTradesWritten      prometheus.Counter
	PersistCheckpointsWritten prometheus.Counter
	PersistBatchDur           prometheus.Histogram
	PersistBatchSize          prometheus.Histogram
	PersistErrors             *prometheus.CounterVec
	PersistRetry              prometheus.Counter
	PersistBackpressure       prometheus.Counter

	// --- Eventing ---
	EventsPublished *prometheus.CounterVec
	PublishErrors   prometheus.Counter

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	tradeBuckets := []float64{
		0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Trading
		TradesApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "termpool_trades_applied_total",
			Help: "Trades successfully applied by the engine",
		}, []string{"operation"}),

		TradesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "termpool_trades_rejected_total",
			Help: "Trades rejected (validation, solvency, limits)",
		}, []string{"operation", "reason"}),

		TradeDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "termpool_trade_duration_seconds",
			Help:    "Time to price and apply a single trade",
			Buckets: tradeBuckets,
		}, []string{"operation"}),

		// Pool state
		ShareReserves: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "termpool_share_reserves",
			Help: "Current share reserves",
		}),

		BondReserves: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "termpool_bond_reserves",
			Help: "Current bond reserves",
		}),

		LongsOutstanding: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "termpool_longs_outstanding",
			Help: "Outstanding long face value",
		}),

		ShortsOutstanding: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "termpool_shorts_outstanding",
			Help: "Outstanding short face value",
		}),

		SpotPrice: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "termpool_spot_price",
			Help: "Instantaneous bond spot price",
		}),

		GovernanceFeesAccrued: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "termpool_governance_fees_accrued",
			Help: "Uncollected governance fees, in shares",
		}),

		// Checkpoints & withdrawal pool
		CheckpointMaturations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "termpool_checkpoint_maturations_total",
			Help: "Cohorts settled at maturity",
		}),

		IdleSolverIterations: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "termpool_idle_solver_iterations",
			Help:    "Iterations of the idle-distribution price solver",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),

		// Persistence
		PersistTradesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "termpool_persist_trades_written_total",
			Help: "Trade records written to Postgres",
		}),

		PersistCheckpointsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "termpool_persist_checkpoints_written_total",
			Help: "Checkpoint projections written to Postgres",
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "termpool_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "termpool_persist_batch_size",
			Help:    "Trades per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "termpool_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "termpool_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "termpool_persist_backpressure_total",
			Help: "Times the engine blocked on the persist channel",
		}),

		// Eventing
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "termpool_events_published_total",
			Help: "Trade events published to NATS",
		}, []string{"operation"}),

		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "termpool_publish_errors_total",
			Help: "NATS publish failures",
		}),

		// Query API
		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "termpool_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "termpool_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),
	}
}
