package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Processing metrics
	TransactionsProcessed *prometheus.CounterVec
	TransactionsRejected  *prometheus.CounterVec
	RowsSkipped           prometheus.Counter
	LaneDepth             prometheus.Gauge

	// Transaction store metrics
	HotEntries prometheus.Gauge
	Evictions  prometheus.Counter
	Promotions prometheus.Counter

	// Cold tier metrics
	ColdOperations *prometheus.CounterVec
	ColdErrors     *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TransactionsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payengine_transactions_processed_total",
				Help: "Total transactions applied, by kind",
			},
			[]string{"kind"},
		),
		TransactionsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payengine_transactions_rejected_total",
				Help: "Total transactions rejected, by reason",
			},
			[]string{"reason"},
		),
		RowsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "payengine_input_rows_skipped_total",
			Help: "Total malformed input rows skipped",
		}),
		LaneDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "payengine_lane_backlog",
			Help: "Transactions buffered but not yet applied",
		}),

		HotEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "payengine_store_hot_entries",
			Help: "Entries currently resident in the hot tier",
		}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "payengine_store_evictions_total",
			Help: "Entries moved from the hot tier to the cold tier",
		}),
		Promotions: factory.NewCounter(prometheus.CounterOpts{
			Name: "payengine_store_promotions_total",
			Help: "Entries moved from the cold tier back to the hot tier",
		}),

		ColdOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payengine_cold_operations_total",
				Help: "Cold tier operations, by operation",
			},
			[]string{"operation"},
		),
		ColdErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payengine_cold_errors_total",
				Help: "Cold tier failures, by operation",
			},
			[]string{"operation"},
		),
	}
}
