package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the verification path.
type Metrics struct {
	Verdicts      *prometheus.CounterVec
	Latency       prometheus.Histogram
	CacheLookups  *prometheus.CounterVec
	BatchSize     prometheus.Histogram
	StaleRejected prometheus.Counter
}

// New registers the verification collectors on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixellocker_verification_verdicts_total",
			Help: "Verification verdicts, labeled by on-chain status and validity",
		}, []string{"on_chain_status", "valid"}),
		Latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pixellocker_verification_latency_seconds",
			Help:    "Latency of single verifications in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixellocker_verification_cache_lookups_total",
			Help: "Verdict cache lookups, labeled by result (hit, miss, bypass)",
		}, []string{"result"}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pixellocker_verification_batch_size",
			Help:    "Number of requests per batch verification",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		StaleRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "pixellocker_verification_stale_reads_total",
			Help: "Verifications rejected because the ledger was behind min_ledger_height",
		}),
	}
}

func (m *Metrics) ObserveVerdict(onChainStatus string, valid bool, durationSeconds float64) {
	label := "false"
	if valid {
		label = "true"
	}
	m.Verdicts.WithLabelValues(onChainStatus, label).Inc()
	m.Latency.Observe(durationSeconds)
}

func (m *Metrics) RecordCache(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveBatch(size int) {
	m.BatchSize.Observe(float64(size))
}

func (m *Metrics) IncrementStaleRead() {
	m.StaleRejected.Inc()
}
