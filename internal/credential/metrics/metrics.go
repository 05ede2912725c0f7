package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for credential ledger operations.
type Metrics struct {
	Mutations          *prometheus.CounterVec
	MutationLatency    *prometheus.HistogramVec
	LastMutationHeight prometheus.Gauge
	StatusLookups      *prometheus.CounterVec
}

// New registers and returns credential metrics collectors on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixellocker_credential_mutations_total",
			Help: "Credential ledger mutations, labeled by operation and outcome",
		}, []string{"operation", "outcome"}),
		MutationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixellocker_credential_mutation_latency_seconds",
			Help:    "Latency of credential ledger mutations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),
		LastMutationHeight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pixellocker_credential_last_mutation_height",
			Help: "Ledger height stamped on the last committed credential mutation",
		}),
		StatusLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixellocker_credential_status_lookups_total",
			Help: "Ledger status checks, labeled by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveMutation(operation, outcome string, durationSeconds float64) {
	m.Mutations.WithLabelValues(operation, outcome).Inc()
	m.MutationLatency.WithLabelValues(operation).Observe(durationSeconds)
}

func (m *Metrics) SetLastMutationHeight(height uint64) {
	m.LastMutationHeight.Set(float64(height))
}

func (m *Metrics) IncrementStatusLookup(result string) {
	m.StatusLookups.WithLabelValues(result).Inc()
}
