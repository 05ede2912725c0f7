package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide Prometheus collectors that do not belong to a
// single bounded context.
type Metrics struct {
	BuildInfo      *prometheus.GaugeVec
	LedgerHeight   prometheus.Gauge
	DBOpenConns    prometheus.Gauge
	DBInUseConns   prometheus.Gauge
	DBIdleConns    prometheus.Gauge
	DBWaitCount    prometheus.Counter
	DBWaitDuration prometheus.Counter

	lastWaitCount    int64
	lastWaitDuration float64
}

// New creates and registers the collectors on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BuildInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pixellocker_build_info",
			Help: "Build information, always 1",
		}, []string{"version", "environment", "database_driver"}),
		LedgerHeight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pixellocker_ledger_height",
			Help: "Number of committed ledger mutations",
		}),
		DBOpenConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pixellocker_db_open_connections",
			Help: "Number of established database connections",
		}),
		DBInUseConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pixellocker_db_in_use_connections",
			Help: "Number of database connections currently in use",
		}),
		DBIdleConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pixellocker_db_idle_connections",
			Help: "Number of idle database connections",
		}),
		DBWaitCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "pixellocker_db_wait_total",
			Help: "Total number of connections waited for",
		}),
		DBWaitDuration: factory.NewCounter(prometheus.CounterOpts{
			Name: "pixellocker_db_wait_seconds_total",
			Help: "Total time blocked waiting for a database connection",
		}),
	}
}

func (m *Metrics) SetBuildInfo(version, environment, driver string) {
	m.BuildInfo.WithLabelValues(version, environment, driver).Set(1)
}

func (m *Metrics) SetLedgerHeight(height uint64) {
	m.LedgerHeight.Set(float64(height))
}

// RecordDBStats updates the pool gauges and advances the wait counters by the
// delta since the previous call. Not safe for concurrent use.
func (m *Metrics) RecordDBStats(stats sql.DBStats) {
	m.DBOpenConns.Set(float64(stats.OpenConnections))
	m.DBInUseConns.Set(float64(stats.InUse))
	m.DBIdleConns.Set(float64(stats.Idle))

	if delta := stats.WaitCount - m.lastWaitCount; delta > 0 {
		m.DBWaitCount.Add(float64(delta))
	}
	waited := stats.WaitDuration.Seconds()
	if delta := waited - m.lastWaitDuration; delta > 0 {
		m.DBWaitDuration.Add(delta)
	}
	m.lastWaitCount = stats.WaitCount
	m.lastWaitDuration = waited
}
