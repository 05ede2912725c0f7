package metrics

import (
	"database/sql"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDBStats_AddsDeltas(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.RecordDBStats(sql.DBStats{OpenConnections: 4, InUse: 3, Idle: 1, WaitCount: 2, WaitDuration: time.Second})
	m.RecordDBStats(sql.DBStats{OpenConnections: 5, InUse: 1, Idle: 4, WaitCount: 5, WaitDuration: 3 * time.Second})

	assert.Equal(t, float64(5), testutil.ToFloat64(m.DBOpenConns))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DBInUseConns))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.DBIdleConns))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.DBWaitCount))
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.DBWaitDuration), 1e-9)
}

func TestLedgerHeightAndBuildInfo(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.SetLedgerHeight(42)
	m.SetBuildInfo("v1", "test", "memory")

	assert.Equal(t, float64(42), testutil.ToFloat64(m.LedgerHeight))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BuildInfo.WithLabelValues("v1", "test", "memory")))
}
