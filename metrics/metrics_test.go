package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RowScanned()
	m.RowEmitted()
	m.CacheLookup("hit")
	m.LOBResolved("file")
	m.DecodeError()
	m.StatementFinished("exhausted", time.Second)
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New("test")
	m.RowScanned()
	m.RowScanned()
	m.RowEmitted()
	m.CacheLookup("hit")
	m.CacheLookup("miss")
	m.CacheLookup("miss")
	m.StatementFinished("cancelled", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rowsScanned))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rowsEmitted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tableCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statements.WithLabelValues("cancelled")))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["test_rows_scanned_total"])
	assert.True(t, names["test_statement_duration_seconds"])
}
