package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerCountsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("ledger:overdue_sweep").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("ledger:overdue_sweep").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:overdue_sweep", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:overdue_sweep", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("ledger:overdue_sweep")))
}

func TestAddFindings(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddFindings("unbalanced_entry", 4, 2)
	m.AddFindings("unbalanced_entry", 4, 0)
	m.AddFindings("receivable_drift", 0, 1)

	require.Equal(t, 2.0, testutil.ToFloat64(m.findings.WithLabelValues("unbalanced_entry", "4")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.findings.WithLabelValues("receivable_drift", "0")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddFindings("x", 1, 1)
	require.NoError(t, m.Track("x").End(nil))
}
