package thunder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordAPICall(t *testing.T) {
	m := NewMetrics(nil)

	m.RecordAPICall("list", nil, 100*time.Millisecond)
	m.RecordAPICall("list", errors.New("boom"), 50*time.Millisecond)
	m.RecordAPICall("start", nil, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiCallsTotal.WithLabelValues("list", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiCallsTotal.WithLabelValues("list", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiCallsTotal.WithLabelValues("start", "success")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.RecordAPICall("list", nil, time.Second) })
}

func TestMetrics_RegisteredAndRecordedByClient(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	ts := newTestServer(t)
	ts.setInstance("1", map[string]any{"status": "RUNNING"})

	_, err := ts.client(t, WithMetrics(m)).ListInstances(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiCallsTotal.WithLabelValues("list", "success")))
	count, err := testutil.GatherAndCount(reg, "tnrctl_api_calls_total", "tnrctl_api_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
