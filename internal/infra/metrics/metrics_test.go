package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Transition("payu", "completed")
	m.Transition("payu", "completed")
	m.Rejection("payu", "INVALID_CHECKSUM")
	m.SideEffect("receipt_email", nil)
	m.SideEffect("receipt_email", errors.New("smtp down"))
	m.Lookup("payu", "ok", 120*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("payu", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("payu", "INVALID_CHECKSUM")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sideEffectRuns.WithLabelValues("receipt_email")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sideEffectErrors.WithLabelValues("receipt_email")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Transition("payu", "completed")
		m.Rejection("payu", "x")
		m.SideEffect("x", nil)
		m.Lookup("payu", "ok", time.Second)
	})
}
