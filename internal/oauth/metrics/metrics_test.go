package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementTokensIssued("password")
	m.IncrementTokensIssued("password")
	m.IncrementGrantRejection("authorization_code", "invalid_grant")
	m.IncrementDecision("denied")
	m.AddCodesSwept(3)
	m.AddCodesSwept(0)
	m.ObserveTokenLatency("password", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TokensIssued.WithLabelValues("password")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GrantRejections.WithLabelValues("authorization_code", "invalid_grant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("denied")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CodesSwept))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementTokensIssued("password")
		m.IncrementGrantRejection("password", "invalid_grant")
		m.IncrementDecision("approved")
		m.ObserveTokenLatency("password", time.Millisecond)
		m.AddCodesSwept(1)
	})
}
