package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.RecordEvent("text")
	m.RecordEvent("text")
	m.RecordEvent("location")
	m.RecordDuplicate()
	m.RecordTransition("discovery", "product")
	m.RecordTransition("product", "product")
	m.RecordQuote(false)
	m.RecordOutcome("sheets", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.duplicates))
	assert.Equal(t, 1, testutil.CollectAndCount(m.transitions), "no-op transitions are not recorded")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("sheets", "ok")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordEvent("text")
		m.RecordPaused()
		m.RecordTurnError()
		m.RecordQuote(true)
		m.RecordDuplicate()
		m.RecordTransition("discovery", "product")
		m.RecordOutcome("sheets", false)
		assert.NotNil(t, m.Handler())
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordPaused()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "agrobot_paused_turns_total 1"))
}
