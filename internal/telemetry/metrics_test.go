package telemetry

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
	"github.com/danielpatrickdp/glyph-controller/internal/state"
)

func TestObserveDecisionCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveDecision(state.DecisionRecord{
		Selected:           action.StressTest,
		Chosen:             action.WaitAndMonitor,
		Downgraded:         true,
		EffectiveThreshold: 0.17,
		Entropy:            0.3,
		Coherence:          0.8,
		Margin:             0.13,
	})
	m.ObserveDecision(state.DecisionRecord{
		Selected:           action.WaitAndMonitor,
		Chosen:             action.WaitAndMonitor,
		LoopBroken:         true,
		EffectiveThreshold: 0.15,
		Margin:             0.004,
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues(string(action.WaitAndMonitor))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.downgrades.WithLabelValues(string(action.StressTest))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loopBreaks))
	assert.Equal(t, 0.15, testutil.ToFloat64(m.effectiveThreshold))
	assert.Equal(t, 2, testutil.CollectAndCount(m.margin))
}

func TestObserveHandlerErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveHandlerError(string(action.StressTest), "timeout")
	m.ObserveHandlerError(string(action.StressTest), "timeout")
	m.ObserveHandlerError(string(action.RecoveryCycle), "failed")
	m.ObserveMetricReadError()
	m.ObserveSkippedTick()

	expected := `
# HELP glyph_controller_handler_errors_total Action handler failures by kind and type
# TYPE glyph_controller_handler_errors_total counter
glyph_controller_handler_errors_total{error_type="failed",kind="recovery_cycle"} 1
glyph_controller_handler_errors_total{error_type="timeout",kind="stress_test"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "glyph_controller_handler_errors_total"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metricReadErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skippedTicks))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDecision(state.DecisionRecord{Chosen: action.Ignore})
		m.ObserveHandlerError("ignore", "failed")
		m.ObserveMetricReadError()
		m.ObserveSkippedTick()
	})
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
