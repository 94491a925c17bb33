package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/danielpatrickdp/glyph-controller/internal/state"
)

const (
	namespace = "glyph"
	subsystem = "controller"
)

// #region metrics

// Metrics holds the controller's Prometheus collectors. Each instance
// registers on its own Registerer so tests can use isolated registries.
type Metrics struct {
	// decisions counts dispatched kinds.
	// Labels: kind
	decisions *prometheus.CounterVec

	// downgrades counts cooldown downgrades.
	// Labels: requested
	downgrades *prometheus.CounterVec

	loopBreaks prometheus.Counter

	// handlerErrors counts failed dispatches.
	// Labels: kind, error_type (failed, timeout, aborted)
	handlerErrors *prometheus.CounterVec

	metricReadErrors prometheus.Counter
	skippedTicks     prometheus.Counter

	effectiveThreshold prometheus.Gauge
	entropy            prometheus.Gauge
	coherence          prometheus.Gauge

	margin *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "decisions_total",
			Help:      "Decisions dispatched, by kind",
		}, []string{"kind"}),
		downgrades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "downgrades_total",
			Help:      "Interventions downgraded by the cooldown gate",
		}, []string{"requested"}),
		loopBreaks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "loop_breaks_total",
			Help:      "Repetitive selections overridden by the loop breaker",
		}),
		handlerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handler_errors_total",
			Help:      "Action handler failures by kind and type",
		}, []string{"kind", "error_type"}),
		metricReadErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "metric_read_errors_total",
			Help:      "Failed metric source reads",
		}),
		skippedTicks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "skipped_ticks_total",
			Help:      "Ticks skipped because no snapshot was available",
		}),
		effectiveThreshold: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "effective_threshold",
			Help:      "Entropy threshold in force on the last tick",
		}),
		entropy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "entropy",
			Help:      "Last observed entropy",
		}),
		coherence: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "coherence",
			Help:      "Last observed coherence",
		}),
		margin: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "margin",
			Help:      "Entropy minus effective threshold, by selected kind",
			Buckets:   []float64{-0.1, -0.05, -0.02, 0, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2},
		}, []string{"kind"}),
	}
}

// #endregion metrics

// #region observe

// ObserveDecision records one completed tick.
func (m *Metrics) ObserveDecision(rec state.DecisionRecord) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(rec.Chosen)).Inc()
	if rec.Downgraded {
		m.downgrades.WithLabelValues(string(rec.Selected)).Inc()
	}
	if rec.LoopBroken {
		m.loopBreaks.Inc()
	}
	m.effectiveThreshold.Set(rec.EffectiveThreshold)
	m.entropy.Set(rec.Entropy)
	m.coherence.Set(rec.Coherence)
	m.margin.WithLabelValues(string(rec.Selected)).Observe(rec.Margin)
}

// ObserveHandlerError records a handler failure. errorType is one of
// "failed", "timeout" or "aborted".
func (m *Metrics) ObserveHandlerError(kind, errorType string) {
	if m == nil {
		return
	}
	m.handlerErrors.WithLabelValues(kind, errorType).Inc()
}

// ObserveMetricReadError records a failed source read.
func (m *Metrics) ObserveMetricReadError() {
	if m == nil {
		return
	}
	m.metricReadErrors.Inc()
}

// ObserveSkippedTick records a tick with no usable snapshot.
func (m *Metrics) ObserveSkippedTick() {
	if m == nil {
		return
	}
	m.skippedTicks.Inc()
}

// #endregion observe
