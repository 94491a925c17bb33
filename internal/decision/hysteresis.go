package decision

import "time"

// #region hysteresis

// Hysteresis raises the trigger threshold after an intervention. The raise
// holds until the metric has dropped at least Raise below Base, or Window
// has elapsed since the intervention. It never lowers the threshold.
type Hysteresis struct {
	Base   float64
	Raise  float64
	Window time.Duration
}

// NewHysteresis creates a Hysteresis from the engine config.
func NewHysteresis(cfg Config) Hysteresis {
	return Hysteresis{Base: cfg.BaseThreshold, Raise: cfg.HysteresisRaise, Window: cfg.HysteresisWindow}
}

// Effective returns the threshold to use at now.
func (h Hysteresis) Effective(now, lastIntervention, lastCalm time.Time) Threshold {
	t := Threshold{Base: h.Base, Effective: h.Base}
	if h.RecentIntervention(now, lastIntervention) && !lastCalm.After(lastIntervention) {
		t.Effective = h.Base + h.Raise
		t.Raised = true
	}
	return t
}

// RecentIntervention reports whether an intervention happened within Window.
func (h Hysteresis) RecentIntervention(now, lastIntervention time.Time) bool {
	if lastIntervention.IsZero() {
		return false
	}
	return now.Sub(lastIntervention) < h.Window
}

// IsCalm reports whether entropy is low enough to release a raised threshold.
func (h Hysteresis) IsCalm(entropy float64) bool {
	return entropy <= h.Base-h.Raise
}

// #endregion hysteresis
