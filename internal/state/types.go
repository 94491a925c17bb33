package state

import (
	"time"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
)

// #region decision-record
// DecisionRecord is the flat, append-only record of one controller tick.
// Selected is what the decision engine picked; Chosen is what was actually
// dispatched after the cooldown gate.
type DecisionRecord struct {
	ID                 string      `json:"id"`
	Tick               int64       `json:"tick"`
	Timestamp          time.Time   `json:"timestamp"`
	Entropy            float64     `json:"entropy"`
	Coherence          float64     `json:"coherence"`
	StaleSnapshot      bool        `json:"stale_snapshot,omitempty"`
	Selected           action.Kind `json:"selected"`
	Chosen             action.Kind `json:"chosen"`
	Score              float64     `json:"score"`
	EffectiveThreshold float64     `json:"effective_threshold"`
	HysteresisRaised   bool        `json:"hysteresis_raised"`
	Margin             float64     `json:"margin"`
	RepetitionCount    int         `json:"repetition_count"`
	Severity           string      `json:"severity"`
	Pattern            string      `json:"pattern"`
	Rationale          string      `json:"rationale"`
	LoopBroken         bool        `json:"loop_broken"`
	Downgraded         bool        `json:"downgraded"`
	Outcome            string      `json:"outcome"` // "completed" | "noop" | "aborted" | "failed" | "timeout"
	Error              string      `json:"error,omitempty"`
}

// Dispatched reports whether an intervention was handed to a handler on
// this tick, whatever its outcome.
func (r DecisionRecord) Dispatched() bool {
	return r.Chosen.IsIntervention()
}

// #endregion decision-record

// #region checkpoint
// Checkpoint is the persisted part of the controller state, restored on
// start so cooldown and loop breaking survive a restart.
type Checkpoint struct {
	Tick             int64
	LastKind         action.Kind
	ConsecutiveSame  int
	LastIntervention time.Time
	LastCalm         time.Time
	UpdatedAt        time.Time
}

// #endregion checkpoint

// #region snapshot-row
// SnapshotRow is a persisted metric reading.
type SnapshotRow struct {
	Tick      int64
	Timestamp time.Time
	Entropy   float64
	Coherence float64
}

// #endregion snapshot-row
