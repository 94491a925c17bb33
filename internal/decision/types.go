package decision

import (
	"time"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
)

// #region action-score

// ActionScore is the transient score of one candidate kind for one tick.
type ActionScore struct {
	Kind      action.Kind `json:"kind"`
	Score     float64     `json:"score"`
	Rule      string      `json:"rule"`
	Rationale string      `json:"rationale"`
}

// #endregion action-score

// #region inputs

// Inputs is everything the Engine reads for one tick. Identical inputs
// always produce an identical Decision.
type Inputs struct {
	Now              time.Time
	Entropy          float64
	Coherence        float64
	LastIntervention time.Time // zero if no intervention was ever dispatched
	LastCalm         time.Time // last tick with entropy <= base - raise
	LastKind         action.Kind
	RepetitionCount  int
}

// #endregion inputs

// #region threshold

// Threshold is the effective trigger threshold for a tick.
type Threshold struct {
	Base      float64
	Effective float64
	Raised    bool
}

// #endregion threshold

// #region selection

// Selection is the loop breaker's verdict on a ranked score list.
type Selection struct {
	Kind            action.Kind
	Score           ActionScore
	RepetitionCount int         // consecutive count after this selection
	LoopBroken      bool        // true if the top kind was overridden
	BrokenFrom      action.Kind // the overridden kind when LoopBroken
}

// #endregion selection

// #region decision

// Decision is the Engine's output for one tick.
type Decision struct {
	Kind            action.Kind
	Score           float64
	Rationale       string
	Threshold       Threshold
	Margin          float64
	Severity        Severity
	Ranked          []ActionScore
	RepetitionCount int
	LoopBroken      bool
	BrokenFrom      action.Kind
}

// #endregion decision
