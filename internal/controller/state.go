package controller

import (
	"time"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
	"github.com/danielpatrickdp/glyph-controller/internal/signals"
	"github.com/danielpatrickdp/glyph-controller/internal/state"
)

// DecisionRecord is the per-tick record published and persisted by the controller.
type DecisionRecord = state.DecisionRecord

// #region state
// State is the controller's mutable memory across ticks. Only the tick
// loop writes it.
type State struct {
	Tick                 int64
	History              *signals.History
	Records              []DecisionRecord
	LastInterventionTime time.Time
	LastCalmTime         time.Time
	ConsecutiveSame      int
	LastDecisionKind     action.Kind

	recordLimit int
}

// NewState creates an empty State retaining size snapshots and records.
func NewState(size int) *State {
	if size < 1 {
		size = 1
	}
	return &State{
		History:     signals.NewHistory(size),
		recordLimit: size,
	}
}

// Append adds rec, dropping the oldest record beyond the limit.
func (s *State) Append(rec DecisionRecord) {
	s.Records = append(s.Records, rec)
	if over := len(s.Records) - s.recordLimit; over > 0 {
		s.Records = append(s.Records[:0:0], s.Records[over:]...)
	}
}

// Last returns the most recent record.
func (s *State) Last() (DecisionRecord, bool) {
	if len(s.Records) == 0 {
		return DecisionRecord{}, false
	}
	return s.Records[len(s.Records)-1], true
}

// RecentSelections returns the selected kinds of the last n records,
// oldest first.
func (s *State) RecentSelections(n int) []action.Kind {
	recs := s.Records
	if len(recs) > n {
		recs = recs[len(recs)-n:]
	}
	out := make([]action.Kind, len(recs))
	for i, r := range recs {
		out[i] = r.Selected
	}
	return out
}

// #endregion state

// #region checkpoint
// Checkpoint captures the fields that must survive a restart.
func (s *State) Checkpoint() state.Checkpoint {
	return state.Checkpoint{
		Tick:             s.Tick,
		LastKind:         s.LastDecisionKind,
		ConsecutiveSame:  s.ConsecutiveSame,
		LastIntervention: s.LastInterventionTime,
		LastCalm:         s.LastCalmTime,
	}
}

// Restore loads a persisted checkpoint.
func (s *State) Restore(cp state.Checkpoint) {
	s.Tick = cp.Tick
	s.LastDecisionKind = cp.LastKind
	s.ConsecutiveSame = cp.ConsecutiveSame
	s.LastInterventionTime = cp.LastIntervention
	s.LastCalmTime = cp.LastCalm
}

// #endregion checkpoint
