package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
	"github.com/danielpatrickdp/glyph-controller/internal/state"
)

func TestStateAppendKeepsMostRecent(t *testing.T) {
	s := NewState(3)
	for i := int64(1); i <= 5; i++ {
		s.Append(DecisionRecord{Tick: i, Selected: action.Ignore})
	}
	assert.Len(t, s.Records, 3)
	assert.Equal(t, int64(3), s.Records[0].Tick)
	last, ok := s.Last()
	assert.True(t, ok)
	assert.Equal(t, int64(5), last.Tick)
}

func TestStateRecentSelections(t *testing.T) {
	s := NewState(10)
	kinds := []action.Kind{action.Ignore, action.StressTest, action.WaitAndMonitor}
	for i, k := range kinds {
		s.Append(DecisionRecord{Tick: int64(i + 1), Selected: k})
	}
	assert.Equal(t, kinds[1:], s.RecentSelections(2))
	assert.Equal(t, kinds, s.RecentSelections(5))
}

func TestStateCheckpointRoundTrip(t *testing.T) {
	s := NewState(5)
	s.Tick = 9
	s.LastDecisionKind = action.RecoveryCycle
	s.ConsecutiveSame = 2
	s.LastInterventionTime = t0
	s.LastCalmTime = t0.Add(-30 * time.Second)

	restored := NewState(5)
	restored.Restore(s.Checkpoint())
	assert.Equal(t, state.Checkpoint{
		Tick:             9,
		LastKind:         action.RecoveryCycle,
		ConsecutiveSame:  2,
		LastIntervention: t0,
		LastCalm:         t0.Add(-30 * time.Second),
	}, restored.Checkpoint())
}
