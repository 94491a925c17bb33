package replay

import (
	"fmt"
	"slices"

	"github.com/danielpatrickdp/glyph-controller/internal/state"
)

// #region export

// ExportFixture builds a fixture from persisted snapshots and decisions.
// Snapshots are replayed at their recorded times; a decision with the same
// tick becomes the step's expectation. Expectations are dropped entirely if
// any snapshot lacks a decision.
func ExportFixture(snaps []state.SnapshotRow, decisions []state.DecisionRecord, description string) (*Fixture, error) {
	if len(snaps) == 0 {
		return nil, fmt.Errorf("no snapshots to export")
	}
	ordered := slices.Clone(snaps)
	slices.SortFunc(ordered, func(a, b state.SnapshotRow) int {
		switch {
		case a.Tick < b.Tick:
			return -1
		case a.Tick > b.Tick:
			return 1
		}
		return 0
	})

	byTick := make(map[int64]state.DecisionRecord, len(decisions))
	for _, d := range decisions {
		byTick[d.Tick] = d
	}

	f := &Fixture{Description: description}
	complete := true
	for _, s := range ordered {
		coherence := s.Coherence
		id := fmt.Sprintf("tick-%d", s.Tick)
		f.Steps = append(f.Steps, FixtureStep{ID: id, Entropy: s.Entropy, Coherence: &coherence, At: s.Timestamp})
		d, ok := byTick[s.Tick]
		if !ok {
			complete = false
			continue
		}
		f.Expected = append(f.Expected, FixtureExpect{ID: id, Chosen: string(d.Chosen), Selected: string(d.Selected)})
	}
	if !complete {
		f.Expected = nil
	}
	if len(ordered) > 1 {
		f.Interval = ordered[1].Timestamp.Sub(ordered[0].Timestamp)
	}
	if f.Interval < 0 {
		f.Interval = 0
	}
	return f, nil
}

// #endregion export
