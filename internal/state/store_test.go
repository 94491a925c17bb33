package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
	"github.com/danielpatrickdp/glyph-controller/internal/logging"
	"github.com/danielpatrickdp/glyph-controller/internal/signals"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRecord(tick int64, chosen action.Kind, at time.Time) DecisionRecord {
	return DecisionRecord{
		Tick:               tick,
		Timestamp:          at,
		Entropy:            0.18,
		Coherence:          0.8,
		Selected:           chosen,
		Chosen:             chosen,
		Score:              62.5,
		EffectiveThreshold: 0.15,
		Margin:             0.03,
		RepetitionCount:    1,
		Severity:           "moderately_above",
		Pattern:            "no_history",
		Rationale:          "gentle:moderate-band margin=+0.0300 score=62.5",
		Outcome:            "completed",
	}
}

func TestRecordAndListDecisions(t *testing.T) {
	s := tempDB(t)

	for i := int64(1); i <= 3; i++ {
		rec := sampleRecord(i, action.GentleStabilization, t0.Add(time.Duration(i)*30*time.Second))
		id, err := s.RecordDecision(rec)
		if err != nil {
			t.Fatalf("RecordDecision: %v", err)
		}
		if id == "" {
			t.Fatal("expected generated decision ID")
		}
	}

	recs, err := s.ListDecisions(2)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Tick != 3 || recs[1].Tick != 2 {
		t.Fatalf("expected newest first, got ticks %d, %d", recs[0].Tick, recs[1].Tick)
	}
	if recs[0].Chosen != action.GentleStabilization {
		t.Fatalf("expected gentle_stabilization, got %s", recs[0].Chosen)
	}
	if !recs[0].Timestamp.Equal(t0.Add(90 * time.Second)) {
		t.Fatalf("timestamp round trip: got %v", recs[0].Timestamp)
	}
}

func TestGetDecisionRoundTripsFlags(t *testing.T) {
	s := tempDB(t)

	rec := sampleRecord(7, action.WaitAndMonitor, t0)
	rec.ID = "decision-7"
	rec.Selected = action.StressTest
	rec.Downgraded = true
	rec.LoopBroken = true
	rec.HysteresisRaised = true
	rec.StaleSnapshot = true
	rec.Outcome = "timeout"
	rec.Error = "action timed out"
	if _, err := s.RecordDecision(rec); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}

	got, err := s.GetDecision("decision-7")
	if err != nil {
		t.Fatalf("GetDecision: %v", err)
	}
	if got.Selected != action.StressTest || got.Chosen != action.WaitAndMonitor {
		t.Fatalf("kinds: selected=%s chosen=%s", got.Selected, got.Chosen)
	}
	if !got.Downgraded || !got.LoopBroken || !got.HysteresisRaised || !got.StaleSnapshot {
		t.Fatalf("flags not preserved: %+v", got)
	}
	if got.Error != "action timed out" || got.Outcome != "timeout" {
		t.Fatalf("outcome not preserved: %q %q", got.Outcome, got.Error)
	}
}

func TestGetDecisionMissing(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetDecision("nope"); err == nil {
		t.Fatal("expected error for missing decision")
	}
}

func TestKindCountsAndLastIntervention(t *testing.T) {
	s := tempDB(t)

	last, err := s.LastIntervention()
	if err != nil {
		t.Fatalf("LastIntervention: %v", err)
	}
	if !last.IsZero() {
		t.Fatalf("expected zero time on empty log, got %v", last)
	}

	kinds := []action.Kind{action.Ignore, action.StressTest, action.Ignore, action.RecoveryCycle, action.WaitAndMonitor}
	for i, k := range kinds {
		at := t0.Add(time.Duration(i) * 30 * time.Second)
		if _, err := s.RecordDecision(sampleRecord(int64(i+1), k, at)); err != nil {
			t.Fatalf("RecordDecision: %v", err)
		}
	}

	counts, err := s.KindCounts()
	if err != nil {
		t.Fatalf("KindCounts: %v", err)
	}
	if counts[action.Ignore] != 2 || counts[action.StressTest] != 1 || counts[action.RecoveryCycle] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	last, err = s.LastIntervention()
	if err != nil {
		t.Fatalf("LastIntervention: %v", err)
	}
	if want := t0.Add(90 * time.Second); !last.Equal(want) {
		t.Fatalf("expected %v, got %v", want, last)
	}
}

func TestLastInterventionOrdersFractionalSeconds(t *testing.T) {
	s := tempDB(t)

	whole := t0.Add(10 * time.Second)
	fractional := t0.Add(10*time.Second + 500*time.Millisecond)
	if _, err := s.RecordDecision(sampleRecord(1, action.StressTest, fractional)); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}
	if _, err := s.RecordDecision(sampleRecord(2, action.RecoveryCycle, whole)); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}

	last, err := s.LastIntervention()
	if err != nil {
		t.Fatalf("LastIntervention: %v", err)
	}
	if !last.Equal(fractional) {
		t.Fatalf("expected %v, got %v", fractional, last)
	}
}

func TestRecordAndListSnapshots(t *testing.T) {
	s := tempDB(t)

	for i := 0; i < 4; i++ {
		snap := signals.Snapshot{Timestamp: t0.Add(time.Duration(i) * time.Second), Entropy: 0.1 * float64(i), Coherence: 0.9}
		if err := s.RecordSnapshot(int64(i+1), snap); err != nil {
			t.Fatalf("RecordSnapshot: %v", err)
		}
	}

	rows, err := s.ListSnapshots(10)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 snapshots, got %d", len(rows))
	}
	if rows[0].Tick != 4 {
		t.Fatalf("expected newest first, got tick %d", rows[0].Tick)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	s := tempDB(t)

	_, ok, err := s.LoadCheckpoint()
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if ok {
		t.Fatal("expected no checkpoint on fresh database")
	}

	cp := Checkpoint{
		Tick:             12,
		LastKind:         action.StressTest,
		ConsecutiveSame:  2,
		LastIntervention: t0,
		UpdatedAt:        t0.Add(time.Second),
	}
	if err := s.SaveCheckpoint(cp); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	cp.Tick = 13
	cp.ConsecutiveSame = 3
	cp.LastCalm = t0.Add(time.Minute)
	if err := s.SaveCheckpoint(cp); err != nil {
		t.Fatalf("SaveCheckpoint (update): %v", err)
	}

	got, ok, err := s.LoadCheckpoint()
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if !ok {
		t.Fatal("expected checkpoint")
	}
	if got.Tick != 13 || got.ConsecutiveSame != 3 || got.LastKind != action.StressTest {
		t.Fatalf("unexpected checkpoint: %+v", got)
	}
	if !got.LastIntervention.Equal(t0) || !got.LastCalm.Equal(t0.Add(time.Minute)) {
		t.Fatalf("times not preserved: %+v", got)
	}
}

func TestCheckpointZeroTimesStayZero(t *testing.T) {
	s := tempDB(t)

	if err := s.SaveCheckpoint(Checkpoint{Tick: 1}); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	got, ok, err := s.LoadCheckpoint()
	if err != nil || !ok {
		t.Fatalf("LoadCheckpoint: ok=%v err=%v", ok, err)
	}
	if !got.LastIntervention.IsZero() || !got.LastCalm.IsZero() {
		t.Fatalf("expected zero times, got %+v", got)
	}
	if got.LastKind != "" {
		t.Fatalf("expected empty last kind, got %q", got.LastKind)
	}
}

func TestEventsShareDatabase(t *testing.T) {
	s := tempDB(t)

	err := logging.LogEvent(s.DB(), logging.EventEntry{
		DecisionID: "d-1",
		Tick:       4,
		EventType:  logging.EventDowngrade,
		Kind:       string(action.StressTest),
		Detail:     "cooldown",
		CreatedAt:  t0,
	})
	if err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	events, err := s.ListEvents(10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.EventType != logging.EventDowngrade || e.DecisionID != "d-1" || e.Tick != 4 {
		t.Fatalf("unexpected event: %+v", e)
	}
	if e.ID == "" {
		t.Fatal("expected generated event ID")
	}
}

func TestDispatched(t *testing.T) {
	if (DecisionRecord{Chosen: action.WaitAndMonitor}).Dispatched() {
		t.Fatal("wait_and_monitor is not an intervention")
	}
	if !(DecisionRecord{Chosen: action.RecoveryCycle}).Dispatched() {
		t.Fatal("recovery_cycle is an intervention")
	}
}
