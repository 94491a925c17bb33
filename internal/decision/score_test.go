package decision

import (
	"testing"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoreOf(t *testing.T, scores []ActionScore, kind action.Kind) ActionScore {
	t.Helper()
	for _, s := range scores {
		if s.Kind == kind {
			return s
		}
	}
	t.Fatalf("no score for %s", kind)
	return ActionScore{}
}

// #region shape-tests

func TestScoreAll_OneScorePerKindInPriorityOrder(t *testing.T) {
	s := NewScorer(DefaultScoringConfig())
	scores := s.ScoreAll(ScoreInputs{Margin: 0.01, Coherence: 0.8})
	require.Len(t, scores, len(action.Priority))
	for i, k := range action.Priority {
		assert.Equal(t, k, scores[i].Kind)
	}
}

func TestScoreAll_IgnoreWinsBelowThreshold(t *testing.T) {
	s := NewScorer(DefaultScoringConfig())
	ranked := Rank(s.ScoreAll(ScoreInputs{Margin: -0.05, Coherence: 0.8}))
	assert.Equal(t, action.Ignore, ranked[0].Kind)
	assert.Equal(t, 90.0, ranked[0].Score)
	assert.Equal(t, 0.0, scoreOf(t, ranked, action.StressTest).Score)
}

func TestScoreAll_GentleWinsMarginalOvershoot(t *testing.T) {
	s := NewScorer(DefaultScoringConfig())
	scores := s.ScoreAll(ScoreInputs{Margin: 0.01, Coherence: 0.8})
	ranked := Rank(scores)
	assert.Equal(t, action.GentleStabilization, ranked[0].Kind)
	assert.Equal(t, 85.0, ranked[0].Score)
	assert.Equal(t, 65.0, scoreOf(t, scores, action.Ignore).Score)
}

func TestScoreAll_StressWinsLargeOvershootWithHealthyCoherence(t *testing.T) {
	s := NewScorer(DefaultScoringConfig())
	scores := s.ScoreAll(ScoreInputs{Margin: 0.2, Coherence: 0.8})
	ranked := Rank(scores)
	assert.Equal(t, action.StressTest, ranked[0].Kind)
	assert.Equal(t, 90.0, ranked[0].Score)
	assert.Equal(t, 0.0, scoreOf(t, scores, action.RecoveryCycle).Score)
	assert.Contains(t, scoreOf(t, scores, action.RecoveryCycle).Rule, "coherence-healthy")
}

func TestScoreAll_RecoveryOnlyBelowCoherenceFloor(t *testing.T) {
	s := NewScorer(DefaultScoringConfig())
	healthy := s.ScoreAll(ScoreInputs{Margin: 0.75, Coherence: 0.6})
	assert.Equal(t, 0.0, scoreOf(t, healthy, action.RecoveryCycle).Score)

	decayed := s.ScoreAll(ScoreInputs{Margin: 0.75, Coherence: 0.4})
	rec := scoreOf(t, decayed, action.RecoveryCycle)
	stress := scoreOf(t, decayed, action.StressTest)
	assert.Greater(t, rec.Score, 0.0)
	assert.Greater(t, rec.Score, stress.Score)
	assert.Equal(t, action.RecoveryCycle, Rank(decayed)[0].Kind)
}

func TestScoreAll_IgnoreNonIncreasingStressNonDecreasing(t *testing.T) {
	s := NewScorer(DefaultScoringConfig())
	margins := []float64{-0.1, 0, 0.003, 0.005, 0.01, 0.02, 0.03, 0.05, 0.06, 0.08, 0.1, 0.3}
	prevIgnore, prevStress, prevRecovery := 1e9, -1.0, -1.0
	for _, m := range margins {
		scores := s.ScoreAll(ScoreInputs{Margin: m, Coherence: 0.3})
		ig := scoreOf(t, scores, action.Ignore).Score
		st := scoreOf(t, scores, action.StressTest).Score
		rc := scoreOf(t, scores, action.RecoveryCycle).Score
		assert.LessOrEqual(t, ig, prevIgnore, "ignore at margin %v", m)
		assert.GreaterOrEqual(t, st, prevStress, "stress at margin %v", m)
		assert.GreaterOrEqual(t, rc, prevRecovery, "recovery at margin %v", m)
		prevIgnore, prevStress, prevRecovery = ig, st, rc
	}
}

func TestScoreAll_WaitRisesAfterRecentIntervention(t *testing.T) {
	s := NewScorer(DefaultScoringConfig())
	calm := scoreOf(t, s.ScoreAll(ScoreInputs{Margin: 0.01}), action.WaitAndMonitor)
	recent := scoreOf(t, s.ScoreAll(ScoreInputs{Margin: 0.01, RecentIntervention: true}), action.WaitAndMonitor)
	large := scoreOf(t, s.ScoreAll(ScoreInputs{Margin: 0.2}), action.WaitAndMonitor)
	assert.Equal(t, 55.0, calm.Score)
	assert.Equal(t, 80.0, recent.Score)
	assert.Equal(t, 35.0, large.Score)
}

func TestScoreAll_AllScoresClamped(t *testing.T) {
	cfg := DefaultScoringConfig()
	cfg.RepetitionCap = 500
	cfg.RepetitionStep = 500
	s := NewScorer(cfg)
	scores := s.ScoreAll(ScoreInputs{Margin: 0.9, Coherence: 0.1, LastKind: action.Ignore, RepetitionCount: 3})
	for _, sc := range scores {
		assert.GreaterOrEqual(t, sc.Score, 0.0)
		assert.LessOrEqual(t, sc.Score, cfg.MaxScore)
	}
	assert.Equal(t, 0.0, scoreOf(t, scores, action.Ignore).Score)
}

// #endregion shape-tests

// #region repetition-tests

func TestScoreAll_RepetitionPenalty(t *testing.T) {
	s := NewScorer(DefaultScoringConfig())
	scores := s.ScoreAll(ScoreInputs{Margin: -0.01, LastKind: action.Ignore, RepetitionCount: 2})
	ig := scoreOf(t, scores, action.Ignore)
	assert.Equal(t, 80.0, ig.Score)
	assert.Contains(t, ig.Rule, "+repetition")

	capped := s.ScoreAll(ScoreInputs{Margin: -0.01, LastKind: action.Ignore, RepetitionCount: 9})
	assert.Equal(t, 75.0, scoreOf(t, capped, action.Ignore).Score)
}

func TestScoreAll_InterventionPenaltyDoubled(t *testing.T) {
	s := NewScorer(DefaultScoringConfig())
	scores := s.ScoreAll(ScoreInputs{Margin: 0.2, Coherence: 0.8, LastKind: action.StressTest, RepetitionCount: 1})
	assert.Equal(t, 80.0, scoreOf(t, scores, action.StressTest).Score)
}

// #endregion repetition-tests

// #region determinism-tests

func TestScoreAll_Deterministic(t *testing.T) {
	s := NewScorer(DefaultScoringConfig())
	in := ScoreInputs{Margin: 0.013, Entropy: 0.163, Coherence: 0.55, RecentIntervention: true, LastKind: action.GentleStabilization, RepetitionCount: 2}
	first := s.ScoreAll(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.ScoreAll(in))
	}
}

func TestScoreAll_RationaleStatesMarginAndRule(t *testing.T) {
	s := NewScorer(DefaultScoringConfig())
	scores := s.ScoreAll(ScoreInputs{Margin: 0.01, Coherence: 0.5})
	g := scoreOf(t, scores, action.GentleStabilization)
	assert.Equal(t, "gentle:marginal-band margin=+0.0100 score=80.0", g.Rationale)
	ig := scoreOf(t, scores, action.Ignore)
	assert.Contains(t, ig.Rationale, "ignore:slight-overshoot")
	assert.Contains(t, ig.Rationale, "margin=+0.0100")
}

// #endregion determinism-tests

// #region rank-tests

func TestRank_TieGoesToLessDisruptive(t *testing.T) {
	ranked := Rank([]ActionScore{
		{Kind: action.RecoveryCycle, Score: 50},
		{Kind: action.StressTest, Score: 50},
		{Kind: action.WaitAndMonitor, Score: 50},
		{Kind: action.Ignore, Score: 10},
	})
	assert.Equal(t, []action.Kind{action.WaitAndMonitor, action.StressTest, action.RecoveryCycle, action.Ignore},
		[]action.Kind{ranked[0].Kind, ranked[1].Kind, ranked[2].Kind, ranked[3].Kind})
}

func TestRamp(t *testing.T) {
	assert.Equal(t, 10.0, ramp(0.01, 0.02, 0.1, 10, 90))
	assert.Equal(t, 90.0, ramp(0.5, 0.02, 0.1, 10, 90))
	assert.InDelta(t, 50.0, ramp(0.06, 0.02, 0.1, 10, 90), 1e-9)
}

// #endregion rank-tests
