package decision

import (
	"fmt"
	"math"
	"sort"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
)

// #region scorer

// Scorer computes a score for every candidate kind. It holds no state and
// uses no randomness.
type Scorer struct {
	config ScoringConfig
}

// NewScorer creates a Scorer with the given constants.
func NewScorer(config ScoringConfig) *Scorer {
	return &Scorer{config: config}
}

// ScoreInputs is the per-tick view the Scorer works from.
type ScoreInputs struct {
	Margin             float64
	Entropy            float64
	Coherence          float64
	RecentIntervention bool
	LastKind           action.Kind
	RepetitionCount    int
}

// #endregion scorer

// #region score-all

// ScoreAll scores every kind, in priority order.
func (s *Scorer) ScoreAll(in ScoreInputs) []ActionScore {
	scores := make([]ActionScore, 0, len(action.Priority))
	for _, kind := range action.Priority {
		score, rule := s.score(kind, in)
		if penalty := s.repetitionPenalty(kind, in); penalty > 0 {
			score -= penalty
			rule += "+repetition"
		}
		score = s.clamp(score)
		scores = append(scores, ActionScore{
			Kind:      kind,
			Score:     score,
			Rule:      rule,
			Rationale: fmt.Sprintf("%s margin=%+.4f score=%.1f", rule, in.Margin, score),
		})
	}
	return scores
}

func (s *Scorer) score(kind action.Kind, in ScoreInputs) (float64, string) {
	switch kind {
	case action.Ignore:
		return s.scoreIgnore(in.Margin)
	case action.WaitAndMonitor:
		return s.scoreWait(in)
	case action.GentleStabilization:
		return s.scoreGentle(in)
	case action.StressTest:
		return s.scoreStress(in.Margin)
	case action.RecoveryCycle:
		return s.scoreRecovery(in)
	}
	return 0, "unknown"
}

// #endregion score-all

// #region rules

func (s *Scorer) scoreIgnore(margin float64) (float64, string) {
	c := s.config
	switch {
	case margin <= 0:
		return c.IgnoreFull, "ignore:below-threshold"
	case margin <= c.IgnoreBand:
		return c.IgnoreFull, "ignore:small-overshoot"
	case margin <= c.ModerateMargin:
		return c.IgnoreSlight, "ignore:slight-overshoot"
	case margin <= c.LargeMargin:
		return c.IgnoreModerate, "ignore:moderate-overshoot"
	default:
		return c.IgnoreFloor, "ignore:large-overshoot"
	}
}

func (s *Scorer) scoreWait(in ScoreInputs) (float64, string) {
	c := s.config
	score, rule := c.WaitBase, "wait:baseline"
	if in.RecentIntervention {
		score += c.WaitRecentBonus
		rule = "wait:recent-intervention"
	}
	if in.Margin > c.LargeMargin {
		score -= c.WaitLargePenalty
		rule += "+large-margin"
	}
	return score, rule
}

func (s *Scorer) scoreGentle(in ScoreInputs) (float64, string) {
	c := s.config
	score, rule := c.GentleBase, "gentle:baseline"
	switch {
	case in.Margin > c.IgnoreBand && in.Margin <= c.ModerateMargin:
		score, rule = c.GentleBand, "gentle:marginal-band"
	case in.Margin > c.ModerateMargin && in.Margin <= c.LargeMargin:
		score, rule = c.GentleModerate, "gentle:moderate-band"
	}
	if in.Coherence > c.StableCoherence {
		score += c.GentleStableBonus
		rule += "+stable"
	}
	return score, rule
}

func (s *Scorer) scoreStress(margin float64) (float64, string) {
	c := s.config
	switch {
	case margin <= 0:
		return 0, "stress:below-threshold"
	case margin < c.RampStart:
		return c.TinyOvershoot, "stress:tiny-overshoot"
	}
	return ramp(margin, c.RampStart, c.RampFull, c.StressMin, c.StressMax), "stress:overshoot-ramp"
}

func (s *Scorer) scoreRecovery(in ScoreInputs) (float64, string) {
	c := s.config
	if in.Coherence >= c.RecoveryCoherenceFloor {
		return 0, "recovery:coherence-healthy"
	}
	switch {
	case in.Margin <= 0:
		return 0, "recovery:below-threshold"
	case in.Margin < c.RampStart:
		return c.TinyOvershoot, "recovery:tiny-overshoot"
	}
	return ramp(in.Margin, c.RampStart, c.RampFull, c.RecoveryMin, c.RecoveryMax), "recovery:decayed-coherence-ramp"
}

// repetitionPenalty discourages re-selecting the previous tick's kind.
func (s *Scorer) repetitionPenalty(kind action.Kind, in ScoreInputs) float64 {
	if kind != in.LastKind || in.RepetitionCount <= 0 {
		return 0
	}
	c := s.config
	penalty := math.Min(c.RepetitionCap, float64(in.RepetitionCount)*c.RepetitionStep)
	if kind.IsIntervention() {
		penalty *= c.InterventionFactor
	}
	return penalty
}

// #endregion rules

// #region helpers

// ramp interpolates linearly from lo at start to hi at full, flat outside.
func ramp(x, start, full, lo, hi float64) float64 {
	if x <= start {
		return lo
	}
	if x >= full {
		return hi
	}
	return lo + (hi-lo)*(x-start)/(full-start)
}

func (s *Scorer) clamp(v float64) float64 {
	return math.Max(0, math.Min(s.config.MaxScore, v))
}

// Rank orders scores best first. Ties go to the less disruptive kind.
func Rank(scores []ActionScore) []ActionScore {
	ranked := make([]ActionScore, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Kind.Rank() < ranked[j].Kind.Rank()
	})
	return ranked
}

// #endregion helpers
