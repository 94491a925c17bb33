package decision

import (
	"fmt"

	"go.uber.org/zap"
)

// #region engine

// Engine turns one tick's Inputs into a Decision: effective threshold,
// scores for every kind, then loop breaking.
type Engine struct {
	config     Config
	hysteresis Hysteresis
	scorer     *Scorer
	breaker    LoopBreaker
	logger     *zap.Logger
}

// NewEngine creates an Engine. logger may be nil.
func NewEngine(config Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		config:     config,
		hysteresis: NewHysteresis(config),
		scorer:     NewScorer(config.Scoring),
		breaker:    LoopBreaker{Limit: config.RepeatLimit},
		logger:     logger.Named("decision"),
	}
}

// Hysteresis exposes the threshold rule so callers can track calm ticks.
func (e *Engine) Hysteresis() Hysteresis {
	return e.hysteresis
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// #endregion engine

// #region decide

// Decide selects exactly one kind for the tick described by in.
func (e *Engine) Decide(in Inputs) Decision {
	threshold := e.hysteresis.Effective(in.Now, in.LastIntervention, in.LastCalm)
	margin := in.Entropy - threshold.Effective

	recentWindow := e.config.Scoring.RecentWindow
	recent := !in.LastIntervention.IsZero() && in.Now.Sub(in.LastIntervention) < recentWindow

	scores := e.scorer.ScoreAll(ScoreInputs{
		Margin:             margin,
		Entropy:            in.Entropy,
		Coherence:          in.Coherence,
		RecentIntervention: recent,
		LastKind:           in.LastKind,
		RepetitionCount:    in.RepetitionCount,
	})
	ranked := Rank(scores)
	sel := e.breaker.Select(ranked, in.LastKind, in.RepetitionCount)

	rationale := sel.Score.Rationale
	if sel.LoopBroken {
		rationale = fmt.Sprintf("loop broken: switched from %s to %s after %d repeats; %s",
			sel.BrokenFrom, sel.Kind, in.RepetitionCount, sel.Score.Rationale)
		e.logger.Warn("loop broken: switched from "+string(sel.BrokenFrom)+" to "+string(sel.Kind),
			zap.String("from", string(sel.BrokenFrom)),
			zap.String("to", string(sel.Kind)),
			zap.Int("repeats", in.RepetitionCount),
			zap.Float64("margin", margin),
			zap.Float64("effective_threshold", threshold.Effective),
		)
	}

	return Decision{
		Kind:            sel.Kind,
		Score:           sel.Score.Score,
		Rationale:       rationale,
		Threshold:       threshold,
		Margin:          margin,
		Severity:        ClassifySeverity(margin),
		Ranked:          ranked,
		RepetitionCount: sel.RepetitionCount,
		LoopBroken:      sel.LoopBroken,
		BrokenFrom:      sel.BrokenFrom,
	}
}

// #endregion decide
