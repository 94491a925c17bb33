package controller

import "go.uber.org/zap"

// DecisionFields renders a record as zap fields. Every decision log line
// carries margin, threshold and repetition count.
func DecisionFields(rec DecisionRecord) []zap.Field {
	fields := []zap.Field{
		zap.Int64("tick", rec.Tick),
		zap.String("decision_id", rec.ID),
		zap.String("selected", string(rec.Selected)),
		zap.String("chosen", string(rec.Chosen)),
		zap.Float64("score", rec.Score),
		zap.Float64("entropy", rec.Entropy),
		zap.Float64("coherence", rec.Coherence),
		zap.Float64("margin", rec.Margin),
		zap.Float64("effective_threshold", rec.EffectiveThreshold),
		zap.Int("repetition_count", rec.RepetitionCount),
		zap.String("severity", rec.Severity),
		zap.String("pattern", rec.Pattern),
		zap.String("outcome", rec.Outcome),
	}
	if rec.LoopBroken {
		fields = append(fields, zap.Bool("loop_broken", true))
	}
	if rec.Downgraded {
		fields = append(fields, zap.Bool("downgraded", true))
	}
	if rec.StaleSnapshot {
		fields = append(fields, zap.Bool("stale_snapshot", true))
	}
	if rec.Error != "" {
		fields = append(fields, zap.String("error", rec.Error))
	}
	return fields
}
