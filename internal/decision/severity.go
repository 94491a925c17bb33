package decision

import (
	"fmt"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
)

// #region severity

// Severity buckets the margin for reporting.
type Severity string

const (
	SeverityBelow       Severity = "below_threshold"
	SeverityBarely      Severity = "barely_above"
	SeveritySlightly    Severity = "slightly_above"
	SeverityModerately  Severity = "moderately_above"
	SeveritySignificant Severity = "significantly_above"
	SeverityWell        Severity = "well_above"
)

// ClassifySeverity maps a margin to a Severity bucket.
func ClassifySeverity(margin float64) Severity {
	switch {
	case margin <= 0:
		return SeverityBelow
	case margin < 0.005:
		return SeverityBarely
	case margin < 0.01:
		return SeveritySlightly
	case margin < 0.02:
		return SeverityModerately
	case margin < 0.05:
		return SeveritySignificant
	default:
		return SeverityWell
	}
}

// #endregion severity

// #region pattern

// patternWindow is how many recent decisions AnalyzePattern looks at.
const patternWindow = 5

// AnalyzePattern summarises the most recent decisions (oldest first).
func AnalyzePattern(recent []action.Kind) string {
	if len(recent) == 0 {
		return "no_history"
	}
	if len(recent) > patternWindow {
		recent = recent[len(recent)-patternWindow:]
	}

	counts := make(map[action.Kind]int, len(recent))
	for _, k := range recent {
		counts[k]++
	}
	switch {
	case len(counts) == 1:
		return fmt.Sprintf("consistent_%s", recent[0])
	case counts[action.StressTest] >= 3:
		return "repeated_stress_test"
	case counts[action.RecoveryCycle] >= 3:
		return "repeated_recovery"
	default:
		return "mixed_responses"
	}
}

// #endregion pattern
