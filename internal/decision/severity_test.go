package decision

import (
	"testing"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
	"github.com/stretchr/testify/assert"
)

func TestClassifySeverity(t *testing.T) {
	cases := []struct {
		margin float64
		want   Severity
	}{
		{-0.2, SeverityBelow},
		{0, SeverityBelow},
		{0.001, SeverityBarely},
		{0.007, SeveritySlightly},
		{0.015, SeverityModerately},
		{0.03, SeveritySignificant},
		{0.2, SeverityWell},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifySeverity(c.margin), "margin %v", c.margin)
	}
}

func TestAnalyzePattern(t *testing.T) {
	assert.Equal(t, "no_history", AnalyzePattern(nil))
	assert.Equal(t, "consistent_ignore", AnalyzePattern([]action.Kind{action.Ignore, action.Ignore}))
	assert.Equal(t, "repeated_stress_test", AnalyzePattern([]action.Kind{
		action.StressTest, action.WaitAndMonitor, action.StressTest, action.StressTest,
	}))
	assert.Equal(t, "repeated_recovery", AnalyzePattern([]action.Kind{
		action.RecoveryCycle, action.RecoveryCycle, action.Ignore, action.RecoveryCycle,
	}))
	assert.Equal(t, "mixed_responses", AnalyzePattern([]action.Kind{action.Ignore, action.WaitAndMonitor}))
}

func TestAnalyzePattern_OnlyLastFive(t *testing.T) {
	recent := []action.Kind{
		action.StressTest, action.StressTest, action.StressTest,
		action.Ignore, action.Ignore, action.Ignore, action.Ignore, action.Ignore,
	}
	assert.Equal(t, "consistent_ignore", AnalyzePattern(recent))
}
