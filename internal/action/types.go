package action

import "time"

// #region kind

// Kind identifies one of the candidate actions the controller can take.
type Kind string

const (
	Ignore              Kind = "ignore"
	WaitAndMonitor      Kind = "wait_and_monitor"
	GentleStabilization Kind = "gentle_stabilization"
	StressTest          Kind = "stress_test"
	RecoveryCycle       Kind = "recovery_cycle"
)

// Priority is the fixed tie-break order. Earlier kinds are less disruptive
// and win a tie.
var Priority = []Kind{Ignore, WaitAndMonitor, GentleStabilization, StressTest, RecoveryCycle}

// IsIntervention reports whether the kind modifies system state and is
// therefore subject to cooldown.
func (k Kind) IsIntervention() bool {
	return k == StressTest || k == RecoveryCycle
}

// Rank returns the position of k in Priority, or len(Priority) if unknown.
func (k Kind) Rank() int {
	for i, p := range Priority {
		if p == k {
			return i
		}
	}
	return len(Priority)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k.Rank() < len(Priority)
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	return k, k.Valid()
}

// #endregion kind

// #region descriptions

// Descriptions is a human-readable summary of each kind, used in status output.
var Descriptions = map[Kind]string{
	Ignore:              "accept current entropy level as acceptable",
	WaitAndMonitor:      "continue monitoring without intervention",
	GentleStabilization: "nudge dynamic glyphs toward the midpoint without stress",
	StressTest:          "apply controlled stress to encourage adaptation",
	RecoveryCycle:       "run a recovery cycle to restore coherence",
}

// #endregion descriptions

// #region report

// Report is what a handler returns after running an action.
type Report struct {
	Kind     Kind
	Status   string // "completed" | "aborted" | "noop"
	Detail   string
	Entropy  float64 // entropy after the action, 0 if unknown
	Duration time.Duration
}

// #endregion report
