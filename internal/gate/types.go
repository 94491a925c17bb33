package gate

import (
	"time"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
)

// #region downgrade-reason
// DowngradeReason enumerates why the gate replaced the requested kind.
type DowngradeReason string

const (
	ReasonNone     DowngradeReason = ""
	ReasonCooldown DowngradeReason = "cooldown"
)

// #endregion downgrade-reason

// #region gate-config
// Config holds the cooldown applied to intervention-class actions.
type Config struct {
	Cooldown time.Duration `yaml:"cooldown" validate:"gt=0"`
}

// DefaultConfig returns a 60s cooldown.
func DefaultConfig() Config {
	return Config{Cooldown: 60 * time.Second}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the cooldown check.
type GateDecision struct {
	Requested  action.Kind
	Action     action.Kind // kind to dispatch; WaitAndMonitor when downgraded
	Downgraded bool
	Reason     DowngradeReason
	Remaining  time.Duration // cooldown left when downgraded
	Message    string
}

// #endregion gate-decision
