package gate

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
	"go.uber.org/zap"
)

// #region gate
// CooldownGate rate-limits intervention-class actions regardless of what
// the decision engine selected. Downgrades are never silent: the kind is
// replaced by WaitAndMonitor and logged.
type CooldownGate struct {
	config Config
	logger *zap.Logger
}

// NewCooldownGate creates a gate. logger may be nil.
func NewCooldownGate(config Config, logger *zap.Logger) *CooldownGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CooldownGate{config: config, logger: logger.Named("gate")}
}

// Cooldown returns the configured cooldown.
func (g *CooldownGate) Cooldown() time.Duration {
	return g.config.Cooldown
}

// Check decides whether kind may be dispatched at now given the time of the
// last dispatched intervention (zero if none).
func (g *CooldownGate) Check(kind action.Kind, now, lastIntervention time.Time) GateDecision {
	pass := GateDecision{
		Requested: kind,
		Action:    kind,
		Message:   fmt.Sprintf("passed gate: %s", kind),
	}
	if !kind.IsIntervention() || lastIntervention.IsZero() {
		return pass
	}

	elapsed := now.Sub(lastIntervention)
	if elapsed >= g.config.Cooldown {
		return pass
	}

	remaining := g.config.Cooldown - elapsed
	msg := fmt.Sprintf("cooldown: %s downgraded to %s, %.1fs remaining",
		kind, action.WaitAndMonitor, remaining.Seconds())
	g.logger.Warn("intervention downgraded",
		zap.String("requested", string(kind)),
		zap.String("dispatched", string(action.WaitAndMonitor)),
		zap.Duration("remaining", remaining),
		zap.Duration("cooldown", g.config.Cooldown),
	)
	return GateDecision{
		Requested:  kind,
		Action:     action.WaitAndMonitor,
		Downgraded: true,
		Reason:     ReasonCooldown,
		Remaining:  remaining,
		Message:    msg,
	}
}

// #endregion gate
