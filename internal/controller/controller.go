package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
	"github.com/danielpatrickdp/glyph-controller/internal/config"
	"github.com/danielpatrickdp/glyph-controller/internal/decision"
	"github.com/danielpatrickdp/glyph-controller/internal/feed"
	"github.com/danielpatrickdp/glyph-controller/internal/gate"
	"github.com/danielpatrickdp/glyph-controller/internal/logging"
	"github.com/danielpatrickdp/glyph-controller/internal/signals"
	"github.com/danielpatrickdp/glyph-controller/internal/state"
	"github.com/danielpatrickdp/glyph-controller/internal/telemetry"
)

// Outcomes recorded on DecisionRecord.Outcome.
const (
	OutcomeCompleted = "completed"
	OutcomeNoop      = "noop"
	OutcomeAborted   = "aborted"
	OutcomeFailed    = "failed"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
)

// #region controller
// Controller runs the decide, gate, act and log cycle once per tick.
type Controller struct {
	config   config.Config
	source   signals.Source
	registry *action.Registry
	engine   *decision.Engine
	gate     *gate.CooldownGate

	store   *state.Store
	broker  *feed.Broker
	metrics *telemetry.Metrics
	logger  *zap.Logger
	now     func() time.Time

	tickMu sync.Mutex // serializes ticks
	mu     sync.RWMutex
	state  *State
}

// Option customizes a Controller.
type Option func(*Controller)

// WithStore persists snapshots, decisions, events and the checkpoint.
func WithStore(s *state.Store) Option { return func(c *Controller) { c.store = s } }

// WithBroker publishes every record to b.
func WithBroker(b *feed.Broker) Option { return func(c *Controller) { c.broker = b } }

// WithMetrics records Prometheus metrics.
func WithMetrics(m *telemetry.Metrics) Option { return func(c *Controller) { c.metrics = m } }

// WithLogger sets the zap logger.
func WithLogger(l *zap.Logger) Option { return func(c *Controller) { c.logger = l } }

// WithClock replaces time.Now for decision timestamps.
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// New validates cfg and the registry and builds a Controller. A missing
// handler for an intervention kind is a *config.ConfigurationError. With a
// store, the persisted checkpoint is restored so cooldown survives restarts.
func New(cfg config.Config, source signals.Source, registry *action.Registry, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, &config.ConfigurationError{Field: "source", Reason: "metric source is required"}
	}
	if registry == nil {
		registry = action.NewRegistry()
	}
	if missing := registry.Missing(); len(missing) > 0 {
		return nil, &config.ConfigurationError{
			Field:  "registry",
			Reason: fmt.Sprintf("no handler registered for intervention kinds %v", missing),
		}
	}

	c := &Controller{
		config:   cfg,
		source:   source,
		registry: registry,
		logger:   zap.NewNop(),
		now:      time.Now,
		state:    NewState(cfg.HistorySize),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("controller")
	c.engine = decision.NewEngine(cfg.Decision, c.logger)
	c.gate = gate.NewCooldownGate(cfg.Gate, c.logger)

	if c.store != nil {
		if err := c.restore(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Controller) restore() error {
	cp, ok, err := c.store.LoadCheckpoint()
	if err != nil {
		return fmt.Errorf("restore controller state: %w", err)
	}
	if !ok {
		last, err := c.store.LastIntervention()
		if err != nil {
			return fmt.Errorf("restore last intervention: %w", err)
		}
		cp = state.Checkpoint{LastIntervention: last}
	}
	c.state.Restore(cp)
	if ok || !cp.LastIntervention.IsZero() {
		c.logger.Info("restored controller state",
			zap.Int64("tick", cp.Tick),
			zap.String("last_kind", string(cp.LastKind)),
			zap.Int("consecutive_same", cp.ConsecutiveSame),
			zap.Time("last_intervention", cp.LastIntervention),
		)
	}
	return nil
}

// #endregion controller

// #region run
// Run ticks immediately and then every PollInterval until ctx is done.
// Recoverable errors are logged by Tick; only ctx.Err() is returned.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	c.logger.Info("controller started",
		zap.Duration("poll_interval", c.config.PollInterval),
		zap.Duration("cooldown", c.config.Gate.Cooldown),
		zap.Float64("base_threshold", c.config.Decision.BaseThreshold),
	)
	for {
		if _, err := c.Tick(ctx); err != nil && ctx.Err() != nil {
			return c.stopped(ctx)
		}
		select {
		case <-ctx.Done():
			return c.stopped(ctx)
		case <-ticker.C:
		}
	}
}

func (c *Controller) stopped(ctx context.Context) error {
	c.logger.Info("controller stopped", zap.Int64("ticks", c.Status().Tick))
	return ctx.Err()
}

// #endregion run

// #region tick
// Tick runs one full cycle. The returned error is the recoverable failure
// of this tick, if any (*MetricReadError or *ActionHandlerError); the record
// is still valid unless the tick was skipped. A cancelled ctx returns ctx.Err().
func (c *Controller) Tick(ctx context.Context) (DecisionRecord, error) {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	c.mu.RLock()
	st := *c.state
	c.mu.RUnlock()

	tick := st.Tick + 1
	now := c.now()

	// Deciding: read metrics.
	snap, readErr := c.source.Read(ctx)
	if readErr == nil {
		readErr = snap.Validate()
	}
	stale := false
	var tickErr error
	if readErr != nil {
		if err := ctx.Err(); err != nil {
			return DecisionRecord{}, err
		}
		prev, ok := st.History.Latest()
		mre := &MetricReadError{Tick: tick, Skipped: !ok, Err: readErr}
		c.metrics.ObserveMetricReadError()
		c.event(logging.EventEntry{Tick: tick, EventType: logging.EventMetricReadError, Detail: readErr.Error()})
		if !ok {
			c.logger.Warn("tick skipped: no snapshot available", zap.Int64("tick", tick), zap.Error(readErr))
			c.metrics.ObserveSkippedTick()
			c.event(logging.EventEntry{Tick: tick, EventType: logging.EventTickSkipped, Detail: readErr.Error()})
			c.mu.Lock()
			c.state.Tick = tick
			c.mu.Unlock()
			return DecisionRecord{}, mre
		}
		c.logger.Warn("metric read failed, reusing previous snapshot",
			zap.Int64("tick", tick),
			zap.Error(readErr),
			zap.Float64("entropy", prev.Entropy),
		)
		snap, stale, tickErr = prev, true, mre
	}

	lastCalm := st.LastCalmTime
	if !stale && c.engine.Hysteresis().IsCalm(snap.Entropy) {
		lastCalm = now
	}

	d := c.engine.Decide(decision.Inputs{
		Now:              now,
		Entropy:          snap.Entropy,
		Coherence:        snap.Coherence,
		LastIntervention: st.LastInterventionTime,
		LastCalm:         lastCalm,
		LastKind:         st.LastDecisionKind,
		RepetitionCount:  st.ConsecutiveSame,
	})

	// Gating.
	gd := c.gate.Check(d.Kind, now, st.LastInterventionTime)

	// Acting.
	lastIntervention := st.LastInterventionTime
	if gd.Action.IsIntervention() {
		lastIntervention = now
	}
	outcome, handlerErr := c.act(ctx, tick, gd.Action)
	if handlerErr != nil {
		tickErr = handlerErr
	}
	if outcome == OutcomeCancelled {
		tickErr = ctx.Err()
	}

	rec := DecisionRecord{
		ID:                 uuid.New().String(),
		Tick:               tick,
		Timestamp:          now,
		Entropy:            snap.Entropy,
		Coherence:          snap.Coherence,
		StaleSnapshot:      stale,
		Selected:           d.Kind,
		Chosen:             gd.Action,
		Score:              d.Score,
		EffectiveThreshold: d.Threshold.Effective,
		HysteresisRaised:   d.Threshold.Raised,
		Margin:             d.Margin,
		RepetitionCount:    d.RepetitionCount,
		Severity:           string(d.Severity),
		Pattern:            decision.AnalyzePattern(st.RecentSelections(5)),
		Rationale:          d.Rationale,
		LoopBroken:         d.LoopBroken,
		Downgraded:         gd.Downgraded,
		Outcome:            outcome,
	}
	if gd.Downgraded {
		rec.Rationale += "; " + gd.Message
	}
	if handlerErr != nil {
		rec.Error = handlerErr.Error()
	}

	// Logging.
	c.mu.Lock()
	c.state.Tick = tick
	if !stale {
		c.state.History.Push(snap)
	}
	c.state.LastCalmTime = lastCalm
	c.state.LastInterventionTime = lastIntervention
	c.state.LastDecisionKind = d.Kind
	c.state.ConsecutiveSame = d.RepetitionCount
	c.state.Append(rec)
	cp := c.state.Checkpoint()
	c.mu.Unlock()

	c.persist(rec, snap, stale, cp, d, handlerErr)
	c.metrics.ObserveDecision(rec)
	if c.broker != nil {
		c.broker.Publish(rec)
	}
	c.logger.Info("decision", DecisionFields(rec)...)
	return rec, tickErr
}

// #endregion tick

// #region act
type dispatchResult struct {
	report action.Report
	err    error
}

// act dispatches kind and maps the result to an outcome. The handler runs
// on its own goroutine; the controller waits at most ActionTimeout, or until
// ctx is done. The handler itself is never cancelled.
func (c *Controller) act(ctx context.Context, tick int64, kind action.Kind) (string, error) {
	h, ok := c.registry.Handler(kind)
	if !ok {
		// New rejects registries missing intervention handlers.
		return OutcomeFailed, &ActionHandlerError{Tick: tick, Kind: kind, Err: errors.New("no handler registered")}
	}

	done := make(chan dispatchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- dispatchResult{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		report, err := h.Invoke(kind)
		done <- dispatchResult{report: report, err: err}
	}()

	timer := time.NewTimer(c.config.ActionTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err == nil {
			return outcomeOf(res.report.Status), nil
		}
		herr := &ActionHandlerError{Tick: tick, Kind: kind, Err: res.err}
		if errors.Is(res.err, action.ErrAborted) {
			c.logger.Warn("action aborted by handler", zap.Int64("tick", tick), zap.String("kind", string(kind)), zap.Error(res.err))
			c.metrics.ObserveHandlerError(string(kind), OutcomeAborted)
			return OutcomeAborted, herr
		}
		c.logger.Error("action handler failed", zap.Int64("tick", tick), zap.String("kind", string(kind)), zap.Error(res.err))
		c.metrics.ObserveHandlerError(string(kind), OutcomeFailed)
		return OutcomeFailed, herr
	case <-timer.C:
		herr := &ActionHandlerError{Tick: tick, Kind: kind, Err: &ActionTimeoutError{Kind: kind, Timeout: c.config.ActionTimeout}}
		c.logger.Error("action timed out",
			zap.Int64("tick", tick),
			zap.String("kind", string(kind)),
			zap.Duration("timeout", c.config.ActionTimeout),
		)
		c.metrics.ObserveHandlerError(string(kind), OutcomeTimeout)
		return OutcomeTimeout, herr
	case <-ctx.Done():
		c.logger.Warn("stopped waiting for action, handler left running",
			zap.Int64("tick", tick),
			zap.String("kind", string(kind)),
			zap.Error(ctx.Err()),
		)
		return OutcomeCancelled, nil
	}
}

// outcomeOf maps a handler's report status onto the recorded outcomes.
// Unknown statuses count as completed.
func outcomeOf(status string) string {
	switch status {
	case OutcomeNoop, OutcomeAborted:
		return status
	}
	return OutcomeCompleted
}

// #endregion act

// #region persist
func (c *Controller) persist(rec DecisionRecord, snap signals.Snapshot, stale bool, cp state.Checkpoint, d decision.Decision, handlerErr error) {
	if c.store == nil {
		return
	}
	if !stale {
		if err := c.store.RecordSnapshot(rec.Tick, snap); err != nil {
			c.logger.Warn("persist snapshot failed", zap.Int64("tick", rec.Tick), zap.Error(err))
		}
	}
	if _, err := c.store.RecordDecision(rec); err != nil {
		c.logger.Warn("persist decision failed", zap.Int64("tick", rec.Tick), zap.Error(err))
	}
	if err := c.store.SaveCheckpoint(cp); err != nil {
		c.logger.Warn("persist checkpoint failed", zap.Int64("tick", rec.Tick), zap.Error(err))
	}

	base := logging.EventEntry{DecisionID: rec.ID, Tick: rec.Tick, ContextJSON: decisionContext(rec)}
	if d.LoopBroken {
		e := base
		e.EventType = logging.EventLoopBroken
		e.Kind = string(d.BrokenFrom)
		e.Detail = fmt.Sprintf("loop broken: switched from %s to %s", d.BrokenFrom, d.Kind)
		c.event(e)
	}
	if rec.Downgraded {
		e := base
		e.EventType = logging.EventDowngrade
		e.Kind = string(rec.Selected)
		e.Detail = fmt.Sprintf("%s downgraded to %s by cooldown", rec.Selected, rec.Chosen)
		c.event(e)
	}
	if handlerErr != nil {
		e := base
		e.EventType = logging.EventActionError
		if errors.Is(handlerErr, ErrActionTimeout) {
			e.EventType = logging.EventActionTimeout
		}
		e.Kind = string(rec.Chosen)
		e.Detail = handlerErr.Error()
		c.event(e)
	}
}

// event writes a provenance row when a store is attached.
func (c *Controller) event(e logging.EventEntry) {
	if c.store == nil {
		return
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = c.now()
	}
	if err := logging.LogEvent(c.store.DB(), e); err != nil {
		c.logger.Warn("provenance event failed", zap.String("event_type", string(e.EventType)), zap.Error(err))
	}
}

func decisionContext(rec DecisionRecord) string {
	b, err := json.Marshal(map[string]any{
		"margin":              rec.Margin,
		"effective_threshold": rec.EffectiveThreshold,
		"repetition_count":    rec.RepetitionCount,
		"entropy":             rec.Entropy,
	})
	if err != nil {
		return ""
	}
	return string(b)
}

// #endregion persist

// #region status
// Status is a point-in-time summary of the controller.
type Status struct {
	Tick                  int64           `json:"tick"`
	LastDecision          *DecisionRecord `json:"last_decision,omitempty"`
	LastDecisionKind      action.Kind     `json:"last_decision_kind,omitempty"`
	ConsecutiveSame       int             `json:"consecutive_same"`
	LastInterventionTime  time.Time       `json:"last_intervention_time"`
	SinceLastIntervention time.Duration   `json:"since_last_intervention"` // -1 when none
	CooldownRemaining     time.Duration   `json:"cooldown_remaining"`
	EffectiveThreshold    float64         `json:"effective_threshold"`
	Pattern               string          `json:"pattern"`
	History               signals.Stats   `json:"history"`
}

// Status reports the current state. Safe to call while Run is active.
func (c *Controller) Status() Status {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Status{
		Tick:                  c.state.Tick,
		LastDecisionKind:      c.state.LastDecisionKind,
		ConsecutiveSame:       c.state.ConsecutiveSame,
		LastInterventionTime:  c.state.LastInterventionTime,
		SinceLastIntervention: -1,
		EffectiveThreshold:    c.engine.Hysteresis().Effective(now, c.state.LastInterventionTime, c.state.LastCalmTime).Effective,
		Pattern:               decision.AnalyzePattern(c.state.RecentSelections(5)),
		History:               c.state.History.Stats(),
	}
	if last, ok := c.state.Last(); ok {
		s.LastDecision = &last
	}
	if !c.state.LastInterventionTime.IsZero() {
		s.SinceLastIntervention = now.Sub(c.state.LastInterventionTime)
		if rem := c.gate.Cooldown() - s.SinceLastIntervention; rem > 0 {
			s.CooldownRemaining = rem
		}
	}
	return s
}

// #endregion status
