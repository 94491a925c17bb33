package glyph

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
	"github.com/danielpatrickdp/glyph-controller/internal/signals"
)

// #region engine

// Engine simulates a glyph network. It is a signals.Source and provides
// handlers for the three active kinds. Handlers may still be running when
// the controller reads the next snapshot, so all access is serialized.
type Engine struct {
	mu         sync.Mutex
	config     Config
	rng        *rand.Rand
	glyphs     []*Glyph
	index      map[string]*Glyph
	producer   *signals.Producer
	now        func() time.Time
	lastStress time.Time
	logger     *zap.Logger
}

// NewEngine seeds anchors, the consent glyph and config.DynamicGlyphs
// dynamic glyphs with GSI drawn from [0.3, 0.7).
func NewEngine(config Config, logger *zap.Logger, now func() time.Time) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	seed := uint64(config.Seed)
	e := &Engine{
		config:   config,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		index:    make(map[string]*Glyph),
		producer: signals.NewProducer(signals.DefaultProducerConfig(), now),
		now:      now,
		logger:   logger.Named("glyph"),
	}
	for _, a := range anchors {
		e.add(a.name, a.gsi, Anchor)
	}
	e.add(consentName, consentGSI, Consent)
	for i := 0; i < config.DynamicGlyphs; i++ {
		e.add(fmt.Sprintf("glyph-%02d", i+1), 0.3+0.4*e.rng.Float64(), Dynamic)
	}
	return e
}

// AddGlyph adds a named glyph. Names are unique.
func (e *Engine) AddGlyph(name string, gsi float64, typ Type) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.index[name]; ok {
		return fmt.Errorf("glyph %q already exists", name)
	}
	e.add(name, signals.Clamp(gsi), typ)
	return nil
}

func (e *Engine) add(name string, gsi float64, typ Type) {
	g := &Glyph{Name: name, Type: typ, GSI: gsi}
	e.glyphs = append(e.glyphs, g)
	e.index[name] = g
}

// Glyphs returns a copy of the network in insertion order.
func (e *Engine) Glyphs() []Glyph {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Glyph, len(e.glyphs))
	for i, g := range e.glyphs {
		out[i] = *g
		out[i].Connections = append([]string(nil), g.Connections...)
	}
	return out
}

// #endregion engine

// #region source

// Read applies one step of random drift to dynamic glyphs and returns the
// resulting snapshot.
func (e *Engine) Read(ctx context.Context) (signals.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return signals.Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.config.Drift > 0 {
		for _, g := range e.glyphs {
			if g.Type == Dynamic {
				g.GSI = signals.Clamp(g.GSI + e.config.Drift*(2*e.rng.Float64()-1))
			}
		}
	}
	return e.snapshot(), nil
}

// Snapshot returns the current metrics without drifting.
func (e *Engine) Snapshot() signals.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

func (e *Engine) snapshot() signals.Snapshot {
	values := make([]float64, len(e.glyphs))
	connections := 0
	for i, g := range e.glyphs {
		values[i] = g.GSI
		connections += len(g.Connections)
	}
	return e.producer.Produce(values, connections)
}

// #endregion source

// #region consent

// RequestConsent applies the consent rule for stress tests: entropy must be
// within the limit and the mandatory recovery time since the last stress
// test must have elapsed. A refusal wraps action.ErrAborted.
func (e *Engine) RequestConsent() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requestConsent()
}

func (e *Engine) requestConsent() error {
	entropy := e.snapshot().Entropy
	if entropy > e.config.EntropyLimit {
		return fmt.Errorf("%w: consent denied, entropy %.3f above limit %.3f",
			action.ErrAborted, entropy, e.config.EntropyLimit)
	}
	if !e.lastStress.IsZero() {
		since := e.now().Sub(e.lastStress)
		if since < e.config.MandatoryRecovery {
			return fmt.Errorf("%w: consent denied, recovery period %.1fs remaining",
				action.ErrAborted, (e.config.MandatoryRecovery - since).Seconds())
		}
	}
	return nil
}

// #endregion consent

// #region actions

// StressTest stresses up to three random non-consent glyphs per cycle and
// periodically attempts new connections.
func (e *Engine) StressTest() (action.Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.now()
	if err := e.requestConsent(); err != nil {
		e.logger.Warn("stress test refused", zap.Error(err))
		return action.Report{Kind: action.StressTest, Status: "aborted", Detail: err.Error()}, err
	}

	before := e.snapshot()
	eligible := make([]*Glyph, 0, len(e.glyphs))
	for _, g := range e.glyphs {
		if g.Type != Consent {
			eligible = append(eligible, g)
		}
	}
	for cycle := 0; cycle < e.config.StressCycles; cycle++ {
		for _, g := range e.sample(eligible, stressTargets) {
			e.stress(g, e.config.StressIntensity)
		}
		if cycle%connectEvery == 0 {
			e.connect()
		}
	}
	e.lastStress = e.now()
	after := e.snapshot()

	e.logger.Info("stress test completed",
		zap.Float64("coherence_before", before.Coherence),
		zap.Float64("coherence_after", after.Coherence),
		zap.Float64("entropy_after", after.Entropy),
	)
	return action.Report{
		Kind:     action.StressTest,
		Status:   "completed",
		Detail:   fmt.Sprintf("antifragile=%t coherence %.3f->%.3f", after.Coherence > before.Coherence, before.Coherence, after.Coherence),
		Entropy:  after.Entropy,
		Duration: e.now().Sub(start),
	}, nil
}

// RecoveryCycle raises every dynamic glyph by a small random step per cycle.
func (e *Engine) RecoveryCycle() (action.Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.now()
	for cycle := 0; cycle < e.config.RecoveryCycles; cycle++ {
		for _, g := range e.glyphs {
			if g.Type == Anchor || g.Type == Consent {
				continue
			}
			step := recoveryStepMin + (recoveryStepMax-recoveryStepMin)*e.rng.Float64()
			g.GSI = math.Min(1, g.GSI+step)
		}
	}
	after := e.snapshot()
	effectiveness := "partial"
	if after.Entropy < 0.1 {
		effectiveness = "complete"
	}
	e.logger.Info("recovery cycle completed",
		zap.Float64("entropy_after", after.Entropy),
		zap.String("effectiveness", effectiveness),
	)
	return action.Report{
		Kind:     action.RecoveryCycle,
		Status:   "completed",
		Detail:   "recovery " + effectiveness,
		Entropy:  after.Entropy,
		Duration: e.now().Sub(start),
	}, nil
}

// GentleStabilization nudges dynamic glyphs one step toward 0.5.
func (e *Engine) GentleStabilization() (action.Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := e.now()
	moved := 0
	for _, g := range e.glyphs {
		if g.Type != Dynamic {
			continue
		}
		old := g.GSI
		if g.GSI > 0.5 {
			g.GSI = math.Max(0.5, g.GSI-e.config.GentleStep)
		} else {
			g.GSI = math.Min(0.5, g.GSI+e.config.GentleStep)
		}
		if math.Abs(g.GSI-old) > 0.001 {
			moved++
		}
	}
	after := e.snapshot()
	return action.Report{
		Kind:     action.GentleStabilization,
		Status:   "completed",
		Detail:   fmt.Sprintf("%d glyphs moved toward 0.5", moved),
		Entropy:  after.Entropy,
		Duration: e.now().Sub(start),
	}, nil
}

// Register binds the engine's handlers into reg.
func (e *Engine) Register(reg *action.Registry) error {
	handlers := map[action.Kind]func() (action.Report, error){
		action.StressTest:          e.StressTest,
		action.RecoveryCycle:       e.RecoveryCycle,
		action.GentleStabilization: e.GentleStabilization,
	}
	for kind, fn := range handlers {
		if err := reg.Register(kind, action.HandlerFunc(func(action.Kind) (action.Report, error) {
			return fn()
		})); err != nil {
			return err
		}
	}
	return nil
}

// #endregion actions

// #region helpers

func (e *Engine) stress(g *Glyph, level float64) {
	adaptation := level * e.config.AdaptationRate
	if level > stressRaiseAbove {
		g.GSI = math.Min(1, g.GSI+adaptation)
	} else {
		g.GSI = math.Max(0, g.GSI-adaptation)
	}
}

func (e *Engine) connect() {
	if len(e.glyphs) < 2 {
		return
	}
	attempts := min(connectionAttempts, len(e.glyphs))
	for i := 0; i < attempts; i++ {
		pair := e.sample(e.glyphs, 2)
		a, b := pair[0], pair[1]
		if (a.GSI+b.GSI)/2 > connectionMin {
			a.Connections = append(a.Connections, b.Name)
		}
	}
}

// sample returns up to n distinct elements of gs.
func (e *Engine) sample(gs []*Glyph, n int) []*Glyph {
	if n > len(gs) {
		n = len(gs)
	}
	perm := e.rng.Perm(len(gs))
	out := make([]*Glyph, n)
	for i := 0; i < n; i++ {
		out[i] = gs[perm[i]]
	}
	return out
}

// #endregion helpers
