package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
	"github.com/danielpatrickdp/glyph-controller/internal/config"
	"github.com/danielpatrickdp/glyph-controller/internal/controller"
	"github.com/danielpatrickdp/glyph-controller/internal/signals"
)

// #region types
// Step is one recorded metric reading to replay.
type Step struct {
	ID        string
	Entropy   float64
	Coherence float64
	At        time.Time // recorded read time; zero means Start + i*Interval
}

// Options controls simulated time for a replay run.
type Options struct {
	Start    time.Time     // simulated time of the first step
	Interval time.Duration // simulated time between steps
	Logger   *zap.Logger
}

// DefaultOptions starts at the Unix epoch with 30s between steps.
func DefaultOptions() Options {
	return Options{Start: time.Unix(0, 0).UTC(), Interval: 30 * time.Second}
}

// Result is the controller's record for one replayed step.
type Result struct {
	StepID string
	Record controller.DecisionRecord
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalSteps int
	Kinds      map[action.Kind]int // by dispatched kind
	Dispatched int                 // interventions handed to a handler
	Downgrades int
	LoopBreaks int
	LongestRun int // longest run of identical selections
	MaxMargin  float64
}

// #endregion types

// #region replay
// Replay feeds steps through a real controller on a simulated clock.
// Intervention handlers are recorded but do nothing, so the decisions are
// exactly what the live loop would make for the same readings.
func Replay(steps []Step, cfg config.Config, opts Options) ([]Result, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultOptions().Interval
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var mu sync.Mutex
	now := opts.Start
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	next := 0
	source := signals.SourceFunc(func(context.Context) (signals.Snapshot, error) {
		if next >= len(steps) {
			return signals.Snapshot{}, errors.New("replay exhausted")
		}
		s := steps[next]
		next++
		return signals.Snapshot{Timestamp: clock(), Entropy: s.Entropy, Coherence: s.Coherence}, nil
	})

	reg := action.NewRegistry()
	record := action.HandlerFunc(func(kind action.Kind) (action.Report, error) {
		return action.Report{Kind: kind, Detail: "replayed"}, nil
	})
	for _, kind := range []action.Kind{action.GentleStabilization, action.StressTest, action.RecoveryCycle} {
		if err := reg.Register(kind, record); err != nil {
			return nil, err
		}
	}

	ctrl, err := controller.New(cfg, source, reg, controller.WithClock(clock), controller.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(steps))
	for i := range steps {
		if at := steps[i].At; !at.IsZero() {
			mu.Lock()
			now = at
			mu.Unlock()
		}
		rec, err := ctrl.Tick(context.Background())
		var herr *controller.ActionHandlerError
		if err != nil && !errors.As(err, &herr) {
			return results, fmt.Errorf("step %d (%s): %w", i, steps[i].ID, err)
		}
		results = append(results, Result{StepID: steps[i].ID, Record: rec})

		mu.Lock()
		now = now.Add(opts.Interval)
		mu.Unlock()
	}
	return results, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{TotalSteps: len(results), Kinds: make(map[action.Kind]int)}
	run := 0
	for i, r := range results {
		rec := r.Record
		s.Kinds[rec.Chosen]++
		if rec.Dispatched() {
			s.Dispatched++
		}
		if rec.Downgraded {
			s.Downgrades++
		}
		if rec.LoopBroken {
			s.LoopBreaks++
		}
		if i > 0 && rec.Selected == results[i-1].Record.Selected {
			run++
		} else {
			run = 1
		}
		s.LongestRun = max(s.LongestRun, run)
		if i == 0 || rec.Margin > s.MaxMargin {
			s.MaxMargin = rec.Margin
		}
	}
	return s
}

// #endregion replay
