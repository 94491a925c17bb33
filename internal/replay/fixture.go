package replay

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
	"github.com/danielpatrickdp/glyph-controller/internal/config"
)

// #region fixture-types

// Fixture is a recorded entropy sequence with the kinds the controller is
// expected to dispatch. Fixtures are YAML; JSON files parse as well.
type Fixture struct {
	Description string          `yaml:"description"`
	Interval    time.Duration   `yaml:"interval,omitempty"`
	Coherence   float64         `yaml:"coherence"` // default for steps without one
	Config      FixtureConfig   `yaml:"config,omitempty"`
	Steps       []FixtureStep   `yaml:"steps"`
	Expected    []FixtureExpect `yaml:"expected,omitempty"`
}

// FixtureStep is one reading. Coherence falls back to Fixture.Coherence;
// a set At pins the simulated clock for the step.
type FixtureStep struct {
	ID        string    `yaml:"id"`
	Entropy   float64   `yaml:"entropy"`
	Coherence *float64  `yaml:"coherence,omitempty"`
	At        time.Time `yaml:"at,omitempty"`
}

// FixtureExpect names the kind expected for a step. Selected is optional;
// Chosen is the dispatched kind.
type FixtureExpect struct {
	ID       string `yaml:"id"`
	Chosen   string `yaml:"chosen"`
	Selected string `yaml:"selected,omitempty"`
}

// FixtureConfig overrides a subset of the controller defaults.
type FixtureConfig struct {
	BaseThreshold   *float64       `yaml:"base_threshold,omitempty"`
	HysteresisRaise *float64       `yaml:"hysteresis_raise,omitempty"`
	RepeatLimit     *int           `yaml:"repeat_limit,omitempty"`
	Cooldown        *time.Duration `yaml:"cooldown,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as YAML.
func WriteFixture(path string, f *Fixture) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

func (f *Fixture) validate() error {
	if len(f.Steps) == 0 {
		return fmt.Errorf("no steps")
	}
	if len(f.Expected) > 0 && len(f.Expected) != len(f.Steps) {
		return fmt.Errorf("%d expectations for %d steps", len(f.Expected), len(f.Steps))
	}
	for i, e := range f.Expected {
		if _, ok := action.ParseKind(e.Chosen); !ok {
			return fmt.Errorf("expected[%d]: unknown kind %q", i, e.Chosen)
		}
		if e.Selected != "" {
			if _, ok := action.ParseKind(e.Selected); !ok {
				return fmt.Errorf("expected[%d]: unknown kind %q", i, e.Selected)
			}
		}
	}
	return nil
}

// ControllerConfig applies the fixture overrides to base.
func (f *Fixture) ControllerConfig(base config.Config) config.Config {
	cfg := base
	if v := f.Config.BaseThreshold; v != nil {
		cfg.Decision.BaseThreshold = *v
	}
	if v := f.Config.HysteresisRaise; v != nil {
		cfg.Decision.HysteresisRaise = *v
	}
	if v := f.Config.RepeatLimit; v != nil {
		cfg.Decision.RepeatLimit = *v
	}
	if v := f.Config.Cooldown; v != nil {
		cfg.Gate.Cooldown = *v
	}
	return cfg
}

// ToSteps converts fixture steps, filling default coherence and IDs.
func (f *Fixture) ToSteps() []Step {
	steps := make([]Step, len(f.Steps))
	for i, fs := range f.Steps {
		coherence := f.Coherence
		if fs.Coherence != nil {
			coherence = *fs.Coherence
		}
		id := fs.ID
		if id == "" {
			id = fmt.Sprintf("step-%d", i+1)
		}
		steps[i] = Step{ID: id, Entropy: fs.Entropy, Coherence: coherence, At: fs.At}
	}
	return steps
}

// #endregion fixture-loader

// #region run-fixture

// Mismatch is a step whose replayed kind differs from the expectation.
type Mismatch struct {
	StepID   string
	Field    string // "chosen" | "selected"
	Expected action.Kind
	Actual   action.Kind
	Reason   string
}

// Report is the outcome of running a fixture.
type Report struct {
	Results    []Result
	Summary    Summary
	Mismatches []Mismatch
}

// Passed reports whether every expectation matched.
func (r Report) Passed() bool { return len(r.Mismatches) == 0 }

// RunFixture replays f on base (with the fixture's overrides) and compares
// against its expectations.
func RunFixture(f *Fixture, base config.Config, opts Options) (Report, error) {
	if f.Interval > 0 {
		opts.Interval = f.Interval
	}
	steps := f.ToSteps()
	results, err := Replay(steps, f.ControllerConfig(base), opts)
	if err != nil {
		return Report{}, err
	}
	report := Report{Results: results, Summary: Summarize(results)}
	for i, exp := range f.Expected {
		rec := results[i].Record
		if want := action.Kind(exp.Chosen); rec.Chosen != want {
			report.Mismatches = append(report.Mismatches, Mismatch{
				StepID: steps[i].ID, Field: "chosen", Expected: want, Actual: rec.Chosen, Reason: rec.Rationale,
			})
		}
		if exp.Selected == "" {
			continue
		}
		if want := action.Kind(exp.Selected); rec.Selected != want {
			report.Mismatches = append(report.Mismatches, Mismatch{
				StepID: steps[i].ID, Field: "selected", Expected: want, Actual: rec.Selected, Reason: rec.Rationale,
			})
		}
	}
	return report, nil
}

// #endregion run-fixture
