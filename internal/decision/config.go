package decision

import "time"

// #region config

// Config holds the thresholds and scoring constants used by the Engine.
type Config struct {
	BaseThreshold    float64       `yaml:"base_threshold" validate:"gt=0,lt=1"`
	HysteresisRaise  float64       `yaml:"hysteresis_raise" validate:"gte=0,lt=1"`
	HysteresisWindow time.Duration `yaml:"hysteresis_window" validate:"gt=0"`
	RepeatLimit      int           `yaml:"repeat_limit" validate:"gte=1"`
	Scoring          ScoringConfig `yaml:"scoring"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		BaseThreshold:    0.15,
		HysteresisRaise:  0.02,
		HysteresisWindow: 300 * time.Second,
		RepeatLimit:      3,
		Scoring:          DefaultScoringConfig(),
	}
}

// #endregion config

// #region scoring-config

// ScoringConfig holds the piecewise scoring constants. Scores are on a
// 0..MaxScore scale; margins are entropy minus effective threshold.
type ScoringConfig struct {
	MaxScore float64 `yaml:"max_score" validate:"gt=0"`

	// Margin band edges shared by several rules.
	IgnoreBand     float64 `yaml:"ignore_band" validate:"gte=0"` // overshoot still ignorable
	ModerateMargin float64 `yaml:"moderate_margin" validate:"gtefield=IgnoreBand"`
	LargeMargin    float64 `yaml:"large_margin" validate:"gtefield=ModerateMargin"`

	IgnoreFull     float64 `yaml:"ignore_full" validate:"gte=0"`
	IgnoreSlight   float64 `yaml:"ignore_slight" validate:"gte=0"`
	IgnoreModerate float64 `yaml:"ignore_moderate" validate:"gte=0"`
	IgnoreFloor    float64 `yaml:"ignore_floor" validate:"gte=0"`

	WaitBase          float64       `yaml:"wait_base" validate:"gte=0"`
	WaitRecentBonus   float64       `yaml:"wait_recent_bonus" validate:"gte=0"`
	WaitLargePenalty  float64       `yaml:"wait_large_penalty" validate:"gte=0"`
	RecentWindow      time.Duration `yaml:"recent_window" validate:"gte=0"`
	GentleBase        float64       `yaml:"gentle_base" validate:"gte=0"`
	GentleBand        float64       `yaml:"gentle_band" validate:"gte=0"`
	GentleModerate    float64       `yaml:"gentle_moderate" validate:"gte=0"`
	GentleStableBonus float64       `yaml:"gentle_stable_bonus" validate:"gte=0"`
	StableCoherence   float64       `yaml:"stable_coherence" validate:"gte=0,lte=1"`

	// StressTest and RecoveryCycle ramp linearly across [RampStart, RampFull].
	RampStart     float64 `yaml:"ramp_start" validate:"gte=0"`
	RampFull      float64 `yaml:"ramp_full" validate:"gtfield=RampStart"`
	TinyOvershoot float64 `yaml:"tiny_overshoot" validate:"gte=0"`
	StressMin     float64 `yaml:"stress_min" validate:"gte=0"`
	StressMax     float64 `yaml:"stress_max" validate:"gtefield=StressMin"`
	RecoveryMin   float64 `yaml:"recovery_min" validate:"gte=0"`
	RecoveryMax   float64 `yaml:"recovery_max" validate:"gtefield=RecoveryMin"`

	RecoveryCoherenceFloor float64 `yaml:"recovery_coherence_floor" validate:"gte=0,lte=1"`

	RepetitionStep     float64 `yaml:"repetition_step" validate:"gte=0"`
	RepetitionCap      float64 `yaml:"repetition_cap" validate:"gte=0"`
	InterventionFactor float64 `yaml:"intervention_factor" validate:"gte=1"`
}

// DefaultScoringConfig returns the tuned scoring constants. RecoveryMax sits
// above StressMax so recovery wins a large overshoot on decayed coherence.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		MaxScore: 100,

		IgnoreBand:     0.005,
		ModerateMargin: 0.02,
		LargeMargin:    0.05,

		IgnoreFull:     90,
		IgnoreSlight:   65,
		IgnoreModerate: 40,
		IgnoreFloor:    15,

		WaitBase:          55,
		WaitRecentBonus:   25,
		WaitLargePenalty:  20,
		RecentWindow:      120 * time.Second,
		GentleBase:        30,
		GentleBand:        80,
		GentleModerate:    60,
		GentleStableBonus: 5,
		StableCoherence:   0.7,

		RampStart:     0.02,
		RampFull:      0.10,
		TinyOvershoot: 5,
		StressMin:     10,
		StressMax:     90,
		RecoveryMin:   15,
		RecoveryMax:   100,

		RecoveryCoherenceFloor: 0.6,

		RepetitionStep:     5,
		RepetitionCap:      15,
		InterventionFactor: 2,
	}
}

// #endregion scoring-config
