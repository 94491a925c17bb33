package glyph

import "time"

// #region glyph

// Type classifies a glyph. Anchors and the consent glyph are never touched
// by recovery; the consent glyph is never stressed.
type Type string

const (
	Anchor  Type = "anchor"
	Consent Type = "consent"
	Dynamic Type = "dynamic"
)

// Glyph is one named scalar state variable. GSI is its stability in [0, 1].
type Glyph struct {
	Name        string   `json:"name"`
	Type        Type     `json:"type"`
	GSI         float64  `json:"gsi"`
	Connections []string `json:"connections,omitempty"`
}

// #endregion glyph

// #region config

// Config tunes the simulated glyph network.
type Config struct {
	Seed              int64         `yaml:"seed"`
	DynamicGlyphs     int           `yaml:"dynamic_glyphs" validate:"gte=0"`
	Drift             float64       `yaml:"drift" validate:"gte=0,lte=1"`
	AdaptationRate    float64       `yaml:"adaptation_rate" validate:"gt=0,lte=1"`
	EntropyLimit      float64       `yaml:"entropy_limit" validate:"gt=0,lte=1"`
	MandatoryRecovery time.Duration `yaml:"mandatory_recovery" validate:"gte=0"`
	StressIntensity   float64       `yaml:"stress_intensity" validate:"gte=0,lte=1"`
	StressCycles      int           `yaml:"stress_cycles" validate:"gte=1"`
	RecoveryCycles    int           `yaml:"recovery_cycles" validate:"gte=1"`
	GentleStep        float64       `yaml:"gentle_step" validate:"gt=0,lte=0.5"`
}

// DefaultConfig returns the simulation defaults.
func DefaultConfig() Config {
	return Config{
		Seed:              1,
		DynamicGlyphs:     5,
		Drift:             0.02,
		AdaptationRate:    0.1,
		EntropyLimit:      0.15,
		MandatoryRecovery: 10 * time.Second,
		StressIntensity:   0.5,
		StressCycles:      100,
		RecoveryCycles:    50,
		GentleStep:        0.01,
	}
}

// #endregion config

// anchors seed every engine.
var anchors = []struct {
	name string
	gsi  float64
}{
	{"RootVerse", 0.87},
	{"Aegis", 0.85},
	{"CoreStability", 0.82},
}

const (
	consentName        = "ConsentGlyph"
	consentGSI         = 0.95
	connectionMin      = 0.6
	stressRaiseAbove   = 0.3
	stressTargets      = 3
	connectionAttempts = 5
	connectEvery       = 20
	recoveryStepMin    = 0.01
	recoveryStepMax    = 0.03
)
