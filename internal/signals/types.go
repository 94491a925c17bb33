package signals

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// #region snapshot

// Snapshot is one reading of the monitored system's aggregate metrics.
// Entropy and Coherence are both in [0, 1].
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Entropy   float64   `json:"entropy"`
	Coherence float64   `json:"coherence"`
}

// ErrOutOfRange reports a snapshot metric that is NaN or outside [0, 1].
var ErrOutOfRange = errors.New("snapshot metric out of range")

// Validate returns an error wrapping ErrOutOfRange when either metric is
// NaN or outside [0, 1].
func (s Snapshot) Validate() error {
	for _, m := range []struct {
		name string
		v    float64
	}{{"entropy", s.Entropy}, {"coherence", s.Coherence}} {
		if math.IsNaN(m.v) || m.v < 0 || m.v > 1 {
			return fmt.Errorf("%w: %s=%v", ErrOutOfRange, m.name, m.v)
		}
	}
	return nil
}

// #endregion snapshot

// #region source

// Source produces the latest Snapshot. Implementations are supplied by the
// host (a simulated system, an instrumentation layer, a remote service).
type Source interface {
	Read(ctx context.Context) (Snapshot, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Snapshot, error)

// Read calls f(ctx).
func (f SourceFunc) Read(ctx context.Context) (Snapshot, error) {
	return f(ctx)
}

// #endregion source

// #region config

// ProducerConfig holds the weights used to aggregate per-glyph stability
// values into entropy and coherence.
type ProducerConfig struct {
	EntropyScale     float64 // entropy = min(1, EntropyScale * popstddev)
	StabilityWeight  float64 // weight of mean stability in coherence
	ConnectionWeight float64 // weight of connection density in coherence
	ConnectionsPer   float64 // connections per glyph that count as fully connected
}

// DefaultProducerConfig returns the weights used by the glyph simulation.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		EntropyScale:     2.0,
		StabilityWeight:  0.7,
		ConnectionWeight: 0.3,
		ConnectionsPer:   2.0,
	}
}

// #endregion config
