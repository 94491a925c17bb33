package signals

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// #region producer

// Producer turns raw per-glyph stability values into a Snapshot.
type Producer struct {
	config ProducerConfig
	now    func() time.Time
}

// NewProducer creates a Producer. now may be nil (defaults to time.Now).
func NewProducer(config ProducerConfig, now func() time.Time) *Producer {
	if now == nil {
		now = time.Now
	}
	return &Producer{config: config, now: now}
}

// #endregion producer

// #region produce

// Produce computes entropy and coherence from stability values and the
// total number of connections between glyphs. An empty system is maximally
// dispersed and has no coherence.
func (p *Producer) Produce(values []float64, connections int) Snapshot {
	snap := Snapshot{Timestamp: p.now().UTC()}
	if len(values) == 0 {
		snap.Entropy = 1
		return snap
	}
	snap.Entropy = p.entropy(values)
	snap.Coherence = p.coherence(values, connections)
	return snap
}

// #endregion produce

// #region entropy

// entropy is the scaled population standard deviation of the values.
func (p *Producer) entropy(values []float64) float64 {
	sd := stat.PopStdDev(values, nil)
	return Clamp(p.config.EntropyScale * sd)
}

// #endregion entropy

// #region coherence

// coherence blends mean stability with connection density.
func (p *Producer) coherence(values []float64, connections int) float64 {
	mean := stat.Mean(values, nil)
	per := p.config.ConnectionsPer
	if per <= 0 {
		per = 1
	}
	density := math.Min(1, float64(connections)/(float64(len(values))*per))
	return Clamp(p.config.StabilityWeight*mean + p.config.ConnectionWeight*density)
}

// #endregion coherence

// #region helpers

// Clamp bounds v to [0, 1]. NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// #endregion helpers
