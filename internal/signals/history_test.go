package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_EmptyLatest(t *testing.T) {
	h := NewHistory(3)
	_, ok := h.Latest()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, Stats{}, h.Stats())
}

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Push(Snapshot{Entropy: float64(i) / 10})
	}
	require.Equal(t, 3, h.Len())
	snaps := h.Snapshots()
	assert.InDelta(t, 0.3, snaps[0].Entropy, 1e-12)
	assert.InDelta(t, 0.4, snaps[1].Entropy, 1e-12)
	assert.InDelta(t, 0.5, snaps[2].Entropy, 1e-12)

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.InDelta(t, 0.5, latest.Entropy, 1e-12)
}

func TestHistory_MinimumCapacity(t *testing.T) {
	h := NewHistory(0)
	assert.Equal(t, 1, h.Cap())
	h.Push(Snapshot{Entropy: 0.1})
	h.Push(Snapshot{Entropy: 0.2})
	assert.Equal(t, 1, h.Len())
}

func TestHistory_Stats(t *testing.T) {
	h := NewHistory(10)
	h.Push(Snapshot{Entropy: 0.1, Coherence: 0.9})
	h.Push(Snapshot{Entropy: 0.3, Coherence: 0.7})

	st := h.Stats()
	assert.Equal(t, 2, st.Count)
	assert.InDelta(t, 0.2, st.EntropyMean, 1e-12)
	assert.InDelta(t, 0.1, st.EntropyMin, 1e-12)
	assert.InDelta(t, 0.3, st.EntropyMax, 1e-12)
	assert.InDelta(t, 0.8, st.CoherenceMean, 1e-12)
	// sample std-dev of {0.1, 0.3}
	assert.InDelta(t, 0.1414213562, st.EntropyStdDev, 1e-9)
}

func TestHistory_SingleSampleStats(t *testing.T) {
	h := NewHistory(4)
	h.Push(Snapshot{Entropy: 0.4, Coherence: 0.5})
	st := h.Stats()
	assert.InDelta(t, 0.4, st.EntropyMean, 1e-12)
	assert.Equal(t, 0.0, st.EntropyStdDev)
}
