package signals

import "gonum.org/v1/gonum/stat"

// #region history

// History is a bounded, insertion-ordered buffer of the most recent snapshots.
// It is not safe for concurrent use; the controller owns it.
type History struct {
	buf   []Snapshot
	start int
	size  int
}

// NewHistory creates a History that retains at most capacity snapshots.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]Snapshot, capacity)}
}

// Push appends s, evicting the oldest snapshot when full.
func (h *History) Push(s Snapshot) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = s
		h.size++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// Latest returns the most recent snapshot.
func (h *History) Latest() (Snapshot, bool) {
	if h.size == 0 {
		return Snapshot{}, false
	}
	return h.buf[(h.start+h.size-1)%len(h.buf)], true
}

// Len returns the number of retained snapshots.
func (h *History) Len() int { return h.size }

// Cap returns the retention limit.
func (h *History) Cap() int { return len(h.buf) }

// Snapshots returns the retained snapshots, oldest first.
func (h *History) Snapshots() []Snapshot {
	out := make([]Snapshot, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// #endregion history

// #region stats

// Stats summarises the retained history.
type Stats struct {
	Count         int     `json:"count"`
	EntropyMean   float64 `json:"entropy_mean"`
	EntropyStdDev float64 `json:"entropy_stddev"`
	EntropyMin    float64 `json:"entropy_min"`
	EntropyMax    float64 `json:"entropy_max"`
	CoherenceMean float64 `json:"coherence_mean"`
}

// Stats computes summary statistics. Std-dev is 0 with fewer than two samples.
func (h *History) Stats() Stats {
	snaps := h.Snapshots()
	st := Stats{Count: len(snaps)}
	if len(snaps) == 0 {
		return st
	}
	entropies := make([]float64, len(snaps))
	coherences := make([]float64, len(snaps))
	st.EntropyMin, st.EntropyMax = snaps[0].Entropy, snaps[0].Entropy
	for i, s := range snaps {
		entropies[i] = s.Entropy
		coherences[i] = s.Coherence
		if s.Entropy < st.EntropyMin {
			st.EntropyMin = s.Entropy
		}
		if s.Entropy > st.EntropyMax {
			st.EntropyMax = s.Entropy
		}
	}
	if len(snaps) > 1 {
		st.EntropyMean, st.EntropyStdDev = stat.MeanStdDev(entropies, nil)
	} else {
		st.EntropyMean = entropies[0]
	}
	st.CoherenceMean = stat.Mean(coherences, nil)
	return st
}

// #endregion stats
