package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestHysteresis_NoInterventionUsesBase(t *testing.T) {
	h := NewHysteresis(DefaultConfig())
	th := h.Effective(t0, time.Time{}, time.Time{})
	assert.False(t, th.Raised)
	assert.Equal(t, 0.15, th.Effective)
	assert.Equal(t, 0.15, th.Base)
}

func TestHysteresis_RaisedAfterIntervention(t *testing.T) {
	h := NewHysteresis(DefaultConfig())
	th := h.Effective(t0, t0.Add(-10*time.Second), time.Time{})
	assert.True(t, th.Raised)
	assert.InDelta(t, 0.17, th.Effective, 1e-12)
}

func TestHysteresis_CalmTickReleasesRaise(t *testing.T) {
	h := NewHysteresis(DefaultConfig())
	last := t0.Add(-60 * time.Second)

	// calm before the intervention does not count
	th := h.Effective(t0, last, last.Add(-time.Second))
	assert.True(t, th.Raised)

	// calm at the intervention tick does not count either
	th = h.Effective(t0, last, last)
	assert.True(t, th.Raised)

	th = h.Effective(t0, last, last.Add(30*time.Second))
	assert.False(t, th.Raised)
	assert.Equal(t, 0.15, th.Effective)
}

func TestHysteresis_WindowExpiryReleasesRaise(t *testing.T) {
	cfg := DefaultConfig()
	h := NewHysteresis(cfg)
	th := h.Effective(t0, t0.Add(-cfg.HysteresisWindow), time.Time{})
	assert.False(t, th.Raised)

	th = h.Effective(t0, t0.Add(-cfg.HysteresisWindow+time.Second), time.Time{})
	assert.True(t, th.Raised)
}

func TestHysteresis_IsCalm(t *testing.T) {
	h := NewHysteresis(DefaultConfig())
	assert.True(t, h.IsCalm(0.12))
	assert.True(t, h.IsCalm(0.0))
	assert.False(t, h.IsCalm(0.14))
	assert.False(t, h.IsCalm(0.155))
}
