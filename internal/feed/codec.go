package feed

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
	"github.com/danielpatrickdp/glyph-controller/internal/state"
)

// #region encode
// Encode flattens a decision record into a protobuf Struct. The timestamp
// is carried as an RFC 3339 string.
func Encode(rec state.DecisionRecord) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":                  rec.ID,
		"tick":                float64(rec.Tick),
		"timestamp":           rec.Timestamp.UTC().Format(time.RFC3339Nano),
		"entropy":             rec.Entropy,
		"coherence":           rec.Coherence,
		"stale_snapshot":      rec.StaleSnapshot,
		"selected":            string(rec.Selected),
		"chosen":              string(rec.Chosen),
		"score":               rec.Score,
		"effective_threshold": rec.EffectiveThreshold,
		"hysteresis_raised":   rec.HysteresisRaised,
		"margin":              rec.Margin,
		"repetition_count":    float64(rec.RepetitionCount),
		"severity":            rec.Severity,
		"pattern":             rec.Pattern,
		"rationale":           rec.Rationale,
		"loop_broken":         rec.LoopBroken,
		"downgraded":          rec.Downgraded,
		"outcome":             rec.Outcome,
		"error":               rec.Error,
	}
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode decision %s: %w", rec.ID, err)
	}
	return msg, nil
}

// #endregion encode

// #region decode
// Decode rebuilds a decision record from a Struct produced by Encode.
// Missing fields keep their zero value; an unknown kind is an error.
func Decode(msg *structpb.Struct) (state.DecisionRecord, error) {
	f := msg.GetFields()
	str := func(k string) string { return f[k].GetStringValue() }
	num := func(k string) float64 { return f[k].GetNumberValue() }
	flag := func(k string) bool { return f[k].GetBoolValue() }

	rec := state.DecisionRecord{
		ID:                 str("id"),
		Tick:               int64(num("tick")),
		Entropy:            num("entropy"),
		Coherence:          num("coherence"),
		StaleSnapshot:      flag("stale_snapshot"),
		Selected:           action.Kind(str("selected")),
		Chosen:             action.Kind(str("chosen")),
		Score:              num("score"),
		EffectiveThreshold: num("effective_threshold"),
		HysteresisRaised:   flag("hysteresis_raised"),
		Margin:             num("margin"),
		RepetitionCount:    int(num("repetition_count")),
		Severity:           str("severity"),
		Pattern:            str("pattern"),
		Rationale:          str("rationale"),
		LoopBroken:         flag("loop_broken"),
		Downgraded:         flag("downgraded"),
		Outcome:            str("outcome"),
		Error:              str("error"),
	}
	for _, k := range []action.Kind{rec.Selected, rec.Chosen} {
		if !k.Valid() {
			return state.DecisionRecord{}, fmt.Errorf("decode decision %s: unknown kind %q", rec.ID, k)
		}
	}
	if ts := str("timestamp"); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return state.DecisionRecord{}, fmt.Errorf("decode decision %s: timestamp: %w", rec.ID, err)
		}
		rec.Timestamp = t
	}
	return rec, nil
}

// #endregion decode
