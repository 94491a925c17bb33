package decision

import "github.com/danielpatrickdp/glyph-controller/internal/action"

// #region loop-breaker

// LoopBreaker stops the same kind from being selected more than Limit
// times in a row. The previous kind and its count live in the controller
// state and are passed in each tick.
type LoopBreaker struct {
	Limit int
}

// Select picks from ranked (best first). When the top kind would extend a
// run that has already reached Limit, the second-ranked kind is forced and
// its count starts at 1.
func (lb LoopBreaker) Select(ranked []ActionScore, lastKind action.Kind, count int) Selection {
	if len(ranked) == 0 {
		return Selection{Kind: action.WaitAndMonitor, Score: ActionScore{Kind: action.WaitAndMonitor}, RepetitionCount: 1}
	}
	top := ranked[0]
	if top.Kind != lastKind {
		return Selection{Kind: top.Kind, Score: top, RepetitionCount: 1}
	}
	if count >= lb.Limit && len(ranked) > 1 {
		alt := ranked[1]
		return Selection{
			Kind:            alt.Kind,
			Score:           alt,
			RepetitionCount: 1,
			LoopBroken:      true,
			BrokenFrom:      top.Kind,
		}
	}
	return Selection{Kind: top.Kind, Score: top, RepetitionCount: count + 1}
}

// #endregion loop-breaker
