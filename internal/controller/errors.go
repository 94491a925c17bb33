package controller

import (
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
)

// ErrActionTimeout matches any ActionTimeoutError via errors.Is.
var ErrActionTimeout = errors.New("action timed out")

// #region metric-read-error
// MetricReadError wraps a failed source read or an out-of-range snapshot
// (signals.ErrOutOfRange). The controller reuses the previous snapshot, or
// skips the tick when there is none.
type MetricReadError struct {
	Tick    int64
	Skipped bool
	Err     error
}

func (e *MetricReadError) Error() string {
	if e.Skipped {
		return fmt.Sprintf("tick %d: metric read failed, tick skipped: %v", e.Tick, e.Err)
	}
	return fmt.Sprintf("tick %d: metric read failed, reusing previous snapshot: %v", e.Tick, e.Err)
}

func (e *MetricReadError) Unwrap() error { return e.Err }

// #endregion metric-read-error

// #region handler-error
// ActionHandlerError wraps a handler failure, refusal, panic or timeout.
type ActionHandlerError struct {
	Tick int64
	Kind action.Kind
	Err  error
}

func (e *ActionHandlerError) Error() string {
	return fmt.Sprintf("tick %d: %s handler: %v", e.Tick, e.Kind, e.Err)
}

func (e *ActionHandlerError) Unwrap() error { return e.Err }

// ActionTimeoutError reports a handler that did not return within the
// action timeout. The handler goroutine is abandoned, not cancelled.
type ActionTimeoutError struct {
	Kind    action.Kind
	Timeout time.Duration
}

func (e *ActionTimeoutError) Error() string {
	return fmt.Sprintf("%s did not finish within %s", e.Kind, e.Timeout)
}

// Is reports true for ErrActionTimeout.
func (e *ActionTimeoutError) Is(target error) bool {
	return target == ErrActionTimeout
}

// #endregion handler-error
