package logging

import "time"

// #region event-type
// EventType classifies a row in event_log.
type EventType string

const (
	EventLoopBroken      EventType = "loop_broken"
	EventDowngrade       EventType = "downgrade"
	EventMetricReadError EventType = "metric_read_error"
	EventActionError     EventType = "action_error"
	EventActionTimeout   EventType = "action_timeout"
	EventTickSkipped     EventType = "tick_skipped"
)

// #endregion event-type

// #region event-entry
// EventEntry is a single row in the event_log table. Events record the
// swallowed errors and overrides that explain a tick's outcome.
type EventEntry struct {
	ID          string
	DecisionID  string
	Tick        int64
	EventType   EventType
	Kind        string // action kind involved, if any
	Detail      string
	ContextJSON string // margin, threshold, repetition count at the time
	CreatedAt   time.Time
}

// #endregion event-entry
