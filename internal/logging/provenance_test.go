package logging

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE event_log (
		event_id     TEXT PRIMARY KEY,
		decision_id  TEXT,
		tick         INTEGER NOT NULL,
		event_type   TEXT NOT NULL,
		kind         TEXT,
		detail       TEXT,
		context_json TEXT,
		created_at   TEXT NOT NULL
	)`)
	require.NoError(t, err)
	return db
}

// #endregion helpers

// #region log-event-tests
func TestLogEvent_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	err := LogEvent(db, EventEntry{
		ID:          "e1",
		DecisionID:  "d1",
		Tick:        4,
		EventType:   EventLoopBroken,
		Kind:        "wait_and_monitor",
		Detail:      "loop broken: switched from ignore to wait_and_monitor",
		ContextJSON: `{"margin":0.004}`,
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	var id, eventType, kind string
	var tick int64
	require.NoError(t, db.QueryRow("SELECT event_id, tick, event_type, kind FROM event_log").Scan(&id, &tick, &eventType, &kind))
	assert.Equal(t, "e1", id)
	assert.Equal(t, int64(4), tick)
	assert.Equal(t, "loop_broken", eventType)
	assert.Equal(t, "wait_and_monitor", kind)
}

func TestLogEvent_FillsIDAndCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	require.NoError(t, LogEvent(db, EventEntry{Tick: 1, EventType: EventMetricReadError}))

	var id, createdAtStr string
	require.NoError(t, db.QueryRow("SELECT event_id, created_at FROM event_log").Scan(&id, &createdAtStr))
	assert.NotEmpty(t, id)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	require.NoError(t, err)
	assert.False(t, createdAt.Before(before))
}

func TestLogEvent_EmptyOptionalFieldsAreNull(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	require.NoError(t, LogEvent(db, EventEntry{Tick: 2, EventType: EventActionTimeout}))

	var decisionID, kind, detail, ctx sql.NullString
	require.NoError(t, db.QueryRow("SELECT decision_id, kind, detail, context_json FROM event_log").Scan(&decisionID, &kind, &detail, &ctx))
	assert.False(t, decisionID.Valid)
	assert.False(t, kind.Valid)
	assert.False(t, detail.Valid)
	assert.False(t, ctx.Valid)
}

func TestLogEvent_ClosedDB(t *testing.T) {
	db := setupDB(t)
	db.Close()
	assert.Error(t, LogEvent(db, EventEntry{Tick: 1, EventType: EventActionError}))
}

// #endregion log-event-tests

// #region logger-tests
func TestNewLogger(t *testing.T) {
	l, err := NewLogger("debug", "console")
	require.NoError(t, err)
	assert.NotNil(t, l)

	l, err = NewLogger("warn", "json")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(-1))

	_, err = NewLogger("loud", "json")
	assert.Error(t, err)

	_, err = NewLogger("info", "xml")
	assert.Error(t, err)
}

func TestNullIfEmpty(t *testing.T) {
	assert.Nil(t, nullIfEmpty(""))
	assert.Equal(t, "hello", nullIfEmpty("hello"))
}

// #endregion logger-tests
