package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/glyph-controller/internal/action"
	"github.com/danielpatrickdp/glyph-controller/internal/logging"
	"github.com/danielpatrickdp/glyph-controller/internal/signals"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS metric_snapshots (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	tick          INTEGER NOT NULL,
	entropy       REAL NOT NULL,
	coherence     REAL NOT NULL,
	observed_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_log (
	decision_id         TEXT PRIMARY KEY,
	tick                INTEGER NOT NULL,
	entropy             REAL NOT NULL,
	coherence           REAL NOT NULL,
	stale_snapshot      INTEGER NOT NULL DEFAULT 0,
	selected            TEXT NOT NULL,
	chosen              TEXT NOT NULL,
	score               REAL NOT NULL,
	effective_threshold REAL NOT NULL,
	hysteresis_raised   INTEGER NOT NULL DEFAULT 0,
	margin              REAL NOT NULL,
	repetition_count    INTEGER NOT NULL,
	severity            TEXT,
	pattern             TEXT,
	rationale           TEXT,
	loop_broken         INTEGER NOT NULL DEFAULT 0,
	downgraded          INTEGER NOT NULL DEFAULT 0,
	outcome             TEXT,
	error               TEXT,
	created_at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decision_log_tick ON decision_log(tick);

CREATE TABLE IF NOT EXISTS event_log (
	event_id     TEXT PRIMARY KEY,
	decision_id  TEXT,
	tick         INTEGER NOT NULL,
	event_type   TEXT NOT NULL,
	kind         TEXT,
	detail       TEXT,
	context_json TEXT,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS controller_state (
	id                INTEGER PRIMARY KEY CHECK (id = 1),
	tick              INTEGER NOT NULL,
	last_kind         TEXT,
	consecutive_same  INTEGER NOT NULL,
	last_intervention TEXT,
	last_calm         TEXT,
	updated_at        TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store persists snapshots, decisions, events and the controller checkpoint in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// a single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region record-snapshot
// RecordSnapshot appends a metric reading.
func (s *Store) RecordSnapshot(tick int64, snap signals.Snapshot) error {
	_, err := s.db.Exec(
		`INSERT INTO metric_snapshots (tick, entropy, coherence, observed_at) VALUES (?, ?, ?, ?)`,
		tick, snap.Entropy, snap.Coherence, formatTime(snap.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns the most recent snapshots, newest first.
func (s *Store) ListSnapshots(limit int) ([]SnapshotRow, error) {
	rows, err := s.db.Query(
		`SELECT tick, entropy, coherence, observed_at FROM metric_snapshots ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		var ts string
		if err := rows.Scan(&r.Tick, &r.Entropy, &r.Coherence, &ts); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		r.Timestamp = parseTime(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion record-snapshot

// #region record-decision
// RecordDecision appends a decision record. An empty ID gets a fresh UUID.
func (s *Store) RecordDecision(rec DecisionRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	_, err := s.db.Exec(
		`INSERT INTO decision_log (decision_id, tick, entropy, coherence, stale_snapshot, selected, chosen, score,
			effective_threshold, hysteresis_raised, margin, repetition_count, severity, pattern, rationale,
			loop_broken, downgraded, outcome, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Tick, rec.Entropy, rec.Coherence, boolInt(rec.StaleSnapshot),
		string(rec.Selected), string(rec.Chosen), rec.Score,
		rec.EffectiveThreshold, boolInt(rec.HysteresisRaised), rec.Margin, rec.RepetitionCount,
		rec.Severity, rec.Pattern, rec.Rationale,
		boolInt(rec.LoopBroken), boolInt(rec.Downgraded), rec.Outcome, nullString(rec.Error),
		formatTime(rec.Timestamp),
	)
	if err != nil {
		return "", fmt.Errorf("insert decision: %w", err)
	}
	return rec.ID, nil
}

// #endregion record-decision

// #region list-decisions
const decisionColumns = `decision_id, tick, entropy, coherence, stale_snapshot, selected, chosen, score,
	effective_threshold, hysteresis_raised, margin, repetition_count, severity, pattern, rationale,
	loop_broken, downgraded, outcome, error, created_at`

// ListDecisions returns the most recent decisions, newest first.
func (s *Store) ListDecisions(limit int) ([]DecisionRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+decisionColumns+` FROM decision_log ORDER BY tick DESC, created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var records []DecisionRecord
	for rows.Next() {
		rec, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetDecision retrieves one decision by ID.
func (s *Store) GetDecision(id string) (DecisionRecord, error) {
	row := s.db.QueryRow(`SELECT `+decisionColumns+` FROM decision_log WHERE decision_id = ?`, id)
	rec, err := scanDecision(row)
	if err != nil {
		return DecisionRecord{}, fmt.Errorf("get decision %s: %w", id, err)
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (DecisionRecord, error) {
	var rec DecisionRecord
	var selected, chosen, created string
	var stale, raised, broken, downgraded int
	var severity, pattern, rationale, outcome, errText sql.NullString
	err := row.Scan(
		&rec.ID, &rec.Tick, &rec.Entropy, &rec.Coherence, &stale, &selected, &chosen, &rec.Score,
		&rec.EffectiveThreshold, &raised, &rec.Margin, &rec.RepetitionCount, &severity, &pattern, &rationale,
		&broken, &downgraded, &outcome, &errText, &created,
	)
	if err != nil {
		return DecisionRecord{}, fmt.Errorf("scan decision: %w", err)
	}
	rec.Selected = action.Kind(selected)
	rec.Chosen = action.Kind(chosen)
	rec.StaleSnapshot = stale != 0
	rec.HysteresisRaised = raised != 0
	rec.LoopBroken = broken != 0
	rec.Downgraded = downgraded != 0
	rec.Severity = severity.String
	rec.Pattern = pattern.String
	rec.Rationale = rationale.String
	rec.Outcome = outcome.String
	rec.Error = errText.String
	rec.Timestamp = parseTime(created)
	return rec, nil
}

// #endregion list-decisions

// #region aggregates
// KindCounts returns how many times each kind was dispatched.
func (s *Store) KindCounts() (map[action.Kind]int, error) {
	rows, err := s.db.Query(`SELECT chosen, COUNT(*) FROM decision_log GROUP BY chosen`)
	if err != nil {
		return nil, fmt.Errorf("kind counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[action.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan kind count: %w", err)
		}
		counts[action.Kind(kind)] = n
	}
	return counts, rows.Err()
}

// LastIntervention returns the timestamp of the most recent dispatched
// intervention, or the zero time if there is none.
func (s *Store) LastIntervention() (time.Time, error) {
	var ts sql.NullString
	err := s.db.QueryRow(
		`SELECT MAX(created_at) FROM decision_log WHERE chosen IN (?, ?)`,
		string(action.StressTest), string(action.RecoveryCycle),
	).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("last intervention: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return parseTime(ts.String), nil
}

// #endregion aggregates

// #region events
// ListEvents returns the most recent provenance events, newest first.
func (s *Store) ListEvents(limit int) ([]logging.EventEntry, error) {
	rows, err := s.db.Query(
		`SELECT event_id, decision_id, tick, event_type, kind, detail, context_json, created_at
		 FROM event_log ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []logging.EventEntry
	for rows.Next() {
		var e logging.EventEntry
		var eventType, created string
		var decisionID, kind, detail, ctx sql.NullString
		if err := rows.Scan(&e.ID, &decisionID, &e.Tick, &eventType, &kind, &detail, &ctx, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.EventType = logging.EventType(eventType)
		e.DecisionID = decisionID.String
		e.Kind = kind.String
		e.Detail = detail.String
		e.ContextJSON = ctx.String
		e.CreatedAt = parseTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion events

// #region checkpoint
// SaveCheckpoint upserts the single controller_state row.
func (s *Store) SaveCheckpoint(cp Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO controller_state (id, tick, last_kind, consecutive_same, last_intervention, last_calm, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			tick = excluded.tick,
			last_kind = excluded.last_kind,
			consecutive_same = excluded.consecutive_same,
			last_intervention = excluded.last_intervention,
			last_calm = excluded.last_calm,
			updated_at = excluded.updated_at`,
		cp.Tick, nullString(string(cp.LastKind)), cp.ConsecutiveSame,
		nullTime(cp.LastIntervention), nullTime(cp.LastCalm), formatTime(cp.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads the controller_state row. ok is false when the
// controller has never run against this database.
func (s *Store) LoadCheckpoint() (cp Checkpoint, ok bool, err error) {
	var lastKind, lastIntervention, lastCalm sql.NullString
	var updated string
	err = s.db.QueryRow(
		`SELECT tick, last_kind, consecutive_same, last_intervention, last_calm, updated_at
		 FROM controller_state WHERE id = 1`,
	).Scan(&cp.Tick, &lastKind, &cp.ConsecutiveSame, &lastIntervention, &lastCalm, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("load checkpoint: %w", err)
	}
	cp.LastKind = action.Kind(lastKind.String)
	if lastIntervention.Valid {
		cp.LastIntervention = parseTime(lastIntervention.String)
	}
	if lastCalm.Valid {
		cp.LastCalm = parseTime(lastCalm.String)
	}
	cp.UpdatedAt = parseTime(updated)
	return cp, true, nil
}

// #endregion checkpoint

// #region helpers
// fixed-width nanoseconds keep stored timestamps lexically ordered
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
