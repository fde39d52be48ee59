// internal/journal/journal.go
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Journal is an append-only SQLite audit trail of session activity
type Journal struct {
	db *sql.DB
}

// Open creates or opens a journal at the given path
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	j := &Journal{db: db}
	if err := j.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal %s: %w", path, err)
	}
	return j, nil
}

func (j *Journal) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		snapshot_id TEXT,
		action TEXT,
		partial INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ai_records (
		record_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		suggestion_id TEXT,
		paths TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ai_reverts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (record_id) REFERENCES ai_records(record_id)
	);

	CREATE INDEX IF NOT EXISTS idx_history_events_session ON history_events(session_id);
	CREATE INDEX IF NOT EXISTS idx_ai_records_session ON ai_records(session_id);
	`

	_, err := j.db.Exec(schema)
	return err
}

// Close closes the database connection
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordHistory appends a history transition
func (j *Journal) RecordHistory(e *HistoryEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := j.db.Exec(`
		INSERT INTO history_events (session_id, kind, snapshot_id, action, partial, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Kind, e.SnapshotID, e.Action, e.Partial, e.CreatedAt.UnixMilli())
	if err != nil {
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

// RecordAI stores the provenance of an AI change record
func (j *Journal) RecordAI(e *AIEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	paths, err := json.Marshal(e.Paths)
	if err != nil {
		return err
	}
	_, err = j.db.Exec(`
		INSERT OR REPLACE INTO ai_records (record_id, session_id, kind, suggestion_id, paths, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RecordID, e.SessionID, e.Kind, e.SuggestionID, string(paths), e.CreatedAt.UnixMilli())
	return err
}

// RecordRevert notes that an AI record was reverted
func (j *Journal) RecordRevert(sessionID, recordID string) error {
	_, err := j.db.Exec(`
		INSERT INTO ai_reverts (record_id, session_id, created_at) VALUES (?, ?, ?)`,
		recordID, sessionID, time.Now().UnixMilli())
	return err
}

// HistoryEvents returns a session's history transitions, oldest first
func (j *Journal) HistoryEvents(sessionID string) ([]*HistoryEvent, error) {
	rows, err := j.db.Query(`
		SELECT id, session_id, kind, COALESCE(snapshot_id, ''), COALESCE(action, ''), partial, created_at
		FROM history_events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*HistoryEvent
	for rows.Next() {
		e := &HistoryEvent{}
		var created int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.SnapshotID, &e.Action, &e.Partial, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = time.UnixMilli(created)
		events = append(events, e)
	}
	return events, rows.Err()
}

// AIRecords returns a session's AI provenance entries, oldest first. The
// latest revert time is attached when the record was reverted.
func (j *Journal) AIRecords(sessionID string) ([]*AIEntry, error) {
	rows, err := j.db.Query(`
		SELECT r.record_id, r.session_id, r.kind, COALESCE(r.suggestion_id, ''), r.paths, r.created_at,
			(SELECT MAX(v.created_at) FROM ai_reverts v WHERE v.record_id = r.record_id)
		FROM ai_records r WHERE r.session_id = ? ORDER BY r.created_at, r.record_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*AIEntry
	for rows.Next() {
		e := &AIEntry{}
		var paths string
		var created int64
		var reverted sql.NullInt64
		if err := rows.Scan(&e.RecordID, &e.SessionID, &e.Kind, &e.SuggestionID, &paths, &created, &reverted); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(paths), &e.Paths); err != nil {
			return nil, fmt.Errorf("decode paths of %s: %w", e.RecordID, err)
		}
		e.CreatedAt = time.UnixMilli(created)
		if reverted.Valid {
			t := time.UnixMilli(reverted.Int64)
			e.RevertedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
