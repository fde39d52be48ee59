// internal/journal/models.go
package journal

import "time"

// HistoryEvent is one recorded undo-stack transition
type HistoryEvent struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Kind       string    `json:"kind"` // "push", "undo", "redo", "compact"
	SnapshotID string    `json:"snapshot_id,omitempty"`
	Action     string    `json:"action,omitempty"`
	Partial    bool      `json:"partial"`
	CreatedAt  time.Time `json:"created_at"`
}

// AIEntry is the provenance of one AI change record. Only paths are kept,
// never values.
type AIEntry struct {
	RecordID     string     `json:"record_id"`
	SessionID    string     `json:"session_id"`
	Kind         string     `json:"kind"`
	SuggestionID string     `json:"suggestion_id,omitempty"`
	Paths        []string   `json:"paths"`
	CreatedAt    time.Time  `json:"created_at"`
	RevertedAt   *time.Time `json:"reverted_at,omitempty"`
}
