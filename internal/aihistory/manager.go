// internal/aihistory/manager.go
package aihistory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"scenestate/internal/docpath"
	"scenestate/internal/document"
)

var (
	// ErrNotFound is returned when reverting an unknown record id. It means
	// the caller holds a stale id.
	ErrNotFound = errors.New("ai change record not found")
	// ErrInvalidKind is returned for a kind outside suggestion, auto-generate
	// and analyze.
	ErrInvalidKind = errors.New("invalid ai change kind")
)

// DefaultMaxRecords is the cap on retained records
const DefaultMaxRecords = 100

// Manager is the append-only log of AI-attributed mutations. It is kept
// apart from the undo stack so one suggestion can be reverted without
// unwinding human edits made after it.
type Manager struct {
	mu      sync.RWMutex
	records []*Record
	max     int
}

// NewManager creates a log capped at max records
func NewManager(max int) *Manager {
	if max <= 0 {
		max = DefaultMaxRecords
	}
	return &Manager{max: max}
}

// Record appends a new record and evicts the oldest past the cap. Values
// are copied in, so callers may keep mutating what they passed.
func (m *Manager) Record(kind Kind, suggestionID string, changes []Change) (*Record, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	rec := (&Record{
		ID:           ulid.Make().String(),
		Timestamp:    time.Now(),
		Kind:         kind,
		SuggestionID: suggestionID,
		Changes:      changes,
	}).clone()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, rec)
	m.evict()
	return rec.clone(), nil
}

func (m *Manager) evict() {
	if over := len(m.records) - m.max; over > 0 {
		m.records = append([]*Record(nil), m.records[over:]...)
	}
}

// Revert returns a copy of current with the record's changes undone in
// reverse order, so overlapping changes unwind last-applied-first. The
// write is blind: a later edit to the same path is overwritten. A change
// whose sequence index no longer exists is skipped. The record stays in
// the log and the undo stack is not touched.
func (m *Manager) Revert(id string, current *document.Document) (*document.Document, error) {
	rec, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("revert %s: %w", id, ErrNotFound)
	}

	doc := current.Clone()
	for i := len(rec.Changes) - 1; i >= 0; i-- {
		c := rec.Changes[i]
		if c.Created {
			if _, err := doc.Remove(c.Path); err != nil {
				return nil, fmt.Errorf("revert %s at %s: %w", id, c.Path, err)
			}
			continue
		}
		err := doc.Set(c.Path, c.OldValue)
		// the sequence shrank since the record; nothing left to restore into
		if errors.Is(err, docpath.ErrIndexOutOfRange) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("revert %s at %s: %w", id, c.Path, err)
		}
	}
	return doc, nil
}

// Get returns a copy of the record with the given id
func (m *Manager) Get(id string) (*Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.records {
		if r.ID == id {
			return r.clone(), true
		}
	}
	return nil, false
}

// All returns copies of every record, oldest first
func (m *Manager) All() []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Record, len(m.records))
	for i, r := range m.records {
		out[i] = r.clone()
	}
	return out
}

// BySuggestion returns the records produced by one suggestion, oldest first
func (m *Manager) BySuggestion(suggestionID string) []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Record
	for _, r := range m.records {
		if r.SuggestionID == suggestionID {
			out = append(out, r.clone())
		}
	}
	return out
}

// Clear drops every record
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
}

// Len returns the number of retained records
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Max returns the record cap
func (m *Manager) Max() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.max
}

// SetMax changes the cap and evicts immediately if needed
func (m *Manager) SetMax(n int) {
	if n <= 0 {
		n = DefaultMaxRecords
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.max = n
	m.evict()
}

// ChangesFromPatches applies patches to doc in order and captures the old
// and new value of every affected path. Structural sequence edits are
// captured at the sequence, so a revert restores element order exactly.
// Patches that changed nothing are skipped. On error doc may hold the
// patches applied so far, so callers pass a working copy.
func ChangesFromPatches(doc *document.Document, patches []docpath.Patch) ([]Change, error) {
	changes := make([]Change, 0, len(patches))
	for _, patch := range patches {
		p, err := patch.Validate()
		if err != nil {
			return changes, err
		}
		affected := doc.Affected(patch.Op, p)
		old, existed := doc.Get(affected)
		old = document.DeepCopy(old)

		if err := doc.Apply(patch); err != nil {
			return changes, err
		}

		current, exists := doc.Get(affected)
		if !existed && !exists {
			continue
		}
		changes = append(changes, Change{
			Path:     affected,
			OldValue: old,
			NewValue: document.DeepCopy(current),
			Created:  !existed,
		})
	}
	return changes, nil
}
