// internal/snapshot/models.go
package snapshot

import (
	"time"

	"scenestate/internal/docpath"
)

// Kind distinguishes full copies from path/value deltas
type Kind string

const (
	KindFull    Kind = "full"
	KindPartial Kind = "partial"
)

// Entry is one recorded path of a partial snapshot. Deleted marks a path
// that was absent when the snapshot was taken.
type Entry struct {
	Path    docpath.Path `json:"path"`
	Value   any          `json:"value,omitempty"`
	Deleted bool         `json:"deleted,omitempty"`
}

// Info is the metadata of a snapshot, as listed to the editor UI
type Info struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	Description string    `json:"description,omitempty"`
	Kind        Kind      `json:"kind"`
	BaseID      string    `json:"base_id,omitempty"`
	Packed      bool      `json:"packed,omitempty"`
}

// Stack is the past/present/future triple behind undo and redo. Future[0]
// is the next state redo moves to.
type Stack struct {
	Past    []*Snapshot
	Present *Snapshot
	Future  []*Snapshot
	MaxSize int
}

// Clone copies the slices; snapshots are immutable and shared.
func (s Stack) Clone() Stack {
	return Stack{
		Past:    append([]*Snapshot(nil), s.Past...),
		Present: s.Present,
		Future:  append([]*Snapshot(nil), s.Future...),
		MaxSize: s.MaxSize,
	}
}

// Len is the number of recorded states including the present.
func (s Stack) Len() int {
	n := len(s.Past) + len(s.Future)
	if s.Present != nil {
		n++
	}
	return n
}
