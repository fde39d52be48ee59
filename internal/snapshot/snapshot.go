// internal/snapshot/snapshot.go
package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scenestate/internal/docpath"
	"scenestate/internal/document"
)

var (
	// ErrNoBase is returned when a partial snapshot has no full snapshot to
	// resolve against.
	ErrNoBase = errors.New("partial snapshot has no full base")
	// ErrNotFull is returned when an operation needs a full snapshot.
	ErrNotFull = errors.New("snapshot is not full")
)

// Snapshot is an immutable recorded state. A full snapshot owns a frozen
// copy of the document, possibly zstd-packed. A partial snapshot records
// only the listed paths and is valid only together with its Base.
type Snapshot struct {
	ID          string
	Timestamp   time.Time
	Action      string
	Description string
	Kind        Kind

	// Partial snapshots only.
	Base    *Snapshot
	Entries []Entry

	doc    *document.Document
	packed []byte
	codec  *Codec
}

// NewFull snapshots the whole document.
func NewFull(doc *document.Document, action, description string) *Snapshot {
	return Adopt(doc.Clone(), action, description)
}

// Adopt wraps a document that nothing else writes to, such as a fresh
// clone, and freezes it.
func Adopt(doc *document.Document, action, description string) *Snapshot {
	return &Snapshot{
		ID:          uuid.New().String(),
		Timestamp:   time.Now(),
		Action:      action,
		Description: description,
		Kind:        KindFull,
		doc:         doc.Freeze(),
	}
}

// WithBase returns a copy of a partial snapshot resolved against base
// instead. Used when the original base is replaced by its packed form.
func (s *Snapshot) WithBase(base *Snapshot) *Snapshot {
	c := *s
	c.Base = base
	return &c
}

// NewPartial records the current values of paths in doc relative to base.
// A partial base is followed to its own full base. Duplicate paths are
// recorded once, in first-seen order.
func NewPartial(base *Snapshot, doc *document.Document, paths []docpath.Path, action, description string) (*Snapshot, error) {
	if base != nil && base.Kind == KindPartial {
		base = base.Base
	}
	if base == nil {
		return nil, ErrNoBase
	}

	seen := make(map[string]struct{}, len(paths))
	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		if p.IsRoot() {
			return nil, fmt.Errorf("partial snapshot: %w", docpath.ErrRootPath)
		}
		key := p.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		v, ok := doc.Get(p)
		if !ok {
			entries = append(entries, Entry{Path: p, Deleted: true})
			continue
		}
		entries = append(entries, Entry{Path: p, Value: document.DeepCopy(v)})
	}

	return &Snapshot{
		ID:          uuid.New().String(),
		Timestamp:   time.Now(),
		Action:      action,
		Description: description,
		Kind:        KindPartial,
		Base:        base,
		Entries:     entries,
	}, nil
}

// Resolve reconstructs the full state this snapshot stands for. The
// returned document is writable and independent of the snapshot.
func (s *Snapshot) Resolve() (*document.Document, error) {
	if s.Kind == KindFull {
		doc, err := s.frozen()
		if err != nil {
			return nil, err
		}
		return doc.Clone(), nil
	}

	if s.Base == nil || s.Base.Kind != KindFull {
		return nil, ErrNoBase
	}
	doc, err := s.Base.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolve base %s: %w", s.Base.ID, err)
	}
	for _, e := range s.Entries {
		if e.Deleted {
			if _, err := doc.Remove(e.Path); err != nil {
				return nil, err
			}
			continue
		}
		if err := doc.Set(e.Path, document.DeepCopy(e.Value)); err != nil {
			return nil, fmt.Errorf("apply entry %s: %w", e.Path, err)
		}
	}
	return doc, nil
}

// Document is Resolve under the name callers of undo and redo expect.
func (s *Snapshot) Document() (*document.Document, error) {
	return s.Resolve()
}

func (s *Snapshot) frozen() (*document.Document, error) {
	if s.doc != nil {
		return s.doc, nil
	}
	if s.packed == nil || s.codec == nil {
		return nil, fmt.Errorf("snapshot %s: %w", s.ID, ErrNotFull)
	}
	doc, err := s.codec.Decode(s.packed)
	if err != nil {
		return nil, fmt.Errorf("unpack snapshot %s: %w", s.ID, err)
	}
	return doc.Freeze(), nil
}

// Pack returns a copy of a full snapshot whose document is held only in
// compressed form. Packing a packed snapshot returns it unchanged.
func (s *Snapshot) Pack(codec *Codec) (*Snapshot, error) {
	if s.Kind != KindFull {
		return nil, ErrNotFull
	}
	if s.IsPacked() {
		return s, nil
	}
	data, err := codec.Encode(s.doc)
	if err != nil {
		return nil, fmt.Errorf("pack snapshot %s: %w", s.ID, err)
	}
	packed := *s
	packed.doc = nil
	packed.packed = data
	packed.codec = codec
	return &packed, nil
}

// IsPacked reports whether the document is held compressed.
func (s *Snapshot) IsPacked() bool {
	return s.doc == nil && s.packed != nil
}

// PackedSize is the compressed size in bytes, or zero for unpacked snapshots.
func (s *Snapshot) PackedSize() int {
	return len(s.packed)
}

// Paths lists the paths recorded by a partial snapshot.
func (s *Snapshot) Paths() []docpath.Path {
	paths := make([]docpath.Path, len(s.Entries))
	for i, e := range s.Entries {
		paths[i] = e.Path
	}
	return paths
}

func (s *Snapshot) Info() Info {
	info := Info{
		ID:          s.ID,
		Timestamp:   s.Timestamp,
		Action:      s.Action,
		Description: s.Description,
		Kind:        s.Kind,
		Packed:      s.IsPacked(),
	}
	if s.Base != nil {
		info.BaseID = s.Base.ID
	}
	return info
}
