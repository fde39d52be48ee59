// internal/document/document.go
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"scenestate/internal/docpath"
)

// ErrFrozen is returned by writes to a document owned by a snapshot.
var ErrFrozen = errors.New("document is frozen")

const (
	KeyScenes     = "scenes"
	KeyCharacters = "characters"
)

// Document is the editable state tree: a record of scenes and characters.
//
// Top-level sub-trees may be shared by reference with other documents. Every
// write path goes through own, which copies a shared sub-tree before it is
// mutated, so sharing never leaks a write into a snapshot.
type Document struct {
	root   map[string]any
	shared map[string]struct{}
	frozen bool
}

// New returns an empty document with no scenes and no characters.
func New() *Document {
	return wrap(map[string]any{
		KeyScenes:     []any{},
		KeyCharacters: map[string]any{},
	})
}

// FromMap builds a document from a normalized copy of m.
func FromMap(m map[string]any) (*Document, error) {
	n, err := Normalize(m)
	if err != nil {
		return nil, err
	}
	root, _ := n.(map[string]any)
	return wrap(root), nil
}

// MustFromMap is FromMap for literals known to be JSON-shaped.
func MustFromMap(m map[string]any) *Document {
	d, err := FromMap(m)
	if err != nil {
		panic(err)
	}
	return d
}

func wrap(root map[string]any) *Document {
	if root == nil {
		root = map[string]any{}
	}
	return &Document{root: root, shared: make(map[string]struct{})}
}

// FromJSON decodes a document tree.
func FromJSON(data []byte) (*Document, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return wrap(m), nil
}

// FromModel converts a typed model into a document tree.
func FromModel(m Model) (*Document, error) {
	if m.Scenes == nil {
		m.Scenes = []Scene{}
	}
	if m.Characters == nil {
		m.Characters = map[string]Character{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	return FromJSON(data)
}

// Decode converts the tree into a typed value such as *Model.
func (d *Document) Decode(v any) error {
	data, err := d.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.root)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	if d.frozen {
		return ErrFrozen
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if m == nil {
		m = map[string]any{}
	}
	d.root = m
	d.shared = make(map[string]struct{})
	return nil
}

// Get resolves p. A miss returns (nil, false).
func (d *Document) Get(p docpath.Path) (any, bool) {
	return docpath.Get(d.root, p)
}

// Set normalizes v and writes it at p, creating missing intermediates.
func (d *Document) Set(p docpath.Path, v any) error {
	if d.frozen {
		return ErrFrozen
	}
	owned, err := Normalize(v)
	if err != nil {
		return err
	}
	d.own(p)
	root, err := docpath.Set(d.root, p, owned)
	if err != nil {
		return fmt.Errorf("set %s: %w", p, err)
	}
	d.root = root.(map[string]any)
	return nil
}

// Remove deletes the value at p. It reports false when nothing was there.
func (d *Document) Remove(p docpath.Path) (bool, error) {
	if d.frozen {
		return false, ErrFrozen
	}
	if _, ok := d.Get(p); !ok {
		return false, nil
	}
	d.own(p)
	root, removed := docpath.Remove(d.root, p)
	d.root = root.(map[string]any)
	return removed, nil
}

// Apply applies an inbound patch with the tolerant semantics of docpath.Apply.
func (d *Document) Apply(patch docpath.Patch) error {
	if d.frozen {
		return ErrFrozen
	}
	p, err := patch.Validate()
	if err != nil {
		return err
	}
	value, err := Normalize(patch.Value)
	if err != nil {
		return err
	}
	d.own(p)
	d.root = docpath.ApplyAt(d.root, patch.Op, p, value).(map[string]any)
	return nil
}

// Affected is docpath.Affected against this document.
func (d *Document) Affected(op docpath.Op, p docpath.Path) docpath.Path {
	return docpath.Affected(d.root, op, p)
}

// own makes the top-level sub-tree under p private before a write. A write
// that replaces the whole sub-tree only needs to drop the shared mark.
func (d *Document) own(p docpath.Path) {
	if len(p) == 0 {
		return
	}
	key := p[0].Raw
	if _, ok := d.shared[key]; !ok {
		return
	}
	delete(d.shared, key)
	if len(p) > 1 {
		if v, ok := d.root[key]; ok {
			d.root[key] = DeepCopy(v)
		}
	}
}

// Clone returns an independent document. Sub-trees already shared stay
// shared; everything else is deep-copied. A frozen document is never written,
// so all of its sub-trees are shared with the clone.
func (d *Document) Clone() *Document {
	c := &Document{
		root:   make(map[string]any, len(d.root)),
		shared: make(map[string]struct{}),
	}
	for k, v := range d.root {
		if d.frozen || d.IsShared(k) {
			c.root[k] = v
			c.shared[k] = struct{}{}
			continue
		}
		c.root[k] = DeepCopy(v)
	}
	return c
}

// Share marks the named top-level sub-trees as shared and returns a clone
// that references them instead of copying. Missing keys are ignored.
func (d *Document) Share(keys ...string) *Document {
	if !d.frozen {
		for _, k := range keys {
			if _, ok := d.root[k]; ok {
				d.shared[k] = struct{}{}
			}
		}
	}
	return d.Clone()
}

// Freeze makes d read-only and returns it. Used by snapshots.
func (d *Document) Freeze() *Document {
	d.frozen = true
	return d
}

// Frozen reports whether writes are rejected.
func (d *Document) Frozen() bool {
	return d.frozen
}

// IsShared reports whether the top-level sub-tree key is referenced by
// another document.
func (d *Document) IsShared(key string) bool {
	_, ok := d.shared[key]
	return ok
}

// SharedKeys lists the shared top-level keys in sorted order.
func (d *Document) SharedKeys() []string {
	keys := make([]string, 0, len(d.shared))
	for k := range d.shared {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a deep copy of the tree.
func (d *Document) Map() map[string]any {
	return DeepCopy(d.root).(map[string]any)
}

// Scenes returns a copy of the scene sequence.
func (d *Document) Scenes() []any {
	scenes, _ := d.root[KeyScenes].([]any)
	if scenes == nil {
		return []any{}
	}
	return DeepCopy(scenes).([]any)
}

// SceneCount returns the number of scenes without copying them.
func (d *Document) SceneCount() int {
	scenes, _ := d.root[KeyScenes].([]any)
	return len(scenes)
}

// Characters returns a copy of the character roster.
func (d *Document) Characters() map[string]any {
	chars, _ := d.root[KeyCharacters].(map[string]any)
	if chars == nil {
		return map[string]any{}
	}
	return DeepCopy(chars).(map[string]any)
}

// Equal reports whether two documents hold the same tree.
func Equal(a, b *Document) bool {
	if a == nil || b == nil {
		return a == b
	}
	return EqualValues(a.root, b.root)
}
