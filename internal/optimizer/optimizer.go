// internal/optimizer/optimizer.go
package optimizer

import (
	"fmt"
	"sync"

	"scenestate/internal/docpath"
	"scenestate/internal/document"
	"scenestate/internal/snapshot"
)

// Policy holds the thresholds the optimizer decides by
type Policy struct {
	// FullEvery forces a full snapshot after this many partials in a row.
	FullEvery int
	// MaxPartialPaths is the largest change set still stored as a partial.
	MaxPartialPaths int
	// SharedKeys are the large, rarely mutated top-level sub-trees that
	// snapshots reference instead of copying.
	SharedKeys []string
	// HotWindow is how many recent past entries stay unpacked.
	HotWindow int
}

// DefaultPolicy returns the default thresholds
func DefaultPolicy() Policy {
	return Policy{
		FullEvery:       10,
		MaxPartialPaths: 32,
		SharedKeys:      []string{document.KeyCharacters},
		HotWindow:       10,
	}
}

// Optimizer keeps snapshot memory bounded for both history logs
type Optimizer struct {
	mu     sync.RWMutex
	policy Policy
	codec  *snapshot.Codec
}

// New creates an optimizer. A nil codec disables packing.
func New(policy Policy, codec *snapshot.Codec) *Optimizer {
	return &Optimizer{policy: policy, codec: codec}
}

// Policy returns the current thresholds
func (o *Optimizer) Policy() Policy {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p := o.policy
	p.SharedKeys = append([]string(nil), o.policy.SharedKeys...)
	return p
}

// SetPolicy replaces the thresholds
func (o *Optimizer) SetPolicy(p Policy) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.policy = p
}

// ShouldUseFull decides whether the next snapshot must be a full copy.
// partialsSinceFull counts partials recorded on top of base.
func (o *Optimizer) ShouldUseFull(base *snapshot.Snapshot, partialsSinceFull int, changed []docpath.Path) bool {
	p := o.Policy()

	switch {
	case base == nil:
		return true
	case len(changed) == 0:
		return true
	case p.FullEvery > 0 && partialsSinceFull >= p.FullEvery:
		return true
	case p.MaxPartialPaths > 0 && len(changed) > p.MaxPartialPaths:
		return true
	}
	for _, c := range changed {
		if c.IsRoot() {
			return true
		}
	}
	return false
}

// PartialSnapshot extracts only the changed paths of doc. The result is
// valid only together with base.
func (o *Optimizer) PartialSnapshot(base *snapshot.Snapshot, doc *document.Document, changed []docpath.Path, action, description string) (*snapshot.Snapshot, error) {
	return snapshot.NewPartial(base, doc, changed, action, description)
}

// FullSnapshot records doc with the configured sub-trees shared by
// reference, unless the change set touches them.
func (o *Optimizer) FullSnapshot(doc *document.Document, changed []docpath.Path, action, description string) *snapshot.Snapshot {
	return snapshot.Adopt(o.OptimizeMemory(doc, changed), action, description)
}

// OptimizeMemory returns a copy of doc that shares every configured
// sub-tree no path in changeSet touches. The shared sub-trees become
// copy-on-write in doc as well.
func (o *Optimizer) OptimizeMemory(doc *document.Document, changeSet []docpath.Path) *document.Document {
	touched := make(map[string]bool, len(changeSet))
	for _, p := range changeSet {
		if p.IsRoot() {
			return doc.Clone()
		}
		touched[p[0].Raw] = true
	}

	var keys []string
	for _, k := range o.Policy().SharedKeys {
		if !touched[k] {
			keys = append(keys, k)
		}
	}
	return doc.Share(keys...)
}

// CompressHistory keeps the keepRecent most recent past entries and the
// keepRecent nearest future entries.
func CompressHistory(stack snapshot.Stack, keepRecent int) snapshot.Stack {
	if keepRecent < 0 {
		keepRecent = 0
	}
	out := stack.Clone()
	if len(out.Past) > keepRecent {
		out.Past = append([]*snapshot.Snapshot(nil), out.Past[len(out.Past)-keepRecent:]...)
	}
	if len(out.Future) > keepRecent {
		out.Future = append([]*snapshot.Snapshot(nil), out.Future[:keepRecent]...)
	}
	return out
}

// CompressHistory is the package function bound to the optimizer, so
// callers holding an *Optimizer need no second import.
func (o *Optimizer) CompressHistory(stack snapshot.Stack, keepRecent int) snapshot.Stack {
	return CompressHistory(stack, keepRecent)
}

// PackCold zstd-packs full snapshots in Past older than the hot window.
// Partials whose base was packed are rebased onto the packed copy so the
// unpacked tree can be collected.
func (o *Optimizer) PackCold(stack snapshot.Stack) (snapshot.Stack, error) {
	if o.codec == nil {
		return stack, nil
	}
	hot := o.Policy().HotWindow
	if hot < 0 {
		hot = 0
	}
	cold := len(stack.Past) - hot
	if cold <= 0 {
		return stack, nil
	}

	out := stack.Clone()
	replaced := make(map[*snapshot.Snapshot]*snapshot.Snapshot)
	for i := 0; i < cold; i++ {
		s := out.Past[i]
		if s.Kind != snapshot.KindFull || s.IsPacked() {
			continue
		}
		packed, err := s.Pack(o.codec)
		if err != nil {
			return stack, fmt.Errorf("pack cold snapshot: %w", err)
		}
		replaced[s] = packed
		out.Past[i] = packed
	}
	if len(replaced) == 0 {
		return stack, nil
	}

	rebase := func(s *snapshot.Snapshot) *snapshot.Snapshot {
		if s == nil || s.Kind != snapshot.KindPartial {
			return s
		}
		if packed, ok := replaced[s.Base]; ok {
			return s.WithBase(packed)
		}
		return s
	}
	for i := range out.Past {
		out.Past[i] = rebase(out.Past[i])
	}
	for i := range out.Future {
		out.Future[i] = rebase(out.Future[i])
	}
	out.Present = rebase(out.Present)
	return out, nil
}
