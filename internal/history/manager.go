// internal/history/manager.go
package history

import (
	"sync"

	"scenestate/internal/docpath"
	"scenestate/internal/document"
	"scenestate/internal/optimizer"
	"scenestate/internal/snapshot"
)

// DefaultMaxSize bounds the past stack when no size is configured.
const DefaultMaxSize = 50

// Manager is the linear undo/redo history of a session. It never touches
// the live document; callers apply what Undo and Redo return.
type Manager struct {
	mu        sync.RWMutex
	past      []*snapshot.Snapshot
	present   *snapshot.Snapshot
	future    []*snapshot.Snapshot
	maxSize   int
	optimizer *optimizer.Optimizer

	// base is the full snapshot new partials are recorded against, pending
	// the paths changed since base, partials the length of that chain.
	base     *snapshot.Snapshot
	pending  []docpath.Path
	partials int
}

// NewManager creates a history bounded to maxSize past entries. A nil
// optimizer gets the default policy without packing.
func NewManager(maxSize int, opt *optimizer.Optimizer) *Manager {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if opt == nil {
		opt = optimizer.New(optimizer.DefaultPolicy(), nil)
	}
	return &Manager{maxSize: maxSize, optimizer: opt}
}

// Push records a full snapshot of doc as the new present. The previous
// present moves to the past and the redo stack is cleared.
func (m *Manager) Push(doc *document.Document, action, description string) *snapshot.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.optimizer.FullSnapshot(doc, nil, action, description)
	m.resetBase(snap)
	m.advance(snap)
	return snap
}

// PushChanges is Push for a caller that knows which paths changed since
// the last recorded state. The optimizer may then store only those paths.
// A structural change to a sequence (insert or delete) must be reported as
// the sequence path, since element paths shift.
func (m *Manager) PushChanges(doc *document.Document, action, description string, changed []docpath.Path) (*snapshot.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := mergePaths(m.pending, changed)
	if len(changed) == 0 || m.optimizer.ShouldUseFull(m.base, m.partials, pending) {
		snap := m.optimizer.FullSnapshot(doc, changed, action, description)
		m.resetBase(snap)
		m.advance(snap)
		return snap, nil
	}

	snap, err := m.optimizer.PartialSnapshot(m.base, doc, pending, action, description)
	if err != nil {
		return nil, err
	}
	m.pending = pending
	m.partials++
	m.advance(snap)
	return snap, nil
}

func (m *Manager) advance(snap *snapshot.Snapshot) {
	if m.present != nil {
		m.past = append(m.past, m.present)
	}
	m.present = snap
	m.future = nil
	m.evict()
	m.packCold()
}

func (m *Manager) evict() {
	if over := len(m.past) - m.maxSize; over > 0 {
		m.past = append([]*snapshot.Snapshot(nil), m.past[over:]...)
	}
}

// packCold is best effort: a failed pack leaves the stack as it was.
func (m *Manager) packCold() {
	out, err := m.optimizer.PackCold(m.stackLocked())
	if err != nil {
		return
	}
	m.past, m.present, m.future = out.Past, out.Present, out.Future
	if m.base != nil {
		for _, s := range m.past {
			if s.ID == m.base.ID {
				m.base = s
				break
			}
		}
	}
}

func (m *Manager) resetBase(full *snapshot.Snapshot) {
	m.base = full
	m.pending = nil
	m.partials = 0
}

// rebase re-anchors partial recording on the present after the stack
// moved. A partial present already covers its paths relative to its base.
func (m *Manager) rebase() {
	switch {
	case m.present == nil:
		m.resetBase(nil)
	case m.present.Kind == snapshot.KindFull:
		m.resetBase(m.present)
	default:
		m.base = m.present.Base
		m.pending = m.present.Paths()
		m.partials = 1
	}
}

// Undo steps back one state and returns its document. It returns nil
// when there is nothing to undo; that is normal control flow.
func (m *Manager) Undo() (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.past) == 0 {
		return nil, nil
	}
	last := len(m.past) - 1
	prev := m.past[last]
	doc, err := prev.Document()
	if err != nil {
		return nil, err
	}

	if m.present != nil {
		m.future = append([]*snapshot.Snapshot{m.present}, m.future...)
	}
	m.past = m.past[:last]
	m.present = prev
	m.rebase()
	return doc, nil
}

// Redo moves forward one state and returns its document, or nil when
// there is nothing to redo.
func (m *Manager) Redo() (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.future) == 0 {
		return nil, nil
	}
	next := m.future[0]
	doc, err := next.Document()
	if err != nil {
		return nil, err
	}

	if m.present != nil {
		m.past = append(m.past, m.present)
	}
	m.future = m.future[1:]
	m.present = next
	m.evict()
	m.rebase()
	return doc, nil
}

// CanUndo reports whether Undo would return a document
func (m *Manager) CanUndo() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.past) > 0
}

// CanRedo reports whether Redo would return a document
func (m *Manager) CanRedo() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.future) > 0
}

// Clear resets to the empty state
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.past = nil
	m.present = nil
	m.future = nil
	m.resetBase(nil)
}

// Present returns the current snapshot, or nil before the first push
func (m *Manager) Present() *snapshot.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.present
}

// Stack returns a copy of the stacks
func (m *Manager) Stack() snapshot.Stack {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stackLocked()
}

func (m *Manager) stackLocked() snapshot.Stack {
	return snapshot.Stack{
		Past:    m.past,
		Present: m.present,
		Future:  m.future,
		MaxSize: m.maxSize,
	}.Clone()
}

// Entries lists snapshot metadata oldest first: past, present, then future
// in redo order.
func (m *Manager) Entries() []snapshot.Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]snapshot.Info, 0, len(m.past)+len(m.future)+1)
	for _, s := range m.past {
		infos = append(infos, s.Info())
	}
	if m.present != nil {
		infos = append(infos, m.present.Info())
	}
	for _, s := range m.future {
		infos = append(infos, s.Info())
	}
	return infos
}

// PastLen and FutureLen report the stack depths
func (m *Manager) PastLen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.past)
}

func (m *Manager) FutureLen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.future)
}

// MaxSize returns the bound on the past stack
func (m *Manager) MaxSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxSize
}

// SetMaxSize changes the bound and evicts immediately if needed
func (m *Manager) SetMaxSize(n int) {
	if n <= 0 {
		n = DefaultMaxSize
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxSize = n
	m.evict()
}

// Compress keeps only the keepRecent most recent past entries and the
// keepRecent nearest future entries. It returns how many were dropped.
func (m *Manager) Compress(keepRecent int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.past) + len(m.future)
	out := m.optimizer.CompressHistory(m.stackLocked(), keepRecent)
	m.past, m.future = out.Past, out.Future
	return before - len(m.past) - len(m.future)
}

func mergePaths(existing, added []docpath.Path) []docpath.Path {
	seen := make(map[string]struct{}, len(existing)+len(added))
	out := make([]docpath.Path, 0, len(existing)+len(added))
	for _, group := range [][]docpath.Path{existing, added} {
		for _, p := range group {
			key := p.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
