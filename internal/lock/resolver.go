// internal/lock/resolver.go
package lock

import (
	"sort"
	"sync"

	"scenestate/internal/docpath"
)

// Resolver is an advisory lock table keyed by document path. A path is
// either held or free; there is no reentrancy and no owner token, so a
// caller must unlock exactly what it locked. Nothing here ever blocks.
type Resolver struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewResolver creates an empty lock table
func NewResolver() *Resolver {
	return &Resolver{held: make(map[string]struct{})}
}

// key canonicalizes a path so "scenes/0" and "/scenes/0/" share a lock.
func key(path string) string {
	p, err := docpath.Parse(path)
	if err != nil {
		return path
	}
	return p.String()
}

func overlaps(a, b string) bool {
	if a == b {
		return true
	}
	pa, errA := docpath.Parse(a)
	pb, errB := docpath.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	return pa.Overlaps(pb)
}

// Lock acquires path. It returns false when the path is already held.
func (r *Resolver) Lock(path string) bool {
	k := key(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.held[k]; ok {
		return false
	}
	r.held[k] = struct{}{}
	return true
}

// LockAll acquires every path or none. A requested path also conflicts
// with a held ancestor or descendant, so an edit of scenes/0/title waits
// on a holder of scenes/0. On success it returns the canonical keys it
// took, sorted, for a later Release. On contention it returns the held
// keys in the way and false.
func (r *Resolver) LockAll(paths []string) ([]string, bool) {
	keys := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		k := key(p)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r.mu.Lock()
	defer r.mu.Unlock()

	var busy []string
	for h := range r.held {
		for _, k := range keys {
			if overlaps(h, k) {
				busy = append(busy, h)
				break
			}
		}
	}
	if len(busy) > 0 {
		sort.Strings(busy)
		return busy, false
	}
	for _, k := range keys {
		r.held[k] = struct{}{}
	}
	return keys, true
}

// Unlock releases path. Unlocking a free path is a no-op.
func (r *Resolver) Unlock(path string) {
	k := key(path)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, k)
}

// Release unlocks every key returned by LockAll
func (r *Resolver) Release(keys []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.held, key(k))
	}
}

// IsLocked reports whether path is currently held
func (r *Resolver) IsLocked(path string) bool {
	k := key(path)

	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.held[k]
	return ok
}

// UnlockAll frees every path. Used on session teardown.
func (r *Resolver) UnlockAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.held = make(map[string]struct{})
}

// Held returns the held paths, sorted
func (r *Resolver) Held() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.held))
	for k := range r.held {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of held paths
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.held)
}
