// internal/docpath/access.go
package docpath

import "fmt"

// Get resolves p inside root. A miss returns (nil, false); it is never an error.
func Get(root any, p Path) (any, bool) {
	cur := root
	for _, seg := range p {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg.Raw]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			if !seg.IsIndex || seg.Index >= len(c) {
				return nil, false
			}
			cur = c[seg.Index]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set writes v at p, creating missing intermediate containers. The kind of
// each created container follows the next segment: a sequence for a
// non-negative integer, a record otherwise. An index equal to the length of
// a sequence appends; anything larger returns ErrIndexOutOfRange.
//
// Sequences can grow, so the returned root must replace the one passed in.
func Set(root any, p Path, v any) (any, error) {
	if p.IsRoot() {
		return root, ErrRootPath
	}
	return setIn(root, p, v)
}

func setIn(container any, p Path, v any) (any, error) {
	seg, rest := p[0], p[1:]

	switch c := container.(type) {
	case map[string]any:
		if len(rest) == 0 {
			c[seg.Raw] = v
			return c, nil
		}
		child := c[seg.Raw]
		if child == nil {
			child = emptyFor(rest[0])
		}
		updated, err := setIn(child, rest, v)
		if err != nil {
			return c, err
		}
		c[seg.Raw] = updated
		return c, nil

	case []any:
		if !seg.IsIndex {
			return c, fmt.Errorf("%w: key %q on sequence", ErrNotContainer, seg.Raw)
		}
		if seg.Index > len(c) {
			return c, fmt.Errorf("%w: %d past length %d", ErrIndexOutOfRange, seg.Index, len(c))
		}
		if seg.Index == len(c) {
			c = append(c, nil)
		}
		if len(rest) == 0 {
			c[seg.Index] = v
			return c, nil
		}
		child := c[seg.Index]
		if child == nil {
			child = emptyFor(rest[0])
		}
		updated, err := setIn(child, rest, v)
		if err != nil {
			return c, err
		}
		c[seg.Index] = updated
		return c, nil

	default:
		return container, fmt.Errorf("%w: %T at %q", ErrNotContainer, container, seg.Raw)
	}
}

func emptyFor(next Segment) any {
	if next.IsIndex {
		return []any{}
	}
	return map[string]any{}
}

// Remove deletes the value at p. Sequence elements after the removed index
// shift down. Removing a missing key or an out-of-range index is a no-op and
// reports false.
func Remove(root any, p Path) (any, bool) {
	if p.IsRoot() {
		return root, false
	}
	return removeIn(root, p)
}

func removeIn(container any, p Path) (any, bool) {
	seg, rest := p[0], p[1:]

	switch c := container.(type) {
	case map[string]any:
		child, ok := c[seg.Raw]
		if !ok {
			return c, false
		}
		if len(rest) == 0 {
			delete(c, seg.Raw)
			return c, true
		}
		updated, removed := removeIn(child, rest)
		if removed {
			c[seg.Raw] = updated
		}
		return c, removed

	case []any:
		if !seg.IsIndex || seg.Index >= len(c) {
			return c, false
		}
		if len(rest) == 0 {
			return deleteAt(c, seg.Index), true
		}
		updated, removed := removeIn(c[seg.Index], rest)
		if removed {
			c[seg.Index] = updated
		}
		return c, removed

	default:
		return container, false
	}
}

// deleteAt and insertAt build fresh backing arrays so that a slice header
// still held elsewhere never observes the shift.
func deleteAt(s []any, i int) []any {
	out := make([]any, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

func insertAt(s []any, i int, v any) []any {
	out := make([]any, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, v)
	return append(out, s[i:]...)
}
