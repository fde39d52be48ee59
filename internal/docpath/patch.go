// internal/docpath/patch.go
package docpath

import (
	"errors"
	"fmt"
)

// ErrUnknownOp is returned for a patch whose op is not replace, add or remove.
var ErrUnknownOp = errors.New("unknown patch op")

// Op is a patch operation.
type Op string

const (
	OpReplace Op = "replace"
	OpAdd     Op = "add"
	OpRemove  Op = "remove"
)

// appendSegment is the sequence position meaning "after the last element".
const appendSegment = "-"

// Patch is the inbound mutation format shared with the suggestion generator.
type Patch struct {
	Op    Op     `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Validate checks the op and parses the path.
func (p Patch) Validate() (Path, error) {
	switch p.Op {
	case OpReplace, OpAdd, OpRemove:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, p.Op)
	}
	parsed, err := Parse(p.Path)
	if err != nil {
		return nil, err
	}
	if parsed.IsRoot() {
		return nil, fmt.Errorf("%s patch: %w", p.Op, ErrRootPath)
	}
	return parsed, nil
}

// Apply applies one patch to root. The parent of the target must already
// exist; when it does not, the patch is a silent no-op and no ancestors are
// invented. Removing an out-of-range index is also a no-op, so replaying old
// patches tolerates structural drift.
//
// The returned root must replace the one passed in.
func Apply(root any, patch Patch) (any, error) {
	p, err := patch.Validate()
	if err != nil {
		return root, err
	}
	return ApplyAt(root, patch.Op, p, patch.Value), nil
}

// ApplyAt is Apply for an already validated op and path.
func ApplyAt(root any, op Op, p Path, value any) any {
	if p.IsRoot() {
		return root
	}
	return applyIn(root, op, p, value)
}

func applyIn(container any, op Op, p Path, value any) any {
	seg, rest := p[0], p[1:]

	if len(rest) > 0 {
		switch c := container.(type) {
		case map[string]any:
			if child, ok := c[seg.Raw]; ok {
				c[seg.Raw] = applyIn(child, op, rest, value)
			}
			return c
		case []any:
			if seg.IsIndex && seg.Index < len(c) {
				c[seg.Index] = applyIn(c[seg.Index], op, rest, value)
			}
			return c
		default:
			return container
		}
	}

	switch c := container.(type) {
	case map[string]any:
		if op == OpRemove {
			delete(c, seg.Raw)
		} else {
			c[seg.Raw] = value
		}
		return c

	case []any:
		switch op {
		case OpReplace:
			if seg.IsIndex && seg.Index < len(c) {
				c[seg.Index] = value
			}
			return c
		case OpAdd:
			if seg.Raw == appendSegment || (seg.IsIndex && seg.Index >= len(c)) {
				return append(c, value)
			}
			if seg.IsIndex {
				return insertAt(c, seg.Index, value)
			}
			return c
		case OpRemove:
			if seg.IsIndex && seg.Index < len(c) {
				return deleteAt(c, seg.Index)
			}
			return c
		}
	}
	return container
}

// Affected returns the path whose value fully describes the effect of op at
// p. Inserting into or deleting from a sequence shifts the elements after
// it, so the sequence itself is affected.
func Affected(root any, op Op, p Path) Path {
	if op == OpReplace || len(p) < 2 {
		return p
	}
	parent := p.Parent()
	if v, ok := Get(root, parent); ok {
		if _, isSeq := v.([]any); isSeq {
			return parent
		}
	}
	return p
}
