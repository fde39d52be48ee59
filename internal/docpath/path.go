// internal/docpath/path.go
package docpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidPath is returned for paths with empty interior segments.
	ErrInvalidPath = errors.New("invalid path")
	// ErrNotContainer is returned when a write has to descend through a scalar
	// or address a sequence with a key segment.
	ErrNotContainer = errors.New("not a container")
	// ErrRootPath is returned when a write targets the document root itself.
	ErrRootPath = errors.New("cannot write root path")
	// ErrIndexOutOfRange is returned when a write addresses a sequence index
	// past its end. Index len is allowed and appends.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Segment is one step of a Path. Raw always holds the segment text; Index is
// only meaningful when IsIndex is set.
type Segment struct {
	Raw     string
	Index   int
	IsIndex bool
}

// Path addresses a value inside a document tree, e.g. scenes/0/dialogues/2/text.
type Path []Segment

// Parse validates a slash-delimited path. Leading and trailing slashes are
// ignored and "" is the root path.
func Parse(s string) (Path, error) {
	s = strings.Trim(s, "/")
	if s == "" {
		return Path{}, nil
	}

	parts := strings.Split(s, "/")
	p := make(Path, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: empty segment %d in %q", ErrInvalidPath, i, s)
		}
		p = append(p, newSegment(part))
	}
	return p, nil
}

// MustParse is Parse for paths known at compile time.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func newSegment(raw string) Segment {
	seg := Segment{Raw: raw}
	if n, err := strconv.Atoi(raw); err == nil && n >= 0 && strconv.Itoa(n) == raw {
		seg.Index = n
		seg.IsIndex = true
	}
	return seg
}

// String returns the canonical form, which is also the lock key.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		parts[i] = seg.Raw
	}
	return strings.Join(parts, "/")
}

// IsRoot reports whether p addresses the whole tree.
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Parent returns p without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1]
}

// Last returns the final segment. It panics on the root path.
func (p Path) Last() Segment {
	return p[len(p)-1]
}

// HasPrefix reports whether q is p or an ancestor of p.
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	for i := range q {
		if p[i].Raw != q[i].Raw {
			return false
		}
	}
	return true
}

// Overlaps reports whether a write at one path can affect a read at the other.
func (p Path) Overlaps(q Path) bool {
	return p.HasPrefix(q) || q.HasPrefix(p)
}

func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Path) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
