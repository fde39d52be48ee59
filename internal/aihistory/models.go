// internal/aihistory/models.go
package aihistory

import (
	"time"

	"scenestate/internal/docpath"
	"scenestate/internal/document"
)

// Kind is the provenance of an AI-attributed mutation
type Kind string

const (
	KindSuggestion   Kind = "suggestion"
	KindAutoGenerate Kind = "auto-generate"
	KindAnalyze      Kind = "analyze"
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	switch k {
	case KindSuggestion, KindAutoGenerate, KindAnalyze:
		return true
	}
	return false
}

// Change is one path written by an AI mutation. Created marks a path that
// did not exist before, which revert removes instead of restoring.
type Change struct {
	Path     docpath.Path `json:"path"`
	OldValue any          `json:"old_value"`
	NewValue any          `json:"new_value"`
	Created  bool         `json:"created,omitempty"`
}

// Record is one entry of the AI change log
type Record struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Kind         Kind      `json:"kind"`
	SuggestionID string    `json:"suggestion_id,omitempty"`
	Changes      []Change  `json:"changes"`
}

// Paths lists the paths the record touched, in change order
func (r *Record) Paths() []string {
	out := make([]string, len(r.Changes))
	for i, c := range r.Changes {
		out[i] = c.Path.String()
	}
	return out
}

func (r *Record) clone() *Record {
	c := *r
	c.Changes = make([]Change, len(r.Changes))
	for i, ch := range r.Changes {
		c.Changes[i] = Change{
			Path:     append(docpath.Path(nil), ch.Path...),
			OldValue: document.DeepCopy(ch.OldValue),
			NewValue: document.DeepCopy(ch.NewValue),
			Created:  ch.Created,
		}
	}
	return &c
}
