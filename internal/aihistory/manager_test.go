package aihistory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenestate/internal/docpath"
	"scenestate/internal/document"
	"scenestate/internal/history"
)

func abDoc(v float64) *document.Document {
	return document.MustFromMap(map[string]any{
		"a": map[string]any{"b": v},
		"scenes": []any{
			map[string]any{"id": "s1"},
			map[string]any{"id": "s2"},
		},
	})
}

func get(t *testing.T, doc *document.Document, p string) any {
	t.Helper()
	v, ok := doc.Get(docpath.MustParse(p))
	require.True(t, ok, p)
	return v
}

func TestRecord(t *testing.T) {
	m := NewManager(10)

	rec, err := m.Record(KindSuggestion, "sug-1", []Change{
		{Path: docpath.MustParse("a/b"), OldValue: 1.0, NewValue: 2.0},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, KindSuggestion, rec.Kind)
	assert.Equal(t, "sug-1", rec.SuggestionID)
	assert.False(t, rec.Timestamp.IsZero())
	assert.Equal(t, []string{"a/b"}, rec.Paths())
	assert.Equal(t, 1, m.Len())

	_, err = m.Record("rewrite", "", nil)
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestRecord_CopiesValues(t *testing.T) {
	m := NewManager(10)
	value := map[string]any{"text": "hello"}

	rec, err := m.Record(KindAutoGenerate, "", []Change{{Path: docpath.MustParse("x"), NewValue: value}})
	require.NoError(t, err)
	value["text"] = "changed"

	stored, ok := m.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, "hello", stored.Changes[0].NewValue.(map[string]any)["text"])
}

func TestRecord_EvictsOldestFirst(t *testing.T) {
	m := NewManager(3)

	var ids []string
	for i := 0; i < 5; i++ {
		rec, err := m.Record(KindAnalyze, fmt.Sprintf("s%d", i), nil)
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	all := m.All()
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[4], all[2].ID)

	_, ok := m.Get(ids[0])
	assert.False(t, ok)
}

func TestNewManager_DefaultCap(t *testing.T) {
	assert.Equal(t, DefaultMaxRecords, NewManager(0).Max())
}

func TestRevert_ReverseOrder(t *testing.T) {
	m := NewManager(10)
	rec, err := m.Record(KindSuggestion, "", []Change{
		{Path: docpath.MustParse("a/b"), OldValue: 1.0, NewValue: 2.0},
		{Path: docpath.MustParse("a/b"), OldValue: 2.0, NewValue: 3.0},
	})
	require.NoError(t, err)

	current := abDoc(3)
	reverted, err := m.Revert(rec.ID, current)
	require.NoError(t, err)

	assert.Equal(t, 1.0, get(t, reverted, "a/b"))
	assert.Equal(t, 3.0, get(t, current, "a/b"), "revert works on a copy")
	assert.Equal(t, 1, m.Len(), "the record stays in the log")
}

func TestRevert_IndependentOfHistory(t *testing.T) {
	h := history.NewManager(10, nil)
	m := NewManager(10)

	doc := abDoc(1)
	h.Push(doc, "init", "")

	changes, err := ChangesFromPatches(doc, []docpath.Patch{{Op: docpath.OpReplace, Path: "a/b", Value: 2}})
	require.NoError(t, err)
	rec, err := m.Record(KindSuggestion, "sug", changes)
	require.NoError(t, err)

	require.NoError(t, doc.Set(docpath.MustParse("scenes/0/id"), "human-edit"))
	h.Push(doc, "human", "")

	reverted, err := m.Revert(rec.ID, doc)
	require.NoError(t, err)
	assert.Equal(t, 1.0, get(t, reverted, "a/b"))
	assert.Equal(t, "human-edit", get(t, reverted, "scenes/0/id"), "later human edits survive")
	assert.Equal(t, 1, h.PastLen(), "the undo stack is untouched")
}

func TestRevert_NotFound(t *testing.T) {
	m := NewManager(10)

	_, err := m.Revert("missing", abDoc(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevert_BlindLastWriteWins(t *testing.T) {
	m := NewManager(10)
	doc := abDoc(1)

	changes, err := ChangesFromPatches(doc, []docpath.Patch{{Op: docpath.OpReplace, Path: "a/b", Value: 2}})
	require.NoError(t, err)
	rec, err := m.Record(KindSuggestion, "", changes)
	require.NoError(t, err)

	require.NoError(t, doc.Set(docpath.MustParse("a/b"), 50))

	reverted, err := m.Revert(rec.ID, doc)
	require.NoError(t, err)
	assert.Equal(t, 1.0, get(t, reverted, "a/b"))
}

func TestRevert_SkipsVanishedIndex(t *testing.T) {
	m := NewManager(10)
	doc := abDoc(1)

	changes, err := ChangesFromPatches(doc, []docpath.Patch{
		{Op: docpath.OpReplace, Path: "scenes/1/id", Value: "ai"},
		{Op: docpath.OpReplace, Path: "a/b", Value: 2},
	})
	require.NoError(t, err)
	rec, err := m.Record(KindSuggestion, "", changes)
	require.NoError(t, err)

	require.NoError(t, doc.Apply(docpath.Patch{Op: docpath.OpRemove, Path: "scenes/1"}))
	require.NoError(t, doc.Apply(docpath.Patch{Op: docpath.OpRemove, Path: "scenes/0"}))

	reverted, err := m.Revert(rec.ID, doc)
	require.NoError(t, err)
	assert.Equal(t, 1.0, get(t, reverted, "a/b"))
	assert.Equal(t, 0, reverted.SceneCount(), "no element is invented for a removed scene")
}

func TestChangesFromPatches_Structural(t *testing.T) {
	m := NewManager(10)
	doc := abDoc(1)
	before := doc.Clone()

	changes, err := ChangesFromPatches(doc, []docpath.Patch{
		{Op: docpath.OpRemove, Path: "scenes/0"},
		{Op: docpath.OpAdd, Path: "scenes/-", Value: map[string]any{"id": "s3"}},
		{Op: docpath.OpAdd, Path: "a/c", Value: "new"},
		{Op: docpath.OpReplace, Path: "missing/parent", Value: 1},
	})
	require.NoError(t, err)
	require.Len(t, changes, 3, "no-op patches are skipped")
	assert.Equal(t, "scenes", changes[0].Path.String())
	assert.True(t, changes[2].Created)

	assert.Equal(t, "s2", get(t, doc, "scenes/0/id"))
	assert.Equal(t, "s3", get(t, doc, "scenes/1/id"))

	rec, err := m.Record(KindAutoGenerate, "", changes)
	require.NoError(t, err)
	reverted, err := m.Revert(rec.ID, doc)
	require.NoError(t, err)
	assert.True(t, document.Equal(before, reverted))
}

func TestChangesFromPatches_InvalidPatch(t *testing.T) {
	_, err := ChangesFromPatches(abDoc(1), []docpath.Patch{{Op: "copy", Path: "a"}})
	assert.ErrorIs(t, err, docpath.ErrUnknownOp)
}

func TestBySuggestionAndClear(t *testing.T) {
	m := NewManager(10)
	_, err := m.Record(KindSuggestion, "x", nil)
	require.NoError(t, err)
	_, err = m.Record(KindSuggestion, "y", nil)
	require.NoError(t, err)
	_, err = m.Record(KindAnalyze, "x", nil)
	require.NoError(t, err)

	assert.Len(t, m.BySuggestion("x"), 2)

	m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.All())
}

func TestSetMax(t *testing.T) {
	m := NewManager(10)
	for i := 0; i < 6; i++ {
		_, err := m.Record(KindAnalyze, "", nil)
		require.NoError(t, err)
	}
	m.SetMax(2)
	assert.Equal(t, 2, m.Len())
}
