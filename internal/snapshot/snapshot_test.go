package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenestate/internal/docpath"
	"scenestate/internal/document"
)

func testDoc() *document.Document {
	return document.MustFromMap(map[string]any{
		"scenes": []any{
			map[string]any{"id": "s1", "duration": 5, "background": "forest"},
			map[string]any{"id": "s2", "duration": 3},
		},
		"characters": map[string]any{
			"hero": map[string]any{"name": "Ada"},
		},
	})
}

func TestNewFull_IsIsolated(t *testing.T) {
	doc := testDoc()
	snap := NewFull(doc, "add-scene", "first scene")

	require.NoError(t, doc.Set(docpath.MustParse("scenes/0/duration"), 8))

	restored, err := snap.Document()
	require.NoError(t, err)
	v, _ := restored.Get(docpath.MustParse("scenes/0/duration"))
	assert.Equal(t, 5.0, v, "mutating the live document must not reach the snapshot")

	require.NoError(t, restored.Set(docpath.MustParse("scenes/0/duration"), 99))
	again, err := snap.Document()
	require.NoError(t, err)
	v, _ = again.Get(docpath.MustParse("scenes/0/duration"))
	assert.Equal(t, 5.0, v, "mutating a returned document must not reach the snapshot")

	assert.Equal(t, KindFull, snap.Kind)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "add-scene", snap.Info().Action)
}

func TestNewPartial_Fidelity(t *testing.T) {
	doc := testDoc()
	base := NewFull(doc, "init", "")

	require.NoError(t, doc.Set(docpath.MustParse("scenes/0/duration"), 8))
	removed, err := doc.Remove(docpath.MustParse("scenes/0/background"))
	require.NoError(t, err)
	require.True(t, removed)
	require.NoError(t, doc.Set(docpath.MustParse("characters/villain"), map[string]any{"name": "Mor"}))

	changed := []docpath.Path{
		docpath.MustParse("scenes/0/duration"),
		docpath.MustParse("scenes/0/background"),
		docpath.MustParse("characters/villain"),
		docpath.MustParse("scenes/0/duration"),
	}
	partial, err := NewPartial(base, doc, changed, "edit", "")
	require.NoError(t, err)
	assert.Equal(t, KindPartial, partial.Kind)
	assert.Len(t, partial.Entries, 3, "duplicate paths are recorded once")
	assert.True(t, partial.Entries[1].Deleted)

	rebuilt, err := partial.Resolve()
	require.NoError(t, err)
	assert.True(t, document.Equal(doc, rebuilt), "base plus entries must reproduce the post-mutation document")
}

func TestNewPartial_FollowsPartialBase(t *testing.T) {
	doc := testDoc()
	base := NewFull(doc, "init", "")

	first, err := NewPartial(base, doc, []docpath.Path{docpath.MustParse("scenes/1")}, "a", "")
	require.NoError(t, err)
	second, err := NewPartial(first, doc, []docpath.Path{docpath.MustParse("scenes/0")}, "b", "")
	require.NoError(t, err)

	assert.Same(t, base, second.Base)
	assert.Equal(t, base.ID, second.Info().BaseID)
}

func TestNewPartial_RequiresBase(t *testing.T) {
	_, err := NewPartial(nil, testDoc(), nil, "edit", "")
	assert.ErrorIs(t, err, ErrNoBase)

	orphan := &Snapshot{Kind: KindPartial}
	_, err = orphan.Resolve()
	assert.ErrorIs(t, err, ErrNoBase)
}

func TestPack(t *testing.T) {
	codec, err := NewCodec(3)
	require.NoError(t, err)
	defer codec.Close()

	doc := testDoc()
	snap := NewFull(doc, "init", "")

	packed, err := snap.Pack(codec)
	require.NoError(t, err)
	assert.True(t, packed.IsPacked())
	assert.False(t, snap.IsPacked(), "packing returns a copy")
	assert.Equal(t, snap.ID, packed.ID)
	assert.Positive(t, packed.PackedSize())

	restored, err := packed.Document()
	require.NoError(t, err)
	assert.True(t, document.Equal(doc, restored))

	again, err := packed.Pack(codec)
	require.NoError(t, err)
	assert.Same(t, packed, again)

	partial, err := NewPartial(snap, doc, nil, "noop", "")
	require.NoError(t, err)
	_, err = partial.Pack(codec)
	assert.ErrorIs(t, err, ErrNotFull)
}

func TestPartialOverPackedBase(t *testing.T) {
	codec, err := NewCodec(1)
	require.NoError(t, err)
	defer codec.Close()

	doc := testDoc()
	base, err := NewFull(doc, "init", "").Pack(codec)
	require.NoError(t, err)

	require.NoError(t, doc.Set(docpath.MustParse("scenes/1/duration"), 4))
	partial, err := NewPartial(base, doc, []docpath.Path{docpath.MustParse("scenes/1/duration")}, "edit", "")
	require.NoError(t, err)

	rebuilt, err := partial.Resolve()
	require.NoError(t, err)
	assert.True(t, document.Equal(doc, rebuilt))
}

func TestStack_Clone(t *testing.T) {
	a := NewFull(testDoc(), "a", "")
	b := NewFull(testDoc(), "b", "")

	s := Stack{Past: []*Snapshot{a}, Present: b, MaxSize: 5}
	c := s.Clone()
	c.Past = append(c.Past, b)

	assert.Len(t, s.Past, 1)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 3, c.Len())
}
