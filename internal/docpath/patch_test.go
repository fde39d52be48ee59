package docpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_Replace(t *testing.T) {
	root := sampleTree()

	out, err := Apply(root, Patch{Op: OpReplace, Path: "scenes/0/duration", Value: 8})
	require.NoError(t, err)

	v, _ := Get(out, MustParse("scenes/0/duration"))
	assert.Equal(t, 8, v)
}

func TestApply_ReplaceMissingParentIsNoop(t *testing.T) {
	root := sampleTree()

	out, err := Apply(root, Patch{Op: OpReplace, Path: "scenes/0/camera/zoom", Value: 2})
	require.NoError(t, err)

	_, ok := Get(out, MustParse("scenes/0/camera"))
	assert.False(t, ok, "replace must not invent ancestors")
}

func TestApply_ReplaceOutOfRangeIsNoop(t *testing.T) {
	root := sampleTree()

	out, err := Apply(root, Patch{Op: OpReplace, Path: "scenes/4", Value: "x"})
	require.NoError(t, err)
	assert.Len(t, out.(map[string]any)["scenes"], 2)
}

func TestApply_AddToSequence(t *testing.T) {
	root := sampleTree()

	out, err := Apply(root, Patch{Op: OpAdd, Path: "scenes/1", Value: map[string]any{"id": "mid"}})
	require.NoError(t, err)
	out, err = Apply(out, Patch{Op: OpAdd, Path: "scenes/-", Value: map[string]any{"id": "last"}})
	require.NoError(t, err)
	out, err = Apply(out, Patch{Op: OpAdd, Path: "scenes/99", Value: map[string]any{"id": "tail"}})
	require.NoError(t, err)

	scenes := out.(map[string]any)["scenes"].([]any)
	ids := make([]any, len(scenes))
	for i, s := range scenes {
		ids[i] = s.(map[string]any)["id"]
	}
	assert.Equal(t, []any{"s1", "mid", "s2", "last", "tail"}, ids)
}

func TestApply_AddToRecord(t *testing.T) {
	root := sampleTree()

	_, err := Apply(root, Patch{Op: OpAdd, Path: "characters/villain", Value: map[string]any{"name": "Mor"}})
	require.NoError(t, err)

	v, ok := Get(root, MustParse("characters/villain/name"))
	require.True(t, ok)
	assert.Equal(t, "Mor", v)
}

func TestApply_Remove(t *testing.T) {
	root := sampleTree()

	out, err := Apply(root, Patch{Op: OpRemove, Path: "scenes/0"})
	require.NoError(t, err)
	assert.Len(t, out.(map[string]any)["scenes"], 1)

	out, err = Apply(out, Patch{Op: OpRemove, Path: "characters/hero"})
	require.NoError(t, err)
	_, ok := Get(out, MustParse("characters/hero"))
	assert.False(t, ok)
}

func TestApply_RemoveOutOfRangeIsNoop(t *testing.T) {
	root := sampleTree()

	out, err := Apply(root, Patch{Op: OpRemove, Path: "scenes/5"})
	require.NoError(t, err)
	assert.Equal(t, sampleTree(), out)
}

func TestApply_Invalid(t *testing.T) {
	root := sampleTree()

	_, err := Apply(root, Patch{Op: "move", Path: "scenes/0"})
	assert.ErrorIs(t, err, ErrUnknownOp)

	_, err = Apply(root, Patch{Op: OpAdd, Path: "scenes//0"})
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = Apply(root, Patch{Op: OpReplace, Path: "/"})
	assert.ErrorIs(t, err, ErrRootPath)
}

func TestAffected(t *testing.T) {
	root := sampleTree()

	assert.Equal(t, "scenes/0/duration", Affected(root, OpReplace, MustParse("scenes/0/duration")).String())
	assert.Equal(t, "scenes", Affected(root, OpRemove, MustParse("scenes/0")).String())
	assert.Equal(t, "scenes", Affected(root, OpAdd, MustParse("scenes/-")).String())
	assert.Equal(t, "characters/villain", Affected(root, OpAdd, MustParse("characters/villain")).String())
	assert.Equal(t, "scenes", Affected(root, OpAdd, MustParse("scenes")).String())
}
