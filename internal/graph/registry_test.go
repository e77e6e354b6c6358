package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphreap/internal/graph"
)

func TestNewRegistry(t *testing.T) {
	t.Run("fills defaults", func(t *testing.T) {
		entry := &graph.Entry{Child: "Pixels", Property: "image"}
		reg, err := graph.NewRegistry(
			&graph.Spec{Name: "Image", Entries: []*graph.Entry{entry}},
			&graph.Spec{Name: "Pixels"},
		)
		require.NoError(t, err)

		image, ok := reg.Spec("IMAGE")
		require.True(t, ok)
		assert.Equal(t, "image", image.Table)
		assert.Equal(t, "id", image.IDColumn)
		assert.Equal(t, "Image", entry.Parent)
		assert.Equal(t, []*graph.Entry{entry}, reg.ChildrenOf("image"))
	})

	t.Run("duplicate type", func(t *testing.T) {
		_, err := graph.NewRegistry(&graph.Spec{Name: "Image"}, &graph.Spec{Name: "image"})
		assert.ErrorIs(t, err, graph.ErrDuplicateType)
	})

	t.Run("unknown child", func(t *testing.T) {
		_, err := graph.NewRegistry(&graph.Spec{
			Name:    "Image",
			Entries: []*graph.Entry{{Child: "Pixels", Property: "image"}},
		})
		assert.ErrorIs(t, err, graph.ErrUnknownType)

		var gerr *graph.GraphError
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, "Image", gerr.Type)
	})

	t.Run("unknown excluded type", func(t *testing.T) {
		_, err := graph.NewRegistry(&graph.Spec{Name: "Image", Exclude: []string{"Roi"}})
		assert.ErrorIs(t, err, graph.ErrUnknownType)
	})

	t.Run("entry declared for another parent", func(t *testing.T) {
		_, err := graph.NewRegistry(
			&graph.Spec{Name: "Image", Entries: []*graph.Entry{{Parent: "Dataset", Child: "Pixels", Property: "image"}}},
			&graph.Spec{Name: "Pixels"},
			&graph.Spec{Name: "Dataset"},
		)
		assert.ErrorIs(t, err, graph.ErrEntryMismatch)
	})

	t.Run("missing property", func(t *testing.T) {
		_, err := graph.NewRegistry(
			&graph.Spec{Name: "Image", Entries: []*graph.Entry{{Child: "Pixels"}}},
			&graph.Spec{Name: "Pixels"},
		)
		assert.ErrorIs(t, err, graph.ErrInvalidSpec)
	})

	t.Run("conflicting ops", func(t *testing.T) {
		_, err := graph.NewRegistry(
			&graph.Spec{Name: "Image", Entries: []*graph.Entry{{Child: "Pixels", Property: "image", Ops: graph.OpNull | graph.OpOrphan}}},
			&graph.Spec{Name: "Pixels"},
		)
		assert.ErrorIs(t, err, graph.ErrInvalidSpec)
	})

	t.Run("cycle rejected", func(t *testing.T) {
		_, err := graph.NewRegistry(
			&graph.Spec{Name: "A", Entries: []*graph.Entry{{Child: "B", Property: "a"}}},
			&graph.Spec{Name: "B", Entries: []*graph.Entry{{Child: "C", Property: "b"}}},
			&graph.Spec{Name: "C", Entries: []*graph.Entry{{Child: "A", Property: "c"}}},
		)
		assert.ErrorIs(t, err, graph.ErrCycle)
	})

	t.Run("self reference rejected", func(t *testing.T) {
		_, err := graph.NewRegistry(
			&graph.Spec{Name: "Folder", Entries: []*graph.Entry{{Child: "Folder", Property: "parent"}}},
		)
		assert.ErrorIs(t, err, graph.ErrCycle)
	})

	t.Run("kept entry does not form a cycle", func(t *testing.T) {
		_, err := graph.NewRegistry(
			&graph.Spec{Name: "Folder", Entries: []*graph.Entry{{Child: "Folder", Property: "parent", Ops: graph.OpKeep}}},
		)
		assert.NoError(t, err)
	})

	t.Run("reap edge back to a cascading type is allowed", func(t *testing.T) {
		_, err := graph.NewRegistry(
			&graph.Spec{Name: "Image", Entries: []*graph.Entry{{Child: "Link", Property: "child"}}},
			&graph.Spec{Name: "Link", Entries: []*graph.Entry{{Child: "Image", Property: "child", Ops: graph.OpReap}}},
		)
		assert.NoError(t, err)
	})
}

func TestFromSpecFile(t *testing.T) {
	reg := loadRegistry(t)

	image, ok := reg.Spec("Image")
	require.True(t, ok)
	assert.Equal(t, "owner_id", image.OwnerColumn)
	assert.Len(t, image.Cascades(), 3)
	require.Len(t, image.Reaps(), 1)
	assert.Equal(t, graph.ScopeLast, image.Reaps()[0].Scope)

	annotation, _ := reg.Spec("Annotation")
	assert.True(t, annotation.Ops.Has(graph.OpSoft))

	refs := reg.ReferencesTo("fileset")
	require.Len(t, refs, 1)
	assert.Equal(t, "Image", refs[0].Parent)
	assert.Equal(t, "fileset", refs[0].Property)

	assert.Len(t, reg.ReapRules(), 4)
}

func TestParseOp(t *testing.T) {
	ops, err := graph.ParseOps([]string{"soft", " NULL "})
	require.NoError(t, err)
	assert.True(t, ops.Has(graph.OpSoft))
	assert.True(t, ops.Has(graph.OpNull))
	assert.Equal(t, "null|soft", ops.String())
	assert.Equal(t, "delete", graph.Op(0).String())

	_, err = graph.ParseOp("explode")
	assert.ErrorIs(t, err, graph.ErrInvalidSpec)
}
