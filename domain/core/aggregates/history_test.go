package aggregates

import (
	"testing"

	"flowboard/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryUndoRedo(t *testing.T) {
	h := NewHistory(newTestBoard(), 0)

	a, err := h.CreateNodeAt("A", "", 0, 0)
	require.NoError(t, err)
	b, err := h.CreateNodeAt("B", "", 100, 0)
	require.NoError(t, err)
	require.Equal(t, Connected, h.Connect(a.ID(), b.ID()))
	require.True(t, h.DeleteNode(b.ID()))

	undo, redo := h.Depth()
	assert.Equal(t, 4, undo)
	assert.Equal(t, 0, redo)

	require.True(t, h.Undo())
	assert.Equal(t, 2, h.Board().Len())
	restored, ok := h.Board().Block(a.ID())
	require.True(t, ok)
	assert.Equal(t, []valueobjects.NodeID{b.ID()}, restored.Connections())

	require.True(t, h.Undo())
	restored, _ = h.Board().Block(a.ID())
	assert.Empty(t, restored.Connections())

	require.True(t, h.Redo())
	restored, _ = h.Board().Block(a.ID())
	assert.Equal(t, []valueobjects.NodeID{b.ID()}, restored.Connections())
	assert.True(t, h.CanRedo())
}

func TestHistoryNewMutationClearsRedo(t *testing.T) {
	h := NewHistory(newTestBoard(), 0)
	a, _ := h.CreateNodeAt("A", "", 0, 0)
	h.MoveNode(a.ID(), 50, 50)

	require.True(t, h.Undo())
	require.True(t, h.CanRedo())

	h.MoveNode(a.ID(), 10, 10)

	assert.False(t, h.CanRedo())
	assert.False(t, h.Redo())
}

func TestHistoryIgnoresNoops(t *testing.T) {
	h := NewHistory(newTestBoard(), 0)
	a, _ := h.CreateNodeAt("A", "", 0, 0)

	h.MoveNode(a.ID(), 0, 0)
	h.Connect(a.ID(), a.ID())
	h.Disconnect(a.ID(), valueobjects.NewNodeID())
	h.DeleteNode(valueobjects.NewNodeID())
	_, err := h.CreateNode(" ", "")
	require.Error(t, err)

	undo, _ := h.Depth()
	assert.Equal(t, 1, undo)
}

func TestHistoryLimit(t *testing.T) {
	h := NewHistory(newTestBoard(), 3)
	a, _ := h.CreateNodeAt("A", "", 0, 0)
	for i := 1; i <= 5; i++ {
		h.MoveNode(a.ID(), float64(i), 0)
	}

	undo, _ := h.Depth()
	assert.Equal(t, 3, undo)

	for h.Undo() {
	}
	pos, _ := h.Position(a.ID())
	assert.Equal(t, 2.0, pos.X(), "oldest entries are dropped")
}

func TestHistoryGroupCollapsesDrag(t *testing.T) {
	h := NewHistory(newTestBoard(), 0)
	a, _ := h.CreateNodeAt("A", "", 0, 0)

	h.BeginGroup()
	for i := 1; i <= 10; i++ {
		h.MoveNode(a.ID(), float64(i*10), 0)
	}
	h.EndGroup()

	undo, _ := h.Depth()
	assert.Equal(t, 2, undo)

	require.True(t, h.Undo())
	pos, _ := h.Position(a.ID())
	assert.Equal(t, 0.0, pos.X())

	t.Run("empty group records nothing", func(t *testing.T) {
		before, _ := h.Depth()
		h.BeginGroup()
		h.EndGroup()
		after, _ := h.Depth()
		assert.Equal(t, before, after)
	})
}
