package interaction

import (
	"math/rand"
	"testing"

	"flowboard/domain/core/aggregates"
	"flowboard/domain/core/entities"
	"flowboard/domain/core/valueobjects"
	"flowboard/domain/viewport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Machine, *viewport.Viewport, *aggregates.Board, *entities.Block, *entities.Block) {
	t.Helper()
	board := aggregates.NewBoard(valueobjects.NewBoardID(), "test", aggregates.WithRand(rand.New(rand.NewSource(1))))
	a, err := board.CreateNodeAt("A", "", 100, 100)
	require.NoError(t, err)
	b, err := board.CreateNodeAt("B", "", 400, 100)
	require.NoError(t, err)
	vp := viewport.New()
	return NewMachine(vp, board), vp, board, a, b
}

func TestPanning(t *testing.T) {
	m, vp, _, _, _ := setup(t)
	vp.SetPan(10, 20)

	out := m.Handle(PointerDown{X: 100, Y: 100, Target: Background()})
	assert.Equal(t, Idle, out.From)
	assert.Equal(t, Panning, out.To)

	out = m.Handle(PointerMove{X: 150, Y: 80})
	assert.True(t, out.ViewportChanged)
	assert.False(t, out.Mutated)
	x, y := vp.Pan()
	assert.Equal(t, 60.0, x)
	assert.Equal(t, 0.0, y)

	out = m.Handle(PointerUp{X: 150, Y: 80})
	assert.Equal(t, Idle, out.To)
	assert.False(t, out.Settled)
}

func TestDraggingTracksCursorAtAnyZoom(t *testing.T) {
	tests := []struct {
		name       string
		zoom       float64
		panX, panY float64
	}{
		{name: "identity", zoom: 0},
		{name: "zoomed in and panned", zoom: 1, panX: -120, panY: 45},
		{name: "zoomed out", zoom: -0.6, panX: 300, panY: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, vp, board, a, _ := setup(t)
			vp.ZoomAt(0, 0, tt.zoom)
			vp.SetPan(tt.panX, tt.panY)

			// press 5px right of the block's top-left corner in world space
			sx, sy := vp.WorldToScreen(105, 102)
			out := m.Handle(PointerDown{X: sx, Y: sy, Target: NodeHeader(a.ID())})
			require.Equal(t, DraggingNode, out.To)

			mx, my := vp.WorldToScreen(305, 252)
			out = m.Handle(PointerMove{X: mx, Y: my})
			assert.True(t, out.Mutated)
			assert.False(t, out.Settled)

			pos, _ := board.Position(a.ID())
			assert.InDelta(t, 300.0, pos.X(), 1e-6)
			assert.InDelta(t, 250.0, pos.Y(), 1e-6)

			out = m.Handle(PointerUp{X: mx, Y: my})
			assert.Equal(t, Idle, out.To)
			assert.True(t, out.Settled)
		})
	}
}

func TestPointerDownOnUnknownNodeStaysIdle(t *testing.T) {
	m, _, _, _, _ := setup(t)

	out := m.Handle(PointerDown{X: 1, Y: 1, Target: NodeHeader(valueobjects.NewNodeID())})

	assert.Equal(t, Idle, out.To)
}

func TestConnecting(t *testing.T) {
	t.Run("click source then target connects", func(t *testing.T) {
		m, _, board, a, b := setup(t)

		out := m.Handle(ConnectClick{Node: a.ID()})
		require.Equal(t, Connecting, out.To)
		subject, ok := m.Subject()
		require.True(t, ok)
		assert.Equal(t, a.ID(), subject)

		out = m.Handle(ConnectClick{Node: b.ID()})
		assert.Equal(t, Idle, out.To)
		require.NotNil(t, out.Connect)
		assert.Equal(t, aggregates.Connected, *out.Connect)
		assert.True(t, out.Mutated)
		assert.True(t, out.Settled)
		assert.Len(t, board.Edges(), 1)
	})

	t.Run("clicking the source again toggles off", func(t *testing.T) {
		m, _, board, a, _ := setup(t)

		m.Handle(ConnectClick{Node: a.ID()})
		out := m.Handle(ConnectClick{Node: a.ID()})

		assert.Equal(t, Idle, out.To)
		assert.Nil(t, out.Connect)
		assert.False(t, out.Mutated)
		assert.Empty(t, board.Edges())
	})

	t.Run("duplicate connect reports rejection", func(t *testing.T) {
		m, _, board, a, b := setup(t)
		board.Connect(a.ID(), b.ID())

		m.Handle(ConnectClick{Node: a.ID()})
		out := m.Handle(PointerDown{X: 0, Y: 0, Target: NodeHeader(b.ID())})

		require.NotNil(t, out.Connect)
		assert.Equal(t, aggregates.AlreadyConnected, *out.Connect)
		assert.False(t, out.Mutated)
		assert.Equal(t, Idle, out.To)
	})

	t.Run("background press keeps connecting", func(t *testing.T) {
		m, _, _, a, _ := setup(t)

		m.Handle(ConnectClick{Node: a.ID()})
		out := m.Handle(PointerDown{X: 0, Y: 0, Target: Background()})

		assert.Equal(t, Connecting, out.To)
	})
}

func TestWheelZoomsInEveryMode(t *testing.T) {
	m, vp, _, a, _ := setup(t)

	m.Handle(PointerDown{X: 0, Y: 0, Target: Background()})
	out := m.Handle(Wheel{X: 400, Y: 300, DeltaY: -100})
	assert.Equal(t, Panning, out.To)
	assert.True(t, out.ViewportChanged)
	m.Handle(PointerUp{})

	m.Handle(PointerDown{X: 110, Y: 110, Target: NodeHeader(a.ID())})
	out = m.Handle(Wheel{X: 400, Y: 300, DeltaY: -100})
	assert.Equal(t, DraggingNode, out.To)
	m.Handle(PointerUp{})

	m.Handle(ConnectClick{Node: a.ID()})
	out = m.Handle(Wheel{X: 400, Y: 300, DeltaY: -100})
	assert.Equal(t, Connecting, out.To)

	assert.InDelta(t, 1.3, vp.Zoom(), 1e-9)
}

func TestCancel(t *testing.T) {
	m, _, _, a, _ := setup(t)

	m.Handle(PointerDown{X: 110, Y: 110, Target: NodeHeader(a.ID())})
	out := m.Handle(Cancel{})
	assert.Equal(t, Idle, out.To)
	assert.True(t, out.Settled)

	m.Handle(ConnectClick{Node: a.ID()})
	out = m.Handle(Cancel{})
	assert.Equal(t, Idle, out.To)
	assert.False(t, out.Settled)
	_, ok := m.Subject()
	assert.False(t, ok)
}

func TestHistoryIsAGraphEditor(t *testing.T) {
	board := aggregates.NewBoard(valueobjects.NewBoardID(), "test")
	var _ GraphEditor = aggregates.NewHistory(board, 0)
	var _ GraphEditor = board
}
