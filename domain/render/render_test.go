package render

import (
	"strings"
	"testing"

	"flowboard/domain/config"
	"flowboard/domain/core/aggregates"
	"flowboard/domain/core/valueobjects"
	"flowboard/domain/viewport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pos(t *testing.T, x, y float64) valueobjects.Position {
	t.Helper()
	p, err := valueobjects.NewPosition(x, y)
	require.NoError(t, err)
	return p
}

func TestEdgePath(t *testing.T) {
	cfg := config.DefaultCanvasConfig()

	t.Run("identity viewport", func(t *testing.T) {
		vp := viewport.New()
		curve := EdgePath(pos(t, 0, 0), pos(t, 500, 100), vp, cfg)

		assert.Equal(t, 240.0, curve.X1)
		assert.Equal(t, 18.0, curve.Y1)
		assert.Equal(t, 500.0, curve.X2)
		assert.Equal(t, 118.0, curve.Y2)
		// |dx| = 260 so the offset is 130
		assert.Equal(t, 370.0, curve.C1X)
		assert.Equal(t, 370.0, curve.C2X)
		assert.Equal(t, curve.Y1, curve.C1Y)
		assert.Equal(t, curve.Y2, curve.C2Y)
	})

	t.Run("minimum offset when blocks overlap horizontally", func(t *testing.T) {
		vp := viewport.New()
		curve := EdgePath(pos(t, 0, 0), pos(t, 250, 300), vp, cfg)

		assert.Equal(t, curve.X1+40, curve.C1X)
		assert.Equal(t, curve.X2-40, curve.C2X)
	})

	t.Run("offset scales with zoom", func(t *testing.T) {
		vp := viewport.New()
		vp.ZoomAt(0, 0, 1)
		curve := EdgePath(pos(t, 0, 0), pos(t, 500, 0), vp, cfg)

		assert.InDelta(t, 480.0, curve.X1, 1e-9)
		assert.InDelta(t, 480.0+260.0, curve.C1X, 1e-9)
	})
}

func TestStrokeWidth(t *testing.T) {
	cfg := config.DefaultCanvasConfig()

	assert.Equal(t, 2.0, StrokeWidth(1, cfg))
	assert.Equal(t, 1.0, StrokeWidth(0.3, cfg))
	assert.Equal(t, 4.0, StrokeWidth(3, cfg))
	assert.Equal(t, 3.0, StrokeWidth(1.5, cfg))
}

func TestBuildFrameFollowsCurrentPositions(t *testing.T) {
	board := aggregates.NewBoard(valueobjects.NewBoardID(), "frame")
	a, _ := board.CreateNodeAt("A", "", 0, 0)
	b, _ := board.CreateNodeAt("B", "", 500, 0)
	board.Connect(a.ID(), b.ID())
	vp := viewport.New()
	vp.SetPan(10, 20)

	frame := BuildFrame(board, vp)
	require.Len(t, frame.Nodes, 2)
	require.Len(t, frame.Edges, 1)
	assert.Equal(t, 10.0, frame.Nodes[0].X)
	assert.Equal(t, 20.0, frame.Nodes[0].Y)
	assert.Equal(t, a.ID().String(), frame.Edges[0].From)
	assert.Equal(t, valueobjects.ColorBlue.Hex(), frame.Edges[0].Stroke)

	board.MoveNode(b.ID(), 800, 200)
	moved := BuildFrame(board, vp)
	assert.NotEqual(t, frame.Edges[0].Path, moved.Edges[0].Path)
	assert.Equal(t, 810.0, moved.Edges[0].Curve.X2)
}

func TestSVG(t *testing.T) {
	board := aggregates.NewBoard(valueobjects.NewBoardID(), "svg")
	a, _ := board.CreateNodeAt("Plan <v2> & ship", "", 0, 0)
	b, _ := board.CreateNodeAt("B", "", 400, 0)
	board.Connect(a.ID(), b.ID())

	out := string(SVG(board, viewport.New(), 800, 600))

	assert.True(t, strings.HasPrefix(out, `<svg xmlns="http://www.w3.org/2000/svg" width="800" height="600"`))
	assert.Contains(t, out, "Plan &lt;v2&gt; &amp; ship")
	assert.Equal(t, 1, strings.Count(out, "<path "))
	assert.Contains(t, out, `data-id="`+b.ID().String()+`"`)
}
