// Package render derives screen-space geometry for a board under a viewport.
// Nothing here is cached; every call recomputes from current block positions.
package render

import (
	"fmt"
	"math"

	"flowboard/domain/config"
	"flowboard/domain/core/aggregates"
	"flowboard/domain/core/valueobjects"
	"flowboard/domain/viewport"
)

// Bezier is a cubic curve in screen space
type Bezier struct {
	X1  float64 `json:"x1"`
	Y1  float64 `json:"y1"`
	C1X float64 `json:"c1x"`
	C1Y float64 `json:"c1y"`
	C2X float64 `json:"c2x"`
	C2Y float64 `json:"c2y"`
	X2  float64 `json:"x2"`
	Y2  float64 `json:"y2"`
}

// Path returns the SVG path data for the curve
func (b Bezier) Path() string {
	return fmt.Sprintf("M %.2f %.2f C %.2f %.2f, %.2f %.2f, %.2f %.2f",
		b.X1, b.Y1, b.C1X, b.C1Y, b.C2X, b.C2Y, b.X2, b.Y2)
}

// EdgeView is one rendered connection
type EdgeView struct {
	From        string  `json:"from"`
	To          string  `json:"to"`
	Color       string  `json:"color"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"stroke_width"`
	Curve       Bezier  `json:"curve"`
	Path        string  `json:"path"`
}

// EdgePath computes the curve from the right edge of the source block's
// header to the left edge of the target's. Control points sit horizontally
// off each endpoint so curves leave and enter level.
func EdgePath(from, to valueobjects.Position, vp *viewport.Viewport, cfg *config.CanvasConfig) Bezier {
	if cfg == nil {
		cfg = config.DefaultCanvasConfig()
	}
	startX := from.X() + cfg.BlockWidth
	startY := from.Y() + cfg.HeaderHeight/2
	endX := to.X()
	endY := to.Y() + cfg.HeaderHeight/2

	zoom := vp.Zoom()
	offset := math.Max(math.Abs(endX-startX)/2, cfg.MinCurveOffset) * zoom

	x1, y1 := vp.WorldToScreen(startX, startY)
	x2, y2 := vp.WorldToScreen(endX, endY)
	return Bezier{
		X1: x1, Y1: y1,
		C1X: x1 + offset, C1Y: y1,
		C2X: x2 - offset, C2Y: y2,
		X2: x2, Y2: y2,
	}
}

// StrokeWidth scales the default stroke by zoom, clamped to the configured range
func StrokeWidth(zoom float64, cfg *config.CanvasConfig) float64 {
	if cfg == nil {
		cfg = config.DefaultCanvasConfig()
	}
	w := cfg.DefaultStrokeWidth * zoom
	return math.Min(math.Max(w, cfg.MinStrokeWidth), cfg.MaxStrokeWidth)
}

// Edges renders every derived edge of the board
func Edges(board *aggregates.Board, vp *viewport.Viewport) []EdgeView {
	cfg := board.Config()
	width := StrokeWidth(vp.Zoom(), cfg)

	edges := board.Edges()
	views := make([]EdgeView, 0, len(edges))
	for _, e := range edges {
		from, ok := board.Position(e.From)
		if !ok {
			continue
		}
		to, ok := board.Position(e.To)
		if !ok {
			continue
		}
		curve := EdgePath(from, to, vp, cfg)
		views = append(views, EdgeView{
			From:        e.From.String(),
			To:          e.To.String(),
			Color:       string(e.Color),
			Stroke:      e.Color.Hex(),
			StrokeWidth: width,
			Curve:       curve,
			Path:        curve.Path(),
		})
	}
	return views
}
