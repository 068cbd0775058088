package render

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"flowboard/domain/core/aggregates"
	"flowboard/domain/viewport"
)

// NodeView is one block positioned in screen space
type NodeView struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Color   string  `json:"color"`
	Fill    string  `json:"fill"`
	WorldX  float64 `json:"world_x"`
	WorldY  float64 `json:"world_y"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Scale   float64 `json:"scale"`
}

// Frame is everything a client needs to draw the board
type Frame struct {
	Viewport viewport.State `json:"viewport"`
	Nodes    []NodeView     `json:"nodes"`
	Edges    []EdgeView     `json:"edges"`
}

// BuildFrame renders the board under the viewport
func BuildFrame(board *aggregates.Board, vp *viewport.Viewport) Frame {
	cfg := board.Config()
	zoom := vp.Zoom()

	blocks := board.Blocks()
	nodes := make([]NodeView, 0, len(blocks))
	for _, block := range blocks {
		pos := block.Position()
		sx, sy := vp.WorldToScreen(pos.X(), pos.Y())
		nodes = append(nodes, NodeView{
			ID:      block.ID().String(),
			Title:   block.Title(),
			Content: block.Content(),
			Color:   string(block.Color()),
			Fill:    block.Color().Hex(),
			WorldX:  pos.X(),
			WorldY:  pos.Y(),
			X:       sx,
			Y:       sy,
			Width:   cfg.BlockWidth * zoom,
			Scale:   zoom,
		})
	}

	return Frame{
		Viewport: vp.State(),
		Nodes:    nodes,
		Edges:    Edges(board, vp),
	}
}

// SVG renders the frame as a standalone SVG document of the given size
func SVG(board *aggregates.Board, vp *viewport.Viewport, width, height int) []byte {
	frame := BuildFrame(board, vp)
	cfg := board.Config()
	header := cfg.HeaderHeight * vp.Zoom()
	fontSize := 14 * vp.Zoom()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		width, height, width, height)
	buf.WriteString(`<rect width="100%" height="100%" fill="#f8fafc"/>` + "\n")

	buf.WriteString(`<g class="edges" fill="none">` + "\n")
	for _, e := range frame.Edges {
		fmt.Fprintf(&buf, `<path d="%s" stroke="%s" stroke-width="%.2f" data-from="%s" data-to="%s"/>`+"\n",
			e.Path, e.Stroke, e.StrokeWidth, e.From, e.To)
	}
	buf.WriteString("</g>\n")

	buf.WriteString(`<g class="blocks">` + "\n")
	for _, n := range frame.Nodes {
		fmt.Fprintf(&buf, `<g data-id="%s">`, n.ID)
		fmt.Fprintf(&buf, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" rx="6" fill="#ffffff" stroke="%s"/>`,
			n.X, n.Y, n.Width, header*2, n.Fill)
		fmt.Fprintf(&buf, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" rx="6" fill="%s"/>`,
			n.X, n.Y, n.Width, header, n.Fill)
		fmt.Fprintf(&buf, `<text x="%.2f" y="%.2f" font-size="%.2f" fill="#ffffff">`,
			n.X+8*vp.Zoom(), n.Y+header*0.65, fontSize)
		_ = xml.EscapeText(&buf, []byte(n.Title))
		buf.WriteString("</text></g>\n")
	}
	buf.WriteString("</g>\n</svg>\n")

	return buf.Bytes()
}
