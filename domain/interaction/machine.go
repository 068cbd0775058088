// Package interaction turns pointer, wheel and keyboard input into viewport
// changes and graph mutations.
package interaction

import (
	"fmt"

	"flowboard/domain/core/aggregates"
	"flowboard/domain/core/valueobjects"
	"flowboard/domain/viewport"
)

// Mode is the modal state of the machine
type Mode int

const (
	Idle Mode = iota
	Panning
	DraggingNode
	Connecting
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Panning:
		return "panning"
	case DraggingNode:
		return "dragging_node"
	case Connecting:
		return "connecting"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// GraphEditor is the slice of the graph model the machine drives.
// Both *aggregates.Board and *aggregates.History satisfy it.
type GraphEditor interface {
	MoveNode(id valueobjects.NodeID, x, y float64) bool
	Connect(from, to valueobjects.NodeID) aggregates.ConnectResult
	Position(id valueobjects.NodeID) (valueobjects.Position, bool)
}

// Target is what a pointer press landed on
type Target struct {
	node valueobjects.NodeID
}

// Background is a press on empty canvas
func Background() Target {
	return Target{}
}

// NodeHeader is a press on a block's drag handle
func NodeHeader(id valueobjects.NodeID) Target {
	return Target{node: id}
}

// Node returns the pressed block, if any
func (t Target) Node() (valueobjects.NodeID, bool) {
	return t.node, !t.node.IsZero()
}

// Input is one event fed to the machine
type Input interface {
	isInput()
}

// PointerDown is a primary button press at screen coordinates
type PointerDown struct {
	X, Y   float64
	Target Target
}

// PointerMove is pointer motion at screen coordinates
type PointerMove struct {
	X, Y float64
}

// PointerUp is a primary button release
type PointerUp struct {
	X, Y float64
}

// Wheel is a wheel event over the canvas
type Wheel struct {
	X, Y   float64
	DeltaY float64
}

// ConnectClick is a click on a block's connect affordance, or on a block while
// connecting
type ConnectClick struct {
	Node valueobjects.NodeID
}

// Cancel abandons the current gesture (Escape)
type Cancel struct{}

func (PointerDown) isInput()  {}
func (PointerMove) isInput()  {}
func (PointerUp) isInput()    {}
func (Wheel) isInput()        {}
func (ConnectClick) isInput() {}
func (Cancel) isInput()       {}

// Outcome tells the owner what an input did
type Outcome struct {
	From Mode
	To   Mode

	// Mutated is set when the graph changed
	Mutated bool
	// Settled is set when a gesture that may have changed the graph finished;
	// the owner schedules a save
	Settled bool
	// ViewportChanged is set when pan or zoom changed
	ViewportChanged bool
	// Connect holds the result of a connect attempt, if one was made
	Connect *aggregates.ConnectResult
}

// Machine is the interaction state machine for one canvas
type Machine struct {
	vp    *viewport.Viewport
	graph GraphEditor

	mode Mode
	node valueobjects.NodeID

	// Panning: pointer minus pan at press time
	anchorX, anchorY float64
	// DraggingNode: pointer world position minus block position at press time
	offsetX, offsetY float64
}

// NewMachine creates an idle machine
func NewMachine(vp *viewport.Viewport, graph GraphEditor) *Machine {
	return &Machine{vp: vp, graph: graph, mode: Idle}
}

// Mode returns the current mode
func (m *Machine) Mode() Mode {
	return m.mode
}

// Subject returns the dragged block or the connect source
func (m *Machine) Subject() (valueobjects.NodeID, bool) {
	if m.mode != DraggingNode && m.mode != Connecting {
		return valueobjects.NodeID{}, false
	}
	return m.node, true
}

// Handle feeds one input to the machine
func (m *Machine) Handle(in Input) Outcome {
	out := Outcome{From: m.mode}

	switch ev := in.(type) {
	case Wheel:
		// zoom never changes mode
		before := m.vp.State()
		m.vp.ZoomWheel(ev.X, ev.Y, ev.DeltaY)
		out.ViewportChanged = m.vp.State() != before
	case PointerDown:
		m.pointerDown(ev, &out)
	case PointerMove:
		m.pointerMove(ev, &out)
	case PointerUp:
		switch m.mode {
		case Panning:
			m.toIdle()
		case DraggingNode:
			m.toIdle()
			out.Settled = true
		}
	case ConnectClick:
		m.connectClick(ev.Node, &out)
	case Cancel:
		if m.mode == DraggingNode {
			out.Settled = true
		}
		m.toIdle()
	}

	out.To = m.mode
	return out
}

func (m *Machine) pointerDown(ev PointerDown, out *Outcome) {
	id, onNode := ev.Target.Node()

	switch m.mode {
	case Idle:
		if !onNode {
			px, py := m.vp.Pan()
			m.anchorX, m.anchorY = ev.X-px, ev.Y-py
			m.mode = Panning
			return
		}
		pos, ok := m.graph.Position(id)
		if !ok {
			return
		}
		wx, wy := m.vp.ScreenToWorld(ev.X, ev.Y)
		m.offsetX, m.offsetY = wx-pos.X(), wy-pos.Y()
		m.node = id
		m.mode = DraggingNode
	case Connecting:
		// a press on a block while connecting picks the target
		if onNode {
			m.connectClick(id, out)
		}
	}
}

func (m *Machine) pointerMove(ev PointerMove, out *Outcome) {
	switch m.mode {
	case Panning:
		before := m.vp.State()
		m.vp.SetPan(ev.X-m.anchorX, ev.Y-m.anchorY)
		out.ViewportChanged = m.vp.State() != before
	case DraggingNode:
		wx, wy := m.vp.ScreenToWorld(ev.X, ev.Y)
		out.Mutated = m.graph.MoveNode(m.node, wx-m.offsetX, wy-m.offsetY)
	}
}

func (m *Machine) connectClick(id valueobjects.NodeID, out *Outcome) {
	switch m.mode {
	case Idle:
		if _, ok := m.graph.Position(id); !ok {
			return
		}
		m.node = id
		m.mode = Connecting
	case Connecting:
		source := m.node
		m.toIdle()
		if source.Equals(id) {
			return
		}
		result := m.graph.Connect(source, id)
		out.Connect = &result
		out.Mutated = result == aggregates.Connected
		out.Settled = out.Mutated
	}
}

func (m *Machine) toIdle() {
	m.mode = Idle
	m.node = valueobjects.NodeID{}
	m.anchorX, m.anchorY = 0, 0
	m.offsetX, m.offsetY = 0, 0
}
