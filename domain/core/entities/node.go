package entities

import (
	"flowboard/domain/core/valueobjects"
)

// Block is a positioned, titled, colored unit of content on a board.
// A block owns its outgoing connections.
type Block struct {
	id          valueobjects.NodeID
	text        valueobjects.BlockText
	position    valueobjects.Position
	color       valueobjects.Color
	connections []valueobjects.NodeID
}

// BlockState is the plain serialisable form of a block. It is the shape stored
// inside a board document and the unit of history snapshots.
type BlockState struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Color       string   `json:"color"`
	Connections []string `json:"connections"`
}

// NewBlock creates a block with no connections
func NewBlock(id valueobjects.NodeID, text valueobjects.BlockText, position valueobjects.Position, color valueobjects.Color) *Block {
	return &Block{
		id:          id,
		text:        text,
		position:    position,
		color:       color,
		connections: []valueobjects.NodeID{},
	}
}

// ReconstructBlock rebuilds a block from stored state. Invalid connection ids,
// self references and duplicates are dropped so the invariants hold even for
// hand-edited documents. Text is restored as stored, a blank title becomes
// UntitledTitle.
func ReconstructBlock(state BlockState) (*Block, error) {
	id, err := valueobjects.NewNodeIDFromString(state.ID)
	if err != nil {
		return nil, err
	}

	text := valueobjects.RestoreBlockText(state.Title, state.Content)

	position, err := valueobjects.NewPosition(state.X, state.Y)
	if err != nil {
		return nil, err
	}

	color := valueobjects.Color(state.Color)
	if !color.IsValid() {
		color = valueobjects.ColorBlue
	}

	block := NewBlock(id, text, position, color)
	for _, raw := range state.Connections {
		target, err := valueobjects.NewNodeIDFromString(raw)
		if err != nil {
			continue
		}
		block.ConnectTo(target)
	}

	return block, nil
}

// ID returns the block's unique identifier
func (b *Block) ID() valueobjects.NodeID {
	return b.id
}

// Text returns the block's title and content
func (b *Block) Text() valueobjects.BlockText {
	return b.text
}

// Title returns the block title
func (b *Block) Title() string {
	return b.text.Title()
}

// Content returns the block body
func (b *Block) Content() string {
	return b.text.Content()
}

// Position returns the block's world position
func (b *Block) Position() valueobjects.Position {
	return b.position
}

// Color returns the block color
func (b *Block) Color() valueobjects.Color {
	return b.color
}

// SetText replaces the block's text, reporting whether anything changed
func (b *Block) SetText(text valueobjects.BlockText) bool {
	if text.Equals(b.text) {
		return false
	}
	b.text = text
	return true
}

// SetColor replaces the block color, reporting whether anything changed
func (b *Block) SetColor(color valueobjects.Color) bool {
	if color == b.color {
		return false
	}
	b.color = color
	return true
}

// MoveTo moves the block, reporting whether the position changed
func (b *Block) MoveTo(position valueobjects.Position) bool {
	if position.Equals(b.position) {
		return false
	}
	b.position = position
	return true
}

// ConnectTo appends target to the outgoing connections. Self references and
// duplicates are ignored; the return value reports whether a connection was added.
func (b *Block) ConnectTo(target valueobjects.NodeID) bool {
	if target.IsZero() || b.id.Equals(target) || b.IsConnectedTo(target) {
		return false
	}
	b.connections = append(b.connections, target)
	return true
}

// Disconnect removes target from the outgoing connections
func (b *Block) Disconnect(target valueobjects.NodeID) bool {
	for i, id := range b.connections {
		if id.Equals(target) {
			b.connections = append(b.connections[:i:i], b.connections[i+1:]...)
			return true
		}
	}
	return false
}

// IsConnectedTo reports whether target is in the outgoing connections
func (b *Block) IsConnectedTo(target valueobjects.NodeID) bool {
	for _, id := range b.connections {
		if id.Equals(target) {
			return true
		}
	}
	return false
}

// Connections returns the outgoing connections
func (b *Block) Connections() []valueobjects.NodeID {
	// Return a copy to maintain encapsulation
	out := make([]valueobjects.NodeID, len(b.connections))
	copy(out, b.connections)
	return out
}

// State returns a deep copy of the block as plain data
func (b *Block) State() BlockState {
	conns := make([]string, len(b.connections))
	for i, id := range b.connections {
		conns[i] = id.String()
	}
	return BlockState{
		ID:          b.id.String(),
		Title:       b.text.Title(),
		Content:     b.text.Content(),
		X:           b.position.X(),
		Y:           b.position.Y(),
		Color:       string(b.color),
		Connections: conns,
	}
}
