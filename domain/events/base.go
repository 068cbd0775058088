package events

import (
	"time"

	"flowboard/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Source names board events outside the process
const Source = "flowboard.boards"

// Event type names
const (
	TypeBlockCreated       = "block.created"
	TypeBlockUpdated       = "block.updated"
	TypeBlockMoved         = "block.moved"
	TypeBlockDeleted       = "block.deleted"
	TypeBlocksConnected    = "block.connected"
	TypeBlocksDisconnected = "block.disconnected"
	TypeBoardRestored      = "board.restored"
)

func newBase(boardID valueobjects.BoardID, eventType string, version int, timestamp time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: boardID.String(),
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     version,
	}
}

// BlockCreated is raised when a block is added to a board
type BlockCreated struct {
	BaseEvent
	BlockID valueobjects.NodeID `json:"block_id"`
	Title   string              `json:"title"`
}

// NewBlockCreated creates a BlockCreated event
func NewBlockCreated(boardID valueobjects.BoardID, version int, blockID valueobjects.NodeID, title string, timestamp time.Time) BlockCreated {
	return BlockCreated{
		BaseEvent: newBase(boardID, TypeBlockCreated, version, timestamp),
		BlockID:   blockID,
		Title:     title,
	}
}

// BlockUpdated is raised when a block's title, content or color changes
type BlockUpdated struct {
	BaseEvent
	BlockID valueobjects.NodeID `json:"block_id"`
	Fields  []string            `json:"fields"`
}

// NewBlockUpdated creates a BlockUpdated event
func NewBlockUpdated(boardID valueobjects.BoardID, version int, blockID valueobjects.NodeID, fields []string, timestamp time.Time) BlockUpdated {
	return BlockUpdated{
		BaseEvent: newBase(boardID, TypeBlockUpdated, version, timestamp),
		BlockID:   blockID,
		Fields:    fields,
	}
}

// BlockMoved is raised when a block is moved to a new position
type BlockMoved struct {
	BaseEvent
	BlockID     valueobjects.NodeID `json:"block_id"`
	OldPosition [2]float64          `json:"old_position"`
	NewPosition [2]float64          `json:"new_position"`
}

// NewBlockMoved creates a BlockMoved event
func NewBlockMoved(boardID valueobjects.BoardID, version int, blockID valueobjects.NodeID, oldPos, newPos valueobjects.Position, timestamp time.Time) BlockMoved {
	return BlockMoved{
		BaseEvent:   newBase(boardID, TypeBlockMoved, version, timestamp),
		BlockID:     blockID,
		OldPosition: [2]float64{oldPos.X(), oldPos.Y()},
		NewPosition: [2]float64{newPos.X(), newPos.Y()},
	}
}

// BlockDeleted is raised when a block is removed along with its incoming edges
type BlockDeleted struct {
	BaseEvent
	BlockID      valueobjects.NodeID   `json:"block_id"`
	DetachedFrom []valueobjects.NodeID `json:"detached_from,omitempty"`
}

// NewBlockDeleted creates a BlockDeleted event
func NewBlockDeleted(boardID valueobjects.BoardID, version int, blockID valueobjects.NodeID, detachedFrom []valueobjects.NodeID, timestamp time.Time) BlockDeleted {
	return BlockDeleted{
		BaseEvent:    newBase(boardID, TypeBlockDeleted, version, timestamp),
		BlockID:      blockID,
		DetachedFrom: detachedFrom,
	}
}

// BlocksConnected is raised when a directed connection is created
type BlocksConnected struct {
	BaseEvent
	From valueobjects.NodeID `json:"from"`
	To   valueobjects.NodeID `json:"to"`
}

// NewBlocksConnected creates a BlocksConnected event
func NewBlocksConnected(boardID valueobjects.BoardID, version int, from, to valueobjects.NodeID, timestamp time.Time) BlocksConnected {
	return BlocksConnected{
		BaseEvent: newBase(boardID, TypeBlocksConnected, version, timestamp),
		From:      from,
		To:        to,
	}
}

// BlocksDisconnected is raised when a directed connection is removed
type BlocksDisconnected struct {
	BaseEvent
	From valueobjects.NodeID `json:"from"`
	To   valueobjects.NodeID `json:"to"`
}

// NewBlocksDisconnected creates a BlocksDisconnected event
func NewBlocksDisconnected(boardID valueobjects.BoardID, version int, from, to valueobjects.NodeID, timestamp time.Time) BlocksDisconnected {
	return BlocksDisconnected{
		BaseEvent: newBase(boardID, TypeBlocksDisconnected, version, timestamp),
		From:      from,
		To:        to,
	}
}

// BoardRestored is raised when the whole block list is replaced, e.g. by undo
type BoardRestored struct {
	BaseEvent
	BlockCount int `json:"block_count"`
}

// NewBoardRestored creates a BoardRestored event
func NewBoardRestored(boardID valueobjects.BoardID, version int, blockCount int, timestamp time.Time) BoardRestored {
	return BoardRestored{
		BaseEvent:  newBase(boardID, TypeBoardRestored, version, timestamp),
		BlockCount: blockCount,
	}
}
