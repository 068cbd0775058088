package aggregates

import (
	"flowboard/domain/core/entities"
	"flowboard/domain/core/valueobjects"
)

type historyEntry struct {
	before []entities.BlockState
	after  []entities.BlockState
}

// History decorates a Board with bounded undo/redo. Every mutating call made
// through History records before/after snapshots; the Board itself knows
// nothing about history.
type History struct {
	board  *Board
	limit  int
	past   []historyEntry
	future []historyEntry

	// open group, see BeginGroup
	grouping     bool
	groupBefore  []entities.BlockState
	groupVersion int
}

// NewHistory wraps board. A limit <= 0 falls back to the board's configured limit.
func NewHistory(board *Board, limit int) *History {
	if limit <= 0 {
		limit = board.Config().HistoryLimit
	}
	if limit <= 0 {
		limit = 50
	}
	return &History{board: board, limit: limit}
}

// Board returns the wrapped board
func (h *History) Board() *Board {
	return h.board
}

// CanUndo reports whether there is anything to undo
func (h *History) CanUndo() bool {
	return len(h.past) > 0
}

// CanRedo reports whether there is anything to redo
func (h *History) CanRedo() bool {
	return len(h.future) > 0
}

// Depth returns the sizes of the undo and redo stacks
func (h *History) Depth() (undo, redo int) {
	return len(h.past), len(h.future)
}

// CreateNode records a block creation
func (h *History) CreateNode(title, content string) (*entities.Block, error) {
	var block *entities.Block
	var err error
	h.record(func() {
		block, err = h.board.CreateNode(title, content)
	})
	return block, err
}

// CreateNodeAt records a block creation at an explicit position
func (h *History) CreateNodeAt(title, content string, x, y float64) (*entities.Block, error) {
	var block *entities.Block
	var err error
	h.record(func() {
		block, err = h.board.CreateNodeAt(title, content, x, y)
	})
	return block, err
}

// UpdateNode records a block update
func (h *History) UpdateNode(id valueobjects.NodeID, patch BlockPatch) (bool, error) {
	var changed bool
	var err error
	h.record(func() {
		changed, err = h.board.UpdateNode(id, patch)
	})
	return changed, err
}

// MoveNode records a block move
func (h *History) MoveNode(id valueobjects.NodeID, x, y float64) bool {
	var moved bool
	h.record(func() {
		moved = h.board.MoveNode(id, x, y)
	})
	return moved
}

// DeleteNode records a block deletion
func (h *History) DeleteNode(id valueobjects.NodeID) bool {
	var deleted bool
	h.record(func() {
		deleted = h.board.DeleteNode(id)
	})
	return deleted
}

// Connect records a connection
func (h *History) Connect(from, to valueobjects.NodeID) ConnectResult {
	var result ConnectResult
	h.record(func() {
		result = h.board.Connect(from, to)
	})
	return result
}

// Disconnect records a disconnection
func (h *History) Disconnect(from, to valueobjects.NodeID) bool {
	var removed bool
	h.record(func() {
		removed = h.board.Disconnect(from, to)
	})
	return removed
}

// Position returns the world position of a block
func (h *History) Position(id valueobjects.NodeID) (valueobjects.Position, bool) {
	return h.board.Position(id)
}

// BeginGroup starts collapsing subsequent mutations into one entry, e.g. the
// stream of moves produced by a single drag.
func (h *History) BeginGroup() {
	if h.grouping {
		return
	}
	h.grouping = true
	h.groupBefore = h.board.Snapshot()
	h.groupVersion = h.board.Version()
}

// EndGroup closes an open group, recording it if the board changed
func (h *History) EndGroup() {
	if !h.grouping {
		return
	}
	h.grouping = false
	if h.board.Version() != h.groupVersion {
		h.push(historyEntry{before: h.groupBefore, after: h.board.Snapshot()})
	}
	h.groupBefore = nil
}

// Undo restores the snapshot taken before the last recorded mutation
func (h *History) Undo() bool {
	h.EndGroup()
	if len(h.past) == 0 {
		return false
	}
	entry := h.past[len(h.past)-1]
	if err := h.board.Restore(entry.before); err != nil {
		return false
	}
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, entry)
	return true
}

// Redo re-applies the last undone mutation
func (h *History) Redo() bool {
	h.EndGroup()
	if len(h.future) == 0 {
		return false
	}
	entry := h.future[len(h.future)-1]
	if err := h.board.Restore(entry.after); err != nil {
		return false
	}
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, entry)
	return true
}

// Clear drops both stacks
func (h *History) Clear() {
	h.past = nil
	h.future = nil
	h.grouping = false
	h.groupBefore = nil
}

func (h *History) record(mutate func()) {
	if h.grouping {
		mutate()
		return
	}
	before := h.board.Snapshot()
	version := h.board.Version()
	mutate()
	if h.board.Version() == version {
		return
	}
	h.push(historyEntry{before: before, after: h.board.Snapshot()})
}

func (h *History) push(entry historyEntry) {
	h.past = append(h.past, entry)
	if len(h.past) > h.limit {
		h.past = append(h.past[:0:0], h.past[len(h.past)-h.limit:]...)
	}
	h.future = nil
}
