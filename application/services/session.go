package services

import (
	"context"
	"sync"
	"time"

	"flowboard/application/autosave"
	"flowboard/application/ports"
	"flowboard/domain/core/aggregates"
	"flowboard/domain/core/entities"
	"flowboard/domain/core/valueobjects"
	"flowboard/domain/interaction"
	"flowboard/domain/render"
	"flowboard/domain/viewport"
	pkgerrors "flowboard/pkg/errors"

	"go.uber.org/zap"
)

// Session is one open board: the graph model with its undo history, the
// viewport, the interaction machine and the auto-saver. The model is
// single-owner; the mutex serialises concurrent callers such as HTTP requests.
type Session struct {
	mu sync.Mutex

	userID  string
	board   *aggregates.Board
	history *aggregates.History
	vp      *viewport.Viewport
	machine *interaction.Machine
	saver   *autosave.Saver
	linker  *AutoLinker

	publisher ports.EventPublisher
	logger    *zap.Logger

	openedAt   time.Time
	lastActive time.Time
	closed     bool
}

// SessionStatus summarises a session for clients
type SessionStatus struct {
	BoardID    string          `json:"board_id"`
	Name       string          `json:"name"`
	Blocks     int             `json:"blocks"`
	Mode       string          `json:"mode"`
	Viewport   viewport.State  `json:"viewport"`
	CanUndo    bool            `json:"can_undo"`
	CanRedo    bool            `json:"can_redo"`
	Autosave   autosave.Status `json:"autosave"`
	OpenedAt   time.Time       `json:"opened_at"`
	LastActive time.Time       `json:"last_active"`
}

type sessionDeps struct {
	userID    string
	board     *aggregates.Board
	saver     *autosave.Saver
	linker    *AutoLinker
	publisher ports.EventPublisher
	logger    *zap.Logger
}

func newSession(deps sessionDeps) *Session {
	cfg := deps.board.Config()
	history := aggregates.NewHistory(deps.board, cfg.HistoryLimit)
	vp := viewport.NewWithConfig(cfg)
	now := time.Now()
	return &Session{
		userID:     deps.userID,
		board:      deps.board,
		history:    history,
		vp:         vp,
		machine:    interaction.NewMachine(vp, history),
		saver:      deps.saver,
		linker:     deps.linker,
		publisher:  deps.publisher,
		logger:     deps.logger.With(zap.String("boardID", deps.board.ID().String())),
		openedAt:   now,
		lastActive: now,
	}
}

// BoardID returns the id of the open board
func (s *Session) BoardID() valueobjects.BoardID {
	return s.board.ID()
}

// UserID returns the owner of the session
func (s *Session) UserID() string {
	return s.userID
}

// CreateBlock adds a block at a spawn position
func (s *Session) CreateBlock(ctx context.Context, title, content string) (entities.BlockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return entities.BlockState{}, err
	}

	block, err := s.history.CreateNode(title, content)
	if err != nil {
		return entities.BlockState{}, err
	}
	s.settle(ctx)
	return block.State(), nil
}

// CreateBlockAt adds a block at an explicit world position
func (s *Session) CreateBlockAt(ctx context.Context, title, content string, x, y float64) (entities.BlockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return entities.BlockState{}, err
	}

	block, err := s.history.CreateNodeAt(title, content, x, y)
	if err != nil {
		return entities.BlockState{}, err
	}
	s.settle(ctx)
	return block.State(), nil
}

// UpdateBlock patches a block. Unknown ids are a no-op.
func (s *Session) UpdateBlock(ctx context.Context, id valueobjects.NodeID, patch aggregates.BlockPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	changed, err := s.history.UpdateNode(id, patch)
	if err != nil {
		return false, err
	}
	if changed {
		s.settle(ctx)
	}
	return changed, nil
}

// MoveBlock repositions a block
func (s *Session) MoveBlock(ctx context.Context, id valueobjects.NodeID, x, y float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	moved := s.history.MoveNode(id, x, y)
	if moved {
		s.settle(ctx)
	}
	return moved, nil
}

// DeleteBlock removes a block and every connection into it
func (s *Session) DeleteBlock(ctx context.Context, id valueobjects.NodeID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	deleted := s.history.DeleteNode(id)
	if deleted {
		s.settle(ctx)
	}
	return deleted, nil
}

// Connect adds a directed connection
func (s *Session) Connect(ctx context.Context, from, to valueobjects.NodeID) (aggregates.ConnectResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return aggregates.UnknownNode, err
	}

	result := s.history.Connect(from, to)
	if result == aggregates.Connected {
		s.settle(ctx)
	}
	return result, nil
}

// Disconnect removes a directed connection
func (s *Session) Disconnect(ctx context.Context, from, to valueobjects.NodeID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	removed := s.history.Disconnect(from, to)
	if removed {
		s.settle(ctx)
	}
	return removed, nil
}

// AutoConnect links a block to the blocks whose text is most similar to its
// own. Pairs already connected in either direction are skipped. All links
// made by one call undo together.
func (s *Session) AutoConnect(ctx context.Context, id valueobjects.NodeID) ([]valueobjects.NodeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if _, ok := s.board.Block(id); !ok {
		return nil, pkgerrors.NewNotFoundError("block")
	}

	var linked []valueobjects.NodeID
	s.history.BeginGroup()
	for _, target := range s.linker.Suggest(s.board, id) {
		if s.history.Connect(id, target) == aggregates.Connected {
			linked = append(linked, target)
		}
	}
	s.history.EndGroup()

	if len(linked) > 0 {
		s.settle(ctx)
	}
	return linked, nil
}

// HandleInput feeds one pointer, wheel or keyboard event to the interaction
// machine. A save is scheduled when a gesture that changed the graph settles.
func (s *Session) HandleInput(ctx context.Context, in interaction.Input) (interaction.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return interaction.Outcome{}, err
	}

	if _, ok := in.(interaction.PointerDown); ok {
		// a press may start a drag; moves until release undo as one step
		s.history.BeginGroup()
	}
	out := s.machine.Handle(in)
	if out.To != interaction.DraggingNode {
		s.history.EndGroup()
	}
	s.lastActive = time.Now()

	if out.Settled {
		s.settle(ctx)
	}
	return out, nil
}

// ResetViewport restores zoom 1 and pan (0, 0)
func (s *Session) ResetViewport() viewport.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vp.Reset()
	return s.vp.State()
}

// Undo reverts the last recorded mutation
func (s *Session) Undo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	if !s.history.Undo() {
		return false, nil
	}
	s.settle(ctx)
	return true, nil
}

// Redo re-applies the last undone mutation
func (s *Session) Redo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	if !s.history.Redo() {
		return false, nil
	}
	s.settle(ctx)
	return true, nil
}

// Frame renders the board under the current viewport
func (s *Session) Frame() render.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return render.BuildFrame(s.board, s.vp)
}

// SVG exports the board under the current viewport
func (s *Session) SVG(width, height int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return render.SVG(s.board, s.vp, width, height)
}

// Snapshot returns a deep copy of the blocks
func (s *Session) Snapshot() []entities.BlockState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Snapshot()
}

// Edges returns the derived edge list
func (s *Session) Edges() []aggregates.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Edges()
}

// Status summarises the session
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStatus{
		BoardID:    s.board.ID().String(),
		Name:       s.board.Name(),
		Blocks:     s.board.Len(),
		Mode:       s.machine.Mode().String(),
		Viewport:   s.vp.State(),
		CanUndo:    s.history.CanUndo(),
		CanRedo:    s.history.CanRedo(),
		Autosave:   s.saver.Status(),
		OpenedAt:   s.openedAt,
		LastActive: s.lastActive,
	}
}

// matchesStored reports whether content is what the session last read or
// wrote, or whether local edits are still waiting to be written
func (s *Session) matchesStored(content string) bool {
	return s.saver.Matches(content)
}

// touch marks the session as used
func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// idleSince returns when the session was last used
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// SetAutosaveDelay changes the quiet period before a save
func (s *Session) SetAutosaveDelay(d time.Duration) {
	s.saver.SetDelay(d)
}

// Flush writes a pending save now
func (s *Session) Flush() bool {
	return s.saver.Flush()
}

// Close ends the session. A pending save is dropped; a save already writing
// completes unobserved.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.saver.Cancel() {
		s.logger.Info("Dropped pending save on close")
	}
}

func (s *Session) checkOpen() error {
	if s.closed {
		return pkgerrors.NewConflictError("board session is closed").WithCode(pkgerrors.CodeSessionClosed)
	}
	return nil
}

// settle publishes raised events and schedules a save. Called with mu held.
func (s *Session) settle(ctx context.Context) {
	s.lastActive = time.Now()

	if evts := s.board.GetUncommittedEvents(); len(evts) > 0 {
		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, evts); err != nil {
				s.logger.Warn("Failed to publish board events", zap.Error(err))
			}
		}
		s.board.MarkEventsAsCommitted()
	}

	s.saver.Schedule(s.board.Snapshot())
}
