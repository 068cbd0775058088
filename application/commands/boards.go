package commands

import (
	"context"
	"strings"

	"flowboard/application/commands/bus"
	"flowboard/application/ports"
	"flowboard/domain/core/valueobjects"
	pkgerrors "flowboard/pkg/errors"
	"flowboard/pkg/utils"

	"go.uber.org/zap"
)

// CreateBoardCommand creates an empty board for a user. BoardID is generated
// by the caller so a retried request does not create a second board.
type CreateBoardCommand struct {
	UserID  string `json:"user_id" validate:"required"`
	BoardID string `json:"board_id" validate:"required,uuid"`
	Name    string `json:"name" validate:"required,notblank,max=200"`
}

// Validate implements bus.Command
func (c CreateBoardCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// DeleteBoardCommand removes a board and ends any open session on it
type DeleteBoardCommand struct {
	UserID  string `json:"user_id" validate:"required"`
	BoardID string `json:"board_id" validate:"required,uuid"`
}

// Validate implements bus.Command
func (c DeleteBoardCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// SessionCloser ends an open board session
type SessionCloser interface {
	Close(userID string, boardID valueobjects.BoardID, flush bool) error
}

// CreateBoardHandler handles CreateBoardCommand
type CreateBoardHandler struct {
	store  ports.BoardStore
	logger *zap.Logger
}

// NewCreateBoardHandler creates a new handler instance
func NewCreateBoardHandler(store ports.BoardStore, logger *zap.Logger) *CreateBoardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreateBoardHandler{store: store, logger: logger}
}

// Handle implements bus.CommandHandler
func (h *CreateBoardHandler) Handle(ctx context.Context, c bus.Command) error {
	cmd, ok := c.(CreateBoardCommand)
	if !ok {
		return pkgerrors.NewInternalError("unexpected command type")
	}

	id, err := valueobjects.ParseBoardID(cmd.BoardID)
	if err != nil {
		return err
	}
	content, err := ports.EncodeDocument(nil)
	if err != nil {
		return pkgerrors.NewInternalError("failed to encode empty board").WithCause(err)
	}

	board := ports.StoredBoard{
		ID:      id,
		UserID:  cmd.UserID,
		Name:    strings.TrimSpace(cmd.Name),
		Content: content,
	}
	if err := h.store.Create(ctx, board); err != nil {
		return err
	}

	h.logger.Info("Board created",
		zap.String("boardID", id.String()),
		zap.String("userID", cmd.UserID),
	)
	return nil
}

// DeleteBoardHandler handles DeleteBoardCommand
type DeleteBoardHandler struct {
	store    ports.BoardStore
	sessions SessionCloser
	logger   *zap.Logger
}

// NewDeleteBoardHandler creates a new handler instance. sessions may be nil
// when no editing sessions are hosted in this process.
func NewDeleteBoardHandler(store ports.BoardStore, sessions SessionCloser, logger *zap.Logger) *DeleteBoardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeleteBoardHandler{store: store, sessions: sessions, logger: logger}
}

// Handle implements bus.CommandHandler
func (h *DeleteBoardHandler) Handle(ctx context.Context, c bus.Command) error {
	cmd, ok := c.(DeleteBoardCommand)
	if !ok {
		return pkgerrors.NewInternalError("unexpected command type")
	}

	id, err := valueobjects.ParseBoardID(cmd.BoardID)
	if err != nil {
		return err
	}

	// The session goes first so a pending autosave cannot recreate the document.
	if h.sessions != nil {
		if err := h.sessions.Close(cmd.UserID, id, false); err != nil && !pkgerrors.IsNotFound(err) {
			return err
		}
	}

	if err := h.store.Delete(ctx, cmd.UserID, id); err != nil {
		return err
	}

	h.logger.Info("Board deleted",
		zap.String("boardID", id.String()),
		zap.String("userID", cmd.UserID),
	)
	return nil
}

// Register wires the board command handlers into a bus
func Register(b *bus.CommandBus, store ports.BoardStore, sessions SessionCloser, logger *zap.Logger) error {
	if err := b.Register(CreateBoardCommand{}, NewCreateBoardHandler(store, logger)); err != nil {
		return err
	}
	return b.Register(DeleteBoardCommand{}, NewDeleteBoardHandler(store, sessions, logger))
}
