package queries

import (
	"context"

	"flowboard/application/ports"
	"flowboard/application/queries/bus"
	"flowboard/domain/core/entities"
	"flowboard/domain/core/valueobjects"
	pkgerrors "flowboard/pkg/errors"
	"flowboard/pkg/utils"

	"go.uber.org/zap"
)

// ListBoardsQuery lists a user's boards, newest first
type ListBoardsQuery struct {
	UserID string `json:"user_id" validate:"required"`
}

// Validate implements bus.Query
func (q ListBoardsQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// ListBoardsResult is returned by ListBoardsQuery
type ListBoardsResult struct {
	Boards []ports.BoardSummary `json:"boards"`
	Total  int                  `json:"total"`
}

// GetBoardQuery fetches the stored document of one board
type GetBoardQuery struct {
	UserID  string `json:"user_id" validate:"required"`
	BoardID string `json:"board_id" validate:"required,uuid"`
}

// Validate implements bus.Query
func (q GetBoardQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetBoardResult is returned by GetBoardQuery
type GetBoardResult struct {
	ID     valueobjects.BoardID  `json:"id"`
	Name   string                `json:"name"`
	Blocks []entities.BlockState `json:"blocks"`
	// Corrupt is set when the stored content could not be parsed; Blocks is
	// then empty and the stored content is left as is.
	Corrupt bool `json:"corrupt,omitempty"`
}

// ListBoardsHandler handles ListBoardsQuery
type ListBoardsHandler struct {
	store ports.BoardStore
}

// NewListBoardsHandler creates a new handler instance
func NewListBoardsHandler(store ports.BoardStore) *ListBoardsHandler {
	return &ListBoardsHandler{store: store}
}

// Handle implements bus.QueryHandler
func (h *ListBoardsHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(ListBoardsQuery)
	if !ok {
		return nil, pkgerrors.NewInternalError("unexpected query type")
	}

	boards, err := h.store.List(ctx, query.UserID)
	if err != nil {
		return nil, err
	}
	if boards == nil {
		boards = []ports.BoardSummary{}
	}
	return &ListBoardsResult{Boards: boards, Total: len(boards)}, nil
}

// GetBoardHandler handles GetBoardQuery
type GetBoardHandler struct {
	store  ports.BoardStore
	logger *zap.Logger
}

// NewGetBoardHandler creates a new handler instance
func NewGetBoardHandler(store ports.BoardStore, logger *zap.Logger) *GetBoardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GetBoardHandler{store: store, logger: logger}
}

// Handle implements bus.QueryHandler
func (h *GetBoardHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(GetBoardQuery)
	if !ok {
		return nil, pkgerrors.NewInternalError("unexpected query type")
	}

	id, err := valueobjects.ParseBoardID(query.BoardID)
	if err != nil {
		return nil, err
	}
	stored, err := h.store.Load(ctx, query.UserID, id)
	if err != nil {
		return nil, err
	}

	result := &GetBoardResult{ID: stored.ID, Name: stored.Name, Blocks: []entities.BlockState{}}
	doc, err := ports.DecodeDocument(stored.Content)
	if err != nil {
		h.logger.Warn("Stored board content is unreadable",
			zap.String("boardID", id.String()),
			zap.Error(err),
		)
		result.Corrupt = true
		return result, nil
	}
	if doc.Blocks != nil {
		result.Blocks = doc.Blocks
	}
	return result, nil
}

// Register wires the board query handlers into a bus
func Register(b *bus.QueryBus, store ports.BoardStore, logger *zap.Logger) error {
	if err := b.Register(ListBoardsQuery{}, NewListBoardsHandler(store)); err != nil {
		return err
	}
	return b.Register(GetBoardQuery{}, NewGetBoardHandler(store, logger))
}
