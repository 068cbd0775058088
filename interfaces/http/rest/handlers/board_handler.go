package handlers

import (
	"net/http"
	"strings"

	"flowboard/application/commands"
	"flowboard/application/commands/bus"
	"flowboard/application/queries"
	querybus "flowboard/application/queries/bus"
	"flowboard/pkg/common"
	pkgerrors "flowboard/pkg/errors"
	"flowboard/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BoardHandler handles board lifecycle requests through the buses
type BoardHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewBoardHandler creates a new board handler
func NewBoardHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errs *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *BoardHandler {
	return &BoardHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errs,
		logger:     logger,
	}
}

// CreateBoardRequest represents the request body for creating a board
type CreateBoardRequest struct {
	// ID lets a client retry a create without making a second board
	ID   string `json:"id,omitempty" validate:"omitempty,uuid"`
	Name string `json:"name" validate:"required,notblank,max=200"`
}

// CreateBoardResponse represents the response for creating a board
type CreateBoardResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListBoards handles GET /boards
func (h *BoardHandler) ListBoards(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.errors)
	if !ok {
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.ListBoardsQuery{UserID: userID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// CreateBoard handles POST /boards
func (h *BoardHandler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.errors)
	if !ok {
		return
	}

	var req CreateBoardRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	boardID := req.ID
	if boardID == "" {
		boardID = uuid.New().String()
	}

	cmd := commands.CreateBoardCommand{UserID: userID, BoardID: boardID, Name: req.Name}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v2/boards/"+boardID)
	common.RespondJSON(w, http.StatusCreated, CreateBoardResponse{ID: boardID, Name: strings.TrimSpace(cmd.Name)})
}

// GetBoard handles GET /boards/{boardID}
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.errors)
	if !ok {
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetBoardQuery{
		UserID:  userID,
		BoardID: chi.URLParam(r, "boardID"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// DeleteBoard handles DELETE /boards/{boardID}
func (h *BoardHandler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.errors)
	if !ok {
		return
	}

	cmd := commands.DeleteBoardCommand{UserID: userID, BoardID: chi.URLParam(r, "boardID")}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Info("Board deleted",
		zap.String("userID", userID),
		zap.String("boardID", cmd.BoardID),
	)
	common.RespondNoContent(w)
}
