package handlers

import (
	"context"
	"net/http"
	"strconv"

	"flowboard/application/services"
	"flowboard/domain/core/aggregates"
	"flowboard/domain/core/entities"
	"flowboard/domain/core/valueobjects"
	"flowboard/domain/interaction"
	"flowboard/domain/viewport"
	"flowboard/pkg/common"
	pkgerrors "flowboard/pkg/errors"
	"flowboard/pkg/utils"

	"go.uber.org/zap"
)

// Export bounds for GET /export.svg
const (
	defaultExportWidth  = 1200
	defaultExportHeight = 800
	maxExportSide       = 8000
)

// SessionHandler serves the live canvas of an open board
type SessionHandler struct {
	sessions *services.SessionManager
	notices  *services.NoticeInbox
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(
	sessions *services.SessionManager,
	notices *services.NoticeInbox,
	errs *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		notices:  notices,
		errors:   errs,
		logger:   logger,
	}
}

// CreateBlockRequest represents the request body for creating a block.
// Without a position the block spawns in the default visible region.
type CreateBlockRequest struct {
	Title   string   `json:"title" validate:"max=200"`
	Content string   `json:"content"`
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
}

// UpdateBlockRequest represents the request body for patching a block
type UpdateBlockRequest struct {
	Title   *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Content *string `json:"content,omitempty"`
	Color   *string `json:"color,omitempty"`
}

// MoveBlockRequest represents the request body for repositioning a block
type MoveBlockRequest struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

// ConnectionRequest names a directed connection
type ConnectionRequest struct {
	From string `json:"from" validate:"required,uuid"`
	To   string `json:"to" validate:"required,uuid"`
}

// InputRequest is one pointer, wheel or keyboard event in screen space
type InputRequest struct {
	Type   string  `json:"type" validate:"required,oneof=pointer_down pointer_move pointer_up wheel connect_click cancel"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaY float64 `json:"delta_y"`
	// NodeID is the pressed block header or the clicked block; empty
	// means the canvas background
	NodeID string `json:"node_id,omitempty" validate:"omitempty,uuid"`
}

// InputResponse reports what an input did
type InputResponse struct {
	From            string         `json:"from"`
	Mode            string         `json:"mode"`
	Mutated         bool           `json:"mutated"`
	Settled         bool           `json:"settled"`
	ViewportChanged bool           `json:"viewport_changed"`
	Connect         string         `json:"connect,omitempty"`
	Viewport        viewport.State `json:"viewport"`
}

// ConnectionResponse reports the result of a connect or disconnect
type ConnectionResponse struct {
	Result  string `json:"result"`
	Changed bool   `json:"changed"`
}

// ChangeResponse reports whether a request changed the board
type ChangeResponse struct {
	Changed bool `json:"changed"`
}

// AutoLinkResponse lists the blocks linked by an auto-link request
type AutoLinkResponse struct {
	Linked []string `json:"linked"`
}

// session resolves the board from the URL and opens it if needed
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*services.Session, bool) {
	userID, ok := currentUser(w, r, h.errors)
	if !ok {
		return nil, false
	}
	boardID, err := boardIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return nil, false
	}
	s, err := h.sessions.Open(r.Context(), userID, boardID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return nil, false
	}
	return s, true
}

// OpenSession handles POST /boards/{boardID}/session
func (h *SessionHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	common.RespondJSON(w, http.StatusOK, s.Status())
}

// SessionStatus handles GET /boards/{boardID}/session
func (h *SessionHandler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.errors)
	if !ok {
		return
	}
	boardID, err := boardIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	s, err := h.sessions.Get(userID, boardID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, s.Status())
}

// CloseSession handles DELETE /boards/{boardID}/session. A pending save is
// written before the session ends.
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.errors)
	if !ok {
		return
	}
	boardID, err := boardIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if err := h.sessions.Close(userID, boardID, true); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// CreateBlock handles POST /boards/{boardID}/blocks
func (h *SessionHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req CreateBlockRequest
	if !h.decode(w, r, &req) {
		return
	}
	if (req.X == nil) != (req.Y == nil) {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("x and y must be given together").WithCode(pkgerrors.CodeInvalidInput))
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var block entities.BlockState
	var err error
	if req.X != nil {
		block, err = s.CreateBlockAt(r.Context(), req.Title, req.Content, *req.X, *req.Y)
	} else {
		block, err = s.CreateBlock(r.Context(), req.Title, req.Content)
	}
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, block)
}

// UpdateBlock handles PATCH /boards/{boardID}/blocks/{blockID}
func (h *SessionHandler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	id, err := blockIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req UpdateBlockRequest
	if !h.decode(w, r, &req) {
		return
	}

	patch := aggregates.BlockPatch{Title: req.Title, Content: req.Content}
	if req.Color != nil {
		color, err := valueobjects.ParseColor(*req.Color)
		if err != nil {
			h.errors.Handle(w, r, err)
			return
		}
		patch.Color = &color
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	changed, err := s.UpdateBlock(r.Context(), id, patch)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, ChangeResponse{Changed: changed})
}

// MoveBlock handles PUT /boards/{boardID}/blocks/{blockID}/position
func (h *SessionHandler) MoveBlock(w http.ResponseWriter, r *http.Request) {
	id, err := blockIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req MoveBlockRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	moved, err := s.MoveBlock(r.Context(), id, *req.X, *req.Y)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, ChangeResponse{Changed: moved})
}

// DeleteBlock handles DELETE /boards/{boardID}/blocks/{blockID}
func (h *SessionHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	id, err := blockIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	deleted, err := s.DeleteBlock(r.Context(), id)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, ChangeResponse{Changed: deleted})
}

// AutoLink handles POST /boards/{boardID}/blocks/{blockID}/autolink
func (h *SessionHandler) AutoLink(w http.ResponseWriter, r *http.Request) {
	id, err := blockIDParam(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	linked, err := s.AutoConnect(r.Context(), id)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	resp := AutoLinkResponse{Linked: make([]string, 0, len(linked))}
	for _, target := range linked {
		resp.Linked = append(resp.Linked, target.String())
	}
	common.RespondJSON(w, http.StatusOK, resp)
}

// Connect handles POST /boards/{boardID}/connections. Self-loops and
// duplicates are reported in the result, not as errors.
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.connection(w, r)
	if !ok {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	result, err := s.Connect(r.Context(), from, to)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if result == aggregates.UnknownNode {
		h.errors.Handle(w, r, pkgerrors.NewNotFoundError("block"))
		return
	}
	common.RespondJSON(w, http.StatusOK, ConnectionResponse{
		Result:  result.String(),
		Changed: result == aggregates.Connected,
	})
}

// Disconnect handles DELETE /boards/{boardID}/connections
func (h *SessionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.connection(w, r)
	if !ok {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	removed, err := s.Disconnect(r.Context(), from, to)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	result := "not_connected"
	if removed {
		result = "disconnected"
	}
	common.RespondJSON(w, http.StatusOK, ConnectionResponse{Result: result, Changed: removed})
}

// Input handles POST /boards/{boardID}/input
func (h *SessionHandler) Input(w http.ResponseWriter, r *http.Request) {
	var req InputRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	out, err := s.HandleInput(r.Context(), in)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	resp := InputResponse{
		From:            out.From.String(),
		Mode:            out.To.String(),
		Mutated:         out.Mutated,
		Settled:         out.Settled,
		ViewportChanged: out.ViewportChanged,
		Viewport:        s.Status().Viewport,
	}
	if out.Connect != nil {
		resp.Connect = out.Connect.String()
	}
	common.RespondJSON(w, http.StatusOK, resp)
}

// ResetViewport handles POST /boards/{boardID}/viewport/reset
func (h *SessionHandler) ResetViewport(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	common.RespondJSON(w, http.StatusOK, s.ResetViewport())
}

// Undo handles POST /boards/{boardID}/undo
func (h *SessionHandler) Undo(w http.ResponseWriter, r *http.Request) {
	h.replay(w, r, (*services.Session).Undo)
}

// Redo handles POST /boards/{boardID}/redo
func (h *SessionHandler) Redo(w http.ResponseWriter, r *http.Request) {
	h.replay(w, r, (*services.Session).Redo)
}

// Frame handles GET /boards/{boardID}/frame
func (h *SessionHandler) Frame(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	common.RespondJSON(w, http.StatusOK, s.Frame())
}

// ExportSVG handles GET /boards/{boardID}/export.svg
func (h *SessionHandler) ExportSVG(w http.ResponseWriter, r *http.Request) {
	width, err := sizeParam(r, "width", defaultExportWidth)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	height, err := sizeParam(r, "height", defaultExportHeight)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(s.SVG(width, height)); err != nil {
		h.logger.Debug("Failed to write SVG export", zap.Error(err))
	}
}

// Notices handles GET /notices, draining the caller's transient notices
func (h *SessionHandler) Notices(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.errors)
	if !ok {
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"notices": h.notices.Drain(userID),
	})
}

func (h *SessionHandler) replay(w http.ResponseWriter, r *http.Request, op func(*services.Session, context.Context) (bool, error)) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	changed, err := op(s, r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, ChangeResponse{Changed: changed})
}

func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := common.DecodeJSON(w, r, dst); err != nil {
		h.errors.Handle(w, r, err)
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		h.errors.Handle(w, r, err)
		return false
	}
	return true
}

func (h *SessionHandler) connection(w http.ResponseWriter, r *http.Request) (valueobjects.NodeID, valueobjects.NodeID, bool) {
	var req ConnectionRequest
	if !h.decode(w, r, &req) {
		return valueobjects.NodeID{}, valueobjects.NodeID{}, false
	}
	from, err := valueobjects.NewNodeIDFromString(req.From)
	if err != nil {
		h.errors.Handle(w, r, err)
		return valueobjects.NodeID{}, valueobjects.NodeID{}, false
	}
	to, err := valueobjects.NewNodeIDFromString(req.To)
	if err != nil {
		h.errors.Handle(w, r, err)
		return valueobjects.NodeID{}, valueobjects.NodeID{}, false
	}
	return from, to, true
}

func (req InputRequest) toInput() (interaction.Input, error) {
	var node valueobjects.NodeID
	if req.NodeID != "" {
		id, err := valueobjects.NewNodeIDFromString(req.NodeID)
		if err != nil {
			return nil, err
		}
		node = id
	}

	switch req.Type {
	case "pointer_down":
		target := interaction.Background()
		if !node.IsZero() {
			target = interaction.NodeHeader(node)
		}
		return interaction.PointerDown{X: req.X, Y: req.Y, Target: target}, nil
	case "pointer_move":
		return interaction.PointerMove{X: req.X, Y: req.Y}, nil
	case "pointer_up":
		return interaction.PointerUp{X: req.X, Y: req.Y}, nil
	case "wheel":
		return interaction.Wheel{X: req.X, Y: req.Y, DeltaY: req.DeltaY}, nil
	case "connect_click":
		if node.IsZero() {
			return nil, pkgerrors.NewValidationError("connect_click requires node_id").WithCode(pkgerrors.CodeInvalidInput)
		}
		return interaction.ConnectClick{Node: node}, nil
	case "cancel":
		return interaction.Cancel{}, nil
	default:
		return nil, pkgerrors.NewValidationError("unknown input type: " + req.Type).WithCode(pkgerrors.CodeInvalidInput)
	}
}

func sizeParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxExportSide {
		return 0, pkgerrors.NewValidationError(name + " must be between 1 and " + strconv.Itoa(maxExportSide)).WithCode(pkgerrors.CodeInvalidInput)
	}
	return n, nil
}
