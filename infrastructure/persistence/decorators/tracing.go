package decorators

import (
	"context"

	"flowboard/application/ports"
	"flowboard/domain/core/valueobjects"
)

// SpanTracer opens named spans around store calls
type SpanTracer interface {
	Trace(ctx context.Context, name string, fn func(context.Context) error) error
	Annotate(ctx context.Context, key, value string)
}

// TracingBoardStore records every call as a "store.<op>" span
type TracingBoardStore struct {
	base   ports.BoardStore
	tracer SpanTracer
}

// NewTracingBoardStore wraps base with tracing
func NewTracingBoardStore(base ports.BoardStore, tracer SpanTracer) *TracingBoardStore {
	return &TracingBoardStore{base: base, tracer: tracer}
}

func (s *TracingBoardStore) trace(ctx context.Context, op, userID, boardID string, fn func(context.Context) error) error {
	return s.tracer.Trace(ctx, "store."+op, func(ctx context.Context) error {
		s.tracer.Annotate(ctx, "user_id", userID)
		if boardID != "" {
			s.tracer.Annotate(ctx, "board_id", boardID)
		}
		return fn(ctx)
	})
}

// Create implements ports.BoardStore
func (s *TracingBoardStore) Create(ctx context.Context, board ports.StoredBoard) error {
	return s.trace(ctx, "create", board.UserID, board.ID.String(), func(ctx context.Context) error {
		return s.base.Create(ctx, board)
	})
}

// Load implements ports.BoardStore
func (s *TracingBoardStore) Load(ctx context.Context, userID string, id valueobjects.BoardID) (board *ports.StoredBoard, err error) {
	err = s.trace(ctx, "load", userID, id.String(), func(ctx context.Context) error {
		board, err = s.base.Load(ctx, userID, id)
		return err
	})
	return board, err
}

// Save implements ports.BoardStore
func (s *TracingBoardStore) Save(ctx context.Context, userID string, id valueobjects.BoardID, content string) error {
	return s.trace(ctx, "save", userID, id.String(), func(ctx context.Context) error {
		return s.base.Save(ctx, userID, id, content)
	})
}

// List implements ports.BoardStore
func (s *TracingBoardStore) List(ctx context.Context, userID string) (boards []ports.BoardSummary, err error) {
	err = s.trace(ctx, "list", userID, "", func(ctx context.Context) error {
		boards, err = s.base.List(ctx, userID)
		return err
	})
	return boards, err
}

// Delete implements ports.BoardStore
func (s *TracingBoardStore) Delete(ctx context.Context, userID string, id valueobjects.BoardID) error {
	return s.trace(ctx, "delete", userID, id.String(), func(ctx context.Context) error {
		return s.base.Delete(ctx, userID, id)
	})
}
