package decorators

import (
	"context"
	"time"

	"flowboard/application/ports"
	"flowboard/domain/core/valueobjects"
)

// StoreRecorder observes board store calls
type StoreRecorder interface {
	ObserveStoreOperation(operation string, err error, duration time.Duration)
}

// InstrumentedBoardStore reports the outcome and latency of every call
type InstrumentedBoardStore struct {
	base     ports.BoardStore
	recorder StoreRecorder
}

// NewInstrumentedBoardStore wraps base with metrics
func NewInstrumentedBoardStore(base ports.BoardStore, recorder StoreRecorder) *InstrumentedBoardStore {
	return &InstrumentedBoardStore{base: base, recorder: recorder}
}

func (s *InstrumentedBoardStore) observe(op string, start time.Time, err error) {
	s.recorder.ObserveStoreOperation(op, err, time.Since(start))
}

// Create implements ports.BoardStore
func (s *InstrumentedBoardStore) Create(ctx context.Context, board ports.StoredBoard) (err error) {
	defer func(start time.Time) { s.observe("create", start, err) }(time.Now())
	return s.base.Create(ctx, board)
}

// Load implements ports.BoardStore
func (s *InstrumentedBoardStore) Load(ctx context.Context, userID string, id valueobjects.BoardID) (board *ports.StoredBoard, err error) {
	defer func(start time.Time) { s.observe("load", start, err) }(time.Now())
	return s.base.Load(ctx, userID, id)
}

// Save implements ports.BoardStore
func (s *InstrumentedBoardStore) Save(ctx context.Context, userID string, id valueobjects.BoardID, content string) (err error) {
	defer func(start time.Time) { s.observe("save", start, err) }(time.Now())
	return s.base.Save(ctx, userID, id, content)
}

// List implements ports.BoardStore
func (s *InstrumentedBoardStore) List(ctx context.Context, userID string) (boards []ports.BoardSummary, err error) {
	defer func(start time.Time) { s.observe("list", start, err) }(time.Now())
	return s.base.List(ctx, userID)
}

// Delete implements ports.BoardStore
func (s *InstrumentedBoardStore) Delete(ctx context.Context, userID string, id valueobjects.BoardID) (err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())
	return s.base.Delete(ctx, userID, id)
}
