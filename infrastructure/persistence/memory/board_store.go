// Package memory provides an in-process BoardStore for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"flowboard/application/ports"
	"flowboard/domain/core/valueobjects"
	pkgerrors "flowboard/pkg/errors"
)

// BoardStore keeps board documents in a map keyed by user and board id
type BoardStore struct {
	mu     sync.RWMutex
	boards map[string]map[valueobjects.BoardID]ports.StoredBoard
	now    func() time.Time
}

// NewBoardStore creates an empty store
func NewBoardStore() *BoardStore {
	return &BoardStore{
		boards: make(map[string]map[valueobjects.BoardID]ports.StoredBoard),
		now:    time.Now,
	}
}

// Create implements ports.BoardStore
func (s *BoardStore) Create(_ context.Context, board ports.StoredBoard) error {
	if board.UserID == "" || board.ID == "" {
		return pkgerrors.NewValidationError("board requires an id and an owner")
	}
	if strings.TrimSpace(board.Name) == "" {
		return pkgerrors.NewValidationError("board name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userBoards, ok := s.boards[board.UserID]
	if !ok {
		userBoards = make(map[valueobjects.BoardID]ports.StoredBoard)
		s.boards[board.UserID] = userBoards
	}
	if _, exists := userBoards[board.ID]; exists {
		return pkgerrors.NewConflictError("board already exists")
	}

	now := s.now()
	if board.CreatedAt.IsZero() {
		board.CreatedAt = now
	}
	if board.UpdatedAt.IsZero() {
		board.UpdatedAt = board.CreatedAt
	}
	userBoards[board.ID] = board
	return nil
}

// Load implements ports.BoardStore
func (s *BoardStore) Load(_ context.Context, userID string, id valueobjects.BoardID) (*ports.StoredBoard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	board, ok := s.boards[userID][id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("board")
	}
	return &board, nil
}

// Save implements ports.BoardStore
func (s *BoardStore) Save(_ context.Context, userID string, id valueobjects.BoardID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, ok := s.boards[userID][id]
	if !ok {
		return pkgerrors.NewNotFoundError("board")
	}
	board.Content = content
	board.UpdatedAt = s.now()
	s.boards[userID][id] = board
	return nil
}

// List implements ports.BoardStore, newest first
func (s *BoardStore) List(_ context.Context, userID string) ([]ports.BoardSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ports.BoardSummary, 0, len(s.boards[userID]))
	for _, b := range s.boards[userID] {
		out = append(out, ports.BoardSummary{ID: b.ID, Name: b.Name, UpdatedAt: b.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete implements ports.BoardStore
func (s *BoardStore) Delete(_ context.Context, userID string, id valueobjects.BoardID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boards[userID][id]; !ok {
		return pkgerrors.NewNotFoundError("board")
	}
	delete(s.boards[userID], id)
	return nil
}
