// Package supabase implements ports.BoardStore against the hosted Supabase
// boards table through its PostgREST API.
package supabase

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"flowboard/application/ports"
	"flowboard/domain/core/valueobjects"
	pkgerrors "flowboard/pkg/errors"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

const defaultTable = "boards"

type boardRow struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BoardStore talks to PostgREST with the service role key. Row level
// security is bypassed, so every query filters on user_id itself.
type BoardStore struct {
	client *supabase.Client
	table  string
	logger *zap.Logger
	now    func() time.Time
}

// NewBoardStore creates a store on an existing client
func NewBoardStore(client *supabase.Client, table string, logger *zap.Logger) *BoardStore {
	if table == "" {
		table = defaultTable
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardStore{client: client, table: table, logger: logger, now: time.Now}
}

// Create implements ports.BoardStore
func (s *BoardStore) Create(_ context.Context, board ports.StoredBoard) error {
	if board.UserID == "" || board.ID == "" {
		return pkgerrors.NewValidationError("board requires an id and an owner")
	}
	if strings.TrimSpace(board.Name) == "" {
		return pkgerrors.NewValidationError("board name cannot be empty")
	}
	now := s.now().UTC()
	if board.CreatedAt.IsZero() {
		board.CreatedAt = now
	}
	if board.UpdatedAt.IsZero() {
		board.UpdatedAt = board.CreatedAt
	}

	row := boardRow{
		ID:        board.ID.String(),
		UserID:    board.UserID,
		Name:      board.Name,
		Content:   board.Content,
		CreatedAt: board.CreatedAt,
		UpdatedAt: board.UpdatedAt,
	}
	_, _, err := s.client.From(s.table).Insert(row, false, "", "minimal", "").Execute()
	if err != nil {
		if isDuplicate(err) {
			return pkgerrors.NewConflictError("board already exists")
		}
		return pkgerrors.NewExternalError("supabase", err)
	}
	return nil
}

// Load implements ports.BoardStore
func (s *BoardStore) Load(_ context.Context, userID string, id valueobjects.BoardID) (*ports.StoredBoard, error) {
	var rows []boardRow
	_, err := s.client.From(s.table).
		Select("*", "", false).
		Eq("id", id.String()).
		Eq("user_id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, pkgerrors.NewExternalError("supabase", err)
	}
	if len(rows) == 0 {
		return nil, pkgerrors.NewNotFoundError("board")
	}
	board, err := rows[0].stored()
	if err != nil {
		return nil, err
	}
	return &board, nil
}

// Save implements ports.BoardStore
func (s *BoardStore) Save(_ context.Context, userID string, id valueobjects.BoardID, content string) error {
	patch := map[string]interface{}{
		"content":    content,
		"updated_at": s.now().UTC(),
	}
	data, _, err := s.client.From(s.table).
		Update(patch, "representation", "").
		Eq("id", id.String()).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return pkgerrors.NewExternalError("supabase", err)
	}
	return requireRows(data)
}

// List implements ports.BoardStore
func (s *BoardStore) List(_ context.Context, userID string) ([]ports.BoardSummary, error) {
	var rows []boardRow
	_, err := s.client.From(s.table).
		Select("id,name,updated_at", "", false).
		Eq("user_id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, pkgerrors.NewExternalError("supabase", err)
	}

	summaries := make([]ports.BoardSummary, 0, len(rows))
	for _, row := range rows {
		id, err := valueobjects.ParseBoardID(row.ID)
		if err != nil {
			s.logger.Warn("Skipping board row with invalid id", zap.String("boardID", row.ID))
			continue
		}
		summaries = append(summaries, ports.BoardSummary{ID: id, Name: row.Name, UpdatedAt: row.UpdatedAt})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// Delete implements ports.BoardStore
func (s *BoardStore) Delete(_ context.Context, userID string, id valueobjects.BoardID) error {
	data, _, err := s.client.From(s.table).
		Delete("representation", "").
		Eq("id", id.String()).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return pkgerrors.NewExternalError("supabase", err)
	}
	return requireRows(data)
}

func (r boardRow) stored() (ports.StoredBoard, error) {
	id, err := valueobjects.ParseBoardID(r.ID)
	if err != nil {
		return ports.StoredBoard{}, err
	}
	return ports.StoredBoard{
		ID:        id,
		UserID:    r.UserID,
		Name:      r.Name,
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

// requireRows turns an empty representation into NotFound
func requireRows(data []byte) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return pkgerrors.NewExternalError("supabase", err)
	}
	if len(rows) == 0 {
		return pkgerrors.NewNotFoundError("board")
	}
	return nil
}

func isDuplicate(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}
