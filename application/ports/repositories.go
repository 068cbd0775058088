package ports

import (
	"context"
	"time"

	"flowboard/domain/core/valueobjects"
	"flowboard/domain/events"
)

// StoredBoard is a board document as the store keeps it. Content is the
// serialised block list; the store never looks inside it.
type StoredBoard struct {
	ID        valueobjects.BoardID `json:"id"`
	UserID    string               `json:"user_id"`
	Name      string               `json:"name"`
	Content   string               `json:"content"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// BoardSummary is the lightweight listing entry used by board switchers
type BoardSummary struct {
	ID        valueobjects.BoardID `json:"id"`
	Name      string               `json:"name"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// BoardStore defines the persistence boundary for board documents.
// Every call is scoped to one user; implementations must not return or touch
// another user's boards.
type BoardStore interface {
	// Create persists a new board document
	Create(ctx context.Context, board StoredBoard) error

	// Load fetches one board document
	Load(ctx context.Context, userID string, id valueobjects.BoardID) (*StoredBoard, error)

	// Save overwrites the content of an existing board (last write wins)
	Save(ctx context.Context, userID string, id valueobjects.BoardID, content string) error

	// List returns summaries of all the user's boards
	List(ctx context.Context, userID string) ([]BoardSummary, error)

	// Delete removes a board document
	Delete(ctx context.Context, userID string, id valueobjects.BoardID) error
}

// NoticeLevel classifies a transient notification
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a transient, user-facing message such as a failed save
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	UserID  string      `json:"-"`
	BoardID string      `json:"board_id,omitempty"`
	At      time.Time   `json:"at"`
}

// Notifier delivers transient notices to the user
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends events to subscribers
	Publish(ctx context.Context, events []events.DomainEvent) error
}
