// Package postgres implements ports.BoardStore on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"flowboard/application/ports"
	"flowboard/domain/core/valueobjects"
	pkgerrors "flowboard/pkg/errors"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const uniqueViolation = "23505"

// BoardStore keeps one row per board in the boards table
type BoardStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

var _ ports.BoardStore = (*BoardStore)(nil)

// Open connects to the database at databaseURL, configures the pool and
// applies pending migrations.
func Open(ctx context.Context, databaseURL string, logger *zap.Logger) (*BoardStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return NewBoardStore(db, logger), nil
}

// NewBoardStore wraps an open database handle
func NewBoardStore(db *sql.DB, logger *zap.Logger) *BoardStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardStore{db: db, logger: logger, now: time.Now}
}

// RunMigrations applies the embedded schema migrations
func RunMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool
func (s *BoardStore) Close() error {
	return s.db.Close()
}

// Ping checks the connection, used by the readiness check
func (s *BoardStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create implements ports.BoardStore
func (s *BoardStore) Create(ctx context.Context, board ports.StoredBoard) error {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO boards (id, user_id, name, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		board.ID.String(), board.UserID, board.Name, board.Content, board.CreatedAt, board.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return pkgerrors.NewConflictError("board already exists")
		}
		return pkgerrors.NewDatabaseError("create board", err)
	}
	return nil
}

// Load implements ports.BoardStore
func (s *BoardStore) Load(ctx context.Context, userID string, id valueobjects.BoardID) (*ports.StoredBoard, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, content, created_at, updated_at
		FROM boards WHERE id = $1 AND user_id = $2`,
		id.String(), userID,
	)

	var (
		rawID string
		board ports.StoredBoard
	)
	err := row.Scan(&rawID, &board.UserID, &board.Name, &board.Content, &board.CreatedAt, &board.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewNotFoundError("board")
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("load board", err)
	}
	if board.ID, err = valueobjects.ParseBoardID(rawID); err != nil {
		return nil, err
	}
	return &board, nil
}

// Save implements ports.BoardStore
func (s *BoardStore) Save(ctx context.Context, userID string, id valueobjects.BoardID, content string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE boards SET content = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4`,
		content, s.now().UTC(), id.String(), userID,
	)
	if err != nil {
		return pkgerrors.NewDatabaseError("save board", err)
	}
	return requireOneRow(res, "save board")
}

// List implements ports.BoardStore
func (s *BoardStore) List(ctx context.Context, userID string) ([]ports.BoardSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, updated_at FROM boards
		WHERE user_id = $1
		ORDER BY updated_at DESC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list boards", err)
	}
	defer rows.Close()

	summaries := make([]ports.BoardSummary, 0)
	for rows.Next() {
		var (
			rawID   string
			summary ports.BoardSummary
		)
		if err := rows.Scan(&rawID, &summary.Name, &summary.UpdatedAt); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan board", err)
		}
		if summary.ID, err = valueobjects.ParseBoardID(rawID); err != nil {
			s.logger.Warn("Skipping board row with invalid id", zap.String("boardID", rawID))
			continue
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("list boards", err)
	}
	return summaries, nil
}

// Delete implements ports.BoardStore
func (s *BoardStore) Delete(ctx context.Context, userID string, id valueobjects.BoardID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM boards WHERE id = $1 AND user_id = $2`, id.String(), userID)
	if err != nil {
		return pkgerrors.NewDatabaseError("delete board", err)
	}
	return requireOneRow(res, "delete board")
}

func requireOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.NewDatabaseError(op, err)
	}
	if n == 0 {
		return pkgerrors.NewNotFoundError("board")
	}
	return nil
}
