package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"flowboard/application/ports"
	"flowboard/domain/core/valueobjects"
	pkgerrors "flowboard/pkg/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*BoardStore, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store := NewBoardStore(db, nil)
	store.now = func() time.Time { return now }
	return store, mock, now
}

func TestCreate(t *testing.T) {
	id := valueobjects.NewBoardID()

	tests := []struct {
		name  string
		setup func(sqlmock.Sqlmock, time.Time)
		check func(*testing.T, error)
	}{
		{
			name: "inserts row",
			setup: func(mock sqlmock.Sqlmock, now time.Time) {
				mock.ExpectExec("INSERT INTO boards").
					WithArgs(id.String(), "u1", "Plan", `{"blocks":[]}`, now, now).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			check: func(t *testing.T, err error) { assert.NoError(t, err) },
		},
		{
			name: "duplicate id conflicts",
			setup: func(mock sqlmock.Sqlmock, _ time.Time) {
				mock.ExpectExec("INSERT INTO boards").
					WillReturnError(&pgconn.PgError{Code: uniqueViolation})
			},
			check: func(t *testing.T, err error) { assert.True(t, pkgerrors.IsConflict(err)) },
		},
		{
			name: "driver failure",
			setup: func(mock sqlmock.Sqlmock, _ time.Time) {
				mock.ExpectExec("INSERT INTO boards").WillReturnError(errors.New("connection reset"))
			},
			check: func(t *testing.T, err error) {
				assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock, now := newMockStore(t)
			tt.setup(mock, now)

			err := store.Create(context.Background(), ports.StoredBoard{
				ID: id, UserID: "u1", Name: "Plan", Content: `{"blocks":[]}`,
			})
			tt.check(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	store, mock, now := newMockStore(t)
	id := valueobjects.NewBoardID()
	cols := []string{"id", "user_id", "name", "content", "created_at", "updated_at"}

	mock.ExpectQuery("SELECT id, user_id, name, content, created_at, updated_at\\s+FROM boards").
		WithArgs(id.String(), "u1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(id.String(), "u1", "Plan", "{}", now, now))
	mock.ExpectQuery("FROM boards").
		WithArgs(id.String(), "u2").
		WillReturnError(sql.ErrNoRows)

	board, err := store.Load(context.Background(), "u1", id)
	require.NoError(t, err)
	assert.Equal(t, id, board.ID)
	assert.Equal(t, "{}", board.Content)

	_, err = store.Load(context.Background(), "u2", id)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestSaveAndDeleteRequireExistingRow(t *testing.T) {
	store, mock, now := newMockStore(t)
	id := valueobjects.NewBoardID()

	mock.ExpectExec("UPDATE boards SET content").
		WithArgs(`{"blocks":[]}`, now, id.String(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE boards SET content").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM boards").
		WithArgs(id.String(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Save(context.Background(), "u1", id, `{"blocks":[]}`))
	assert.True(t, pkgerrors.IsNotFound(store.Save(context.Background(), "u1", id, "{}")))
	assert.True(t, pkgerrors.IsNotFound(store.Delete(context.Background(), "u1", id)))
}

func TestList(t *testing.T) {
	store, mock, now := newMockStore(t)
	a := valueobjects.NewBoardID()
	b := valueobjects.NewBoardID()

	mock.ExpectQuery("SELECT id, name, updated_at FROM boards").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "updated_at"}).
			AddRow(a.String(), "Newer", now).
			AddRow("not-a-uuid", "Broken", now).
			AddRow(b.String(), "Older", now.Add(-time.Hour)))

	list, err := store.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Newer", list[0].Name)
	assert.Equal(t, b, list[1].ID)
}
