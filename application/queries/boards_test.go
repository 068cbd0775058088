package queries

import (
	"context"
	"testing"
	"time"

	"flowboard/application/ports"
	"flowboard/application/queries/bus"
	"flowboard/domain/core/valueobjects"
	"flowboard/infrastructure/persistence/memory"
	pkgerrors "flowboard/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type queryRecorder struct {
	names []string
}

func (r *queryRecorder) ObserveQuery(name string, _ error, _ time.Duration) {
	r.names = append(r.names, name)
}

func setup(t *testing.T) (*bus.QueryBus, *memory.BoardStore, *queryRecorder) {
	t.Helper()
	store := memory.NewBoardStore()
	rec := &queryRecorder{}
	b := bus.NewQueryBus(bus.MetricsMiddleware(rec))
	require.NoError(t, Register(b, store, zap.NewNop()))
	return b, store, rec
}

func TestListBoards(t *testing.T) {
	ctx := context.Background()
	b, store, rec := setup(t)

	result, err := b.Ask(ctx, ListBoardsQuery{UserID: "u1"})
	require.NoError(t, err)
	list := result.(*ListBoardsResult)
	assert.NotNil(t, list.Boards)
	assert.Zero(t, list.Total)

	older := time.Now().Add(-time.Hour)
	require.NoError(t, store.Create(ctx, ports.StoredBoard{ID: valueobjects.NewBoardID(), UserID: "u1", Name: "Old", UpdatedAt: older, CreatedAt: older}))
	require.NoError(t, store.Create(ctx, ports.StoredBoard{ID: valueobjects.NewBoardID(), UserID: "u1", Name: "New"}))
	require.NoError(t, store.Create(ctx, ports.StoredBoard{ID: valueobjects.NewBoardID(), UserID: "u2", Name: "Theirs"}))

	result, err = b.Ask(ctx, ListBoardsQuery{UserID: "u1"})
	require.NoError(t, err)
	list = result.(*ListBoardsResult)
	require.Equal(t, 2, list.Total)
	assert.Equal(t, "New", list.Boards[0].Name)
	assert.Equal(t, "Old", list.Boards[1].Name)
	assert.Equal(t, []string{"ListBoardsQuery", "ListBoardsQuery"}, rec.names)

	_, err = b.Ask(ctx, ListBoardsQuery{})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestGetBoard(t *testing.T) {
	ctx := context.Background()
	b, store, _ := setup(t)

	good := valueobjects.NewBoardID()
	blockID := valueobjects.NewNodeID().String()
	require.NoError(t, store.Create(ctx, ports.StoredBoard{
		ID: good, UserID: "u1", Name: "Good",
		Content: `{"blocks":[{"id":"` + blockID + `","title":"A","content":"","x":1,"y":2,"color":"red","connections":[]}]}`,
	}))
	corrupt := valueobjects.NewBoardID()
	require.NoError(t, store.Create(ctx, ports.StoredBoard{ID: corrupt, UserID: "u1", Name: "Bad", Content: "{"}))

	tests := []struct {
		name       string
		query      GetBoardQuery
		wantBlocks int
		corrupt    bool
		check      func(error) bool
	}{
		{name: "stored document", query: GetBoardQuery{UserID: "u1", BoardID: good.String()}, wantBlocks: 1},
		{name: "corrupt content", query: GetBoardQuery{UserID: "u1", BoardID: corrupt.String()}, corrupt: true},
		{name: "other user", query: GetBoardQuery{UserID: "u2", BoardID: good.String()}, check: pkgerrors.IsNotFound},
		{name: "bad id", query: GetBoardQuery{UserID: "u1", BoardID: "x"}, check: pkgerrors.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := b.Ask(ctx, tt.query)
			if tt.check != nil {
				assert.True(t, tt.check(err))
				return
			}
			require.NoError(t, err)
			board := result.(*GetBoardResult)
			assert.Len(t, board.Blocks, tt.wantBlocks)
			assert.Equal(t, tt.corrupt, board.Corrupt)
		})
	}
}
