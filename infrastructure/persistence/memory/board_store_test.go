package memory

import (
	"context"
	"testing"
	"time"

	"flowboard/application/ports"
	"flowboard/domain/core/valueobjects"
	pkgerrors "flowboard/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewBoardStore()
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	first := ports.StoredBoard{ID: valueobjects.NewBoardID(), UserID: "u1", Name: "First", Content: `{"blocks":[]}`}
	second := ports.StoredBoard{ID: valueobjects.NewBoardID(), UserID: "u1", Name: "Second"}
	require.NoError(t, store.Create(ctx, first))
	clock = clock.Add(time.Minute)
	require.NoError(t, store.Create(ctx, second))

	t.Run("duplicate create conflicts", func(t *testing.T) {
		err := store.Create(ctx, first)
		assert.True(t, pkgerrors.IsConflict(err))
	})

	t.Run("list is newest first", func(t *testing.T) {
		list, err := store.List(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Second", list[0].Name)
	})

	t.Run("save overwrites content and bumps updated_at", func(t *testing.T) {
		clock = clock.Add(time.Minute)
		require.NoError(t, store.Save(ctx, "u1", first.ID, `{"blocks":[{"id":"x"}]}`))

		loaded, err := store.Load(ctx, "u1", first.ID)
		require.NoError(t, err)
		assert.Equal(t, `{"blocks":[{"id":"x"}]}`, loaded.Content)

		list, _ := store.List(ctx, "u1")
		assert.Equal(t, "First", list[0].Name)
	})

	t.Run("other users cannot see the board", func(t *testing.T) {
		_, err := store.Load(ctx, "u2", first.ID)
		assert.True(t, pkgerrors.IsNotFound(err))
		assert.True(t, pkgerrors.IsNotFound(store.Save(ctx, "u2", first.ID, "")))
		assert.True(t, pkgerrors.IsNotFound(store.Delete(ctx, "u2", first.ID)))

		list, err := store.List(ctx, "u2")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("delete removes the board", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "u1", first.ID))
		_, err := store.Load(ctx, "u1", first.ID)
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestBoardStoreCreateValidation(t *testing.T) {
	store := NewBoardStore()

	err := store.Create(context.Background(), ports.StoredBoard{ID: valueobjects.NewBoardID(), UserID: "u1", Name: "  "})

	assert.True(t, pkgerrors.IsValidation(err))
}
