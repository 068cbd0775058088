package commands

import (
	"context"
	"testing"
	"time"

	"flowboard/application/commands/bus"
	"flowboard/application/ports"
	"flowboard/domain/core/valueobjects"
	"flowboard/infrastructure/persistence/memory"
	pkgerrors "flowboard/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingCloser struct {
	closed []valueobjects.BoardID
	err    error
}

func (c *recordingCloser) Close(_ string, id valueobjects.BoardID, _ bool) error {
	c.closed = append(c.closed, id)
	return c.err
}

type commandRecorder struct {
	names []string
	errs  []error
}

func (r *commandRecorder) ObserveCommand(name string, err error, _ time.Duration) {
	r.names = append(r.names, name)
	r.errs = append(r.errs, err)
}

func newBus(t *testing.T, store ports.BoardStore, closer SessionCloser, rec bus.Recorder) *bus.CommandBus {
	t.Helper()
	b := bus.NewCommandBus(bus.LoggingMiddleware(zap.NewNop()), bus.MetricsMiddleware(rec))
	require.NoError(t, Register(b, store, closer, zap.NewNop()))
	return b
}

func TestCreateBoardCommandValidation(t *testing.T) {
	tests := []struct {
		name    string
		cmd     CreateBoardCommand
		wantErr bool
	}{
		{"valid", CreateBoardCommand{UserID: "u1", BoardID: valueobjects.NewBoardID().String(), Name: "Roadmap"}, false},
		{"blank name", CreateBoardCommand{UserID: "u1", BoardID: valueobjects.NewBoardID().String(), Name: "   "}, true},
		{"missing user", CreateBoardCommand{BoardID: valueobjects.NewBoardID().String(), Name: "Roadmap"}, true},
		{"bad id", CreateBoardCommand{UserID: "u1", BoardID: "nope", Name: "Roadmap"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCreateBoardStoresEmptyDocument(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBoardStore()
	rec := &commandRecorder{}
	b := newBus(t, store, nil, rec)
	id := valueobjects.NewBoardID()

	err := b.Send(ctx, CreateBoardCommand{UserID: "u1", BoardID: id.String(), Name: "  Roadmap "})
	require.NoError(t, err)

	stored, err := store.Load(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, "Roadmap", stored.Name)
	assert.Equal(t, `{"blocks":[]}`, stored.Content)
	assert.Equal(t, []string{"CreateBoardCommand"}, rec.names)

	err = b.Send(ctx, CreateBoardCommand{UserID: "u1", BoardID: id.String(), Name: "Again"})
	assert.True(t, pkgerrors.IsConflict(err))
	assert.Len(t, rec.names, 2)
	assert.Error(t, rec.errs[1])
}

func TestDeleteBoardClosesSessionFirst(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBoardStore()
	closer := &recordingCloser{err: pkgerrors.NewNotFoundError("board session")}
	b := newBus(t, store, closer, &commandRecorder{})
	id := valueobjects.NewBoardID()
	require.NoError(t, b.Send(ctx, CreateBoardCommand{UserID: "u1", BoardID: id.String(), Name: "Tmp"}))

	require.NoError(t, b.Send(ctx, DeleteBoardCommand{UserID: "u1", BoardID: id.String()}))

	assert.Equal(t, []valueobjects.BoardID{id}, closer.closed)
	_, err := store.Load(ctx, "u1", id)
	assert.True(t, pkgerrors.IsNotFound(err))

	err = b.Send(ctx, DeleteBoardCommand{UserID: "u1", BoardID: id.String()})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestCommandBusRejectsUnknownAndDuplicate(t *testing.T) {
	b := bus.NewCommandBus()

	err := b.Send(context.Background(), DeleteBoardCommand{UserID: "u1", BoardID: valueobjects.NewBoardID().String()})
	assert.Equal(t, pkgerrors.ErrorTypeInternal, pkgerrors.GetAppError(err).Type)

	handler := bus.CommandHandlerFunc(func(context.Context, bus.Command) error { return nil })
	require.NoError(t, b.Register(DeleteBoardCommand{}, handler))
	assert.Error(t, b.Register(DeleteBoardCommand{}, handler))
}
