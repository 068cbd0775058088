package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"flowboard/application/ports"
	"flowboard/domain/config"
	"flowboard/domain/core/aggregates"
	"flowboard/domain/core/entities"
	"flowboard/domain/core/valueobjects"
	"flowboard/domain/interaction"
	"flowboard/infrastructure/persistence/memory"
	pkgerrors "flowboard/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const userID = "user-1"

type failingStore struct {
	*memory.BoardStore
	saveErr error
}

func (s *failingStore) Save(ctx context.Context, userID string, id valueobjects.BoardID, content string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.BoardStore.Save(ctx, userID, id, content)
}

func newManager(t *testing.T, store ports.BoardStore, inbox *NoticeInbox) *SessionManager {
	t.Helper()
	cfg := SessionManagerConfig{
		Store:         store,
		AutosaveDelay: 20 * time.Millisecond,
		Logger:        zap.NewNop(),
	}
	if inbox != nil {
		cfg.Notifier = inbox
	}
	return NewSessionManager(cfg)
}

func createBoard(t *testing.T, store ports.BoardStore, content string) valueobjects.BoardID {
	t.Helper()
	id := valueobjects.NewBoardID()
	require.NoError(t, store.Create(context.Background(), ports.StoredBoard{
		ID: id, UserID: userID, Name: "Board", Content: content,
	}))
	return id
}

func TestOpenParsesStoredDocument(t *testing.T) {
	store := memory.NewBoardStore()
	a := valueobjects.NewNodeID().String()
	b := valueobjects.NewNodeID().String()
	content := `{"blocks":[
		{"id":"` + a + `","title":"A","content":"","x":0,"y":0,"color":"blue","connections":["` + b + `"]},
		{"id":"` + b + `","title":"B","content":"","x":100,"y":100,"color":"green","connections":[]}]}`
	id := createBoard(t, store, content)
	m := newManager(t, store, NewNoticeInbox(0, nil))

	s, err := m.Open(context.Background(), userID, id)
	require.NoError(t, err)

	assert.Len(t, s.Snapshot(), 2)
	edges := s.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, a, edges[0].From.String())

	again, err := m.Open(context.Background(), userID, id)
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, 1, m.Count())
}

func TestOpenWithCorruptContentYieldsEmptyBoard(t *testing.T) {
	store := memory.NewBoardStore()
	id := createBoard(t, store, `{"blocks":[{"id":`)
	inbox := NewNoticeInbox(0, nil)
	m := newManager(t, store, inbox)

	s, err := m.Open(context.Background(), userID, id)
	require.NoError(t, err)

	assert.Empty(t, s.Snapshot())
	notices := inbox.Drain(userID)
	require.Len(t, notices, 1)
	assert.Equal(t, ports.NoticeWarning, notices[0].Level)

	// nothing was written back
	time.Sleep(50 * time.Millisecond)
	stored, err := store.Load(context.Background(), userID, id)
	require.NoError(t, err)
	assert.Equal(t, `{"blocks":[{"id":`, stored.Content)
}

func TestOpenUnknownBoard(t *testing.T) {
	m := newManager(t, memory.NewBoardStore(), nil)

	_, err := m.Open(context.Background(), userID, valueobjects.NewBoardID())

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestRapidMovesSaveOnceWithFinalPosition(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBoardStore()
	id := createBoard(t, store, "")
	m := newManager(t, store, nil)
	s, err := m.Open(ctx, userID, id)
	require.NoError(t, err)

	block, err := s.CreateBlockAt(ctx, "A", "", 0, 0)
	require.NoError(t, err)
	blockID, _ := valueobjects.NewNodeIDFromString(block.ID)
	for i := 1; i <= 10; i++ {
		_, err := s.MoveBlock(ctx, blockID, float64(i*10), 5)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return s.Status().Autosave.Saves == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, s.Status().Autosave.Saves)

	stored, _ := store.Load(ctx, userID, id)
	doc, err := ports.DecodeDocument(stored.Content)
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, 100.0, doc.Blocks[0].X)
}

func TestSaveFailureKeepsLocalStateAndNotifies(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{BoardStore: memory.NewBoardStore(), saveErr: errors.New("store unavailable")}
	id := createBoard(t, store, "")
	inbox := NewNoticeInbox(0, nil)
	m := newManager(t, store, inbox)
	s, err := m.Open(ctx, userID, id)
	require.NoError(t, err)

	_, err = s.CreateBlock(ctx, "Kept", "")
	require.NoError(t, err)
	require.True(t, s.Flush())

	assert.Len(t, s.Snapshot(), 1)
	notices := inbox.Drain(userID)
	require.Len(t, notices, 1)
	assert.Equal(t, ports.NoticeError, notices[0].Level)
	assert.Equal(t, id.String(), notices[0].BoardID)
}

func TestDeleteBlockCleansConnections(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBoardStore()
	m := newManager(t, store, nil)
	s, err := m.Open(ctx, userID, createBoard(t, store, ""))
	require.NoError(t, err)

	a, _ := s.CreateBlock(ctx, "A", "")
	b, _ := s.CreateBlock(ctx, "B", "")
	aID, _ := valueobjects.NewNodeIDFromString(a.ID)
	bID, _ := valueobjects.NewNodeIDFromString(b.ID)

	result, err := s.Connect(ctx, aID, bID)
	require.NoError(t, err)
	require.Equal(t, aggregates.Connected, result)

	deleted, err := s.DeleteBlock(ctx, bID)
	require.NoError(t, err)
	require.True(t, deleted)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Empty(t, snap[0].Connections)

	undone, err := s.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, undone)
	assert.Len(t, s.Edges(), 1)
}

func TestHandleInputDragIsOneUndoStep(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBoardStore()
	m := newManager(t, store, nil)
	s, err := m.Open(ctx, userID, createBoard(t, store, ""))
	require.NoError(t, err)

	block, _ := s.CreateBlockAt(ctx, "A", "", 0, 0)
	id, _ := valueobjects.NewNodeIDFromString(block.ID)

	out, err := s.HandleInput(ctx, interaction.PointerDown{X: 10, Y: 10, Target: interaction.NodeHeader(id)})
	require.NoError(t, err)
	require.Equal(t, interaction.DraggingNode, out.To)
	for i := 1; i <= 5; i++ {
		_, err = s.HandleInput(ctx, interaction.PointerMove{X: 10 + float64(i*20), Y: 10})
		require.NoError(t, err)
	}
	out, err = s.HandleInput(ctx, interaction.PointerUp{X: 110, Y: 10})
	require.NoError(t, err)
	assert.True(t, out.Settled)

	assert.Equal(t, 100.0, s.Snapshot()[0].X)

	undone, _ := s.Undo(ctx)
	require.True(t, undone)
	assert.Equal(t, 0.0, s.Snapshot()[0].X)
}

func TestClosedSessionRejectsMutations(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBoardStore()
	m := NewSessionManager(SessionManagerConfig{Store: store, AutosaveDelay: 200 * time.Millisecond})
	id := createBoard(t, store, "")
	s, err := m.Open(ctx, userID, id)
	require.NoError(t, err)

	_, err = s.CreateBlock(ctx, "A", "")
	require.NoError(t, err)
	require.NoError(t, m.Close(userID, id, false))

	_, err = s.CreateBlock(ctx, "B", "")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeSessionClosed, pkgerrors.GetAppError(err).Code)

	// the pending save was dropped
	time.Sleep(300 * time.Millisecond)
	stored, _ := store.Load(ctx, userID, id)
	assert.Empty(t, stored.Content)

	_, err = m.Get(userID, id)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestCloseWithFlushWritesPendingSave(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBoardStore()
	m := NewSessionManager(SessionManagerConfig{Store: store, AutosaveDelay: time.Hour})
	id := createBoard(t, store, "")
	s, err := m.Open(ctx, userID, id)
	require.NoError(t, err)

	_, err = s.CreateBlock(ctx, "A", "")
	require.NoError(t, err)
	require.NoError(t, m.Close(userID, id, true))

	stored, _ := store.Load(ctx, userID, id)
	doc, err := ports.DecodeDocument(stored.Content)
	require.NoError(t, err)
	assert.Len(t, doc.Blocks, 1)
}

func TestCloseAllWritesPendingSaves(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBoardStore()
	m := NewSessionManager(SessionManagerConfig{Store: store, AutosaveDelay: time.Hour})
	id := createBoard(t, store, "")
	s, err := m.Open(ctx, userID, id)
	require.NoError(t, err)

	_, err = s.CreateBlock(ctx, "A", "")
	require.NoError(t, err)
	m.CloseAll(ctx)
	assert.Equal(t, 0, m.Count())

	stored, _ := store.Load(ctx, userID, id)
	doc, err := ports.DecodeDocument(stored.Content)
	require.NoError(t, err)
	assert.Len(t, doc.Blocks, 1)
}

func TestOpenReloadsWhenStoreChangedElsewhere(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBoardStore()
	id := createBoard(t, store, "")
	first := NewSessionManager(SessionManagerConfig{Store: store, AutosaveDelay: time.Hour})
	second := NewSessionManager(SessionManagerConfig{Store: store, AutosaveDelay: time.Hour})

	a, err := first.Open(ctx, userID, id)
	require.NoError(t, err)
	b, err := second.Open(ctx, userID, id)
	require.NoError(t, err)

	_, err = a.CreateBlock(ctx, "First", "")
	require.NoError(t, err)
	require.True(t, a.Flush())

	b, err = second.Open(ctx, userID, id)
	require.NoError(t, err)
	_, err = b.CreateBlock(ctx, "Second", "")
	require.NoError(t, err)
	require.True(t, b.Flush())

	stored, _ := store.Load(ctx, userID, id)
	doc, err := ports.DecodeDocument(stored.Content)
	require.NoError(t, err)
	titles := make([]string, 0, len(doc.Blocks))
	for _, block := range doc.Blocks {
		titles = append(titles, block.Title)
	}
	assert.ElementsMatch(t, []string{"First", "Second"}, titles)
	assert.Equal(t, 1, second.Count())

	// the first instance's session is behind now and is rebuilt on open
	reopened, err := first.Open(ctx, userID, id)
	require.NoError(t, err)
	assert.NotSame(t, a, reopened)
	assert.Len(t, reopened.Snapshot(), 2)

	first.CloseAll(ctx)
	second.CloseAll(ctx)
}

func TestOpenKeepsSessionWithUnsavedEdits(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBoardStore()
	id := createBoard(t, store, "")
	m := NewSessionManager(SessionManagerConfig{Store: store, AutosaveDelay: time.Hour})
	s, err := m.Open(ctx, userID, id)
	require.NoError(t, err)
	_, err = s.CreateBlock(ctx, "Local", "")
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, userID, id, `{"blocks":[]}`))

	again, err := m.Open(ctx, userID, id)
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Len(t, again.Snapshot(), 1)
	m.CloseAll(ctx)
}

func TestEvictIdleClosesUnusedSessions(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBoardStore()
	id := createBoard(t, store, "")
	m := NewSessionManager(SessionManagerConfig{Store: store, AutosaveDelay: time.Hour, IdleTimeout: time.Minute})
	s, err := m.Open(ctx, userID, id)
	require.NoError(t, err)
	_, err = s.CreateBlock(ctx, "A", "")
	require.NoError(t, err)

	assert.Equal(t, 0, m.EvictIdle(time.Now()))
	assert.Equal(t, 1, m.EvictIdle(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, m.Count())

	stored, _ := store.Load(ctx, userID, id)
	doc, err := ports.DecodeDocument(stored.Content)
	require.NoError(t, err)
	assert.Len(t, doc.Blocks, 1, "pending save written on eviction")

	_, err = s.CreateBlock(ctx, "B", "")
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestOpenKeepsBlocksStoredUnderOtherLimits(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBoardStore()
	canvas := config.ProductionCanvasConfig()
	a := valueobjects.NewNodeID().String()
	b := valueobjects.NewNodeID().String()
	c := valueobjects.NewNodeID().String()
	long := strings.Repeat("x", canvas.MaxContentLength+5000)
	content, err := ports.EncodeDocument([]entities.BlockState{
		{ID: a, Title: "A", Color: "blue", Connections: []string{b, c}},
		{ID: b, Title: "   ", Color: "green", Connections: []string{}},
		{ID: c, Title: "C", Content: long, Color: "teal", Connections: []string{}},
	})
	require.NoError(t, err)
	id := createBoard(t, store, content)
	m := NewSessionManager(SessionManagerConfig{Store: store, Canvas: canvas, AutosaveDelay: time.Hour})

	s, err := m.Open(ctx, userID, id)
	require.NoError(t, err)
	require.Len(t, s.Snapshot(), 3)

	blockA, _ := valueobjects.NewNodeIDFromString(a)
	_, err = s.MoveBlock(ctx, blockA, 50, 50)
	require.NoError(t, err)
	require.True(t, s.Flush())

	stored, _ := store.Load(ctx, userID, id)
	doc, err := ports.DecodeDocument(stored.Content)
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 3)
	assert.Equal(t, []string{b, c}, doc.Blocks[0].Connections)
	assert.Equal(t, valueobjects.UntitledTitle, doc.Blocks[1].Title)
	assert.Equal(t, long, doc.Blocks[2].Content)
	m.CloseAll(ctx)
}

func TestAutoConnect(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBoardStore()
	m := newManager(t, store, nil)
	s, err := m.Open(ctx, userID, createBoard(t, store, ""))
	require.NoError(t, err)

	src, _ := s.CreateBlock(ctx, "Launch marketing plan", "")
	match, _ := s.CreateBlock(ctx, "Marketing budget", "plan for launch")
	other, _ := s.CreateBlock(ctx, "Groceries", "milk eggs")
	back, _ := s.CreateBlock(ctx, "Launch checklist", "")
	srcID, _ := valueobjects.NewNodeIDFromString(src.ID)
	backID, _ := valueobjects.NewNodeIDFromString(back.ID)

	// an existing reverse edge blocks the suggestion
	_, err = s.Connect(ctx, backID, srcID)
	require.NoError(t, err)

	linked, err := s.AutoConnect(ctx, srcID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, match.ID, linked[0].String())
	assert.NotEqual(t, other.ID, linked[0].String())

	_, err = s.AutoConnect(ctx, valueobjects.NewNodeID())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestNoticeInboxCapacity(t *testing.T) {
	inbox := NewNoticeInbox(2, nil)
	for _, msg := range []string{"a", "b", "c"} {
		inbox.Notify(context.Background(), ports.Notice{UserID: userID, Message: msg})
	}

	notices := inbox.Drain(userID)
	require.Len(t, notices, 2)
	assert.Equal(t, "b", notices[0].Message)
	assert.Empty(t, inbox.Drain(userID))
}
