package autosave

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flowboard/application/ports"
	"flowboard/domain/core/entities"
	"flowboard/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingStore struct {
	mu    sync.Mutex
	saves []string
	err   error
}

func (s *recordingStore) Create(context.Context, ports.StoredBoard) error { return nil }
func (s *recordingStore) Load(context.Context, string, valueobjects.BoardID) (*ports.StoredBoard, error) {
	return nil, nil
}
func (s *recordingStore) List(context.Context, string) ([]ports.BoardSummary, error) { return nil, nil }
func (s *recordingStore) Delete(context.Context, string, valueobjects.BoardID) error { return nil }

func (s *recordingStore) Save(_ context.Context, _ string, _ valueobjects.BoardID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, content)
	return s.err
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *recordingStore) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[len(s.saves)-1]
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []ports.Notice
}

func (n *recordingNotifier) Notify(_ context.Context, notice ports.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) all() []ports.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ports.Notice(nil), n.notices...)
}

const testDelay = 30 * time.Millisecond

func TestDebouncerCoalescesTriggers(t *testing.T) {
	delay := 150 * time.Millisecond
	d := NewDebouncer(delay)
	var calls, last int32

	for i := 1; i <= 10; i++ {
		i := i
		d.Trigger(func() {
			atomic.AddInt32(&calls, 1)
			atomic.StoreInt32(&last, int32(i))
		})
		time.Sleep(2 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(2 * delay)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(10), atomic.LoadInt32(&last))
	assert.False(t, d.Pending())
}

func TestDebouncerCancel(t *testing.T) {
	d := NewDebouncer(testDelay)
	var calls int32
	d.Trigger(func() { atomic.AddInt32(&calls, 1) })

	assert.True(t, d.Cancel())
	assert.False(t, d.Cancel())
	time.Sleep(3 * testDelay)

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestDebouncerFlush(t *testing.T) {
	d := NewDebouncer(time.Hour)
	var calls int32
	d.Trigger(func() { atomic.AddInt32(&calls, 1) })

	assert.True(t, d.Flush())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.False(t, d.Flush())
}

func TestDebouncerSetDelay(t *testing.T) {
	d := NewDebouncer(time.Hour)
	d.SetDelay(testDelay)
	assert.Equal(t, testDelay, d.Delay())

	done := make(chan struct{})
	d.Trigger(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("trigger did not fire with the updated delay")
	}
}

func newTestSaver(store *recordingStore, notifier *recordingNotifier) *Saver {
	return NewSaver(SaverConfig{
		Store:    store,
		Notifier: notifier,
		Logger:   zap.NewNop(),
		UserID:   "user-1",
		BoardID:  valueobjects.NewBoardID(),
		Delay:    testDelay,
	})
}

func TestRapidMovesProduceOneSave(t *testing.T) {
	store := &recordingStore{}
	saver := newTestSaver(store, &recordingNotifier{})
	id := valueobjects.NewNodeID().String()

	for i := 1; i <= 10; i++ {
		saver.Schedule([]entities.BlockState{{ID: id, Title: "A", X: float64(i * 10), Y: 5, Color: "blue"}})
	}

	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * testDelay)
	assert.Equal(t, 1, store.count())

	doc, err := ports.DecodeDocument(store.last())
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, 100.0, doc.Blocks[0].X)
	assert.Equal(t, 1, saver.Status().Saves)
}

func TestSaveFailureNotifies(t *testing.T) {
	store := &recordingStore{err: errors.New("network down")}
	notifier := &recordingNotifier{}
	saver := newTestSaver(store, notifier)

	saver.Schedule([]entities.BlockState{})
	require.True(t, saver.Flush())

	notices := notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, ports.NoticeError, notices[0].Level)
	assert.Equal(t, "user-1", notices[0].UserID)

	st := saver.Status()
	assert.Equal(t, 1, st.Failures)
	assert.Contains(t, st.LastError, "network down")

	t.Run("next save is attempted normally", func(t *testing.T) {
		store.mu.Lock()
		store.err = nil
		store.mu.Unlock()

		saver.Schedule([]entities.BlockState{})
		require.True(t, saver.Flush())

		assert.Equal(t, 2, store.count())
		assert.Empty(t, saver.Status().LastError)
	})
}

func TestSaverCancel(t *testing.T) {
	store := &recordingStore{}
	saver := newTestSaver(store, &recordingNotifier{})

	saver.Schedule([]entities.BlockState{})
	assert.True(t, saver.Status().Pending)
	assert.True(t, saver.Cancel())
	time.Sleep(3 * testDelay)

	assert.Equal(t, 0, store.count())
}

func TestSaverMatchesTracksStoredContent(t *testing.T) {
	store := &recordingStore{}
	saver := NewSaver(SaverConfig{
		Store:   store,
		Logger:  zap.NewNop(),
		UserID:  "user-1",
		BoardID: valueobjects.NewBoardID(),
		Delay:   time.Hour,
		Known:   `{"blocks":[]}`,
	})

	assert.True(t, saver.Matches(`{"blocks":[]}`))
	assert.False(t, saver.Matches(`{"blocks":[{}]}`), "changed behind the saver")

	saver.Schedule([]entities.BlockState{{ID: valueobjects.NewNodeID().String(), Title: "A", Color: "blue"}})
	assert.True(t, saver.Matches("anything"), "unsaved edits win")

	require.True(t, saver.Flush())
	assert.True(t, saver.Matches(store.last()))
	assert.False(t, saver.Matches(`{"blocks":[]}`))

	t.Run("failed save keeps local edits authoritative", func(t *testing.T) {
		store.mu.Lock()
		store.err = errors.New("network down")
		store.mu.Unlock()

		saver.Schedule([]entities.BlockState{})
		require.True(t, saver.Flush())
		assert.True(t, saver.Matches("anything"))
	})
}
