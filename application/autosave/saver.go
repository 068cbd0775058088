package autosave

import (
	"context"
	"sync"
	"time"

	"flowboard/application/ports"
	"flowboard/domain/core/entities"
	"flowboard/domain/core/valueobjects"

	"go.uber.org/zap"
)

// Result labels for recorded saves
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder observes completed saves
type Recorder interface {
	ObserveAutosave(result string, duration time.Duration)
}

// Status is the outcome of the most recent save attempt
type Status struct {
	Pending   bool      `json:"pending"`
	LastSaved time.Time `json:"last_saved,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Saves     int       `json:"saves"`
	Failures  int       `json:"failures"`
}

// Saver writes a board's full document to the store after a quiet period.
// A failed save is reported and dropped. Local state is never rolled back and
// nothing is retried; the next mutation schedules a fresh attempt.
type Saver struct {
	store    ports.BoardStore
	notifier ports.Notifier
	recorder Recorder
	logger   *zap.Logger

	userID  string
	boardID valueobjects.BoardID

	debouncer *Debouncer

	// serialises writes so saves land in order
	writeMu sync.Mutex

	mu        sync.Mutex
	status    Status
	known     string
	// scheduled counts Schedule calls; saved is the last one written
	scheduled uint64
	saved     uint64
}

// SaverConfig holds the collaborators of a Saver
type SaverConfig struct {
	Store    ports.BoardStore
	Notifier ports.Notifier
	Recorder Recorder
	Logger   *zap.Logger
	UserID   string
	BoardID  valueobjects.BoardID
	Delay    time.Duration
	// Known is the stored content the board was loaded from
	Known    string
}

// NewSaver creates a saver for one board
func NewSaver(cfg SaverConfig) *Saver {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saver{
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		recorder:  cfg.Recorder,
		logger:    logger.With(zap.String("boardID", cfg.BoardID.String())),
		userID:    cfg.UserID,
		boardID:   cfg.BoardID,
		debouncer: NewDebouncer(cfg.Delay),
		known:     cfg.Known,
	}
}

// Schedule queues a save of blocks, replacing any save still waiting.
// blocks must not be modified by the caller afterwards.
func (s *Saver) Schedule(blocks []entities.BlockState) {
	s.mu.Lock()
	s.scheduled++
	seq := s.scheduled
	s.mu.Unlock()

	s.debouncer.Trigger(func() {
		s.save(context.Background(), blocks, seq)
	})
}

// Flush performs a waiting save immediately
func (s *Saver) Flush() bool {
	return s.debouncer.Flush()
}

// Cancel drops a waiting save. A save already writing completes unobserved.
func (s *Saver) Cancel() bool {
	return s.debouncer.Cancel()
}

// SetDelay changes the quiet period
func (s *Saver) SetDelay(delay time.Duration) {
	s.debouncer.SetDelay(delay)
}

// Matches reports whether stored is the content this saver last loaded or
// wrote. While local edits are not yet written the answer is always true,
// since the next save replaces whatever the store holds.
func (s *Saver) Matches(stored string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved != s.scheduled || s.known == stored
}

// Status returns the current save status
func (s *Saver) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Pending = s.debouncer.Pending()
	return st
}

func (s *Saver) save(ctx context.Context, blocks []entities.BlockState, seq uint64) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	content, err := ports.EncodeDocument(blocks)
	if err == nil {
		err = s.store.Save(ctx, s.userID, s.boardID, content)
	}
	elapsed := time.Since(start)

	s.mu.Lock()
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
	} else {
		s.status.Saves++
		s.status.LastSaved = time.Now()
		s.status.LastError = ""
		s.known = content
		if seq > s.saved {
			s.saved = seq
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.record(ResultFailure, elapsed)
		s.logger.Warn("Autosave failed",
			zap.Int("blocks", len(blocks)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		if s.notifier != nil {
			s.notifier.Notify(ctx, ports.Notice{
				Level:   ports.NoticeError,
				Message: "Could not save board. Your changes are kept and will be saved with your next edit.",
				UserID:  s.userID,
				BoardID: s.boardID.String(),
				At:      time.Now(),
			})
		}
		return
	}

	s.record(ResultSuccess, elapsed)
	s.logger.Debug("Autosave completed",
		zap.Int("blocks", len(blocks)),
		zap.Duration("elapsed", elapsed),
	)
}

func (s *Saver) record(result string, d time.Duration) {
	if s.recorder != nil {
		s.recorder.ObserveAutosave(result, d)
	}
}
