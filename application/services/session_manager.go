package services

import (
	"context"
	"sync"
	"time"

	"flowboard/application/autosave"
	"flowboard/application/ports"
	"flowboard/domain/config"
	"flowboard/domain/core/aggregates"
	"flowboard/domain/core/validators"
	"flowboard/domain/core/valueobjects"
	pkgerrors "flowboard/pkg/errors"

	"go.uber.org/zap"
)

// SessionMetrics observes session lifecycle and saves
type SessionMetrics interface {
	autosave.Recorder
	SetOpenSessions(n int)
}

type sessionKey struct {
	userID  string
	boardID valueobjects.BoardID
}

// SessionManager opens, tracks and closes board sessions
type SessionManager struct {
	store     ports.BoardStore
	notifier  ports.Notifier
	publisher ports.EventPublisher
	metrics   SessionMetrics
	linker    *AutoLinker
	canvas    *config.CanvasConfig
	logger    *zap.Logger

	mu       sync.Mutex
	delay    time.Duration
	idle     time.Duration
	sessions map[sessionKey]*Session
}

// SessionManagerConfig holds the collaborators of a SessionManager
type SessionManagerConfig struct {
	Store         ports.BoardStore
	Notifier      ports.Notifier
	Publisher     ports.EventPublisher
	Metrics       SessionMetrics
	Linker        *AutoLinker
	Canvas        *config.CanvasConfig
	AutosaveDelay time.Duration
	// IdleTimeout closes sessions unused for this long, zero keeps them
	IdleTimeout   time.Duration
	Logger        *zap.Logger
}

// NewSessionManager creates a session manager
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	canvas := cfg.Canvas
	if canvas == nil {
		canvas = config.DefaultCanvasConfig()
	}
	delay := cfg.AutosaveDelay
	if delay <= 0 {
		delay = canvas.AutosaveDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	linker := cfg.Linker
	if linker == nil {
		linker = NewAutoLinker(0, 0.3, logger)
	}
	return &SessionManager{
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		linker:    linker,
		canvas:    canvas,
		logger:    logger,
		delay:     delay,
		idle:      cfg.IdleTimeout,
		sessions:  make(map[sessionKey]*Session),
	}
}

// Open returns the user's session for a board, loading it if needed.
// Content that cannot be parsed yields an empty board and a warning notice;
// the stored document is left alone until the user edits.
//
// The store is read on every call. An open session with no unsaved edits is
// rebuilt when the stored document changed behind it, for example through
// another instance, so it never saves over newer content.
func (m *SessionManager) Open(ctx context.Context, userID string, boardID valueobjects.BoardID) (*Session, error) {
	key := sessionKey{userID: userID, boardID: boardID}

	m.mu.Lock()
	cached := m.sessions[key]
	m.mu.Unlock()

	stored, err := m.store.Load(ctx, userID, boardID)
	if err != nil {
		if cached != nil && !pkgerrors.IsNotFound(err) {
			// keep editing locally while the store is unreachable
			m.logger.Warn("Board reload failed, using open session",
				zap.String("boardID", boardID.String()), zap.Error(err))
			cached.touch()
			return cached, nil
		}
		if cached != nil {
			m.drop(key, cached)
		}
		return nil, err
	}
	if cached != nil && cached.matchesStored(stored.Content) {
		cached.touch()
		return cached, nil
	}
	if stored.UserID == "" {
		stored.UserID = userID
	}

	board := m.buildBoard(ctx, stored)

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[key]
	switch {
	case ok && current != cached:
		// another request opened or reloaded it while we were loading
		return current, nil
	case ok:
		delete(m.sessions, key)
		current.Close()
		m.logger.Info("Stored board changed elsewhere, reloading session",
			zap.String("userID", userID),
			zap.String("boardID", boardID.String()),
		)
	}

	saver := autosave.NewSaver(autosave.SaverConfig{
		Store:    m.store,
		Notifier: m.notifier,
		Recorder: m.metrics,
		Logger:   m.logger,
		UserID:   userID,
		BoardID:  boardID,
		Delay:    m.delay,
		Known:    stored.Content,
	})
	s := newSession(sessionDeps{
		userID:    userID,
		board:     board,
		saver:     saver,
		linker:    m.linker,
		publisher: m.publisher,
		logger:    m.logger.With(zap.String("userID", userID)),
	})
	m.sessions[key] = s
	m.reportOpen()

	m.logger.Info("Board session opened",
		zap.String("userID", userID),
		zap.String("boardID", boardID.String()),
		zap.Int("blocks", board.Len()),
	)
	return s, nil
}

// drop removes a session whose board no longer exists
func (m *SessionManager) drop(key sessionKey, s *Session) {
	m.mu.Lock()
	if m.sessions[key] == s {
		delete(m.sessions, key)
		m.reportOpen()
	}
	m.mu.Unlock()
	s.Close()
}

// Get returns an already open session
func (m *SessionManager) Get(userID string, boardID valueobjects.BoardID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey{userID: userID, boardID: boardID}]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("board session")
	}
	return s, nil
}

// Close ends a session. With flush set, a pending save is written first.
func (m *SessionManager) Close(userID string, boardID valueobjects.BoardID, flush bool) error {
	key := sessionKey{userID: userID, boardID: boardID}

	m.mu.Lock()
	s, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
		m.reportOpen()
	}
	m.mu.Unlock()

	if !ok {
		return pkgerrors.NewNotFoundError("board session")
	}
	if flush {
		s.Flush()
	}
	s.Close()

	m.logger.Info("Board session closed",
		zap.String("userID", userID),
		zap.String("boardID", boardID.String()),
		zap.Bool("flushed", flush),
	)
	return nil
}

// CloseAll flushes and closes every session, used on shutdown
func (m *SessionManager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for key, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, key)
	}
	m.reportOpen()
	m.mu.Unlock()

	for _, s := range sessions {
		if ctx.Err() != nil {
			s.Close()
			continue
		}
		s.Flush()
		s.Close()
	}
	if len(sessions) > 0 {
		m.logger.Info("Closed all board sessions", zap.Int("count", len(sessions)))
	}
}

// EvictIdle flushes and closes sessions unused since before now minus the
// idle timeout. It returns how many were closed.
func (m *SessionManager) EvictIdle(now time.Time) int {
	if m.idle <= 0 {
		return 0
	}
	cutoff := now.Add(-m.idle)

	m.mu.Lock()
	var idle []*Session
	for key, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, key)
		}
	}
	m.reportOpen()
	m.mu.Unlock()

	for _, s := range idle {
		s.Flush()
		s.Close()
	}
	if len(idle) > 0 {
		m.logger.Info("Closed idle board sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// RunEviction closes idle sessions periodically until ctx is done
func (m *SessionManager) RunEviction(ctx context.Context) {
	if m.idle <= 0 {
		return
	}
	interval := m.idle / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.EvictIdle(now)
		}
	}
}

// Count returns the number of open sessions
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SetAutosaveDelay changes the quiet period for open and future sessions
func (m *SessionManager) SetAutosaveDelay(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	for _, s := range m.sessions {
		s.SetAutosaveDelay(d)
	}
	m.logger.Info("Autosave delay updated", zap.Duration("delay", d))
}

func (m *SessionManager) buildBoard(ctx context.Context, stored *ports.StoredBoard) *aggregates.Board {
	opts := []aggregates.BoardOption{aggregates.WithCanvasConfig(m.canvas)}
	log := m.logger.With(zap.String("boardID", stored.ID.String()))

	doc, err := ports.DecodeDocument(stored.Content)
	if err != nil {
		log.Warn("Board content could not be parsed, opening empty board", zap.Error(err))
		m.notify(ctx, stored, ports.NoticeWarning, "This board's saved content could not be read. It has been opened empty.")
		return aggregates.NewBoard(stored.ID, stored.Name, opts...)
	}

	states, issues := validators.NewDocumentValidator(m.canvas).Sanitize(doc.Blocks)
	for _, issue := range issues {
		log.Warn("Repaired board document", zap.String("issue", issue.String()))
	}

	board, err := aggregates.ReconstructBoard(stored.ID, stored.Name, states, opts...)
	if err != nil {
		// sanitised states should always rebuild
		log.Error("Board reconstruction failed, opening empty board", zap.Error(err))
		m.notify(ctx, stored, ports.NoticeWarning, "This board's saved content could not be read. It has been opened empty.")
		return aggregates.NewBoard(stored.ID, stored.Name, opts...)
	}
	return board
}

func (m *SessionManager) notify(ctx context.Context, stored *ports.StoredBoard, level ports.NoticeLevel, msg string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(ctx, ports.Notice{
		Level:   level,
		Message: msg,
		UserID:  stored.UserID,
		BoardID: stored.ID.String(),
		At:      time.Now(),
	})
}

// reportOpen must be called with mu held
func (m *SessionManager) reportOpen() {
	if m.metrics != nil {
		m.metrics.SetOpenSessions(len(m.sessions))
	}
}
