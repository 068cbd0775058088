package services

import (
	"context"
	"sync"

	"flowboard/application/ports"

	"go.uber.org/zap"
)

// NoticeInbox keeps recent transient notices per user until a client drains them
type NoticeInbox struct {
	mu       sync.Mutex
	capacity int
	byUser   map[string][]ports.Notice
	logger   *zap.Logger
}

// NewNoticeInbox creates an inbox holding at most capacity notices per user
func NewNoticeInbox(capacity int, logger *zap.Logger) *NoticeInbox {
	if capacity <= 0 {
		capacity = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoticeInbox{
		capacity: capacity,
		byUser:   make(map[string][]ports.Notice),
		logger:   logger,
	}
}

// Notify implements ports.Notifier
func (n *NoticeInbox) Notify(_ context.Context, notice ports.Notice) {
	n.logger.Info("Notice",
		zap.String("userID", notice.UserID),
		zap.String("boardID", notice.BoardID),
		zap.String("level", string(notice.Level)),
		zap.String("message", notice.Message),
	)

	n.mu.Lock()
	defer n.mu.Unlock()
	list := append(n.byUser[notice.UserID], notice)
	if len(list) > n.capacity {
		list = list[len(list)-n.capacity:]
	}
	n.byUser[notice.UserID] = list
}

// Drain returns and clears the user's notices, oldest first
func (n *NoticeInbox) Drain(userID string) []ports.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	list := n.byUser[userID]
	delete(n.byUser, userID)
	if list == nil {
		return []ports.Notice{}
	}
	return list
}
