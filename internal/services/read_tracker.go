package services

import (
	"context"
	"log/slog"

	"social-go/internal/metrics"
	"social-go/internal/models"
	"social-go/internal/realtime"
	"social-go/internal/storage"
)

// ReadTracker flips unread messages to read when the receiver views them.
type ReadTracker interface {
	// MarkRead marks every unread otherID -> viewerID message as read in a
	// single statement and returns how many changed. Messages the viewer
	// sent are never touched.
	MarkRead(ctx context.Context, viewerID, otherID string) (int64, error)
}

type readTracker struct {
	msgRepo  storage.MessageRepository
	notifier realtime.Notifier
	logger   *slog.Logger
}

// NewReadTracker creates a ReadTracker. notifier may be nil.
func NewReadTracker(msgRepo storage.MessageRepository, notifier realtime.Notifier, logger *slog.Logger) ReadTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &readTracker{msgRepo: msgRepo, notifier: notifier, logger: logger.With("component", "read_tracker")}
}

func (t *readTracker) MarkRead(ctx context.Context, viewerID, otherID string) (int64, error) {
	if err := checkPair(viewerID, otherID); err != nil {
		return 0, err
	}
	n, err := t.msgRepo.MarkRead(ctx, otherID, viewerID)
	if err != nil {
		return 0, remote("mark read", err)
	}
	if n == 0 {
		return 0, nil
	}

	metrics.MessagesMarkedRead.Add(float64(n))
	if t.notifier != nil {
		convID := models.ConversationID(viewerID, otherID)
		if err := t.notifier.Notify(ctx, convID); err != nil {
			t.logger.Warn("notify read state failed", "conversation_id", convID, "error", err)
		}
	}
	return n, nil
}
