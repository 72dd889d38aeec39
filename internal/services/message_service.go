package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"social-go/internal/metrics"
	"social-go/internal/models"
	"social-go/internal/realtime"
	"social-go/internal/storage"
)

// MessageService 定义了私聊消息相关服务的接口。
type MessageService interface {
	// Send validates, persists the message and refreshes the conversation
	// summary in one transaction, then notifies live feeds.
	Send(ctx context.Context, senderID, receiverID, content string) (*models.Message, error)
	// ListBetween returns the pair's messages, oldest first.
	ListBetween(ctx context.Context, userA, userB string) ([]models.Message, error)
	// Subscribe opens a live feed for the pair. The caller must Close it.
	Subscribe(ctx context.Context, userA, userB string) (*Feed, error)
	UnreadCount(ctx context.Context, viewerID string) (int64, error)
}

type messageService struct {
	db       *gorm.DB
	userRepo storage.UserRepository
	msgRepo  storage.MessageRepository
	convos   *conversationService
	hub      *realtime.Hub     // local subscriptions
	notifier realtime.Notifier // may be the hub itself or Redis
	activity ActivityRecorder
	clock    Clock
	logger   *slog.Logger
}

// NewMessageService 创建一个新的 MessageService 实例。
// notifier defaults to hub when nil.
func NewMessageService(
	db *gorm.DB,
	userRepo storage.UserRepository,
	msgRepo storage.MessageRepository,
	convoRepo storage.ConversationRepository,
	hub *realtime.Hub,
	notifier realtime.Notifier,
	activity ActivityRecorder,
	clock Clock,
	logger *slog.Logger,
) MessageService {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil && hub != nil {
		notifier = hub
	}
	return &messageService{
		db:       db,
		userRepo: userRepo,
		msgRepo:  msgRepo,
		convos:   newConversationStore(userRepo, convoRepo, clock, logger),
		hub:      hub,
		notifier: notifier,
		activity: recorderOrNoop(activity),
		clock:    clock,
		logger:   logger.With("component", "message_service"),
	}
}

func checkPair(userA, userB string) error {
	if userA == "" || userB == "" {
		return invalid("participants", "two user ids are required")
	}
	if userA == userB {
		return invalid("participants", "a conversation needs two different users")
	}
	return nil
}

func (s *messageService) Send(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content", "must not be empty")
	}
	if err := checkPair(senderID, receiverID); err != nil {
		return nil, err
	}

	users, err := s.userRepo.GetByIDs(ctx, []string{senderID, receiverID})
	if err != nil {
		return nil, remote("load users", err)
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	sender, ok := byID[senderID]
	if !ok {
		return nil, fmt.Errorf("sender %s: %w", senderID, ErrNotFound)
	}
	receiver, ok := byID[receiverID]
	if !ok {
		return nil, fmt.Errorf("receiver %s: %w", receiverID, ErrNotFound)
	}

	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: models.ConversationID(senderID, receiverID),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		SentAt:         s.clock.now(),
		IsRead:         false,
		SenderName:     sender.Name,
		ReceiverName:   receiver.Name,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := storage.NewGormMessageRepository(tx).Create(ctx, msg); err != nil {
			return remote("create message", err)
		}
		convos := s.convos.withTx(tx)
		if _, _, err := convos.GetOrCreateConversation(ctx, senderID, receiverID); err != nil {
			return err
		}
		return convos.RecordMessage(ctx, msg.ConversationID, msg)
	})
	if txErr != nil {
		return nil, txErr
	}

	metrics.MessagesSent.Inc()
	s.notify(ctx, msg.ConversationID)
	s.activity.Record(ctx, senderID, models.ActionSendMessage, "Mesaj gönderildi: "+receiver.Name)
	return msg, nil
}

func (s *messageService) notify(ctx context.Context, conversationID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, conversationID); err != nil {
		s.logger.Warn("notify conversation failed", "conversation_id", conversationID, "error", err)
	}
}

func (s *messageService) ListBetween(ctx context.Context, userA, userB string) ([]models.Message, error) {
	if err := checkPair(userA, userB); err != nil {
		return nil, err
	}
	rows, err := s.msgRepo.ListByConversation(ctx, models.ConversationID(userA, userB))
	if err != nil {
		return nil, remote("list messages", err)
	}
	// the id is derived from the pair, but never trust it alone
	out := rows[:0]
	for _, m := range rows {
		if m.IsBetween(userA, userB) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *messageService) UnreadCount(ctx context.Context, viewerID string) (int64, error) {
	n, err := s.msgRepo.CountUnread(ctx, viewerID)
	if err != nil {
		return 0, remote("count unread", err)
	}
	return n, nil
}

// Feed is a live view of one conversation. Every change produces a fresh,
// fully ordered snapshot on Updates. Close must be called exactly once per
// Subscribe; further calls do nothing.
type Feed struct {
	ConversationID string

	updates   chan []models.Message
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Updates is closed when the feed ends.
func (f *Feed) Updates() <-chan []models.Message {
	return f.updates
}

// Close stops the feed and waits for its goroutine to exit.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		f.cancel()
		<-f.done
	})
}

func (s *messageService) Subscribe(ctx context.Context, userA, userB string) (*Feed, error) {
	if err := checkPair(userA, userB); err != nil {
		return nil, err
	}
	if s.hub == nil {
		return nil, errors.New("live feeds are not enabled")
	}

	convID := models.ConversationID(userA, userB)
	sub, err := s.hub.Subscribe(ctx, convID)
	if err != nil {
		return nil, remote("subscribe", err)
	}

	feedCtx, cancel := context.WithCancel(ctx)
	feed := &Feed{
		ConversationID: convID,
		updates:        make(chan []models.Message),
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	go s.runFeed(feedCtx, feed, sub, userA, userB)
	return feed, nil
}

func (s *messageService) runFeed(ctx context.Context, feed *Feed, sub *realtime.Subscription, userA, userB string) {
	metrics.LiveFeeds.Inc()
	defer func() {
		s.hub.Unsubscribe(sub)
		close(feed.updates)
		metrics.LiveFeeds.Dec()
		close(feed.done)
	}()

	// emit returns false once the feed should stop.
	emit := func() bool {
		start := time.Now()
		msgs, err := s.ListBetween(ctx, userA, userB)
		metrics.FeedSnapshotDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			// keep the feed open; the next change retries the load
			s.logger.Warn("feed snapshot failed", "conversation_id", feed.ConversationID, "error", err)
			return true
		}
		select {
		case feed.updates <- msgs:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.hub.Done():
			return
		case <-sub.C():
			if !emit() {
				return
			}
		}
	}
}
