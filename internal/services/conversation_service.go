package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"gorm.io/gorm"

	"social-go/internal/models"
	"social-go/internal/storage"
)

// ConversationService 管理每对用户唯一的会话摘要。
type ConversationService interface {
	// GetOrCreateConversation returns the summary for the pair, creating an
	// empty one if needed. created reports whether this call inserted it.
	GetOrCreateConversation(ctx context.Context, userA, userB string) (conv *models.Conversation, created bool, err error)
	// RecordMessage caches message as the latest one, unless a newer message is already cached.
	RecordMessage(ctx context.Context, conversationID string, message *models.Message) error
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	// Get returns ErrNotFound to anyone who is not a participant.
	Get(ctx context.Context, conversationID, viewerID string) (*models.Conversation, error)
}

type conversationService struct {
	userRepo  storage.UserRepository
	convoRepo storage.ConversationRepository
	clock     Clock
	logger    *slog.Logger
}

// NewConversationService 创建一个新的 ConversationService 实例。
func NewConversationService(userRepo storage.UserRepository, convoRepo storage.ConversationRepository, clock Clock, logger *slog.Logger) ConversationService {
	return newConversationStore(userRepo, convoRepo, clock, logger)
}

func newConversationStore(userRepo storage.UserRepository, convoRepo storage.ConversationRepository, clock Clock, logger *slog.Logger) *conversationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &conversationService{
		userRepo:  userRepo,
		convoRepo: convoRepo,
		clock:     clock,
		logger:    logger.With("component", "conversation_service"),
	}
}

// withTx returns a copy bound to tx.
func (s *conversationService) withTx(tx *gorm.DB) *conversationService {
	return &conversationService{
		userRepo:  storage.NewGormUserRepository(tx),
		convoRepo: storage.NewGormConversationRepository(tx),
		clock:     s.clock,
		logger:    s.logger,
	}
}

func (s *conversationService) GetOrCreateConversation(ctx context.Context, userA, userB string) (*models.Conversation, bool, error) {
	if userA == "" || userB == "" {
		return nil, false, invalid("participants", "two user ids are required")
	}
	if userA == userB {
		return nil, false, invalid("participants", "a conversation needs two different users")
	}

	id := models.ConversationID(userA, userB)
	existing, err := s.convoRepo.GetByID(ctx, id)
	if err == nil {
		if !existing.IsBetween(userA, userB) {
			return nil, false, pairCollision(id)
		}
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, remote("get conversation", err)
	}

	names, err := s.participantNames(ctx, userA, userB)
	if err != nil {
		return nil, false, err
	}
	pair := []string{userA, userB}
	sort.Strings(pair)
	now := s.clock.now()
	created, err := s.convoRepo.CreateIfMissing(ctx, &models.Conversation{
		ID:               id,
		ParticipantA:     pair[0],
		ParticipantB:     pair[1],
		ParticipantNames: names,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return nil, false, remote("create conversation", err)
	}

	// 并发创建时以数据库中的那一行为准
	conv, err := s.convoRepo.GetByID(ctx, id)
	if err != nil {
		return nil, false, remote("reload conversation", err)
	}
	if !conv.IsBetween(userA, userB) {
		return nil, false, pairCollision(id)
	}
	if created {
		s.logger.Debug("conversation created", "conversation_id", id)
	}
	return conv, created, nil
}

func (s *conversationService) RecordMessage(ctx context.Context, conversationID string, message *models.Message) error {
	if message == nil {
		return invalid("message", "is required")
	}
	if conversationID != models.ConversationID(message.SenderID, message.ReceiverID) {
		return invalid("conversationId", "does not match the message participants")
	}

	names := map[string]string{
		message.SenderID:   message.SenderName,
		message.ReceiverID: message.ReceiverName,
	}
	if message.SenderName == "" || message.ReceiverName == "" {
		resolved, err := s.participantNames(ctx, message.SenderID, message.ReceiverID)
		if err != nil {
			return err
		}
		names = resolved
	}

	conv, err := s.convoRepo.GetByID(ctx, conversationID)
	if err != nil {
		return lookup("get conversation", err)
	}
	if !conv.IsBetween(message.SenderID, message.ReceiverID) {
		return pairCollision(conversationID)
	}

	err = s.convoRepo.UpdateLastMessage(ctx, conversationID, message, names)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("record message on %s: %w", conversationID, ErrNotFound)
		}
		return remote("record message", err)
	}
	return nil
}

func (s *conversationService) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	convs, err := s.convoRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, remote("list conversations", err)
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	return convs, nil
}

func (s *conversationService) Get(ctx context.Context, conversationID, viewerID string) (*models.Conversation, error) {
	conv, err := s.convoRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, lookup("get conversation", err)
	}
	if !conv.HasParticipant(viewerID) {
		return nil, fmt.Errorf("get conversation %s: %w", conversationID, ErrNotFound)
	}
	return conv, nil
}

// participantNames loads both users; a missing one is ErrNotFound.
func (s *conversationService) participantNames(ctx context.Context, a, b string) (map[string]string, error) {
	users, err := s.userRepo.GetByIDs(ctx, []string{a, b})
	if err != nil {
		return nil, remote("load participants", err)
	}
	names := make(map[string]string, 2)
	for _, u := range users {
		names[u.ID] = u.Name
	}
	for _, id := range []string{a, b} {
		if _, ok := names[id]; !ok {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
	}
	return names, nil
}

// pairCollision 表示会话 id 已被另一对用户占用 (用户 id 中含有分隔符)。
func pairCollision(id string) error {
	return invalid("participants", fmt.Sprintf("conversation %s belongs to another pair of users", id))
}
