package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"social-go/internal/models"
)

// ConversationRepository 定义了会话摘要数据操作的接口。
type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	// CreateIfMissing 插入会话摘要，如果已存在则什么都不做。返回是否新建。
	CreateIfMissing(ctx context.Context, conversation *models.Conversation) (bool, error)
	// UpdateLastMessage 更新最后一条消息缓存；比已缓存消息更旧的消息不会覆盖。
	UpdateLastMessage(ctx context.Context, conversationID string, message *models.Message, names map[string]string) error
	// ListForUser 获取用户参与的所有会话，最近活跃的在前。
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)

	// GetDB 返回底层数据库连接，用于事务操作
	GetDB() *gorm.DB
}

// gormConversationRepository 使用 GORM 实现 ConversationRepository。
type gormConversationRepository struct {
	db *gorm.DB
}

// NewGormConversationRepository 创建一个新的基于 GORM 的 ConversationRepository。
func NewGormConversationRepository(db *gorm.DB) ConversationRepository {
	return &gormConversationRepository{db: db}
}

// GetByID 通过ID检索会话。
func (r *gormConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conversation).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// CreateIfMissing relies on the primary key to keep one row per pair even
// when two senders race on the first message.
func (r *gormConversationRepository) CreateIfMissing(ctx context.Context, conversation *models.Conversation) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(conversation)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateLastMessage 更新会话的最后消息缓存。
func (r *gormConversationRepository) UpdateLastMessage(ctx context.Context, conversationID string, message *models.Message, names map[string]string) error {
	if message == nil {
		return errors.New("message is required")
	}
	msgID := message.ID
	sentAt := message.SentAt
	conv := models.Conversation{
		LastMessageID:       &msgID,
		LastMessageContent:  message.Content,
		LastMessageSenderID: message.SenderID,
		LastMessageAt:       &sentAt,
		ParticipantNames:    names,
		UpdatedAt:           time.Now(),
	}
	res := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND (last_message_at IS NULL OR last_message_at <= ?)", conversationID, sentAt).
		Select("last_message_id", "last_message_content", "last_message_sender_id", "last_message_at", "participant_names", "updated_at").
		Updates(&conv)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// either the row is missing or a newer message is already cached
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", conversationID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

// ListForUser 获取用户参与的所有会话列表。
func (r *gormConversationRepository) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("CASE WHEN last_message_at IS NULL THEN 1 ELSE 0 END").
		Order("last_message_at DESC").Order("updated_at DESC").
		Find(&conversations).Error
	return conversations, err
}

// GetDB 返回底层数据库连接，用于事务操作
func (r *gormConversationRepository) GetDB() *gorm.DB {
	return r.db
}
