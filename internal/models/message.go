package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message 代表存储在数据库中的私聊消息。
// Only IsRead may change after creation, and only from false to true.
type Message struct {
	ID             string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	ConversationID string    `gorm:"type:varchar(140);index:idx_messages_conversation_sent,priority:1;not null" json:"conversationId"`
	SenderID       string    `gorm:"type:varchar(64);index:idx_messages_unread,priority:1;not null" json:"senderId"`
	ReceiverID     string    `gorm:"type:varchar(64);index:idx_messages_unread,priority:2;not null" json:"receiverId"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	SentAt         time.Time `gorm:"index:idx_messages_conversation_sent,priority:2;not null" json:"timestamp"`
	IsRead         bool      `gorm:"index:idx_messages_unread,priority:3;default:false;not null" json:"isRead"`
	SenderName     string    `gorm:"type:varchar(100)" json:"senderName"`
	ReceiverName   string    `gorm:"type:varchar(100)" json:"receiverName"`
}

// TableName 指定 Message 模型的表名。
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate 在插入前生成 ID。
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// IsBetween reports whether m was exchanged between a and b, in either direction.
func (m *Message) IsBetween(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}
