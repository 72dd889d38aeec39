package models

import (
	"sort"
	"strings"
	"time"
)

// ConversationIDSeparator joins the two sorted participant ids.
const ConversationIDSeparator = "_"

// ConversationID derives the identifier of the private conversation between a
// and b: the two ids sorted by byte order and joined with "_". The result does
// not depend on argument order, e.g. ConversationID("u2", "u1") == "u1_u2".
func ConversationID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ConversationIDSeparator)
}

// Conversation 是一对用户之间的会话摘要，缓存最后一条消息。
type Conversation struct {
	ID                  string            `gorm:"type:varchar(140);primaryKey" json:"id"`
	ParticipantA        string            `gorm:"type:varchar(64);not null;index" json:"-"`
	ParticipantB        string            `gorm:"type:varchar(64);not null;index" json:"-"`
	LastMessageID       *string           `gorm:"type:varchar(64)" json:"lastMessageId,omitempty"`
	LastMessageContent  string            `gorm:"type:text" json:"lastMessage,omitempty"`
	LastMessageSenderID string            `gorm:"type:varchar(64)" json:"lastMessageSenderId,omitempty"`
	LastMessageAt       *time.Time        `gorm:"index" json:"lastMessageTime,omitempty"`
	ParticipantNames    map[string]string `gorm:"serializer:json;type:text" json:"participantNames"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

// TableName 指定 Conversation 模型的表名。
func (Conversation) TableName() string {
	return "conversations"
}

// Participants returns the sorted pair.
func (c *Conversation) Participants() []string {
	return []string{c.ParticipantA, c.ParticipantB}
}

// HasParticipant reports whether userID is a member of c.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.ParticipantA == userID || c.ParticipantB == userID)
}

// IsBetween reports whether c belongs to exactly the pair {a, b}. Ids that
// contain the separator can derive the same ID for two different pairs.
func (c *Conversation) IsBetween(a, b string) bool {
	if a > b {
		a, b = b, a
	}
	return c.ParticipantA == a && c.ParticipantB == b
}

// OtherParticipant returns the member of c that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// HasMessages reports whether any message has been recorded yet.
func (c *Conversation) HasMessages() bool {
	return c.LastMessageID != nil
}
