package models

import "time"

// EventCategory 活动分类。
type EventCategory string

const (
	CategorySports EventCategory = "sports"
	CategoryMusic  EventCategory = "music"
	CategoryArt    EventCategory = "art"
	CategoryFood   EventCategory = "food"
	CategoryTech   EventCategory = "tech"
	CategorySocial EventCategory = "social"
	CategoryOther  EventCategory = "other"
)

// Event is a user-created happening others can join.
type Event struct {
	BaseModel
	Title       string        `gorm:"type:varchar(200);not null" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	Date        time.Time     `gorm:"not null;index" json:"date"`
	Location    string        `gorm:"type:varchar(255)" json:"location"`
	CreatorID   string        `gorm:"type:varchar(64);not null;index" json:"createdBy"`
	Category    EventCategory `gorm:"type:varchar(32);not null;index" json:"category"`
	ImageURL    string        `gorm:"type:varchar(512)" json:"image,omitempty"`

	// Participants is materialized from event_participants.
	Participants []string `gorm:"-" json:"participants"`
}

// TableName 指定 Event 模型的表名。
func (Event) TableName() string {
	return "events"
}

// EventParticipant links a user to an event.
type EventParticipant struct {
	EventID  string    `gorm:"type:varchar(64);primaryKey" json:"eventId"`
	UserID   string    `gorm:"type:varchar(64);primaryKey;index" json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// TableName 指定 EventParticipant 模型的表名。
func (EventParticipant) TableName() string {
	return "event_participants"
}
