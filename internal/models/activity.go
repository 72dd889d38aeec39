package models

import "time"

// ActivityAction names a user action recorded in the audit trail.
type ActivityAction string

const (
	ActionLogin       ActivityAction = "login"
	ActionRegister    ActivityAction = "register"
	ActionLogout      ActivityAction = "logout"
	ActionCreateEvent ActivityAction = "create_event"
	ActionJoinEvent   ActivityAction = "join_event"
	ActionAddFriend   ActivityAction = "add_friend"
	ActionSendMessage ActivityAction = "send_message"
	ActionViewPage    ActivityAction = "view_page"
)

// UserActivity is one server-side audit record.
type UserActivity struct {
	BaseModel
	UserID    string         `gorm:"type:varchar(64);not null;index" json:"userId"`
	UserName  string         `gorm:"type:varchar(100)" json:"userName"`
	Action    ActivityAction `gorm:"type:varchar(32);not null;index" json:"action"`
	Details   string         `gorm:"type:text" json:"details"`
	UserAgent string         `gorm:"type:varchar(512)" json:"userAgent,omitempty"`
	IP        string         `gorm:"type:varchar(64)" json:"ip,omitempty"`
	Timestamp time.Time      `gorm:"not null;index" json:"timestamp"`
}

// TableName 指定 UserActivity 模型的表名。
func (UserActivity) TableName() string {
	return "user_activities"
}
