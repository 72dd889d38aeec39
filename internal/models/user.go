package models

// User 代表系统中的用户。
type User struct {
	BaseModel
	Name         string   `gorm:"type:varchar(100);not null;index" json:"name"`
	Email        string   `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string   `gorm:"type:varchar(255);not null" json:"-"` // 不暴露密码哈希
	AvatarURL    string   `gorm:"type:varchar(512)" json:"avatar,omitempty"`
	Bio          string   `gorm:"type:text" json:"bio,omitempty"`
	Location     string   `gorm:"type:varchar(255)" json:"location,omitempty"`
	Interests    []string `gorm:"serializer:json;type:text" json:"interests"`
	IsAdmin      bool     `gorm:"default:false" json:"isAdmin"`

	// Friends is materialized from friend_links; it is never a column.
	Friends []string `gorm:"-" json:"friends"`
}

// TableName 指定 User 模型的表名。
func (User) TableName() string {
	return "users"
}

// UserBasicInfo holds minimal public information about a user.
type UserBasicInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar,omitempty"`
	Location  string `json:"location,omitempty"`
}

// BasicInfo returns the public subset of u.
func (u *User) BasicInfo() UserBasicInfo {
	return UserBasicInfo{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL, Location: u.Location}
}
