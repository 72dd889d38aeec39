package models

import "time"

// FriendLink is one direction of a friendship. A friendship between A and B
// is the pair of rows A→B and B→A; both are written in the same transaction.
type FriendLink struct {
	UserID    string    `gorm:"type:varchar(64);primaryKey" json:"userId"`
	FriendID  string    `gorm:"type:varchar(64);primaryKey;index" json:"friendId"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定 FriendLink 模型的表名。
func (FriendLink) TableName() string {
	return "friend_links"
}

// Reverse returns the opposite direction of l.
func (l FriendLink) Reverse() FriendLink {
	return FriendLink{UserID: l.FriendID, FriendID: l.UserID}
}
