package storage

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"social-go/internal/models"
)

// FriendRepository defines the interface for friend-link data operations.
// Every friendship is stored as two directed rows.
type FriendRepository interface {
	// InsertLinks inserts the given directed links, ignoring ones that already exist.
	InsertLinks(ctx context.Context, links ...models.FriendLink) error
	HasLink(ctx context.Context, userID, friendID string) (bool, error)
	GetFriendIDs(ctx context.Context, userID string) ([]string, error)
	GetFriendIDsFor(ctx context.Context, userIDs []string) (map[string][]string, error)
	// FindAsymmetric returns links whose reverse row is missing.
	FindAsymmetric(ctx context.Context) ([]models.FriendLink, error)
	// FindDangling returns links that reference a user that no longer exists.
	FindDangling(ctx context.Context) ([]models.FriendLink, error)
	DeleteLink(ctx context.Context, link models.FriendLink) error
	DeleteAllFor(ctx context.Context, userID string) error
	Count(ctx context.Context) (int64, error)
	GetDB() *gorm.DB
}

type gormFriendRepository struct {
	db *gorm.DB
}

// NewGormFriendRepository creates a new GORM-based FriendRepository.
func NewGormFriendRepository(db *gorm.DB) FriendRepository {
	return &gormFriendRepository{db: db}
}

func (r *gormFriendRepository) InsertLinks(ctx context.Context, links ...models.FriendLink) error {
	if len(links) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&links).Error
}

func (r *gormFriendRepository) HasLink(ctx context.Context, userID, friendID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.FriendLink{}).
		Where("user_id = ? AND friend_id = ?", userID, friendID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormFriendRepository) GetFriendIDs(ctx context.Context, userID string) ([]string, error) {
	friendIDs := []string{}
	err := r.db.WithContext(ctx).Model(&models.FriendLink{}).
		Where("user_id = ?", userID).
		Order("created_at ASC, friend_id ASC").
		Pluck("friend_id", &friendIDs).Error
	if err != nil {
		return nil, err
	}
	return friendIDs, nil
}

// GetFriendIDsFor batches GetFriendIDs for several users. Every requested id
// has an entry, possibly empty.
func (r *gormFriendRepository) GetFriendIDsFor(ctx context.Context, userIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(userIDs))
	for _, id := range userIDs {
		out[id] = []string{}
	}
	if len(userIDs) == 0 {
		return out, nil
	}
	var links []models.FriendLink
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Order("created_at ASC, friend_id ASC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		out[l.UserID] = append(out[l.UserID], l.FriendID)
	}
	return out, nil
}

func (r *gormFriendRepository) FindAsymmetric(ctx context.Context) ([]models.FriendLink, error) {
	var links []models.FriendLink
	err := r.db.WithContext(ctx).
		Table("friend_links AS f").
		Select("f.user_id, f.friend_id, f.created_at").
		Joins("LEFT JOIN friend_links AS r ON r.user_id = f.friend_id AND r.friend_id = f.user_id").
		Where("r.user_id IS NULL").
		Order("f.user_id ASC, f.friend_id ASC").
		Scan(&links).Error
	return links, err
}

func (r *gormFriendRepository) FindDangling(ctx context.Context) ([]models.FriendLink, error) {
	var links []models.FriendLink
	err := r.db.WithContext(ctx).
		Table("friend_links AS f").
		Select("f.user_id, f.friend_id, f.created_at").
		Joins("LEFT JOIN users AS u1 ON u1.id = f.user_id").
		Joins("LEFT JOIN users AS u2 ON u2.id = f.friend_id").
		Where("u1.id IS NULL OR u2.id IS NULL").
		Scan(&links).Error
	return links, err
}

func (r *gormFriendRepository) DeleteLink(ctx context.Context, link models.FriendLink) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND friend_id = ?", link.UserID, link.FriendID).
		Delete(&models.FriendLink{}).Error
}

// DeleteAllFor removes every link touching userID, in both directions.
func (r *gormFriendRepository) DeleteAllFor(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? OR friend_id = ?", userID, userID).
		Delete(&models.FriendLink{}).Error
}

func (r *gormFriendRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.FriendLink{}).Count(&count).Error
	return count, err
}

func (r *gormFriendRepository) GetDB() *gorm.DB {
	return r.db
}
