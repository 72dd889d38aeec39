package storage

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"social-go/internal/models"
)

// ActivityRepository stores the server-side audit trail.
type ActivityRepository interface {
	// Create ignores a record whose id already exists, so redelivered events are harmless.
	Create(ctx context.Context, activity *models.UserActivity) error
	// Recent returns the newest activities first.
	Recent(ctx context.Context, limit int) ([]models.UserActivity, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]models.UserActivity, error)
}

type gormActivityRepository struct {
	db *gorm.DB
}

// NewGormActivityRepository creates a new GORM-based ActivityRepository.
func NewGormActivityRepository(db *gorm.DB) ActivityRepository {
	return &gormActivityRepository{db: db}
}

func (r *gormActivityRepository) Create(ctx context.Context, activity *models.UserActivity) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(activity).Error
}

func (r *gormActivityRepository) Recent(ctx context.Context, limit int) ([]models.UserActivity, error) {
	activities := []models.UserActivity{}
	q := r.db.WithContext(ctx).Order("timestamp DESC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&activities).Error
	return activities, err
}

func (r *gormActivityRepository) ListForUser(ctx context.Context, userID string, limit int) ([]models.UserActivity, error) {
	activities := []models.UserActivity{}
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&activities).Error
	return activities, err
}
