package storage

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"social-go/internal/models"
)

// EventRepository defines the interface for event data operations.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	// List returns all events, newest date first.
	List(ctx context.Context) ([]models.Event, error)
	// ListForUser returns events the user created or joined, newest date first.
	ListForUser(ctx context.Context, userID string) ([]models.Event, error)
	// AddParticipant is idempotent. Returns whether a row was inserted.
	AddParticipant(ctx context.Context, participant *models.EventParticipant) (bool, error)
	GetParticipantIDsFor(ctx context.Context, eventIDs []string) (map[string][]string, error)
	DeleteParticipationsFor(ctx context.Context, userID string) error
	// DeleteCreatedBy removes the user's own events together with their participants.
	DeleteCreatedBy(ctx context.Context, userID string) (int64, error)
	GetDB() *gorm.DB
}

type gormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository creates a new GORM-based EventRepository.
func NewGormEventRepository(db *gorm.DB) EventRepository {
	return &gormEventRepository{db: db}
}

func (r *gormEventRepository) Create(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *gormEventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *gormEventRepository) List(ctx context.Context) ([]models.Event, error) {
	events := []models.Event{}
	err := r.db.WithContext(ctx).Order("date DESC").Order("id ASC").Find(&events).Error
	return events, err
}

func (r *gormEventRepository) ListForUser(ctx context.Context, userID string) ([]models.Event, error) {
	events := []models.Event{}
	joined := r.db.Model(&models.EventParticipant{}).Select("event_id").Where("user_id = ?", userID)
	err := r.db.WithContext(ctx).
		Where("creator_id = ? OR id IN (?)", userID, joined).
		Order("date DESC").Order("id ASC").
		Find(&events).Error
	return events, err
}

func (r *gormEventRepository) AddParticipant(ctx context.Context, participant *models.EventParticipant) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(participant)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetParticipantIDsFor returns participant ids per event in join order.
func (r *gormEventRepository) GetParticipantIDsFor(ctx context.Context, eventIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(eventIDs))
	for _, id := range eventIDs {
		out[id] = []string{}
	}
	if len(eventIDs) == 0 {
		return out, nil
	}
	var rows []models.EventParticipant
	err := r.db.WithContext(ctx).
		Where("event_id IN ?", eventIDs).
		Order("joined_at ASC").Order("user_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.EventID] = append(out[p.EventID], p.UserID)
	}
	return out, nil
}

func (r *gormEventRepository) DeleteParticipationsFor(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.EventParticipant{}).Error
}

func (r *gormEventRepository) DeleteCreatedBy(ctx context.Context, userID string) (int64, error) {
	owned := r.db.Model(&models.Event{}).Select("id").Where("creator_id = ?", userID)
	if err := r.db.WithContext(ctx).Where("event_id IN (?)", owned).Delete(&models.EventParticipant{}).Error; err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).Where("creator_id = ?", userID).Delete(&models.Event{})
	return res.RowsAffected, res.Error
}

func (r *gormEventRepository) GetDB() *gorm.DB {
	return r.db
}
