package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"social-go/internal/models"
	"social-go/internal/storage"
)

// CreateEventInput is the new-event form.
type CreateEventInput struct {
	Title       string               `json:"title" validate:"required,max=200"`
	Description string               `json:"description" validate:"max=5000"`
	Date        time.Time            `json:"date"`
	Location    string               `json:"location" validate:"max=255"`
	Category    models.EventCategory `json:"category" validate:"required,eventcategory"`
	ImageURL    string               `json:"image" validate:"max=512"`
}

// EventService 定义了活动相关服务的接口。
type EventService interface {
	// Create stores the event and makes the creator its first participant.
	Create(ctx context.Context, creatorID string, input CreateEventInput) (*models.Event, error)
	// List returns every event, latest date first.
	List(ctx context.Context) ([]models.Event, error)
	Get(ctx context.Context, eventID string) (*models.Event, error)
	// Join is idempotent.
	Join(ctx context.Context, eventID, userID string) (*models.Event, error)
	ListForUser(ctx context.Context, userID string) ([]models.Event, error)
}

type eventService struct {
	db        *gorm.DB
	userRepo  storage.UserRepository
	eventRepo storage.EventRepository
	activity  ActivityRecorder
	clock     Clock
	logger    *slog.Logger
}

// NewEventService 创建一个新的 EventService 实例。
func NewEventService(
	db *gorm.DB,
	userRepo storage.UserRepository,
	eventRepo storage.EventRepository,
	activity ActivityRecorder,
	clock Clock,
	logger *slog.Logger,
) EventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventService{
		db:        db,
		userRepo:  userRepo,
		eventRepo: eventRepo,
		activity:  recorderOrNoop(activity),
		clock:     clock,
		logger:    logger.With("component", "event_service"),
	}
}

func (s *eventService) Create(ctx context.Context, creatorID string, input CreateEventInput) (*models.Event, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Location = strings.TrimSpace(input.Location)
	input.Category = models.EventCategory(strings.ToLower(strings.TrimSpace(string(input.Category))))
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if input.Date.IsZero() {
		return nil, invalid("date", "is required")
	}

	if _, err := s.userRepo.GetByID(ctx, creatorID); err != nil {
		return nil, lookup("get creator", err)
	}

	now := s.clock.now()
	event := &models.Event{
		BaseModel:   models.BaseModel{CreatedAt: now, UpdatedAt: now},
		Title:       input.Title,
		Description: input.Description,
		Date:        input.Date,
		Location:    input.Location,
		CreatorID:   creatorID,
		Category:    input.Category,
		ImageURL:    strings.TrimSpace(input.ImageURL),
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txEventRepo := storage.NewGormEventRepository(tx)
		if err := txEventRepo.Create(ctx, event); err != nil {
			return err
		}
		// 创建者自动加入
		_, err := txEventRepo.AddParticipant(ctx, &models.EventParticipant{
			EventID:  event.ID,
			UserID:   creatorID,
			JoinedAt: now,
		})
		return err
	})
	if txErr != nil {
		return nil, remote("create event", txErr)
	}
	event.Participants = []string{creatorID}

	s.logger.Info("event created", "event_id", event.ID, "creator_id", creatorID)
	s.activity.Record(ctx, creatorID, models.ActionCreateEvent, "Etkinlik oluşturuldu: "+event.Title)
	return event, nil
}

func (s *eventService) List(ctx context.Context) ([]models.Event, error) {
	events, err := s.eventRepo.List(ctx)
	if err != nil {
		return nil, remote("list events", err)
	}
	return s.withParticipants(ctx, events)
}

func (s *eventService) Get(ctx context.Context, eventID string) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, lookup(fmt.Sprintf("get event %s", eventID), err)
	}
	withP, err := s.withParticipants(ctx, []models.Event{*event})
	if err != nil {
		return nil, err
	}
	return &withP[0], nil
}

func (s *eventService) Join(ctx context.Context, eventID, userID string) (*models.Event, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, lookup("get user", err)
	}
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, lookup(fmt.Sprintf("get event %s", eventID), err)
	}

	inserted, err := s.eventRepo.AddParticipant(ctx, &models.EventParticipant{
		EventID:  event.ID,
		UserID:   user.ID,
		JoinedAt: s.clock.now(),
	})
	if err != nil {
		return nil, remote("join event", err)
	}
	if inserted {
		s.activity.Record(ctx, user.ID, models.ActionJoinEvent, "Etkinliğe katıldı: "+event.Title)
	}
	return s.Get(ctx, eventID)
}

func (s *eventService) ListForUser(ctx context.Context, userID string) ([]models.Event, error) {
	events, err := s.eventRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, remote("list user events", err)
	}
	return s.withParticipants(ctx, events)
}

func (s *eventService) withParticipants(ctx context.Context, events []models.Event) ([]models.Event, error) {
	if len(events) == 0 {
		return []models.Event{}, nil
	}
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	byEvent, err := s.eventRepo.GetParticipantIDsFor(ctx, ids)
	if err != nil {
		return nil, remote("load participants", err)
	}
	for i := range events {
		events[i].Participants = byEvent[events[i].ID]
	}
	return events, nil
}
