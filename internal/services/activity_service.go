package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"social-go/internal/activitylog"
	"social-go/internal/kafka"
	"social-go/internal/metrics"
	"social-go/internal/models"
	"social-go/internal/storage"
)

const defaultActivityLimit = 50

// ActivityRecorder is the best-effort audit hook used by the other services.
// It never fails the caller.
type ActivityRecorder interface {
	Record(ctx context.Context, userID string, action models.ActivityAction, details string)
}

// ActivityService 记录和查询服务端用户活动。
type ActivityService interface {
	ActivityRecorder
	// Persist stores one record, typically consumed from Kafka.
	Persist(ctx context.Context, activity *models.UserActivity) error
	Recent(ctx context.Context, limit int) ([]models.UserActivity, error)
	ForUser(ctx context.Context, userID string, limit int) ([]models.UserActivity, error)
}

type activityService struct {
	userRepo     storage.UserRepository
	activityRepo storage.ActivityRepository
	producer     kafka.MessageProducer // nil 时直接写数据库
	topic        string
	local        *activitylog.Logger // optional
	clock        Clock
	logger       *slog.Logger
}

// NewActivityService creates an ActivityService. With a nil producer records
// go straight to the database; local may be nil.
func NewActivityService(
	userRepo storage.UserRepository,
	activityRepo storage.ActivityRepository,
	producer kafka.MessageProducer,
	topic string,
	local *activitylog.Logger,
	clock Clock,
	logger *slog.Logger,
) ActivityService {
	if logger == nil {
		logger = slog.Default()
	}
	return &activityService{
		userRepo:     userRepo,
		activityRepo: activityRepo,
		producer:     producer,
		topic:        topic,
		local:        local,
		clock:        clock,
		logger:       logger.With("component", "activity_service"),
	}
}

func (s *activityService) Record(ctx context.Context, userID string, action models.ActivityAction, details string) {
	if s.local != nil {
		s.local.Log(ctx, string(action), details)
	}

	// 只记录已存在的用户
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("activity user lookup failed", "user_id", userID, "error", err)
		}
		metrics.ActivityRecords.WithLabelValues("skipped").Inc()
		return
	}

	userAgent, ip := activitylog.RequestInfoFrom(ctx)
	activity := &models.UserActivity{
		BaseModel: models.BaseModel{ID: uuid.NewString()},
		UserID:    user.ID,
		UserName:  user.Name,
		Action:    action,
		Details:   details,
		UserAgent: userAgent,
		IP:        ip,
		Timestamp: s.clock.now(),
	}

	if s.producer != nil {
		payload, err := json.Marshal(activity)
		if err != nil {
			s.logger.Error("marshal activity", "error", err)
			metrics.ActivityRecords.WithLabelValues("failed").Inc()
			return
		}
		if err := s.producer.SendMessage(ctx, s.topic, []byte(user.ID), payload); err != nil {
			s.logger.Warn("publish activity failed", "user_id", user.ID, "action", action, "error", err)
			metrics.ActivityRecords.WithLabelValues("failed").Inc()
			return
		}
		metrics.ActivityRecords.WithLabelValues("kafka").Inc()
		return
	}

	if err := s.activityRepo.Create(ctx, activity); err != nil {
		s.logger.Warn("store activity failed", "user_id", user.ID, "action", action, "error", err)
		metrics.ActivityRecords.WithLabelValues("failed").Inc()
		return
	}
	metrics.ActivityRecords.WithLabelValues("db").Inc()
}

func (s *activityService) Persist(ctx context.Context, activity *models.UserActivity) error {
	if activity == nil || activity.UserID == "" || activity.Action == "" {
		return invalid("activity", "userId and action are required")
	}
	if activity.Timestamp.IsZero() {
		activity.Timestamp = s.clock.now()
	}
	if err := s.activityRepo.Create(ctx, activity); err != nil {
		return remote("persist activity", err)
	}
	metrics.ActivityRecords.WithLabelValues("db").Inc()
	return nil
}

func (s *activityService) Recent(ctx context.Context, limit int) ([]models.UserActivity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	activities, err := s.activityRepo.Recent(ctx, limit)
	if err != nil {
		return nil, remote("list activities", err)
	}
	return activities, nil
}

func (s *activityService) ForUser(ctx context.Context, userID string, limit int) ([]models.UserActivity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	activities, err := s.activityRepo.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, remote("list user activities", err)
	}
	return activities, nil
}

// noopRecorder is used when a service is built without an ActivityRecorder.
type noopRecorder struct{}

func (noopRecorder) Record(context.Context, string, models.ActivityAction, string) {}

func recorderOrNoop(r ActivityRecorder) ActivityRecorder {
	if r == nil {
		return noopRecorder{}
	}
	return r
}
