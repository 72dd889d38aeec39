package kafkahandlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"social-go/internal/models"
	"social-go/internal/services"
)

// ActivityPersister is the part of services.ActivityService the consumer needs.
type ActivityPersister interface {
	Persist(ctx context.Context, activity *models.UserActivity) error
}

// ActivityConsumerLogic writes user activities consumed from Kafka to the database.
type ActivityConsumerLogic struct {
	activities ActivityPersister
	logger     *slog.Logger
}

// NewActivityConsumerLogic creates a new instance of ActivityConsumerLogic.
func NewActivityConsumerLogic(activities ActivityPersister, logger *slog.Logger) *ActivityConsumerLogic {
	if activities == nil {
		panic("kafkahandlers: ActivityPersister cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityConsumerLogic{activities: activities, logger: logger.With("component", "activity_consumer")}
}

// HandleActivity is the kafka.MessageHandler for the activity topic.
// Undecodable or invalid payloads are skipped (nil, so the offset is
// committed); storage failures are returned so the message is redelivered.
// Redelivery is safe because inserts ignore an existing id.
func (h *ActivityConsumerLogic) HandleActivity(ctx context.Context, msg *kafka.Message) error {
	log := h.logger.With("partition", msg.TopicPartition.Partition, "offset", msg.TopicPartition.Offset)
	if msg.TopicPartition.Topic != nil {
		log = log.With("topic", *msg.TopicPartition.Topic)
	}

	var activity models.UserActivity
	if err := json.Unmarshal(msg.Value, &activity); err != nil {
		log.Warn("skipping undecodable activity", "key", string(msg.Key), "error", err)
		return nil
	}

	if err := h.activities.Persist(ctx, &activity); err != nil {
		if errors.Is(err, services.ErrValidation) {
			log.Warn("skipping invalid activity", "activity_id", activity.ID, "error", err)
			return nil
		}
		return err
	}
	log.Debug("activity stored", "activity_id", activity.ID, "user_id", activity.UserID, "action", activity.Action)
	return nil
}
