package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"social-go/internal/config"
	"social-go/internal/metrics"
)

// MessageHandler processes one consumed message. Returning nil commits its offset.
type MessageHandler func(ctx context.Context, msg *kafka.Message) error

// MessageConsumer defines the interface for a Kafka message consumer.
type MessageConsumer interface {
	// Consume blocks until ctx is cancelled or a fatal Kafka error occurs.
	Consume(ctx context.Context, topics []string, groupID string, handler MessageHandler) error
	Close()
}

// confluentKafkaConsumer is an implementation of MessageConsumer using confluent-kafka-go.
type confluentKafkaConsumer struct {
	consumer *kafka.Consumer
	cfg      config.KafkaConfig
	groupID  string
	logger   *slog.Logger
}

// NewConfluentKafkaConsumer creates a consumer; the underlying client is
// created by Consume once the group is known.
func NewConfluentKafkaConsumer(cfg config.KafkaConfig, logger *slog.Logger) (MessageConsumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &confluentKafkaConsumer{cfg: cfg, logger: logger.With("component", "kafka_consumer")}, nil
}

func (c *confluentKafkaConsumer) Consume(ctx context.Context, topics []string, groupID string, handler MessageHandler) error {
	if len(topics) == 0 {
		return errors.New("kafka consumer: no topics specified")
	}
	c.groupID = groupID
	log := c.logger.With("group_id", groupID)

	configMap := &kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(c.cfg.Brokers, ","),
		"group.id":           c.groupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": "false", // 处理成功后手动提交
		"security.protocol":  c.cfg.Protocol,
	}
	if c.cfg.ClientID != "" {
		_ = configMap.SetKey("client.id", c.cfg.ClientID)
	}

	consumer, err := kafka.NewConsumer(configMap)
	if err != nil {
		return fmt.Errorf("failed to create Kafka consumer for group %s: %w", groupID, err)
	}
	c.consumer = consumer

	if err := c.consumer.SubscribeTopics(topics, nil); err != nil {
		_ = c.consumer.Close()
		c.consumer = nil
		return fmt.Errorf("failed to subscribe to topics %v for group %s: %w", topics, groupID, err)
	}

	log.Info("kafka consumer started", "topics", topics)

	for {
		select {
		case <-ctx.Done():
			log.Info("kafka consumer stopping")
			return nil
		default:
		}

		ev := c.consumer.Poll(1000)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			topic := *e.TopicPartition.Topic
			if err := handler(ctx, e); err != nil {
				// not committed; the message is redelivered after a rebalance or restart
				metrics.KafkaConsumed.WithLabelValues(topic, "retried").Inc()
				log.Error("error processing kafka message",
					"topic", topic, "offset", e.TopicPartition.Offset, "error", err)
				continue
			}
			metrics.KafkaConsumed.WithLabelValues(topic, "committed").Inc()
			if _, err := c.consumer.CommitMessage(e); err != nil {
				log.Error("failed to commit offset",
					"topic", *e.TopicPartition.Topic, "offset", e.TopicPartition.Offset, "error", err)
			}
		case kafka.Error:
			log.Warn("kafka consumer error", "error", e, "code", e.Code(), "fatal", e.IsFatal())
			if e.IsFatal() {
				return e
			}
		case kafka.AssignedPartitions:
			log.Info("partitions assigned", "partitions", e.Partitions)
			_ = c.consumer.Assign(e.Partitions)
		case kafka.RevokedPartitions:
			log.Info("partitions revoked", "partitions", e.Partitions)
			_ = c.consumer.Unassign()
		}
	}
}

// Close closes the Kafka consumer.
func (c *confluentKafkaConsumer) Close() {
	if c.consumer == nil {
		return
	}
	if err := c.consumer.Close(); err != nil {
		c.logger.Error("error closing kafka consumer", "group_id", c.groupID, "error", err)
	} else {
		c.logger.Info("kafka consumer closed", "group_id", c.groupID)
	}
	c.consumer = nil
}
