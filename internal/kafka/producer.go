package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"social-go/internal/config"
	"social-go/internal/metrics"
)

// MessageProducer publishes keyed payloads to Kafka.
type MessageProducer interface {
	// SendMessage blocks until the broker acknowledges the record or ctx ends.
	SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error
	Close()
}

// deliveryTimeout bounds how long librdkafka retries one record.
const deliveryTimeout = 10 * time.Second

// flushTimeoutMs 关闭时等待未发送消息的最长时间。
const flushTimeoutMs = 5000

type confluentKafkaProducer struct {
	producer *kafka.Producer
	source   string
	logger   *slog.Logger
}

// NewConfluentKafkaProducer creates an idempotent producer. Records are acked
// by all in-sync replicas, so a nil SendMessage means the record is durable.
func NewConfluentKafkaProducer(cfg config.KafkaConfig, logger *slog.Logger) (MessageProducer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka producer: no brokers configured")
	}
	configMap := kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(cfg.Brokers, ","),
		"security.protocol":  cfg.Protocol,
		"acks":               "all",
		"enable.idempotence": true,
		"linger.ms":          5,
		"message.timeout.ms": int(deliveryTimeout / time.Millisecond),
	}
	if cfg.ClientID != "" {
		configMap["client.id"] = cfg.ClientID
	}

	p, err := kafka.NewProducer(&configMap)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: create: %w", err)
	}
	return &confluentKafkaProducer{
		producer: p,
		source:   cfg.ClientID,
		logger:   logger.With("component", "kafka_producer"),
	}, nil
}

func (p *confluentKafkaProducer) SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error {
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          payload,
		Timestamp:      time.Now(),
		Headers:        []kafka.Header{{Key: "content-type", Value: []byte("application/json")}},
	}
	if p.source != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "source", Value: []byte(p.source)})
	}

	// 带缓冲，调用方放弃等待后 librdkafka 也不会阻塞
	reports := make(chan kafka.Event, 1)
	if err := p.producer.Produce(msg, reports); err != nil {
		metrics.KafkaDeliveries.WithLabelValues(topic, "failed").Inc()
		return fmt.Errorf("kafka producer: enqueue to %s: %w", topic, err)
	}

	select {
	case ev := <-reports:
		delivered, ok := ev.(*kafka.Message)
		if !ok {
			metrics.KafkaDeliveries.WithLabelValues(topic, "failed").Inc()
			return fmt.Errorf("kafka producer: unexpected delivery event %T", ev)
		}
		if err := delivered.TopicPartition.Error; err != nil {
			metrics.KafkaDeliveries.WithLabelValues(topic, "failed").Inc()
			return fmt.Errorf("kafka producer: deliver to %s: %w", topic, err)
		}
		metrics.KafkaDeliveries.WithLabelValues(topic, "ok").Inc()
		p.logger.Debug("record delivered", "topic", topic,
			"partition", delivered.TopicPartition.Partition, "offset", delivered.TopicPartition.Offset)
		return nil
	case <-ctx.Done():
		// 记录仍可能被投递，消费者按 ID 去重
		metrics.KafkaDeliveries.WithLabelValues(topic, "timeout").Inc()
		return fmt.Errorf("kafka producer: waiting for %s delivery: %w", topic, ctx.Err())
	}
}

// Close flushes outstanding records for a bounded time, then closes.
func (p *confluentKafkaProducer) Close() {
	if p.producer == nil {
		return
	}
	if left := p.producer.Flush(flushTimeoutMs); left > 0 {
		p.logger.Warn("records dropped on close", "remaining", left)
	}
	p.producer.Close()
	p.producer = nil
	p.logger.Info("kafka producer closed")
}
