package kafka_client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// Consumer reads mention events. It uses read_committed isolation so only
// events from committed producer transactions are delivered, and offsets are
// committed explicitly through a CommitHandler.
type Consumer struct {
	consumer *kafka.Consumer
	topic    string
}

func NewConsumer(cfg KafkaConfig) (*Consumer, error) {
	cfg = cfg.withDefaults()
	slog.Info("[KafkaClient] Initializing Kafka Consumer...",
		slog.String("broker", cfg.Broker),
		slog.String("group_id", cfg.GroupID),
		slog.String("topic", cfg.Topic))

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Broker,
		"group.id":           cfg.GroupID,
		"auto.offset.reset":  cfg.offsetReset(),
		"enable.auto.commit": false,
		"isolation.level":    "read_committed",
	})
	if err != nil {
		return nil, fmt.Errorf("[KafkaClient] Failed to create consumer: %w", err)
	}

	if err := c.SubscribeTopics([]string{cfg.Topic}, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("[KafkaClient] Failed to subscribe to topic %s: %w", cfg.Topic, err)
	}

	slog.Info("[KafkaClient] Kafka Consumer initialized successfully")
	return &Consumer{consumer: c, topic: cfg.Topic}, nil
}

func (c *Consumer) Messages(ctx context.Context) *KafkaMessageIterator {
	return NewKafkaMessageIterator(ctx, c.consumer)
}

func (c *Consumer) Committer(ctx context.Context) *KafkaCommitHandler {
	return NewCommitHandler(ctx, c.consumer)
}

func (c *Consumer) Close() {
	if c == nil || c.consumer == nil {
		return
	}
	if err := c.consumer.Close(); err != nil {
		slog.Warn("[KafkaClient] Failed to close consumer", slog.String("error", err.Error()))
		return
	}
	slog.Info("[KafkaClient] Kafka consumer shut down", slog.String("topic", c.topic))
}

// DecodeMention parses the value of a message written by PublishMentions.
func DecodeMention(msg *kafka.Message) (MentionEvent, error) {
	var event MentionEvent
	if msg == nil {
		return event, fmt.Errorf("[KafkaClient] nil message")
	}
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return event, fmt.Errorf("[KafkaClient] malformed mention event at offset %s: %w", msg.TopicPartition.Offset, err)
	}
	if event.PostID == "" || event.BrandID == "" {
		return event, fmt.Errorf("[KafkaClient] mention event at offset %s is missing ids", msg.TopicPartition.Offset)
	}
	return event, nil
}
