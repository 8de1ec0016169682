package kafka_client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/spacesedan/brandpulse/internal/models"
)

// MentionEvent is published for every post that was newly stored. Downstream
// consumers (alerting, dashboards) key on PostID.
type MentionEvent struct {
	PostID         string                 `json:"postId"`
	BrandID        string                 `json:"brandId"`
	GroupID        string                 `json:"groupId,omitempty"`
	Platform       models.Platform        `json:"platform"`
	Keyword        string                 `json:"keyword"`
	SourceURL      string                 `json:"sourceUrl,omitempty"`
	Sentiment      *models.SentimentLabel `json:"sentiment"`
	SentimentScore *float64               `json:"sentimentScore"`
	CreatedAt      time.Time              `json:"createdAt"`
	FetchedAt      time.Time              `json:"fetchedAt"`
}

func NewMentionEvent(p models.StoredPost) MentionEvent {
	return MentionEvent{
		PostID:         p.ID,
		BrandID:        p.BrandID,
		GroupID:        p.GroupID,
		Platform:       p.Platform,
		Keyword:        p.Keyword,
		SourceURL:      p.SourceURL,
		Sentiment:      p.Sentiment,
		SentimentScore: p.SentimentScore,
		CreatedAt:      p.CreatedAt,
		FetchedAt:      p.FetchedAt,
	}
}

func buildMessage(topic string, p models.StoredPost) (*kafka.Message, error) {
	data, err := json.Marshal(NewMentionEvent(p))
	if err != nil {
		return nil, err
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(p.BrandID + ":" + p.ID),
		Value:          data,
	}, nil
}

type Producer struct {
	producer *kafka.Producer
	topic    string
}

func NewProducer(ctx context.Context, cfg KafkaConfig) (*Producer, error) {
	cfg = cfg.withDefaults()
	slog.Info("[KafkaClient] Initializing Kafka Producer...",
		slog.String("broker", cfg.Broker),
		slog.String("topic", cfg.Topic))

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":                     cfg.Broker,
		"security.protocol":                     "PLAINTEXT",
		"api.version.request":                   "true",
		"enable.idempotence":                    true,
		"acks":                                  "all",
		"max.in.flight.requests.per.connection": 1,
		"transactional.id":                      cfg.TransactionID,
	})
	if err != nil {
		return nil, fmt.Errorf("[KafkaClient] Failed to create producer: %w", err)
	}

	if err := p.InitTransactions(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("[KafkaClient] Failed to init transactions: %w", err)
	}

	slog.Info("[KafkaClient] Kafka Producer initialized successfully")
	return &Producer{producer: p, topic: cfg.Topic}, nil
}

func (p *Producer) Close() {
	if p == nil || p.producer == nil {
		return
	}
	slog.Info("[KafkaClient] Flushing Kafka producer before shutdown...")
	if remaining := p.producer.Flush(int(FLUSH_TIMEOUT.Milliseconds())); remaining > 0 {
		slog.Warn("[KafkaClient] Not all messages were delivered before shutdown",
			slog.Int("remaining", remaining))
	}
	p.producer.Close()
	slog.Info("[KafkaClient] Kafka producer shut down")
}

// PublishMentions sends one event per post inside a single transaction, so a
// run's mentions become visible to read_committed consumers together.
func (p *Producer) PublishMentions(ctx context.Context, posts []models.StoredPost) error {
	if len(posts) == 0 {
		return nil
	}

	if err := p.producer.BeginTransaction(); err != nil {
		return fmt.Errorf("[KafkaClient] failed to begin transaction: %w", err)
	}

	for _, post := range posts {
		msg, err := buildMessage(p.topic, post)
		if err == nil {
			err = p.produce(msg)
		}
		if err != nil {
			if abortErr := p.producer.AbortTransaction(ctx); abortErr != nil {
				return fmt.Errorf("[KafkaClient] failed to abort transaction: %v (after %w)", abortErr, err)
			}
			return err
		}
	}

	var commitErr error
	for i := 0; i < MAX_RETRIES; i++ {
		commitErr = p.producer.CommitTransaction(ctx)
		if commitErr == nil {
			break
		}
		if kafkaErr, ok := commitErr.(kafka.Error); ok && kafkaErr.TxnRequiresAbort() {
			break
		}
		slog.Warn("[KafkaClient] Failed to commit transaction, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", commitErr.Error()))
		time.Sleep(RETRY_DELAY)
	}
	if commitErr != nil {
		_ = p.producer.AbortTransaction(ctx)
		return fmt.Errorf("[KafkaClient] failed to commit transaction: %w", commitErr)
	}

	slog.Info("[KafkaClient] Published mentions transactionally",
		slog.String("topic", p.topic),
		slog.Int("count", len(posts)))
	return nil
}

func (p *Producer) produce(msg *kafka.Message) error {
	var err error
	for i := 0; i < MAX_RETRIES; i++ {
		err = p.producer.Produce(msg, nil)
		if err == nil {
			return nil
		}
		slog.Warn("[KafkaClient] Failed to produce message, retrying...",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
	}
	return err
}
