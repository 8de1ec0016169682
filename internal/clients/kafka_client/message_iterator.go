package kafka_client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

type messageReader interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
}

// KafkaMessageIterator polls with a short timeout so a cancelled context is
// noticed between polls. Poll timeouts do not count as failures.
type KafkaMessageIterator struct {
	reader     messageReader
	ctx        context.Context
	retryDelay time.Duration
}

func NewKafkaMessageIterator(ctx context.Context, reader messageReader) *KafkaMessageIterator {
	return &KafkaMessageIterator{
		reader:     reader,
		ctx:        ctx,
		retryDelay: RETRY_DELAY,
	}
}

func (it *KafkaMessageIterator) Next() (*kafka.Message, error) {
	if it.reader == nil {
		return nil, errors.New("[KafkaIterator] Kafka consumer has not been initialized")
	}

	failures := 0
	for {
		select {
		case <-it.ctx.Done():
			slog.Warn("[KafkaIterator] Context cancelled, stopping iterator")
			return nil, it.ctx.Err()
		default:
		}

		msg, err := it.reader.ReadMessage(POLL_TIMEOUT)
		if err == nil {
			return msg, nil
		}

		var kafkaErr kafka.Error
		if errors.As(err, &kafkaErr) {
			switch kafkaErr.Code() {
			case kafka.ErrTimedOut:
				continue
			case kafka.ErrAllBrokersDown:
				slog.Error("[KafkaIterator] All Kafka brokers are down. Aborting")
				return nil, err
			}
		}

		failures++
		if failures >= MAX_RETRIES {
			return nil, errors.New("[KafkaIterator] Failed to read message after retries")
		}
		slog.Warn("[KafkaIterator] Failed to read message, retrying...",
			slog.Int("attempt", failures),
			slog.Int("max_retries", MAX_RETRIES),
			slog.String("error", err.Error()))

		select {
		case <-it.ctx.Done():
			return nil, it.ctx.Err()
		case <-time.After(it.retryDelay):
		}
	}
}
