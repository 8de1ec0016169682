package kafka_client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReader struct {
	results []error
	msg     *kafka.Message
	calls   int
}

func (r *scriptedReader) ReadMessage(time.Duration) (*kafka.Message, error) {
	r.calls++
	if len(r.results) == 0 {
		return r.msg, nil
	}
	err := r.results[0]
	r.results = r.results[1:]
	if err != nil {
		return nil, err
	}
	return r.msg, nil
}

type scriptedCommitter struct {
	errs  []error
	calls int
}

func (c *scriptedCommitter) CommitMessage(*kafka.Message) ([]kafka.TopicPartition, error) {
	c.calls++
	if len(c.errs) == 0 {
		return nil, nil
	}
	err := c.errs[0]
	c.errs = c.errs[1:]
	return nil, err
}

func testMessage(value string) *kafka.Message {
	topic := KAFKA_TOPIC_BRAND_MENTIONS
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: 0, Offset: 42},
		Value:          []byte(value),
	}
}

func TestIterator_SkipsPollTimeouts(t *testing.T) {
	timeout := kafka.NewError(kafka.ErrTimedOut, "timed out", false)
	reader := &scriptedReader{
		results: []error{timeout, timeout, timeout, timeout},
		msg:     testMessage(`{}`),
	}
	it := NewKafkaMessageIterator(context.Background(), reader)

	msg, err := it.Next()
	require.NoError(t, err)
	assert.NotNil(t, msg)
	assert.Equal(t, 5, reader.calls)
}

func TestIterator_GivesUpAfterRetries(t *testing.T) {
	boom := errors.New("boom")
	reader := &scriptedReader{results: []error{boom, boom, boom, boom}}
	it := NewKafkaMessageIterator(context.Background(), reader)
	it.retryDelay = time.Millisecond

	_, err := it.Next()
	require.Error(t, err)
	assert.Equal(t, MAX_RETRIES, reader.calls)
}

func TestIterator_AbortsWhenBrokersDown(t *testing.T) {
	down := kafka.NewError(kafka.ErrAllBrokersDown, "all brokers down", false)
	reader := &scriptedReader{results: []error{down}}
	it := NewKafkaMessageIterator(context.Background(), reader)

	_, err := it.Next()
	require.Error(t, err)
	assert.Equal(t, 1, reader.calls)
}

func TestIterator_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader := &scriptedReader{msg: testMessage(`{}`)}

	_, err := NewKafkaMessageIterator(ctx, reader).Next()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, reader.calls)
}

func TestCommitHandler_RetriesThenSucceeds(t *testing.T) {
	committer := &scriptedCommitter{errs: []error{errors.New("rebalancing")}}
	ch := NewCommitHandler(context.Background(), committer)
	ch.retryDelay = time.Millisecond

	require.NoError(t, ch.Commit(testMessage(`{}`)))
	assert.Equal(t, 2, committer.calls)
}

func TestCommitHandler_AbortsWhenBrokersDown(t *testing.T) {
	down := kafka.NewError(kafka.ErrAllBrokersDown, "all brokers down", false)
	committer := &scriptedCommitter{errs: []error{down}}
	ch := NewCommitHandler(context.Background(), committer)

	require.Error(t, ch.Commit(testMessage(`{}`)))
	assert.Equal(t, 1, committer.calls)
}

func TestDecodeMention(t *testing.T) {
	event, err := DecodeMention(testMessage(`{"postId":"p1","brandId":"acme","platform":"reddit","keyword":"acme"}`))
	require.NoError(t, err)
	assert.Equal(t, "p1", event.PostID)
	assert.Equal(t, "acme", event.BrandID)

	_, err = DecodeMention(testMessage(`not json`))
	assert.Error(t, err)

	_, err = DecodeMention(testMessage(`{"postId":"p1"}`))
	assert.ErrorContains(t, err, "missing ids")
}

func TestKafkaConfigOffsetReset(t *testing.T) {
	assert.Equal(t, "latest", KafkaConfig{}.offsetReset())
	assert.Equal(t, "earliest", KafkaConfig{FromBeginning: true}.offsetReset())
	assert.Equal(t, "brandpulse-mentionctl", KafkaConfig{}.withDefaults().GroupID)
}
