package processing

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrelay/relay/config"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestProduceAddsTopicPrefixAndHeaders(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaProducer(w, "ingest-", ldlog.NewDisabledLoggers())

	err := p.Produce(context.Background(), Message{
		Topic:   TopicEvents,
		Key:     KeyForEvent("abc", 1),
		Value:   []byte("{}"),
		Headers: map[string]string{"project_id": "1"},
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)
	assert.Equal(t, "ingest-events", w.messages[0].Topic)
	assert.Equal(t, []byte("abc"), w.messages[0].Key)
	assert.Equal(t, []kafka.Header{{Key: "project_id", Value: []byte("1")}}, w.messages[0].Headers)
}

func TestKeyForEventFallsBackToProjectID(t *testing.T) {
	assert.Equal(t, []byte("42"), KeyForEvent("", 42))
}

func TestProduceErrorIsWrapped(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newKafkaProducer(w, "", ldlog.NewDisabledLoggers())
	err := p.Produce(context.Background(), Message{Topic: TopicOutcomes})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outcomes")
	assert.Contains(t, err.Error(), "broker down")
}

func TestProduceAfterCloseFails(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaProducer(w, "", ldlog.NewDisabledLoggers())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
	assert.Equal(t, errProducerClosed, p.Produce(context.Background(), Message{Topic: TopicEvents}))
}

func TestNewKafkaProducerUsesConfig(t *testing.T) {
	var pc config.ProcessingConfig
	pc.KafkaBrokers = ct.NewOptStringList([]string{"localhost:9092"})
	pc.TopicPrefix = "x-"
	p := NewKafkaProducer(pc, ldlog.NewDisabledLoggers())
	defer p.Close() //nolint:errcheck
	assert.Equal(t, "x-spans", p.TopicName(TopicSpans))
	writer := p.writer.(*kafka.Writer)
	assert.Equal(t, defaultMaxBatchSize, writer.BatchSize)
}

func TestAllTopicsAreDistinct(t *testing.T) {
	seen := map[Topic]bool{}
	for _, topic := range AllTopics() {
		assert.False(t, seen[topic])
		seen[topic] = true
	}
	assert.Len(t, seen, 11)
}
