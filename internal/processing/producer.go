package processing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/basictypes"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const (
	defaultMaxBatchSize = 100
	defaultBatchTimeout = 10 * time.Millisecond
)

var errProducerClosed = errors.New("Kafka producer is closed") //nolint:stylecheck

func errProduceFailed(topic string, err error) error {
	return fmt.Errorf("failed to produce to topic %s: %w", topic, err)
}

// Message is one item to produce. Messages with the same key land in the same partition.
type Message struct {
	Topic   Topic
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// KeyForEvent keys a message by event ID, falling back to the project ID for items without one.
func KeyForEvent(eventID string, projectID basictypes.ProjectID) []byte {
	if eventID != "" {
		return []byte(eventID)
	}
	return []byte(strconv.FormatUint(uint64(projectID), 10))
}

// Producer sends messages to Kafka.
type Producer interface {
	Produce(ctx context.Context, msgs ...Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer is the Producer for a Kafka cluster.
type KafkaProducer struct {
	writer  messageWriter
	prefix  string
	loggers ldlog.Loggers

	mu     sync.RWMutex
	closed bool
}

// NewKafkaProducer creates a producer for the configured brokers.
func NewKafkaProducer(pc config.ProcessingConfig, loggers ldlog.Loggers) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(pc.KafkaBrokers.Values()...),
		Balancer:               &kafka.Hash{},
		BatchSize:              pc.MaxBatchSize.GetOrElse(defaultMaxBatchSize),
		BatchTimeout:           pc.BatchTimeout.GetOrElse(defaultBatchTimeout),
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			loggers.Errorf(msg, args...)
		}),
	}
	return newKafkaProducer(writer, pc.TopicPrefix, loggers)
}

func newKafkaProducer(writer messageWriter, prefix string, loggers ldlog.Loggers) *KafkaProducer {
	loggers.SetPrefix("[Kafka]")
	return &KafkaProducer{writer: writer, prefix: prefix, loggers: loggers}
}

// TopicName returns the full name of a topic.
func (p *KafkaProducer) TopicName(topic Topic) string {
	return p.prefix + string(topic)
}

// Produce writes the messages and waits until the brokers acknowledge them.
func (p *KafkaProducer) Produce(ctx context.Context, msgs ...Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errProducerClosed
	}
	if len(msgs) == 0 {
		return nil
	}
	kmsgs := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		km := kafka.Message{Topic: p.TopicName(m.Topic), Key: m.Key, Value: m.Value}
		for k, v := range m.Headers {
			km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
		}
		kmsgs = append(kmsgs, km)
	}
	if err := p.writer.WriteMessages(ctx, kmsgs...); err != nil {
		return errProduceFailed(kmsgs[0].Topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the connections.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}
