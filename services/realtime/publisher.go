package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"stock_watchlist_backend/services/metrics"
)

// PricesTopic is the structured topic the refresh loop publishes batches to
const PricesTopic = "prices"

// Message is the envelope published on structured topics
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	Time string `json:"time"`
}

func encodeMessage(topic string, data any, now time.Time) ([]byte, error) {
	payload, err := json.Marshal(Message{Type: topic, Data: data, Time: now.UTC().Format(time.RFC3339)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", topic, err)
	}
	return payload, nil
}

// TopicPublisher sends a structured payload to a named topic.
type TopicPublisher interface {
	Publish(ctx context.Context, topic string, data any) error
}

// RedisTopicPublisher publishes on the Redis Pub/Sub channel "topic:<name>".
type RedisTopicPublisher struct {
	rdb   goredis.Cmdable
	clock clockwork.Clock
}

func NewRedisTopicPublisher(rdb goredis.Cmdable, clock clockwork.Clock) *RedisTopicPublisher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RedisTopicPublisher{rdb: rdb, clock: clock}
}

func topicChannel(topic string) string {
	return "topic:" + topic
}

func (p *RedisTopicPublisher) Publish(ctx context.Context, topic string, data any) error {
	payload, err := encodeMessage(topic, data, p.clock.Now())
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, topicChannel(topic), payload).Err(); err != nil {
		return fmt.Errorf("%w: redis publish: %w", ErrDeliveryFailed, err)
	}
	return nil
}

// KafkaWriter is the subset of *kafka.Writer used for publishing.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a writer for the given brokers and topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

// KafkaTopicPublisher writes one message per batch; the key is the topic name.
type KafkaTopicPublisher struct {
	writer KafkaWriter
	clock  clockwork.Clock
}

func NewKafkaTopicPublisher(writer KafkaWriter, clock clockwork.Clock) *KafkaTopicPublisher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &KafkaTopicPublisher{writer: writer, clock: clock}
}

func (p *KafkaTopicPublisher) Publish(ctx context.Context, topic string, data any) error {
	now := p.clock.Now()
	payload, err := encodeMessage(topic, data, now)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(topic),
		Value: payload,
		Time:  now,
	})
	if err != nil {
		return fmt.Errorf("%w: kafka write: %w", ErrDeliveryFailed, err)
	}
	return nil
}

// Close closes the underlying writer
func (p *KafkaTopicPublisher) Close() error {
	return p.writer.Close()
}

type namedPublisher struct {
	name string
	pub  TopicPublisher
}

// MultiPublisher fans a payload out to every configured sink.
// Every sink is attempted; failures are joined.
type MultiPublisher struct {
	sinks   []namedPublisher
	metrics *metrics.Metrics
}

func NewMultiPublisher(m *metrics.Metrics) *MultiPublisher {
	return &MultiPublisher{metrics: m}
}

// Add registers a sink under name, used as the metrics label
func (m *MultiPublisher) Add(name string, pub TopicPublisher) *MultiPublisher {
	m.sinks = append(m.sinks, namedPublisher{name: name, pub: pub})
	return m
}

// Len returns the number of sinks
func (m *MultiPublisher) Len() int {
	return len(m.sinks)
}

func (m *MultiPublisher) Publish(ctx context.Context, topic string, data any) error {
	var errs []error
	for _, s := range m.sinks {
		err := s.pub.Publish(ctx, topic, data)
		m.metrics.TopicPublish(s.name, err == nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
