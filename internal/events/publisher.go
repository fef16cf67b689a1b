package events

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "mirror-activity"

const (
	TypeUserSignedUp  = "user.signed_up"
	TypeUserFollowed  = "user.followed"
	TypePostShared    = "post.shared"
	TypePostLiked     = "post.liked"
	TypePostUnliked   = "post.unliked"
	TypeCommentAdded  = "comment.added"
	TypePasswordReset = "user.password_reset"
)

// Event is one activity record. Actor keys the message so a user's events stay ordered.
type Event struct {
	Type       string            `json:"type"`
	Actor      string            `json:"actor"`
	Target     string            `json:"target,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func getKafkaBrokerURLs() []string {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return nil
	}
	var urls []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			urls = append(urls, b)
		}
	}
	return urls
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error().Err(err).Int("messages", len(messages)).Msg("Failed to deliver activity events")
			}
		},
	}
}

// NewFromEnv publishes to KAFKA_BROKERS/KAFKA_TOPIC when configured, else only logs events.
func NewFromEnv() Publisher {
	brokers := getKafkaBrokerURLs()
	if len(brokers) == 0 {
		log.Info().Msg("KAFKA_BROKERS not set, activity events are logged only")
		return LogPublisher{}
	}
	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = DefaultTopic
	}
	log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("Publishing activity events to Kafka")
	return NewKafkaPublisher(NewKafkaWriter(brokers, topic))
}

type kafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(writer messageWriter) Publisher {
	return &kafkaPublisher{writer: writer}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("Failed to encode activity event")
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.Actor),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().Err(err).Str("type", event.Type).Str("actor", event.Actor).Msg("Failed to publish activity event")
	}
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) {
	log.Debug().
		Str("type", event.Type).
		Str("actor", event.Actor).
		Str("target", event.Target).
		Interface("attributes", event.Attributes).
		Msg("Activity event")
}

func (LogPublisher) Close() error { return nil }
