package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherEncodesEvent(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaPublisher(w)

	p.Publish(context.Background(), Event{
		Type:       TypePostLiked,
		Actor:      "ben",
		Target:     "a.jpg",
		Attributes: map[string]string{"owner": "ana"},
	})

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "ben", string(msg.Key))
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, TypePostLiked, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "a.jpg", decoded.Target)
	assert.Equal(t, "ana", decoded.Attributes["owner"])
	assert.False(t, decoded.OccurredAt.IsZero())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherSwallowsWriteErrors(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := NewKafkaPublisher(w)

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), Event{Type: TypeUserFollowed, Actor: "ana", Target: "ben"})
	})
	assert.Len(t, w.messages, 1)
}

func TestNewFromEnvWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " , ")
	_, ok := NewFromEnv().(LogPublisher)
	assert.True(t, ok)
}

func TestBrokerListIsTrimmed(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, getKafkaBrokerURLs())
}
