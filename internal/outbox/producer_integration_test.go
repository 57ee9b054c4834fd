//go:build integration

package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"example.com/octofit/internal/events"
)

func TestKafkaProducerDeliversToTopic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkaContainer.RunContainer(ctx, testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             events.UserEventsTopic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))

	producer := NewKafkaProducer(brokers)
	defer producer.Close()

	require.NoError(t, producer.WriteMessages(ctx, events.UserEventsTopic, kafka.Message{
		Key:     []byte("user_1"),
		Value:   []byte(`{"user_id":"user_1"}`),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(events.UserUpdatedType)}},
	}))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "octofit-integration",
		Topic:       events.UserEventsTopic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	msg, err := reader.FetchMessage(ctx)
	require.NoError(t, err)
	require.Equal(t, "user_1", string(msg.Key))
	require.JSONEq(t, `{"user_id":"user_1"}`, string(msg.Value))
}
