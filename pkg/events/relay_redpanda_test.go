//go:build integration
// +build integration

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// createKafkaTopic creates a Kafka topic for testing.
func createKafkaTopic(t *testing.T, ctx context.Context, brokers string, topicName string) {
	adminClient, err := kgo.NewClient(kgo.SeedBrokers(brokers))
	require.NoError(t, err)
	defer adminClient.Close()

	req := kmsg.NewCreateTopicsRequest()
	topic := kmsg.NewCreateTopicsRequestTopic()
	topic.Topic = topicName
	topic.NumPartitions = 1
	topic.ReplicationFactor = 1
	req.Topics = append(req.Topics, topic)

	_, err = req.RequestWith(ctx, adminClient)
	require.NoError(t, err)

	// Wait for topic to be ready
	time.Sleep(1 * time.Second)
}

func TestRelay_PublishToRedpanda(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "test",
		Level: hclog.Debug,
	})

	redpandaContainer, err := redpanda.Run(ctx,
		"docker.redpanda.com/redpandadata/redpanda:latest",
	)
	require.NoError(t, err)
	defer func() {
		_ = redpandaContainer.Terminate(ctx)
	}()

	brokers, err := redpandaContainer.KafkaSeedBroker(ctx)
	require.NoError(t, err)

	topic := "test.pids"
	createKafkaTopic(t, ctx, brokers, topic)

	db := setupTestDB(t)
	entry := createTestEntry(t, db, PidCreated)

	relay, err := New(Config{
		DB:           db,
		Brokers:      []string{brokers},
		Topic:        topic,
		PollInterval: 100 * time.Millisecond,
		BatchSize:    10,
		Logger:       logger,
	})
	require.NoError(t, err)
	defer relay.Stop()

	published, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, published)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	fetches := consumer.PollFetches(fetchCtx)
	require.Empty(t, fetches.Errors())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, entry.PidID.String(), string(records[0].Key))

	var event PidEvent
	require.NoError(t, json.Unmarshal(records[0].Value, &event))
	assert.Equal(t, PidCreated, event.EventType)
	assert.Equal(t, entry.URI, event.URI)
}
