//go:build integration

package messaging

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	apperrors "dataflux-query-api/pkg/errors"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func newTestConsumer(t *testing.T, client *redis.Client, cfg ConsumerConfig) (*Consumer, *Producer) {
	t.Helper()
	cfg.Stream = Stream("stream:test:" + t.Name())
	cfg.Group = ConsumerGroupGraphSync
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = "worker-1"
	}
	cfg.BlockTimeout = 100 * time.Millisecond
	c := NewConsumer(client, cfg)
	require.NoError(t, c.ensureGroup(context.Background()))
	return c, NewProducer(client, cfg.Stream, 0)
}

func pendingCount(t *testing.T, c *Consumer) int64 {
	t.Helper()
	p, err := c.client.XPending(context.Background(), string(c.cfg.Stream), string(c.cfg.Group)).Result()
	require.NoError(t, err)
	return p.Count
}

func TestEnsureGroupToleratesExistingGroup(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	stream := Stream("stream:test:busygroup")

	require.NoError(t, client.XGroupCreateMkStream(ctx, string(stream), string(ConsumerGroupGraphSync), "0").Err())

	c := NewConsumer(client, ConsumerConfig{Stream: stream, ConsumerName: "worker-1", BlockTimeout: 50 * time.Millisecond})
	assert.NoError(t, c.ensureGroup(ctx))
	assert.NoError(t, c.ensureGroup(ctx))

	require.NoError(t, c.Start(ctx))
	assert.Error(t, c.Start(ctx), "already running")
	c.Stop()
}

func TestFailedEventRetriesThenDeadLetters(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	c, producer := newTestConsumer(t, client, ConsumerConfig{
		RetryLimit: 2,
		Backoff:    BackoffConfig{Initial: 10 * time.Millisecond, Max: 20 * time.Millisecond, Multiplier: 2},
	})

	var calls atomic.Int32
	c.RegisterHandler(EventSegmentDetected, func(context.Context, *Message) error {
		calls.Add(1)
		return errors.New("graph unavailable")
	})

	_, err := producer.PublishEvent(ctx, EventSegmentDetected, map[string]any{"segment_id": "S1", "asset_id": "A1"})
	require.NoError(t, err)

	require.NoError(t, c.poll(ctx))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), pendingCount(t, c), "failed event stays pending")

	require.Eventually(t, func() bool {
		c.sweep(ctx, false)
		return calls.Load() == 2
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, int64(0), pendingCount(t, c))
	letters, err := c.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, EventSegmentDetected, letters[0].EventType)
	assert.Equal(t, "A1", letters[0].AssetID)
	assert.Equal(t, ReasonRetriesExhausted, letters[0].Reason)
	assert.Equal(t, 2, letters[0].Attempts)
	assert.Equal(t, "graph unavailable", letters[0].Error)
	assert.Equal(t, int64(1), c.checkDLQ(ctx, 0))

	// 死信之后不再重试
	c.sweep(ctx, false)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRejectedEventSkipsRetry(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	c, producer := newTestConsumer(t, client, ConsumerConfig{RetryLimit: 5})

	var calls atomic.Int32
	c.RegisterHandler(EventAssetIndexed, func(context.Context, *Message) error {
		calls.Add(1)
		return apperrors.Validation("asset_id is required")
	})

	_, err := producer.PublishEvent(ctx, EventAssetIndexed, map[string]any{"filename": "a.jpg"})
	require.NoError(t, err)
	require.NoError(t, c.poll(ctx))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(0), pendingCount(t, c))
	letters, err := c.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, ReasonRejected, letters[0].Reason)
	assert.Equal(t, 1, letters[0].Attempts)
}

func TestUnroutableEntriesAreDeadLettered(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	c, producer := newTestConsumer(t, client, ConsumerConfig{})

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(c.cfg.Stream),
		Values: map[string]any{"data": "not-json"},
	}).Err())
	_, err := producer.PublishEvent(ctx, "asset.renamed", map[string]any{"asset_id": "A2"})
	require.NoError(t, err)

	require.NoError(t, c.poll(ctx))

	assert.Equal(t, int64(0), pendingCount(t, c))
	letters, err := c.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, letters, 2)
	assert.Equal(t, ReasonUnknownEvent, letters[0].Reason)
	assert.Equal(t, "asset.renamed", letters[0].EventType)
	assert.Equal(t, "A2", letters[0].AssetID)
	assert.Equal(t, ReasonMalformed, letters[1].Reason)
	assert.Equal(t, "not-json", letters[1].Data)
}

func TestStalledConsumerEventsAreTakenOver(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	c, producer := newTestConsumer(t, client, ConsumerConfig{ClaimMinIdle: 50 * time.Millisecond})

	var handled atomic.Value
	c.RegisterHandler(EventAssetDeleted, func(_ context.Context, msg *Message) error {
		var p struct {
			AssetID string `json:"asset_id"`
		}
		if err := msg.UnmarshalPayload(&p); err != nil {
			return err
		}
		handled.Store(p.AssetID)
		return nil
	})

	_, err := producer.PublishEvent(ctx, EventAssetDeleted, map[string]any{"asset_id": "A9"})
	require.NoError(t, err)

	// 另一个消费者读取后未确认即退出
	_, err = client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    string(c.cfg.Group),
		Consumer: "crashed",
		Streams:  []string{string(c.cfg.Stream), ">"},
		Count:    1,
	}).Result()
	require.NoError(t, err)

	c.sweep(ctx, false)
	assert.Nil(t, handled.Load(), "own sweep ignores other consumers")

	require.Eventually(t, func() bool {
		c.sweep(ctx, true)
		return handled.Load() != nil
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, "A9", handled.Load())
	assert.Equal(t, int64(0), pendingCount(t, c))
}
