package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "dataflux-query-api/pkg/errors"
	"dataflux-query-api/pkg/logger"
	"dataflux-query-api/pkg/metrics"
)

// MessageHandler 事件处理函数
//
// 返回 CodeInvalidParam 的错误表示事件本身不可应用，直接进入死信流不再重试。
type MessageHandler func(ctx context.Context, msg *Message) error

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BatchSize     int64
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	ClaimMinIdle  time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

func (cfg *ConsumerConfig) applyDefaults() {
	if cfg.Stream == "" {
		cfg.Stream = StreamAssetEvents
	}
	if cfg.Group == "" {
		cfg.Group = ConsumerGroupGraphSync
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}
	if cfg.ClaimMinIdle <= 0 {
		cfg.ClaimMinIdle = max(time.Minute, cfg.Backoff.Max*2)
	}
}

// sweepBatch 每轮检查的待确认条目上限
const sweepBatch = 20

// Consumer 写侧事件消费者
//
// 新事件第一次投递即处理；失败的事件留在待确认列表，按退避时间由本消费者重新认领，
// 其他消费者长时间未确认的事件在 ClaimMinIdle 后被接管。
type Consumer struct {
	client *redis.Client
	cfg    ConsumerConfig

	mu       sync.RWMutex
	handlers map[string]MessageHandler
	running  bool
	stopCh   chan struct{}
}

// NewConsumer 创建消费者
func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	cfg.applyDefaults()
	return &Consumer{
		client:   client,
		cfg:      cfg,
		handlers: make(map[string]MessageHandler),
		stopCh:   make(chan struct{}),
	}
}

// RegisterHandler 注册事件处理器
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = handler
}

// Start 确保消费组存在后在后台开始消费
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer already running")
	}
	c.running = true
	c.mu.Unlock()

	if err := c.ensureGroup(ctx); err != nil {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return err
	}

	go c.loop(ctx)
	return nil
}

// Stop 停止消费
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		close(c.stopCh)
		c.running = false
	}
}

// ensureGroup 从流起点创建消费组，组已存在时不报错
func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, string(c.cfg.Stream), string(c.cfg.Group), "0").Err()
	if err == nil || isBusyGroup(err) {
		return nil
	}
	return fmt.Errorf("failed to create consumer group %s: %w", c.cfg.Group, err)
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func (c *Consumer) loop(ctx context.Context) {
	logger.Info(ctx, "graph sync consumer started",
		"stream", c.cfg.Stream,
		"group", c.cfg.Group,
		"consumer", c.cfg.ConsumerName,
	)

	lastTakeover := time.Now().Add(-c.cfg.ClaimInterval)
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "graph sync consumer stopped", "reason", ctx.Err().Error())
			return
		case <-c.stopCh:
			logger.Info(ctx, "graph sync consumer stopped")
			return
		default:
		}

		c.sweep(ctx, false)
		if time.Since(lastTakeover) >= c.cfg.ClaimInterval {
			c.sweep(ctx, true)
			c.reportLag(ctx)
			lastTakeover = time.Now()
		}

		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error(ctx, "failed to read from stream", err, "stream", c.cfg.Stream)
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-time.After(time.Second):
			}
		}
	}
}

// poll 读取并处理一批新事件
func (c *Consumer) poll(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    string(c.cfg.Group),
		Consumer: c.cfg.ConsumerName,
		Streams:  []string{string(c.cfg.Stream), ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.BlockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, s := range streams {
		for _, xmsg := range s.Messages {
			c.handle(ctx, xmsg, 1)
		}
	}
	return nil
}

// sweep 认领待确认事件
//
// takeover 为 false 时只处理本消费者名下已过退避时间的事件；
// 为 true 时接管其他消费者空闲超过 ClaimMinIdle 的事件。
// 投递次数已达上限的事件不再执行，直接进入死信流。
func (c *Consumer) sweep(ctx context.Context, takeover bool) {
	args := &redis.XPendingExtArgs{
		Stream: string(c.cfg.Stream),
		Group:  string(c.cfg.Group),
		Start:  "-",
		End:    "+",
		Count:  sweepBatch,
	}
	if !takeover {
		args.Consumer = c.cfg.ConsumerName
	}
	pending, err := c.client.XPendingExt(ctx, args).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Error(ctx, "failed to query pending events", err, "takeover", takeover)
		}
		return
	}

	for _, p := range pending {
		delivered := int(p.RetryCount)

		minIdle := c.cfg.ClaimMinIdle
		if takeover {
			if p.Consumer == c.cfg.ConsumerName {
				continue
			}
		} else {
			minIdle = c.cfg.Backoff.CalculateBackoff(max(delivered-1, 0))
		}
		if p.Idle < minIdle {
			continue
		}

		claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   string(c.cfg.Stream),
			Group:    string(c.cfg.Group),
			Consumer: c.cfg.ConsumerName,
			MinIdle:  minIdle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			logger.Error(ctx, "failed to claim pending event", err, "stream_id", p.ID)
			continue
		}

		for _, xmsg := range claimed {
			if delivered >= c.cfg.RetryLimit {
				msg, _ := decode(xmsg)
				c.deadLetter(ctx, xmsg, msg, ReasonRetriesExhausted, errors.New("event exceeded retry limit"), delivered)
				continue
			}
			c.handle(ctx, xmsg, delivered+1)
		}
	}
}

// handle 处理一次投递，attempt 为包含本次在内的投递次数
func (c *Consumer) handle(ctx context.Context, xmsg redis.XMessage, attempt int) {
	ctx, span := tracer.Start(ctx, "consumer.handle",
		trace.WithAttributes(
			attribute.String("stream", string(c.cfg.Stream)),
			attribute.String("stream.message_id", xmsg.ID),
			attribute.Int("attempt", attempt),
		))
	defer span.End()

	msg, err := decode(xmsg)
	if err != nil {
		c.deadLetter(ctx, xmsg, nil, ReasonMalformed, err, attempt)
		return
	}
	ctx = messageContext(ctx, msg)
	span.SetAttributes(attribute.String("message.id", msg.ID), attribute.String("message.type", msg.Type))

	if !IsIngestEvent(msg.Type) {
		c.deadLetter(ctx, xmsg, msg, ReasonUnknownEvent, fmt.Errorf("unknown event type %q", msg.Type), attempt)
		return
	}

	c.mu.RLock()
	handler, ok := c.handlers[msg.Type]
	c.mu.RUnlock()
	if !ok {
		logger.Warn(ctx, "no handler registered for event type", "type", msg.Type)
		metrics.RedisStreamProcessed.WithLabelValues(string(c.cfg.Stream), "skipped").Inc()
		c.ack(ctx, xmsg.ID)
		return
	}

	err = handler(ctx, msg)
	switch {
	case err == nil:
		metrics.RedisStreamProcessed.WithLabelValues(string(c.cfg.Stream), "success").Inc()
		c.ack(ctx, xmsg.ID)
	case apperrors.IsCode(err, apperrors.CodeInvalidParam):
		span.RecordError(err)
		c.deadLetter(ctx, xmsg, msg, ReasonRejected, err, attempt)
	case attempt >= c.cfg.RetryLimit:
		span.RecordError(err)
		c.deadLetter(ctx, xmsg, msg, ReasonRetriesExhausted, err, attempt)
	default:
		span.RecordError(err)
		metrics.RedisStreamProcessed.WithLabelValues(string(c.cfg.Stream), "failed").Inc()
		logger.Warn(ctx, "event left pending for retry",
			"type", msg.Type,
			"attempt", attempt,
			"retry_limit", c.cfg.RetryLimit,
			"error", err.Error(),
		)
	}
}

func decode(xmsg redis.XMessage) (*Message, error) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("stream entry %s has no data field", xmsg.ID)
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("decode stream entry %s: %w", xmsg.ID, err)
	}
	return &msg, nil
}

func messageContext(ctx context.Context, msg *Message) context.Context {
	if assetID := subjectAssetID(msg); assetID != "" {
		ctx = logger.WithContext(ctx, logger.AssetIDKey, assetID)
	}
	if reqID := msg.GetMetadata("request_id"); reqID != "" {
		ctx = logger.WithContext(ctx, logger.RequestIDKey, reqID)
	}
	if traceID := msg.GetMetadata("trace_id"); traceID != "" {
		ctx = logger.WithContext(ctx, logger.TraceIDKey, traceID)
	}
	return ctx
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, string(c.cfg.Stream), string(c.cfg.Group), id).Err(); err != nil {
		logger.Error(ctx, "failed to ack event", err, "stream_id", id)
	}
}

// deadLetter 写入死信流后确认原事件；写入失败时保留待确认，等待下一轮认领
func (c *Consumer) deadLetter(ctx context.Context, xmsg redis.XMessage, msg *Message, reason string, cause error, attempts int) {
	dl := &DeadLetter{
		SourceStream: string(c.cfg.Stream),
		StreamID:     xmsg.ID,
		Reason:       reason,
		Attempts:     attempts,
		FailedAt:     time.Now(),
	}
	if raw, ok := xmsg.Values["data"].(string); ok {
		dl.Data = raw
	}
	if cause != nil {
		dl.Error = cause.Error()
	}
	if msg != nil {
		dl.MessageID = msg.ID
		dl.EventType = msg.Type
		dl.AssetID = subjectAssetID(msg)
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream.DLQStream(),
		Values: dl.values(),
	}).Err(); err != nil {
		logger.Error(ctx, "failed to write dead letter", err, "stream_id", xmsg.ID, "reason", reason)
		return
	}
	c.ack(ctx, xmsg.ID)

	metrics.RedisStreamProcessed.WithLabelValues(string(c.cfg.Stream), "dead_lettered").Inc()
	logger.Warn(ctx, "event dead-lettered",
		"stream_id", xmsg.ID,
		"type", dl.EventType,
		"reason", reason,
		"attempts", attempts,
		"error", dl.Error,
	)
}

// DeadLetters 按时间倒序返回最近的死信
func (c *Consumer) DeadLetters(ctx context.Context, count int64) ([]*DeadLetter, error) {
	entries, err := c.client.XRevRangeN(ctx, c.cfg.Stream.DLQStream(), "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}
	out := make([]*DeadLetter, 0, len(entries))
	for _, e := range entries {
		dl, err := ParseDeadLetter(e)
		if err != nil {
			return nil, err
		}
		out = append(out, dl)
	}
	return out, nil
}

func (c *Consumer) reportLag(ctx context.Context) {
	groups, err := c.client.XInfoGroups(ctx, string(c.cfg.Stream)).Result()
	if err != nil {
		return
	}
	for _, g := range groups {
		if g.Name == string(c.cfg.Group) {
			metrics.RedisStreamLag.WithLabelValues(string(c.cfg.Stream), g.Name).Set(float64(g.Lag))
		}
	}
}

// MonitorDLQ 每分钟上报死信数量，超过阈值时输出最近一条死信
func (c *Consumer) MonitorDLQ(ctx context.Context, alertThreshold int64) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.checkDLQ(ctx, alertThreshold)
		}
	}
}

func (c *Consumer) checkDLQ(ctx context.Context, alertThreshold int64) int64 {
	dlq := c.cfg.Stream.DLQStream()
	n, err := c.client.XLen(ctx, dlq).Result()
	if err != nil {
		return 0
	}
	metrics.RedisStreamDeadLetters.WithLabelValues(string(c.cfg.Stream)).Set(float64(n))
	if n <= alertThreshold {
		return n
	}

	args := []any{"stream", dlq, "count", n}
	if latest, err := c.DeadLetters(ctx, 1); err == nil && len(latest) > 0 {
		args = append(args,
			"latest_type", latest[0].EventType,
			"latest_reason", latest[0].Reason,
			"latest_asset_id", latest[0].AssetID,
		)
	}
	logger.Warn(ctx, "dead-letter stream above threshold", args...)
	return n
}
