package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqttcommon "hydro-monitor/common/mqtt"
	"hydro-monitor/internal/models"
	"hydro-monitor/internal/pipeline"
	"hydro-monitor/internal/state"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// sinkTimeout 单次下游写入（缓存 / 快照流）的超时
	sinkTimeout = 2 * time.Second
	// sinkQueueSize 等待写入 Redis 的快照队列长度，满了丢弃
	sinkQueueSize = 64
)

var errNotObject = errors.New("snapshot is not a JSON object")

// Subscriber MQTT 订阅接口（common/mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Broadcaster 推送派生状态给在线的看板（websocket hub 实现）
type Broadcaster interface {
	BroadcastSnapshot(env *models.SnapshotEnvelope)
}

// StateStore 最新状态缓存（cache.StateCache 实现）
type StateStore interface {
	Save(ctx context.Context, env *models.SnapshotEnvelope) error
}

// SnapshotPublisher 快照流发布（RedisStreamPublisher 实现）
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, env *models.SnapshotEnvelope) (string, error)
}

// Sinks 派生之后的下游，任意一项为 nil 时跳过
type Sinks struct {
	Hub    Broadcaster
	Cache  StateStore
	Stream SnapshotPublisher
}

// FeedConsumer 设备快照订阅者
// 每条消息完整走一遍 Normalize → Classify → EvaluateSecurity → ToWaterLevel，消息之间串行处理
// Redis 写入（缓存、快照流）由 Run 中的单独 goroutine 完成，不占用消息处理的锁
type FeedConsumer struct {
	topic      string
	qos        byte
	subscriber Subscriber
	pipeline   *pipeline.Pipeline
	latestRaw  *state.Cell[models.RawSnapshot]
	latest     *state.Cell[models.SnapshotEnvelope]
	sinks      Sinks
	logger     *zap.Logger
	metrics    *Metrics

	reportInterval time.Duration

	mu        sync.Mutex // 串行化 handleMessage
	sinkQueue chan *models.SnapshotEnvelope

	now   func() time.Time
	newID func() string
}

// NewFeedConsumer 创建订阅者
func NewFeedConsumer(
	topic string,
	qos byte,
	subscriber Subscriber,
	p *pipeline.Pipeline,
	latestRaw *state.Cell[models.RawSnapshot],
	latest *state.Cell[models.SnapshotEnvelope],
	sinks Sinks,
	reportInterval time.Duration,
	logger *zap.Logger,
) *FeedConsumer {
	return &FeedConsumer{
		topic:          topic,
		qos:            qos,
		subscriber:     subscriber,
		pipeline:       p,
		latestRaw:      latestRaw,
		latest:         latest,
		sinks:          sinks,
		logger:         logger,
		metrics:        NewMetrics(),
		reportInterval: reportInterval,
		sinkQueue:      make(chan *models.SnapshotEnvelope, sinkQueueSize),
		now:            time.Now,
		newID:          func() string { return uuid.New().String() },
	}
}

// Metrics 订阅指标
func (c *FeedConsumer) Metrics() *Metrics {
	return c.metrics
}

// Subscribe 订阅主题；失败时直接返回错误，由调用方决定是否退出
func (c *FeedConsumer) Subscribe() error {
	if err := c.subscriber.Subscribe(c.topic, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to feed topic %s: %w", c.topic, err)
	}

	c.logger.Info("Feed consumer subscribed",
		zap.String("topic", c.topic),
		zap.Uint8("qos", c.qos),
		zap.Float64("tank_height_cm", c.pipeline.TankHeight()),
	)
	return nil
}

// Run 写入 Redis 下游并定期报告指标，阻塞到 ctx 取消
func (c *FeedConsumer) Run(ctx context.Context) {
	if c.reportInterval > 0 {
		go c.reportMetrics(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-c.sinkQueue:
			c.writeSinks(env)
		}
	}
}

// Stop 取消订阅
func (c *FeedConsumer) Stop(ctx context.Context) error {
	if err := c.subscriber.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("Feed consumer stopped")
	return nil
}

// handleMessage 处理一条快照消息
// 解析失败只计数并丢弃；下游写入失败只记录日志，不影响最新状态
func (c *FeedConsumer) handleMessage(topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	startTime := time.Now()
	c.metrics.IncrementProcessed()

	raw, err := parseSnapshot(payload)
	if err != nil {
		c.metrics.IncrementFailed(ErrorKindParse)
		c.logger.Warn("Dropping malformed snapshot",
			zap.String("topic", topic),
			zap.Int("payload_size", len(payload)),
			zap.Error(err),
		)
		return fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if raw == nil {
		c.metrics.IncrementSkipped()
		c.logger.Debug("Ignoring null snapshot", zap.String("topic", topic))
		return nil
	}

	env := models.SnapshotEnvelope{
		SnapshotID: c.newID(),
		ReceivedAt: c.now().UTC(),
		Topic:      topic,
		Raw:        raw,
		State:      c.pipeline.Derive(raw),
	}

	c.latestRaw.Store(raw)
	c.latest.Store(env)

	c.fanOut(&env)

	duration := time.Since(startTime)
	c.metrics.IncrementSucceeded(duration)

	c.logger.Debug("Derived dashboard state",
		zap.String("snapshot_id", env.SnapshotID),
		zap.String("temperature_status", string(env.State.Status.Temperature.Status)),
		zap.String("ph_status", string(env.State.Status.PH.Status)),
		zap.Float64("water_level", env.State.WaterLevel.Percent),
		zap.Bool("intruder", env.State.Security.Intruder.Detected),
		zap.Duration("processing_time", duration),
	)

	if env.State.Security.Intruder.Detected {
		c.logger.Warn("Intruder detected",
			zap.String("snapshot_id", env.SnapshotID),
			zap.String("topic", topic),
		)
	}

	return nil
}

// fanOut 推送给看板并把快照交给 Redis 写入队列，不等待网络
func (c *FeedConsumer) fanOut(env *models.SnapshotEnvelope) {
	if c.sinks.Hub != nil {
		c.sinks.Hub.BroadcastSnapshot(env)
	}

	if c.sinks.Cache == nil && c.sinks.Stream == nil {
		return
	}

	select {
	case c.sinkQueue <- env:
	default:
		c.metrics.IncrementSinkError(ErrorKindQueueFull)
		c.logger.Warn("Sink queue full, dropping snapshot",
			zap.String("snapshot_id", env.SnapshotID),
		)
	}
}

// writeSinks 写入状态缓存与快照流；失败只计数和记录日志
func (c *FeedConsumer) writeSinks(env *models.SnapshotEnvelope) {
	if c.sinks.Cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		err := c.sinks.Cache.Save(ctx, env)
		cancel()
		if err != nil {
			c.metrics.IncrementSinkError(ErrorKindCache)
			c.logger.Error("Failed to update state cache",
				zap.String("snapshot_id", env.SnapshotID),
				zap.Error(err),
			)
		}
	}

	if c.sinks.Stream != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		streamID, err := c.sinks.Stream.PublishSnapshot(ctx, env)
		cancel()
		if err != nil {
			c.metrics.IncrementSinkError(ErrorKindStream)
			c.logger.Error("Failed to publish snapshot to stream",
				zap.String("snapshot_id", env.SnapshotID),
				zap.Error(err),
			)
		} else {
			c.logger.Debug("Published snapshot to stream",
				zap.String("snapshot_id", env.SnapshotID),
				zap.String("stream_id", streamID),
			)
		}
	}
}

// parseSnapshot 解析快照；null 返回 (nil, nil)
func parseSnapshot(payload []byte) (models.RawSnapshot, error) {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return models.RawSnapshot(obj), nil
}

// reportMetrics 定期报告指标
func (c *FeedConsumer) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(c.reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := c.metrics.GetSnapshot()
			c.logger.Info("Metrics report",
				zap.Int64("messages_processed", snapshot.MessagesProcessed),
				zap.Int64("messages_succeeded", snapshot.MessagesSucceeded),
				zap.Int64("messages_failed", snapshot.MessagesFailed),
				zap.Int64("messages_skipped", snapshot.MessagesSkipped),
				zap.Float64("success_rate", snapshot.SuccessRate()),
				zap.Int64("errors_parse", snapshot.ErrorsParse),
				zap.Int64("errors_cache_failed", snapshot.ErrorsCache),
				zap.Int64("errors_stream_failed", snapshot.ErrorsStream),
				zap.Int64("errors_queue_full", snapshot.ErrorsQueueFull),
				zap.Duration("avg_processing_time", snapshot.AvgProcessingTime()),
				zap.Duration("uptime", time.Since(snapshot.StartTime)),
			)
		}
	}
}
