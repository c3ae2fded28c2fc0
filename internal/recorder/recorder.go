// Package recorder 消费派生快照流，把每个快照写入 PostgreSQL 历史表
package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	rediscommon "hydro-monitor/common/redis"
	"hydro-monitor/internal/models"
	"hydro-monitor/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	defaultBlock         = 5 * time.Second
	defaultRetryInterval = 30 * time.Second
	minBackoff           = time.Second
	maxBackoff           = 30 * time.Second
)

// ReadingWriter 历史记录写入接口（repository.ReadingsRepository 实现）
type ReadingWriter interface {
	InsertReading(ctx context.Context, reading *models.SensorReading) error
}

// Options 消费者组参数
type Options struct {
	Stream        string
	ConsumerGroup string
	ConsumerName  string
	BatchSize     int64
	Block         time.Duration // XREADGROUP 阻塞时间，0 取默认值
	RetryInterval time.Duration // 重试 pending 消息的间隔，0 取默认值
}

// Recorder Redis Streams 消费者
// 写库失败的消息不 ack，留在 pending 列表里，每隔 RetryInterval 重新写一次，直到成功
type Recorder struct {
	opts        Options
	redisClient *redis.Client
	writer      ReadingWriter
	logger      *zap.Logger
}

// NewRecorder 创建记录器
func NewRecorder(opts Options, redisClient *redis.Client, writer ReadingWriter, logger *zap.Logger) *Recorder {
	if opts.Block <= 0 {
		opts.Block = defaultBlock
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}
	return &Recorder{
		opts:        opts,
		redisClient: redisClient,
		writer:      writer,
		logger:      logger,
	}
}

// Start 创建消费者组并循环消费，直到 ctx 取消
func (r *Recorder) Start(ctx context.Context) error {
	if err := rediscommon.CreateConsumerGroup(ctx, r.redisClient, r.opts.Stream, r.opts.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", r.opts.Stream, err)
	}

	r.logger.Info("Recorder started",
		zap.String("stream", r.opts.Stream),
		zap.String("consumer_group", r.opts.ConsumerGroup),
		zap.String("consumer_name", r.opts.ConsumerName),
	)

	backoffDuration := minBackoff
	var lastRetry time.Time // 零值：启动时先处理上次遗留的 pending 消息

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if time.Since(lastRetry) >= r.opts.RetryInterval {
			lastRetry = time.Now()
			if _, err := r.retryPending(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("Failed to retry pending messages", zap.Error(err))
			}
		}

		if _, err := r.consumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("Failed to consume stream",
				zap.Error(err),
				zap.Duration("backoff", backoffDuration),
			)

			// 指数退避
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoffDuration):
				backoffDuration *= 2
				if backoffDuration > maxBackoff {
					backoffDuration = maxBackoff
				}
			}
		} else {
			backoffDuration = minBackoff
		}
	}
}

// consumeOnce 读取并处理一批消息，返回已 ack 的条数
func (r *Recorder) consumeOnce(ctx context.Context) (int, error) {
	messages, err := rediscommon.ReadFromStream(
		ctx,
		r.redisClient,
		r.opts.Stream,
		r.opts.ConsumerGroup,
		r.opts.ConsumerName,
		r.opts.BatchSize,
		r.opts.Block,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to read from stream: %w", err)
	}

	return r.processBatch(ctx, messages)
}

// retryPending 重新处理本消费者之前写库失败、仍未 ack 的消息，返回已 ack 的条数
func (r *Recorder) retryPending(ctx context.Context) (int, error) {
	messages, err := rediscommon.ReadPendingFromStream(
		ctx,
		r.redisClient,
		r.opts.Stream,
		r.opts.ConsumerGroup,
		r.opts.ConsumerName,
		r.opts.BatchSize,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to read pending messages: %w", err)
	}
	if len(messages) == 0 {
		return 0, nil
	}

	acked, err := r.processBatch(ctx, messages)
	if err != nil {
		return 0, err
	}

	r.logger.Info("Retried pending messages",
		zap.Int("pending", len(messages)),
		zap.Int("recorded", acked),
	)
	return acked, nil
}

// processBatch 逐条写库，ack 成功（或可丢弃）的消息
func (r *Recorder) processBatch(ctx context.Context, messages []rediscommon.StreamMessage) (int, error) {
	var ackIDs []string
	for _, msg := range messages {
		if err := r.processMessage(ctx, msg); err != nil {
			r.logger.Error("Failed to record snapshot, leaving it pending",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
			continue
		}
		ackIDs = append(ackIDs, msg.ID)
	}

	if err := rediscommon.AckStream(ctx, r.redisClient, r.opts.Stream, r.opts.ConsumerGroup, ackIDs...); err != nil {
		return 0, fmt.Errorf("failed to ack messages: %w", err)
	}
	return len(ackIDs), nil
}

// processMessage 处理单条消息；返回 nil 表示可以 ack
// 无法解析的消息直接丢弃（同样 ack），重复写入视为已记录
func (r *Recorder) processMessage(ctx context.Context, msg rediscommon.StreamMessage) error {
	env, err := decodeEnvelope(msg)
	if err != nil {
		r.logger.Warn("Dropping malformed stream message",
			zap.String("stream_id", msg.ID),
			zap.Error(err),
		)
		return nil
	}

	reading, err := models.ReadingFromEnvelope(env)
	if err != nil {
		r.logger.Warn("Dropping unrecordable snapshot",
			zap.String("stream_id", msg.ID),
			zap.String("snapshot_id", env.SnapshotID),
			zap.Error(err),
		)
		return nil
	}

	if err := r.writer.InsertReading(ctx, reading); err != nil {
		if errors.Is(err, repository.ErrDuplicateReading) {
			r.logger.Debug("Snapshot already recorded", zap.String("snapshot_id", env.SnapshotID))
			return nil
		}
		return err
	}

	r.logger.Debug("Recorded snapshot",
		zap.String("stream_id", msg.ID),
		zap.String("snapshot_id", env.SnapshotID),
	)
	return nil
}

func decodeEnvelope(msg rediscommon.StreamMessage) (*models.SnapshotEnvelope, error) {
	val, ok := msg.Values["data"]
	if !ok {
		return nil, errors.New("missing data field in message")
	}
	dataStr, ok := val.(string)
	if !ok {
		return nil, errors.New("invalid data format in message")
	}

	var env models.SnapshotEnvelope
	if err := json.Unmarshal([]byte(dataStr), &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot envelope: %w", err)
	}
	if env.SnapshotID == "" {
		return nil, errors.New("snapshot envelope has no snapshot_id")
	}
	return &env, nil
}
