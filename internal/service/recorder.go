package service

import (
	"context"
	"database/sql"
	"fmt"

	"hydro-monitor/common/database"
	rediscommon "hydro-monitor/common/redis"
	"hydro-monitor/internal/config"
	"hydro-monitor/internal/recorder"
	"hydro-monitor/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RecorderService 历史记录服务：消费快照流写入 PostgreSQL
type RecorderService struct {
	logger   *zap.Logger
	db       *sql.DB
	redis    *redis.Client
	recorder *recorder.Recorder
	done     chan struct{}
}

// NewRecorderService 创建历史记录服务（会确保 sensor_readings 表存在）
func NewRecorderService(cfg *config.Config, logger *zap.Logger) (*RecorderService, error) {
	ctx := context.Background()

	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := repository.NewReadingsRepository(db, logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		database.Close(db)
		return nil, err
	}

	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(ctx, redisClient); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	rec := recorder.NewRecorder(recorder.Options{
		Stream:        cfg.Stream.Snapshots,
		ConsumerGroup: cfg.Recorder.ConsumerGroup,
		ConsumerName:  cfg.Recorder.ConsumerName,
		BatchSize:     int64(cfg.Recorder.BatchSize),
		RetryInterval: cfg.Recorder.RetryInterval,
	}, redisClient, repo, logger)

	return &RecorderService{
		logger:   logger,
		db:       db,
		redis:    redisClient,
		recorder: rec,
		done:     make(chan struct{}),
	}, nil
}

// Start 启动消费循环（非阻塞）
func (s *RecorderService) Start(ctx context.Context) error {
	go func() {
		defer close(s.done)
		if err := s.recorder.Start(ctx); err != nil {
			s.logger.Error("Recorder exited", zap.Error(err))
		}
	}()

	s.logger.Info("Recorder service started successfully")
	return nil
}

// Stop 等待消费循环退出后关闭连接；调用前需先取消 Start 的 ctx
func (s *RecorderService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping recorder service")

	select {
	case <-s.done:
	case <-ctx.Done():
	}

	if err := rediscommon.Close(s.redis); err != nil {
		s.logger.Error("Error closing redis", zap.Error(err))
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Error closing database", zap.Error(err))
	}

	s.logger.Info("Recorder service stopped")
	return nil
}
