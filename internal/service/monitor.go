package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"hydro-monitor/common/database"
	mqttcommon "hydro-monitor/common/mqtt"
	rediscommon "hydro-monitor/common/redis"
	"hydro-monitor/internal/cache"
	"hydro-monitor/internal/config"
	"hydro-monitor/internal/consumer"
	"hydro-monitor/internal/httpapi"
	"hydro-monitor/internal/models"
	"hydro-monitor/internal/pipeline"
	"hydro-monitor/internal/predictor"
	"hydro-monitor/internal/repository"
	"hydro-monitor/internal/state"
	"hydro-monitor/internal/websocket"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// restoreTimeout 启动时读取 Redis 缓存快照的超时
const restoreTimeout = 2 * time.Second

// MonitorService 看板服务：订阅设备快照、派生状态、对外提供 HTTP / websocket
type MonitorService struct {
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	mqttClient *mqttcommon.Client
	hub        *websocket.Hub
	consumer   *consumer.FeedConsumer
	stateCache *cache.StateCache
	latestRaw  *state.Cell[models.RawSnapshot]
	latest     *state.Cell[models.SnapshotEnvelope]
	httpServer *http.Server
}

// NewMonitorService 创建看板服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	ctx := context.Background()

	// 初始化数据库
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 初始化Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(ctx, redisClient); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 初始化MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		rediscommon.Close(redisClient)
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// 最新快照（单写多读）
	latestRaw := state.NewCell[models.RawSnapshot]()
	latest := state.NewCell[models.SnapshotEnvelope]()

	hub := websocket.NewHub(latest, logger)
	stateCache := cache.NewStateCache(cache.NewRedisKVStore(redisClient), cfg.Cache.StateKey, cfg.Cache.StateTTL, logger)

	feedConsumer := consumer.NewFeedConsumer(
		cfg.Feed.Topic,
		cfg.MQTT.QoS,
		mqttClient,
		pipeline.New(cfg.Feed.TankHeightCM),
		latestRaw,
		latest,
		consumer.Sinks{
			Hub:    hub,
			Cache:  stateCache,
			Stream: consumer.NewRedisStreamPublisher(redisClient, cfg.Stream.Snapshots),
		},
		cfg.Metrics.ReportInterval,
		logger,
	)

	predictions := predictor.NewService(predictor.NewClient(&cfg.Predictor, logger), latestRaw, logger)

	handler := httpapi.NewHandler(httpapi.Deps{
		Latest:      latest,
		Cache:       stateCache,
		Predictions: predictions,
		Readings:    repository.NewReadingsRepository(db, logger),
		Metrics:     feedConsumer.Metrics(),
		Hub:         hub,
		Feed:        mqttClient,
	}, logger)

	return &MonitorService{
		config:     cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		mqttClient: mqttClient,
		hub:        hub,
		consumer:   feedConsumer,
		stateCache: stateCache,
		latestRaw:  latestRaw,
		latest:     latest,
		httpServer: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpapi.NewRouter(handler, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Start 启动服务（非阻塞）；订阅失败时返回错误
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting monitor service components")

	// 先恢复缓存快照再订阅，避免旧快照覆盖新到的消息
	if s.stateCache != nil {
		s.restoreLatest(ctx)
	}

	if err := s.consumer.Subscribe(); err != nil {
		return err
	}

	go s.hub.Run(ctx)
	go s.consumer.Run(ctx)

	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.config.HTTP.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server exited", zap.Error(err))
		}
	}()

	s.logger.Info("Monitor service started successfully")
	return nil
}

// restoreLatest 用 Redis 中最后一个快照恢复内存状态，重启后看板与生长预测读到同一份数据
func (s *MonitorService) restoreLatest(ctx context.Context) {
	restoreCtx, cancel := context.WithTimeout(ctx, restoreTimeout)
	defer cancel()

	env, err := s.stateCache.Latest(restoreCtx)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Info("No cached snapshot to restore")
		} else {
			s.logger.Warn("Failed to restore cached snapshot", zap.Error(err))
		}
		return
	}

	if env.Raw != nil {
		s.latestRaw.Store(env.Raw)
	}
	s.latest.Store(*env)

	s.logger.Info("Restored cached snapshot",
		zap.String("snapshot_id", env.SnapshotID),
		zap.Time("received_at", env.ReceivedAt),
	)
}

// Stop 停止服务
func (s *MonitorService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping monitor service")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Error shutting down HTTP server", zap.Error(err))
	}

	if err := s.consumer.Stop(ctx); err != nil {
		s.logger.Error("Error stopping consumer", zap.Error(err))
	}

	s.mqttClient.Disconnect()

	if err := rediscommon.Close(s.redis); err != nil {
		s.logger.Error("Error closing redis", zap.Error(err))
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Error closing database", zap.Error(err))
	}

	s.logger.Info("Monitor service stopped")
	return nil
}
