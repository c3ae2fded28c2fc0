package service

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	mqttcommon "hydro-monitor/common/mqtt"
	"hydro-monitor/internal/cache"
	"hydro-monitor/internal/config"
	"hydro-monitor/internal/consumer"
	"hydro-monitor/internal/models"
	"hydro-monitor/internal/pipeline"
	"hydro-monitor/internal/state"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingSubscriber struct {
	err error
}

func (f *failingSubscriber) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	return f.err
}

func (f *failingSubscriber) Unsubscribe(topics ...string) error {
	return nil
}

// newTestMonitor 只装配 Start 在订阅之前用到的部分
func newTestMonitor(sub consumer.Subscriber, stateCache *cache.StateCache) *MonitorService {
	latestRaw := state.NewCell[models.RawSnapshot]()
	latest := state.NewCell[models.SnapshotEnvelope]()
	return &MonitorService{
		config: &config.Config{},
		logger: zap.NewNop(),
		consumer: consumer.NewFeedConsumer("hydro/data", 1, sub,
			pipeline.New(0), latestRaw, latest, consumer.Sinks{}, 0, zap.NewNop()),
		stateCache: stateCache,
		latestRaw:  latestRaw,
		latest:     latest,
	}
}

func newTestStateCache(t *testing.T) *cache.StateCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewStateCache(cache.NewRedisKVStore(client), "hydro:state:latest", time.Minute, zap.NewNop())
}

// unreachableConfig 指向一个已关闭端口的数据库配置
func unreachableConfig(t *testing.T) *config.Config {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg := &config.Config{}
	cfg.Database.Host = "127.0.0.1"
	cfg.Database.Port = port
	cfg.Database.User = "postgres"
	cfg.Database.Database = "hydro"
	cfg.Database.SSLMode = "disable"
	cfg.Redis.Addr = "127.0.0.1:1"
	return cfg
}

func TestNewMonitorService_DatabaseUnavailable(t *testing.T) {
	svc, err := NewMonitorService(unreachableConfig(t), zap.NewNop())

	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "failed to connect to database")
}

func TestNewRecorderService_DatabaseUnavailable(t *testing.T) {
	svc, err := NewRecorderService(unreachableConfig(t), zap.NewNop())

	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "failed to connect to database")
}

func TestMonitorService_StartReturnsSubscribeError(t *testing.T) {
	subErr := errors.New("not connected")
	svc := newTestMonitor(&failingSubscriber{err: subErr}, nil)

	err := svc.Start(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, subErr)
}

func TestMonitorService_RestoreLatest(t *testing.T) {
	stateCache := newTestStateCache(t)
	raw := models.RawSnapshot{"temperature": 24.0, "ph": 6.2}
	require.NoError(t, stateCache.Save(context.Background(), &models.SnapshotEnvelope{
		SnapshotID: "snap-7",
		ReceivedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Raw:        raw,
		State:      pipeline.New(0).Derive(raw),
	}))

	svc := newTestMonitor(&failingSubscriber{}, stateCache)
	svc.restoreLatest(context.Background())

	env, ok := svc.latest.Load()
	require.True(t, ok)
	assert.Equal(t, "snap-7", env.SnapshotID)
	assert.Equal(t, models.StatusOptimal, env.State.Status.Temperature.Status)

	// 生长预测读取的原始快照与看板一致
	gotRaw, ok := svc.latestRaw.Load()
	require.True(t, ok)
	assert.True(t, gotRaw.HasData())
	assert.Equal(t, 6.2, gotRaw["ph"])
}

func TestMonitorService_RestoreLatestMiss(t *testing.T) {
	svc := newTestMonitor(&failingSubscriber{}, newTestStateCache(t))

	svc.restoreLatest(context.Background())

	_, ok := svc.latest.Load()
	assert.False(t, ok)
	_, ok = svc.latestRaw.Load()
	assert.False(t, ok)
}
