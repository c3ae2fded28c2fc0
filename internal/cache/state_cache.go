package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hydro-monitor/internal/models"

	"go.uber.org/zap"
)

// StateCache 最新派生状态的 Redis 缓存
// 进程重启后 HTTP 接口可以先从这里恢复最近一次快照
type StateCache struct {
	kv     KVStore
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewStateCache 创建状态缓存
func NewStateCache(kv KVStore, key string, ttl time.Duration, logger *zap.Logger) *StateCache {
	return &StateCache{
		kv:     kv,
		key:    key,
		ttl:    ttl,
		logger: logger,
	}
}

// Save 写入最新快照包装
func (c *StateCache) Save(ctx context.Context, env *models.SnapshotEnvelope) error {
	jsonData, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot envelope: %w", err)
	}

	if err := c.kv.Set(ctx, c.key, string(jsonData), c.ttl); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.logger.Debug("Updated latest state cache",
		zap.String("snapshot_id", env.SnapshotID),
		zap.String("key", c.key),
	)
	return nil
}

// Latest 读取最新快照包装；不存在时返回 ErrCacheMiss
func (c *StateCache) Latest(ctx context.Context) (*models.SnapshotEnvelope, error) {
	val, err := c.kv.Get(ctx, c.key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var env models.SnapshotEnvelope
	if err := json.Unmarshal([]byte(val), &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot envelope: %w", err)
	}
	return &env, nil
}
