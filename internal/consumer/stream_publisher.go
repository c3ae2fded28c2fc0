package consumer

import (
	"context"

	rediscommon "hydro-monitor/common/redis"
	"hydro-monitor/internal/models"

	"github.com/go-redis/redis/v8"
)

// RedisStreamPublisher 把派生快照追加到 Redis Stream（供 hydro-recorder 消费）
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
}

// NewRedisStreamPublisher 创建快照流发布器
func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream}
}

// PublishSnapshot 写入 {"data": <envelope JSON>, "timestamp": ...}
func (p *RedisStreamPublisher) PublishSnapshot(ctx context.Context, env *models.SnapshotEnvelope) (string, error) {
	return rediscommon.PublishJSONToStream(ctx, p.client, p.stream, env)
}
