package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestPublishJSONToStream_ReadAndAck(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	stream := "hydro:snapshot:stream"
	group := "recorder-group"

	require.NoError(t, CreateConsumerGroup(ctx, client, stream, group))
	// 组已存在时忽略 BUSYGROUP
	require.NoError(t, CreateConsumerGroup(ctx, client, stream, group))

	id, err := PublishJSONToStream(ctx, client, stream, map[string]interface{}{"temperature": 21.5})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	messages, err := ReadFromStream(ctx, client, stream, group, "recorder-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, id, messages[0].ID)

	var decoded map[string]float64
	require.NoError(t, json.Unmarshal([]byte(messages[0].Values["data"].(string)), &decoded))
	assert.Equal(t, 21.5, decoded["temperature"])

	require.NoError(t, AckStream(ctx, client, stream, group, id))

	pending, err := client.XPending(ctx, stream, group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestReadFromStream_Empty(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "empty:stream", "g"))

	messages, err := ReadFromStream(ctx, client, "empty:stream", "g", "c", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestReadPendingFromStream(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	stream := "hydro:snapshot:stream"
	require.NoError(t, CreateConsumerGroup(ctx, client, stream, "g"))

	first, err := PublishToStream(ctx, client, stream, map[string]interface{}{"data": "a"})
	require.NoError(t, err)
	second, err := PublishToStream(ctx, client, stream, map[string]interface{}{"data": "b"})
	require.NoError(t, err)

	messages, err := ReadFromStream(ctx, client, stream, "g", "c", 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.NoError(t, AckStream(ctx, client, stream, "g", first))

	// 只返回未确认的那条，且不会领取新消息
	pending, err := ReadPendingFromStream(ctx, client, stream, "g", "c", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second, pending[0].ID)
	assert.Equal(t, "b", pending[0].Values["data"])

	// 其他消费者没有 pending
	other, err := ReadPendingFromStream(ctx, client, stream, "g", "other", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStringify(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{"abc", "abc"},
		{[]byte("raw"), "raw"},
		{42, "42"},
		{int64(7), "7"},
		{2.5, "2.5"},
		{true, "true"},
		{map[string]int{"a": 1}, `{"a":1}`},
	}

	for _, tc := range cases {
		got, err := stringify(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}
