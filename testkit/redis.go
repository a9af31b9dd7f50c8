package testkit

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisImage 集成测试使用的 redis 镜像
const RedisImage = "redis:7-alpine"

// RedisEndpoint 容器暴露的 Redis 地址
type RedisEndpoint struct {
	Host string
	Port int
}

// NewRedisContainer 使用 testcontainers 启动一个独立的 Redis（master 角色）
// 生命周期由 t.Cleanup 管理
func NewRedisContainer(t *testing.T) RedisEndpoint {
	t.Helper()
	ctx := context.Background()

	container, err := rediscontainer.Run(ctx, RedisImage)
	require.NoError(t, err, "failed to start redis container")

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	port, err := strconv.Atoi(mappedPort.Port())
	require.NoError(t, err)

	return RedisEndpoint{Host: host, Port: port}
}
