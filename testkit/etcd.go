package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	etcdcontainer "github.com/testcontainers/testcontainers-go/modules/etcd"

	"github.com/ceyewan/kvrole/connector"
)

// EtcdImage 集成测试使用的 etcd 镜像
const EtcdImage = "quay.io/coreos/etcd:v3.5.9"

// NewEtcdContainerConfig 使用 testcontainers 创建 Etcd 容器并返回配置
// 生命周期由 t.Cleanup 管理
func NewEtcdContainerConfig(t *testing.T) *connector.EtcdConfig {
	t.Helper()
	ctx := context.Background()

	container, err := etcdcontainer.Run(ctx, EtcdImage)
	require.NoError(t, err, "failed to start etcd container")

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "2379")
	require.NoError(t, err)

	return &connector.EtcdConfig{
		Name:        "testcontainer-etcd",
		Endpoints:   []string{host + ":" + mappedPort.Port()},
		DialTimeout: 5 * time.Second,
	}
}

// NewEtcdContainerConnector 使用 testcontainers 创建并连接 Etcd 连接器
// 生命周期由 t.Cleanup 管理
func NewEtcdContainerConnector(t *testing.T) connector.EtcdConnector {
	t.Helper()
	cfg := NewEtcdContainerConfig(t)

	conn, err := connector.NewEtcd(cfg, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create etcd connector")

	require.NoError(t, conn.Connect(context.Background()), "failed to connect to etcd")

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}
