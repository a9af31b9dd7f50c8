// Package connector 为 kvrole 提供到 Redis 和 Etcd 的统一连接管理。
//
// 核心特性：
//   - 统一抽象：通过 Connector 接口提供一致的连接管理 API
//   - 类型安全：通过 TypedConnector[T] 泛型接口获取底层客户端
//   - 延迟连接：NewXXX() 只创建客户端，Connect() 时才真正建立连接
//   - 幂等：Connect() 和 Close() 均可安全重复调用
//
// 基本使用：
//
//	conn, err := connector.NewRedis(&connector.RedisConfig{Addr: "10.0.0.5:6379"},
//		connector.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//		return err
//	}
//	info, err := conn.GetClient().Info(ctx, "replication").Result()
//
// 资源所有权：Connector 拥有底层连接的生命周期，谁创建谁负责 Close()。
// registry、probe 等组件只借用 Connector，不调用 Close()。
package connector

import (
	"context"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Connector 定义所有连接器的通用行为，方法均为并发安全
type Connector interface {
	// Connect 建立连接并验证可用性，幂等
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源，幂等
	Close() error

	// HealthCheck 发送测试请求验证连接，并更新 IsHealthy 的缓存结果
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最后一次检查的健康状态，无阻塞
	IsHealthy() bool

	// Name 返回连接实例名称，用于日志和指标
	Name() string
}

// TypedConnector 提供类型安全的客户端访问
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端实例
	GetClient() T
}

// RedisConnector Redis 连接器接口
type RedisConnector interface {
	TypedConnector[*redis.Client]
}

// EtcdConnector Etcd 连接器接口
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}
