package connector

import (
	"context"
	"sync"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/xerrors"
)

// healthCheckKey 用于连通性检查的 key，不存在也视为健康
const healthCheckKey = "health-check"

type etcdConnector struct {
	cfg     *EtcdConfig
	client  *clientv3.Client
	logger  clog.Logger
	stats   *connectStats
	mu      sync.Mutex
	closed  bool
	healthy atomic.Bool
}

// NewEtcd 创建 Etcd 连接器
//
// clientv3.New 不会阻塞等待连接建立，真正的连通性验证在 Connect 中完成。
func NewEtcd(cfg *EtcdConfig, opts ...Option) (EtcdConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "etcd config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := applyOptions(opts)
	stats, err := newConnectStats(opt.meter, "etcd", cfg.Name)
	if err != nil {
		return nil, xerrors.Wrap(err, "create etcd connector metrics")
	}

	clientConfig := clientv3.Config{
		Endpoints:            cfg.Endpoints,
		DialTimeout:          cfg.DialTimeout,
		DialKeepAliveTime:    cfg.KeepAliveTime,
		DialKeepAliveTimeout: cfg.KeepAliveTimeout,
	}
	if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := clientv3.New(clientConfig)
	if err != nil {
		return nil, xerrors.Wrapf(ErrConnection, "etcd connector[%s]: %v", cfg.Name, err)
	}

	return &etcdConnector{
		cfg:    cfg,
		client: client,
		logger: opt.logger.With(clog.String("connector", "etcd"), clog.String("name", cfg.Name)),
		stats:  stats,
	}, nil
}

// Connect 通过一次读请求验证连通性
func (c *etcdConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.healthy.Load() {
		return nil
	}

	c.logger.Info("connecting to etcd", clog.Strings("endpoints", c.cfg.Endpoints))

	testCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	if _, err := c.client.Get(testCtx, healthCheckKey); err != nil {
		c.stats.record(ctx, false)
		c.logger.Error("failed to connect to etcd", clog.Error(err))
		return xerrors.Wrapf(ErrConnection, "etcd connector[%s]: %v", c.cfg.Name, err)
	}

	c.stats.record(ctx, true)
	c.healthy.Store(true)
	c.logger.Info("connected to etcd", clog.Strings("endpoints", c.cfg.Endpoints))
	return nil
}

// Close 关闭连接
func (c *etcdConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.healthy.Store(false)

	if err := c.client.Close(); err != nil {
		c.logger.Warn("failed to close etcd connection", clog.Error(err))
		return err
	}
	c.logger.Debug("etcd connection closed")
	return nil
}

// HealthCheck 检查连接健康状态
func (c *etcdConnector) HealthCheck(ctx context.Context) error {
	testCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	if _, err := c.client.Get(testCtx, healthCheckKey); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("etcd health check failed", clog.Error(err))
		return xerrors.Wrapf(ErrHealthCheck, "etcd connector[%s]: %v", c.cfg.Name, err)
	}
	c.healthy.Store(true)
	return nil
}

// IsHealthy 返回缓存的健康状态
func (c *etcdConnector) IsHealthy() bool {
	return c.healthy.Load()
}

// Name 返回连接器名称
func (c *etcdConnector) Name() string {
	return c.cfg.Name
}

// GetClient 返回 Etcd 客户端
func (c *etcdConnector) GetClient() *clientv3.Client {
	return c.client
}
