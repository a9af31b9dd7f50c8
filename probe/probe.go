// Package probe 提供对 Redis 实例的就绪探测。
//
// 每次探测都新建一个单连接、不重试的 Redis 连接器，在给定超时内完成 PING，
// 探测结束后立即关闭连接。探测失败与注册中心读到空结果同等对待，由调用方决定是否重试。
//
// 基本使用：
//
//	p := probe.New(probe.WithLogger(logger), probe.WithPassword(secret))
//	if p.Probe(ctx, "10.0.0.5", 6379, 2*time.Second) {
//		// 目标可达
//	}
package probe

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/connector"
	"github.com/ceyewan/kvrole/registry"
	"github.com/ceyewan/kvrole/xerrors"
)

// DefaultPort Redis 默认端口
const DefaultPort = 6379

// Prober 就绪探测器
type Prober interface {
	// Probe 在 timeout 内探测 host:port 是否可用，从不返回错误
	Probe(ctx context.Context, host string, port int, timeout time.Duration) bool

	// Role 读取目标实例 INFO replication 中的复制角色
	Role(ctx context.Context, host string, port int, timeout time.Duration) (registry.Role, error)
}

type redisProber struct {
	opts   *options
	logger clog.Logger
}

// New 创建基于 go-redis 的探测器
func New(opts ...Option) Prober {
	o := applyOptions(opts)
	return &redisProber{opts: o, logger: o.logger}
}

// Probe 建立连接并 PING，成功即视为可用
func (p *redisProber) Probe(ctx context.Context, host string, port int, timeout time.Duration) bool {
	conn, err := p.connect(ctx, host, port, timeout)
	if err != nil {
		p.logger.Debug("probe failed",
			clog.String("addr", JoinHostPort(host, port)),
			clog.Error(err))
		return false
	}
	_ = conn.Close()
	return true
}

// Role 通过 INFO replication 判断目标实例当前是 primary 还是 replica
func (p *redisProber) Role(ctx context.Context, host string, port int, timeout time.Duration) (registry.Role, error) {
	conn, err := p.connect(ctx, host, port, timeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	info, err := conn.GetClient().Info(ctx, "replication").Result()
	if err != nil {
		return "", xerrors.Wrapf(err, "info replication %s", JoinHostPort(host, port))
	}
	return ParseReplicationRole(info)
}

func (p *redisProber) connect(ctx context.Context, host string, port int, timeout time.Duration) (connector.RedisConnector, error) {
	if host == "" {
		return nil, xerrors.Wrap(ErrUnreachable, "empty host")
	}
	if port <= 0 {
		port = DefaultPort
	}

	conn, err := connector.NewRedis(&connector.RedisConfig{
		Name:           "probe",
		Addr:           JoinHostPort(host, port),
		Password:       p.opts.password,
		PoolSize:       1,
		MaxRetries:     -1,
		ConnectTimeout: timeout,
		DialTimeout:    timeout,
		ReadTimeout:    timeout,
		WriteTimeout:   timeout,
	}, connector.WithLogger(p.logger), connector.WithMeter(p.opts.meter))
	if err != nil {
		return nil, err
	}

	if err := conn.Connect(ctx); err != nil {
		_ = conn.Close()
		return nil, xerrors.Wrapf(ErrUnreachable, "%s: %v", JoinHostPort(host, port), err)
	}
	return conn, nil
}

// ParseReplicationRole 解析 INFO replication 输出中的 role 字段
//
// master 对应 primary，slave 对应 replica。
func ParseReplicationRole(info string) (registry.Role, error) {
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		value, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), "role:")
		if !ok {
			continue
		}
		switch value {
		case "master":
			return registry.RolePrimary, nil
		case "slave":
			return registry.RoleReplica, nil
		default:
			return "", xerrors.Wrapf(ErrUnknownRole, "%q", value)
		}
	}
	return "", xerrors.Wrap(ErrUnknownRole, "no role field")
}

// JoinHostPort 拼接 host:port
func JoinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// SplitHostPort 拆分地址，没有端口时使用 DefaultPort
func SplitHostPort(addr string) (string, int, error) {
	if addr == "" {
		return "", 0, xerrors.Wrap(ErrInvalidAddress, "empty address")
	}
	if !strings.Contains(addr, ":") {
		return addr, DefaultPort, nil
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, xerrors.Wrapf(ErrInvalidAddress, "%q: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, xerrors.Wrapf(ErrInvalidAddress, "%q: bad port", addr)
	}
	return host, port, nil
}
