package registry

import (
	"strings"
	"time"

	"github.com/ceyewan/kvrole/xerrors"
)

// Config Registry 组件配置
type Config struct {
	// Namespace Etcd Key 前缀，默认 "/kvrole/instances"
	Namespace string `mapstructure:"namespace"`

	// Pool 默认池名称，SetRoleLabel 和空 Selector.Pool 使用，默认 "redis"
	Pool string `mapstructure:"pool"`

	// LeaseTTL Publish 使用的租约时长，默认 10s，最小 1s
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`

	// CASRetries 读改写冲突时的最大重试次数，默认 10
	CASRetries int `mapstructure:"cas_retries"`
}

func (c *Config) validate() error {
	if c.Namespace == "" {
		c.Namespace = "/kvrole/instances"
	}
	c.Namespace = strings.TrimRight(c.Namespace, "/")
	if c.Pool == "" {
		c.Pool = "redis"
	}
	if c.LeaseTTL == 0 {
		c.LeaseTTL = 10 * time.Second
	}
	if c.CASRetries <= 0 {
		c.CASRetries = 10
	}

	if c.LeaseTTL < time.Second {
		return xerrors.Wrapf(ErrInvalidConfig, "lease ttl %s is shorter than 1s", c.LeaseTTL)
	}
	if strings.Contains(c.Pool, "/") {
		return xerrors.Wrapf(ErrInvalidConfig, "pool %q contains '/'", c.Pool)
	}
	return nil
}
