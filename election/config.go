package election

import (
	"time"

	"github.com/ceyewan/kvrole/xerrors"
)

// Config Resolver 配置
type Config struct {
	// Pool 参与选举的池，默认 "redis"
	Pool string `mapstructure:"pool"`

	// RetryInterval 注册中心读取失败后的重试间隔，默认 1s
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

func (c *Config) setDefaults() {
	if c.Pool == "" {
		c.Pool = "redis"
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = time.Second
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if c.RetryInterval < 0 {
		return xerrors.Wrapf(ErrInvalidConfig, "retry interval %s is negative", c.RetryInterval)
	}
	return nil
}
