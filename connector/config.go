package connector

import (
	"time"

	"github.com/ceyewan/kvrole/xerrors"
)

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Name           string        `mapstructure:"name"`            // 连接器名称 (默认: "default")
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"` // Connect 的整体超时 (默认: 5s)

	Addr     string `mapstructure:"addr"`     // [必填] 连接地址，如 "127.0.0.1:6379"
	Password string `mapstructure:"password"` // [可选] 认证密码
	DB       int    `mapstructure:"db"`       // [可选] 数据库编号

	PoolSize     int           `mapstructure:"pool_size"`     // 连接池大小 (默认: 10)
	MaxRetries   int           `mapstructure:"max_retries"`   // 命令重试次数，-1 表示不重试 (默认: 3)
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`  // 拨号超时 (默认: 5s)
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`  // 读取超时 (默认: 3s)
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // 写入超时 (默认: 3s)
}

func (c *RedisConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

func (c *RedisConfig) validate() error {
	c.setDefaults()
	if c.Addr == "" {
		return xerrors.Wrap(ErrConfig, "redis addr is empty")
	}
	if c.DB < 0 {
		return xerrors.Wrapf(ErrConfig, "redis db %d is negative", c.DB)
	}
	return nil
}

// EtcdConfig Etcd 连接配置
type EtcdConfig struct {
	Name string `mapstructure:"name"` // 连接器名称 (默认: "default")

	Endpoints []string `mapstructure:"endpoints"` // [必填] 连接地址列表
	Username  string   `mapstructure:"username"`  // [可选] 认证用户
	Password  string   `mapstructure:"password"`  // [可选] 认证密码

	DialTimeout      time.Duration `mapstructure:"dial_timeout"`       // 拨号超时 (默认: 5s)
	KeepAliveTime    time.Duration `mapstructure:"keep_alive_time"`    // gRPC 心跳间隔 (默认: 10s)
	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout"` // gRPC 心跳超时 (默认: 3s)
}

func (c *EtcdConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.KeepAliveTime == 0 {
		c.KeepAliveTime = 10 * time.Second
	}
	if c.KeepAliveTimeout == 0 {
		c.KeepAliveTimeout = 3 * time.Second
	}
}

func (c *EtcdConfig) validate() error {
	c.setDefaults()
	if len(c.Endpoints) == 0 {
		return xerrors.Wrap(ErrConfig, "etcd endpoints are empty")
	}
	return nil
}
