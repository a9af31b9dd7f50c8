package bootstrap

import (
	"time"

	"github.com/ceyewan/kvrole/xerrors"
)

// Config 启动序列配置
type Config struct {
	// Identity 本实例名称，必填
	Identity string `mapstructure:"identity"`

	// Address 其他实例访问本实例使用的地址，必填，同时作为 replica-announce-ip
	Address string `mapstructure:"address"`

	// Pool 实例所在池，默认 "redis"
	Pool string `mapstructure:"pool"`

	// Secret 存储服务的认证密码，为空表示不启用认证
	Secret string `mapstructure:"-"`

	// RetryInterval 写角色标签失败后的重试间隔，默认 1s
	RetryInterval time.Duration `mapstructure:"retry_interval"`

	// ProbeTimeout 单次就绪探测的超时，默认 2s
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`

	Store   StoreConfig   `mapstructure:"store"`
	Primary PrimaryConfig `mapstructure:"primary"`
	Witness WitnessConfig `mapstructure:"witness"`
	Replica ReplicaConfig `mapstructure:"replica"`
}

// StoreConfig 存储服务（redis-server）相关配置
type StoreConfig struct {
	// Port 存储服务端口，也是目标地址不带端口时的默认端口，默认 6379
	Port int `mapstructure:"port"`

	// DataDir 数据目录，不存在时创建并告警
	DataDir string `mapstructure:"data_dir"`

	// TemplatePath 存储配置模板，默认 "/etc/kvrole/redis.conf.tmpl"
	TemplatePath string `mapstructure:"template_path"`

	// ConfigPath 渲染后的配置文件，默认 "/data/conf/redis.conf"
	ConfigPath string `mapstructure:"config_path"`

	// ServerBinary 默认 "redis-server"
	ServerBinary string `mapstructure:"server_binary"`

	// ExtraArgs 附加在启动命令末尾的参数
	ExtraArgs []string `mapstructure:"extra_args"`
}

// PrimaryConfig primary 的服务发现兜底地址
type PrimaryConfig struct {
	ServiceHost string `mapstructure:"service_host"`
	ServicePort int    `mapstructure:"service_port"`
}

// WitnessConfig 哨兵相关配置
type WitnessConfig struct {
	Quorum            int           `mapstructure:"quorum"`              // 默认 2
	DownAfterMs       int           `mapstructure:"down_after_ms"`       // 默认 10000
	FailoverTimeoutMs int           `mapstructure:"failover_timeout_ms"` // 默认 30000
	ParallelSyncs     int           `mapstructure:"parallel_syncs"`      // 默认 10
	MasterName        string        `mapstructure:"master_name"`         // 默认 "mymaster"
	Port              int           `mapstructure:"port"`                // 默认 26379
	ReconfigScript    string        `mapstructure:"reconfig_script"`     // 默认 "/usr/local/bin/kvrole-reconfig.sh"
	DiscoverInterval  time.Duration `mapstructure:"discover_interval"`   // 默认 10s
	ConfigPath        string        `mapstructure:"config_path"`         // 默认 "/data/conf/sentinel.conf"
	SentinelBinary    string        `mapstructure:"sentinel_binary"`     // 默认 "redis-sentinel"
}

// ReplicaConfig replica 连接 primary 的重试策略
type ReplicaConfig struct {
	ConnectAttempts int           `mapstructure:"connect_attempts"` // 默认 30
	ConnectInterval time.Duration `mapstructure:"connect_interval"` // 默认 1s
}

func (c *Config) setDefaults() {
	if c.Pool == "" {
		c.Pool = "redis"
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = time.Second
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = 2 * time.Second
	}

	if c.Store.Port == 0 {
		c.Store.Port = 6379
	}
	if c.Store.TemplatePath == "" {
		c.Store.TemplatePath = "/etc/kvrole/redis.conf.tmpl"
	}
	if c.Store.ConfigPath == "" {
		c.Store.ConfigPath = "/data/conf/redis.conf"
	}
	if c.Store.ServerBinary == "" {
		c.Store.ServerBinary = "redis-server"
	}
	if c.Primary.ServicePort == 0 {
		c.Primary.ServicePort = c.Store.Port
	}

	w := &c.Witness
	if w.Quorum == 0 {
		w.Quorum = 2
	}
	if w.DownAfterMs == 0 {
		w.DownAfterMs = 10000
	}
	if w.FailoverTimeoutMs == 0 {
		w.FailoverTimeoutMs = 30000
	}
	if w.ParallelSyncs == 0 {
		w.ParallelSyncs = 10
	}
	if w.MasterName == "" {
		w.MasterName = "mymaster"
	}
	if w.Port == 0 {
		w.Port = 26379
	}
	if w.ReconfigScript == "" {
		w.ReconfigScript = "/usr/local/bin/kvrole-reconfig.sh"
	}
	if w.DiscoverInterval == 0 {
		w.DiscoverInterval = 10 * time.Second
	}
	if w.ConfigPath == "" {
		w.ConfigPath = "/data/conf/sentinel.conf"
	}
	if w.SentinelBinary == "" {
		w.SentinelBinary = "redis-sentinel"
	}

	if c.Replica.ConnectAttempts == 0 {
		c.Replica.ConnectAttempts = 30
	}
	if c.Replica.ConnectInterval == 0 {
		c.Replica.ConnectInterval = time.Second
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if c.Identity == "" {
		return xerrors.Wrap(ErrInvalidConfig, "identity is required")
	}
	if c.Address == "" {
		return xerrors.Wrap(ErrInvalidConfig, "address is required")
	}
	if c.Witness.Quorum < 1 {
		return xerrors.Wrapf(ErrInvalidConfig, "witness quorum %d must be positive", c.Witness.Quorum)
	}
	if c.Witness.DownAfterMs < 1 || c.Witness.FailoverTimeoutMs < 1 || c.Witness.ParallelSyncs < 1 {
		return xerrors.Wrap(ErrInvalidConfig, "witness timings must be positive")
	}
	if c.Replica.ConnectAttempts < 1 {
		return xerrors.Wrapf(ErrInvalidConfig, "replica connect attempts %d must be positive", c.Replica.ConnectAttempts)
	}
	if c.Store.Port < 1 || c.Store.Port > 65535 {
		return xerrors.Wrapf(ErrInvalidConfig, "store port %d out of range", c.Store.Port)
	}
	return nil
}
