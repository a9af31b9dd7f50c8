package launcher

import (
	"os"
	"strings"
	"time"

	"github.com/ceyewan/kvrole/bootstrap"
	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/connector"
	"github.com/ceyewan/kvrole/election"
	"github.com/ceyewan/kvrole/metrics"
	"github.com/ceyewan/kvrole/registry"
	"github.com/ceyewan/kvrole/xerrors"
)

// Config kvrole 应用配置
//
// 典型配置示例（YAML）：
//
//	pool: redis
//	role:
//	  witness: true
//	auth:
//	  password_file: /run/secrets/redis-password
//	etcd:
//	  endpoints: ["etcd-0:2379"]
//	witness:
//	  quorum: 2
//	  down_after_ms: 10000
type Config struct {
	// Identity 实例名称，默认主机名
	Identity string `mapstructure:"identity"`

	// Address 其他实例访问本实例的地址，默认与 Identity 相同
	Address string `mapstructure:"address"`

	// Pool 实例池，默认 "redis"
	Pool string `mapstructure:"pool"`

	// DryRun 只打印交接命令，不启动伴随进程
	DryRun bool `mapstructure:"dry_run"`

	// CreatedAt 由父进程传给 publish 子命令的进程实例启动时间
	CreatedAt string `mapstructure:"created_at"`

	// ProbeTimeout 单次探测超时
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`

	Role      RoleConfig              `mapstructure:"role"`
	Auth      AuthConfig              `mapstructure:"auth"`
	Log       clog.Config             `mapstructure:"log"`
	Metrics   metrics.Config          `mapstructure:"metrics"`
	Etcd      connector.EtcdConfig    `mapstructure:"etcd"`
	Registry  registry.Config         `mapstructure:"registry"`
	Election  election.Config         `mapstructure:"election"`
	Store     bootstrap.StoreConfig   `mapstructure:"store"`
	Primary   bootstrap.PrimaryConfig `mapstructure:"primary"`
	Witness   bootstrap.WitnessConfig `mapstructure:"witness"`
	Replica   bootstrap.ReplicaConfig `mapstructure:"replica"`
	Publisher PublisherConfig         `mapstructure:"publisher"`
}

// RoleConfig 运维指定的角色，两者互斥
type RoleConfig struct {
	Primary bool `mapstructure:"primary"`
	Witness bool `mapstructure:"witness"`
}

// AuthConfig 存储服务密码，Password 优先于 PasswordFile
type AuthConfig struct {
	Password     string `mapstructure:"password"`
	PasswordFile string `mapstructure:"password_file"`
}

// PublisherConfig label publisher 配置
type PublisherConfig struct {
	// SyncInterval 读取本地存储复制角色的间隔，默认 5s
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	// StoreHost 本地存储服务地址，默认 "127.0.0.1"
	StoreHost string `mapstructure:"store_host"`

	// StopTimeout 停止伴随进程时等待其退出的时间，默认 3s
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
}

// Defaults 返回所有配置项的默认值
//
// 每个 key 都需要在这里注册，环境变量才能覆盖到 Unmarshal 的结果中。
func Defaults() map[string]any {
	return map[string]any{
		"identity":      "",
		"address":       "",
		"pool":          "redis",
		"dry_run":       false,
		"created_at":    "",
		"probe_timeout": "2s",

		"role.primary": false,
		"role.witness": false,

		"auth.password":      "",
		"auth.password_file": "",

		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stderr",
		"log.add_source":  false,
		"log.source_root": "kvrole",

		"metrics.enabled":      false,
		"metrics.service_name": "kvrole",
		"metrics.version":      "",
		"metrics.port":         9121,
		"metrics.path":         "/metrics",

		"etcd.name":               "registry",
		"etcd.endpoints":          []string{"127.0.0.1:2379"},
		"etcd.username":           "",
		"etcd.password":           "",
		"etcd.dial_timeout":       "5s",
		"etcd.keep_alive_time":    "10s",
		"etcd.keep_alive_timeout": "3s",

		"registry.namespace":   "/kvrole/instances",
		"registry.lease_ttl":   "10s",
		"registry.cas_retries": 10,

		"election.retry_interval": "1s",

		"store.port":          6379,
		"store.data_dir":      "/data",
		"store.template_path": "/etc/kvrole/redis.conf.tmpl",
		"store.config_path":   "/data/conf/redis.conf",
		"store.server_binary": "redis-server",
		"store.extra_args":    []string{},

		"primary.service_host": "",
		"primary.service_port": 0,

		"witness.quorum":              2,
		"witness.down_after_ms":       10000,
		"witness.failover_timeout_ms": 30000,
		"witness.parallel_syncs":      10,
		"witness.master_name":         "mymaster",
		"witness.port":                26379,
		"witness.reconfig_script":     "/usr/local/bin/kvrole-reconfig.sh",
		"witness.discover_interval":   "10s",
		"witness.config_path":         "/data/conf/sentinel.conf",
		"witness.sentinel_binary":     "redis-sentinel",

		"replica.connect_attempts": 30,
		"replica.connect_interval": "1s",

		"publisher.sync_interval": "5s",
		"publisher.store_host":    "127.0.0.1",
		"publisher.stop_timeout":  "3s",
	}
}

func (c *Config) setDefaults() {
	if c.Identity == "" {
		if host, err := os.Hostname(); err == nil {
			c.Identity = host
		}
	}
	if c.Address == "" {
		c.Address = c.Identity
	}
	if c.Pool == "" {
		c.Pool = "redis"
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = 2 * time.Second
	}
	if c.Publisher.SyncInterval == 0 {
		c.Publisher.SyncInterval = 5 * time.Second
	}
	if c.Publisher.StoreHost == "" {
		c.Publisher.StoreHost = "127.0.0.1"
	}
	if c.Publisher.StopTimeout == 0 {
		c.Publisher.StopTimeout = 3 * time.Second
	}
	c.Registry.Pool = c.Pool
	c.Election.Pool = c.Pool
}

// Validate 设置默认值并验证配置
func (c *Config) Validate() error {
	c.setDefaults()
	if c.Identity == "" {
		return xerrors.Wrap(ErrInvalidConfig, "identity is empty and hostname is unavailable")
	}
	if strings.Contains(c.Identity, "/") {
		return xerrors.Wrapf(ErrInvalidConfig, "identity %q contains '/'", c.Identity)
	}
	if _, err := c.Override(); err != nil {
		return xerrors.Wrap(ErrInvalidConfig, err.Error())
	}
	if c.CreatedAt != "" {
		if _, err := c.Incarnation(); err != nil {
			return xerrors.Wrapf(ErrInvalidConfig, "created_at %q: %v", c.CreatedAt, err)
		}
	}
	return nil
}

// Override 返回运维指定的角色
func (c *Config) Override() (election.Override, error) {
	return election.ParseOverride(c.Role.Primary, c.Role.Witness)
}

// Incarnation 解析父进程传入的启动时间
func (c *Config) Incarnation() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, c.CreatedAt)
}

// Secret 解析存储服务密码：内联值优先，否则读取文件并去掉首尾空白
func (c *Config) Secret() (string, error) {
	if c.Auth.Password != "" {
		return c.Auth.Password, nil
	}
	if c.Auth.PasswordFile == "" {
		return "", nil
	}
	b, err := os.ReadFile(c.Auth.PasswordFile)
	if err != nil {
		return "", xerrors.Wrapf(ErrSecretFile, "%s: %v", c.Auth.PasswordFile, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// BootstrapConfig 构建启动序列配置
func (c *Config) BootstrapConfig(secret string) *bootstrap.Config {
	return &bootstrap.Config{
		Identity:      c.Identity,
		Address:       c.Address,
		Pool:          c.Pool,
		Secret:        secret,
		RetryInterval: c.Election.RetryInterval,
		ProbeTimeout:  c.ProbeTimeout,
		Store:         c.Store,
		Primary:       c.Primary,
		Witness:       c.Witness,
		Replica:       c.Replica,
	}
}
