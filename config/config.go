package config

import (
	"strings"

	"github.com/spf13/pflag"

	"github.com/ceyewan/kvrole/clog"
)

// Config 加载器配置
type Config struct {
	Name      string   // 配置文件名称（不含扩展名），默认 "kvrole"
	Paths     []string // 配置文件搜索路径，默认 [".", "./config", "/etc/kvrole"]
	FileType  string   // 配置文件类型，默认 yaml
	EnvPrefix string   // 环境变量前缀，默认 "KVROLE"
}

// validate 设置默认值并验证配置
func (c *Config) validate() error {
	if c.Name == "" {
		c.Name = "kvrole"
	}
	if c.Paths == nil {
		c.Paths = []string{".", "./config", "/etc/kvrole"}
	}
	if c.FileType == "" {
		c.FileType = "yaml"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = "KVROLE"
	}
	c.EnvPrefix = strings.ToUpper(c.EnvPrefix)
	return nil
}

// Option 加载器选项
type Option func(*options)

type options struct {
	logger   clog.Logger
	defaults map[string]any
	flags    *pflag.FlagSet
}

// WithLogger 注入日志记录器，组件内部会追加 "config" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("config")
		}
	}
}

// WithDefaults 注册默认值
//
// 只有注册过的 key 才能被环境变量覆盖后出现在 Unmarshal 的结果中，
// 因此应用配置的每个字段都应该在这里给出默认值。
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) {
		if o.defaults == nil {
			o.defaults = make(map[string]any, len(defaults))
		}
		for k, v := range defaults {
			o.defaults[k] = v
		}
	}
}

// WithFlags 绑定命令行参数，参数名即配置 key（如 --role.primary）
func WithFlags(fs *pflag.FlagSet) Option {
	return func(o *options) {
		o.flags = fs
	}
}

// New 创建配置加载器
//
// cfg 为 nil 时使用默认配置。
func New(cfg *Config, opts ...Option) (Loader, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	return newLoader(cfg, o), nil
}
