package metrics

import "github.com/ceyewan/kvrole/xerrors"

// Config 指标系统的配置结构体
//
// 典型配置示例（YAML）：
//
//	metrics:
//	  enabled: true
//	  service_name: "kvrole"
//	  port: 9090
//	  path: "/metrics"
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter
	Enabled bool `mapstructure:"enabled"`

	// ServiceName 作为 OpenTelemetry Resource 的 service.name 属性
	ServiceName string `mapstructure:"service_name"`

	// Version 作为 OpenTelemetry Resource 的 service.version 属性
	Version string `mapstructure:"version"`

	// Port 大于 0 时启动 HTTP 服务器暴露 Prometheus 指标
	Port int `mapstructure:"port"`

	// Path 指标 HTTP 路径，必须以 "/" 开头
	Path string `mapstructure:"path"`
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "kvrole"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if c.Port < 0 || c.Port > 65535 {
		return xerrors.Wrapf(ErrInvalidConfig, "port %d out of range", c.Port)
	}
	if c.Path[0] != '/' {
		return xerrors.Wrapf(ErrInvalidConfig, "path %q must start with /", c.Path)
	}
	return nil
}
