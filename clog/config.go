package clog

import (
	"fmt"
	"strings"
)

// timeFormat 日志时间戳格式（毫秒精度）
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config 日志配置结构，定义日志的基本行为
//
// 支持的配置项：
//
//	Level: 日志级别 (debug|info|warn|error|fatal)
//	Format: 输出格式 (json|console)
//	Output: 输出目标 (stdout|stderr|文件路径)
//	AddSource: 是否显示调用位置信息
//	SourceRoot: 源代码路径前缀，用于裁剪显示的文件路径
//
// 示例（YAML）：
//
//	log:
//	  level: info
//	  format: json
//	  output: stderr
type Config struct {
	Level      string `mapstructure:"level" json:"level" yaml:"level"`                // debug|info|warn|error|fatal
	Format     string `mapstructure:"format" json:"format" yaml:"format"`             // json|console
	Output     string `mapstructure:"output" json:"output" yaml:"output"`             // stdout|stderr|<file path>
	AddSource  bool   `mapstructure:"add_source" json:"addSource" yaml:"add_source"`  // 是否输出 caller
	SourceRoot string `mapstructure:"source_root" json:"sourceRoot" yaml:"source_root"` // 用于裁剪文件路径
}

// NewDevDefaultConfig 开发环境默认配置：debug 级别、console 格式、输出到 stderr
//
// 容器中 stdout 通常留给被托管的存储进程，日志默认写 stderr。
func NewDevDefaultConfig(sourceRoot string) *Config {
	return &Config{
		Level:      "debug",
		Format:     "console",
		Output:     "stderr",
		AddSource:  true,
		SourceRoot: sourceRoot,
	}
}

// NewProdDefaultConfig 生产环境默认配置：info 级别、json 格式、输出到 stderr
func NewProdDefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "json",
		Output: "stderr",
	}
}

// validate 验证配置的有效性并为空值设置默认值（内部使用）
func (c *Config) validate() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}

	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	format := strings.ToLower(c.Format)
	if format != "json" && format != "console" {
		return fmt.Errorf("invalid format: %s, must be json or console", c.Format)
	}
	return nil
}
