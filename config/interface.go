// Package config 为 kvrole 提供统一的配置加载能力，基于 Viper 实现。
//
// 配置来源与优先级（高到低）：
//   - 命令行参数（通过 WithFlags 绑定的 pflag.FlagSet，仅显式设置的参数生效）
//   - 环境变量（前缀 + key，"." 替换为 "_"，如 KVROLE_WITNESS_QUORUM）
//   - .env 文件
//   - 环境特定配置文件（<name>.<env>.yaml，env 取自 <PREFIX>_ENV）
//   - 基础配置文件（<name>.yaml）
//   - WithDefaults 注册的默认值
//
// 基本使用：
//
//	loader, _ := config.New(&config.Config{Name: "kvrole", EnvPrefix: "KVROLE"},
//		config.WithDefaults(defaults),
//		config.WithFlags(flagSet),
//	)
//	if err := loader.Load(ctx); err != nil {
//		return err
//	}
//	var cfg AppConfig
//	_ = loader.Unmarshal(&cfg)
//
// 监听配置变化（仅在找到配置文件时生效）：
//
//	ch, _ := loader.Watch(ctx, "log.level")
//	for event := range ch {
//		...
//	}
package config

import (
	"context"
	"time"
)

// Loader 定义配置加载器的核心行为
type Loader interface {
	// Load 加载配置并初始化内部状态
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体（mapstructure 标签）
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听配置文件中某个 key 的变化，通过 ctx 取消监听
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 验证当前配置的有效性
	Validate() error

	// ConfigFileUsed 返回实际加载的配置文件路径，未找到时为空
	ConfigFileUsed() string
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // "file"
	Timestamp time.Time
}
