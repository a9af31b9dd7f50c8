// Package clog 为 kvrole 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - 抽象接口，不暴露底层实现（slog）
//   - 层级命名空间：每个组件通过 WithLogger 注入时追加自己的命名空间
//   - 支持 Context 字段提取
//   - 运行时调整级别（label publisher 监听配置变化时使用）
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stderr",
//	}, clog.WithNamespace("kvrole"))
//	logger.Info("role resolved", clog.String("role", "primary"))
package clog

import "context"

// Logger 日志接口，提供结构化日志记录功能
//
// 五个日志级别：Debug、Info、Warn、Error、Fatal，每个级别都有带 Context 的版本。
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 创建一个带有预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 创建一个扩展命名空间的子 Logger
	//
	//   logger.WithNamespace("bootstrap").WithNamespace("replica")
	//   // namespace=bootstrap.replica
	WithNamespace(parts ...string) Logger

	// SetLevel 动态调整日志级别，影响共享同一 handler 的所有子 Logger
	SetLevel(level Level) error

	// Flush 强制同步所有缓冲区的日志
	Flush()
}
