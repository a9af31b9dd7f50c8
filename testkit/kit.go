// Package testkit 提供 kvrole 各组件测试共用的依赖构造和容器辅助函数。
package testkit

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/metrics"
)

// Kit 包含通用的测试依赖
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
}

// NewKit 返回一个包含默认依赖的测试工具包，Ctx 在测试结束时取消
func NewKit(t *testing.T) *Kit {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &Kit{
		Ctx:    ctx,
		Logger: NewLogger(),
		Meter:  metrics.Discard(),
	}
}

// NewLogger 返回一个用于测试的 logger，开发格式输出到 stderr
func NewLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig("kvrole"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewBufferLogger 返回写入内存缓冲区的 json logger，用于断言日志内容
func NewBufferLogger(t *testing.T) (clog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := clog.New(&clog.Config{Level: "debug", Format: "json", Output: "buffer"}, clog.WithBuffer(&buf))
	if err != nil {
		t.Fatalf("failed to create buffer logger: %v", err)
	}
	return logger, &buf
}

// NewContext 返回一个带有超时的测试上下文
func NewContext(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)
// 用于生成唯一的 registry namespace，避免测试间数据冲突
func NewID() string {
	return uuid.New().String()[0:8]
}
