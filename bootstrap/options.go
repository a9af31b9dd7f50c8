package bootstrap

import (
	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/internal/clock"
	"github.com/ceyewan/kvrole/metrics"
)

// SideProcess 与启动序列并行运行的伴随进程
type SideProcess interface {
	Stop() error
}

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger       clog.Logger
	metrics      *metrics.RoleMetrics
	clock        clock.Clock
	sideProcess  SideProcess
	onTransition func(Transition)
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 "bootstrap" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("bootstrap")
		}
	}
}

// WithMetrics 注入指标集
func WithMetrics(m *metrics.RoleMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock 注入时钟
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithSideProcess 设置 replica 放弃时需要停止的伴随进程
func WithSideProcess(p SideProcess) Option {
	return func(o *options) {
		o.sideProcess = p
	}
}

// WithOnTransition 注册状态迁移回调，在日志记录之后同步调用
func WithOnTransition(fn func(Transition)) Option {
	return func(o *options) {
		o.onTransition = fn
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		logger: clog.Discard(),
		clock:  clock.Real(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
