package election

import (
	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/internal/clock"
	"github.com/ceyewan/kvrole/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger  clog.Logger
	metrics *metrics.RoleMetrics
	clock   clock.Clock
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 "election" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("election")
		}
	}
}

// WithMetrics 注入指标集
func WithMetrics(m *metrics.RoleMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock 注入时钟，测试中使用 clock.NewFake
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
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
