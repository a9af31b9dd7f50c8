package probe

import (
	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/metrics"
)

// Option 探测器初始化选项函数
type Option func(*options)

type options struct {
	logger   clog.Logger
	meter    metrics.Meter
	password string
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 "probe" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("probe")
		}
	}
}

// WithMeter 注入 Meter，透传给底层 Redis 连接器记录连接结果
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

// WithPassword 设置连接目标实例使用的密码
func WithPassword(password string) Option {
	return func(o *options) {
		o.password = password
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
