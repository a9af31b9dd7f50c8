package registry

import (
	"time"

	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger      clog.Logger
	metrics     *metrics.RoleMetrics
	incarnation time.Time
}

// WithLogger 注入日志记录器
// 组件内部会自动追加 "registry" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("registry")
		}
	}
}

// WithMetrics 注入指标集，记录操作失败次数
func WithMetrics(m *metrics.RoleMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithIncarnation 设置本进程实例的启动时间
//
// SetRoleLabel 写入占位记录时使用它作为 CreatedAt，
// 使随后由同一实例发布的记录能够保留该角色。
func WithIncarnation(createdAt time.Time) Option {
	return func(o *options) {
		o.incarnation = createdAt
	}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
