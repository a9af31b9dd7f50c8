package launcher

import (
	"io"
	"os"

	"github.com/ceyewan/kvrole/bootstrap"
	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/config"
	"github.com/ceyewan/kvrole/internal/clock"
	"github.com/ceyewan/kvrole/probe"
	"github.com/ceyewan/kvrole/registry"
)

// Option Launcher 与 Publisher 的初始化选项
type Option func(*options)

type options struct {
	logger   clog.Logger
	clock    clock.Clock
	registry registry.Registry
	prober   probe.Prober
	executor bootstrap.Executor
	spawner  Spawner
	loader   config.Loader
	args     []string
	stdout   io.Writer
	onState  func(bootstrap.Transition)
}

// WithLogger 注入日志记录器
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
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

// WithRegistry 使用给定的 Registry，不再连接 Etcd
func WithRegistry(r registry.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithProber 使用给定的探测器
func WithProber(p probe.Prober) Option {
	return func(o *options) {
		o.prober = p
	}
}

// WithExecutor 使用给定的 Executor 完成交接
func WithExecutor(e bootstrap.Executor) Option {
	return func(o *options) {
		o.executor = e
	}
}

// WithSpawner 使用给定的方式启动 label publisher
func WithSpawner(s Spawner) Option {
	return func(o *options) {
		o.spawner = s
	}
}

// WithLoader 注入配置加载器，publisher 用它监听日志级别变化
func WithLoader(l config.Loader) Option {
	return func(o *options) {
		o.loader = l
	}
}

// WithArgs 设置原始命令行参数，原样转发给 publish 子进程
func WithArgs(args []string) Option {
	return func(o *options) {
		o.args = args
	}
}

// WithStdout 设置 dry-run 输出
func WithStdout(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.stdout = w
		}
	}
}

// WithOnTransition 透传给启动序列的状态迁移回调
func WithOnTransition(fn func(bootstrap.Transition)) Option {
	return func(o *options) {
		o.onState = fn
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		logger: clog.Discard(),
		clock:  clock.Real(),
		stdout: os.Stdout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
