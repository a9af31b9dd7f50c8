// Package launcher 把配置、注册中心、选举和启动序列组装成 kvrole 的入口。
//
// Launcher.Run 的流程：
//  1. 校验配置，解析密码
//  2. 启动 label publisher 伴随进程（fire-and-forget）
//  3. Resolver 计算角色，Sequencer 执行对应的启动路径并交接进程
//
// 返回值即进程退出码：0 交接成功，1 replica 放弃，2 配置或启动错误。
package launcher

import (
	"context"
	"time"

	"github.com/ceyewan/kvrole/bootstrap"
	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/connector"
	"github.com/ceyewan/kvrole/election"
	"github.com/ceyewan/kvrole/metrics"
	"github.com/ceyewan/kvrole/probe"
	"github.com/ceyewan/kvrole/registry"
	"github.com/ceyewan/kvrole/xerrors"
)

// Launcher kvrole 主流程
type Launcher struct {
	cfg    *Config
	opts   *options
	logger clog.Logger
}

// New 创建 Launcher
func New(cfg *Config, opts ...Option) (*Launcher, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "config is required")
	}
	o := applyOptions(opts)
	return &Launcher{
		cfg:    cfg,
		opts:   o,
		logger: o.logger.WithNamespace("launcher"),
	}, nil
}

// Run 执行一次角色决策和启动，返回进程退出码
func (l *Launcher) Run(ctx context.Context) int {
	err := l.run(ctx)
	code := ExitCode(err)
	switch code {
	case ExitHandoff:
	case ExitReplicaAborted:
		l.logger.Error("replica bootstrap aborted", clog.Error(err), clog.Int("exit_code", code))
	default:
		l.logger.Error("kvrole failed to start", clog.ErrorWithCode(err, xerrors.GetCode(err)), clog.Int("exit_code", code))
	}
	return code
}

// ExitCode 把 Run 过程中的错误映射为退出码
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitHandoff
	case xerrors.Is(err, bootstrap.ErrReplicaAborted):
		return ExitReplicaAborted
	default:
		return ExitConfig
	}
}

func (l *Launcher) run(ctx context.Context) (err error) {
	cfg := l.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}
	override, _ := cfg.Override()
	secret, err := cfg.Secret()
	if err != nil {
		return err
	}

	createdAt := l.opts.clock.Now().UTC()
	l.logger.Info("kvrole starting",
		clog.String("identity", cfg.Identity),
		clog.String("address", cfg.Address),
		clog.String("pool", cfg.Pool),
		clog.String("override", string(override)),
		clog.Time("created_at", createdAt),
		clog.Bool("dry_run", cfg.DryRun))

	// 父进程很快会被替换，不对外暴露指标端口
	metricsCfg := cfg.Metrics
	metricsCfg.Port = 0
	meter, roleMetrics, err := newRoleMetrics(&metricsCfg, l.opts.logger)
	if err != nil {
		return err
	}
	defer meter.Shutdown(context.Background())

	deps, err := newDeps(ctx, cfg, l.opts, meter, roleMetrics, secret, createdAt)
	if err != nil {
		return err
	}
	defer deps.close()

	var side bootstrap.SideProcess
	if !cfg.DryRun {
		side = l.startPublisher(ctx, createdAt)
	}
	// 没有交接成功时不能留下继续发布 running 标签的伴随进程；
	// replica 放弃的路径已由启动序列停止
	defer func() {
		if err != nil && side != nil && !xerrors.Is(err, bootstrap.ErrReplicaAborted) {
			l.stopPublisher(side)
		}
	}()

	resolver, err := election.New(deps.reg, &cfg.Election,
		election.WithLogger(l.opts.logger),
		election.WithMetrics(roleMetrics),
		election.WithClock(l.opts.clock))
	if err != nil {
		return xerrors.WithCode(err, xerrors.CodeConfig)
	}

	local := &registry.Instance{Identity: cfg.Identity, Address: cfg.Address, CreatedAt: createdAt}
	outcome, err := resolver.Resolve(ctx, local, override)
	if err != nil {
		return xerrors.WithCode(err, xerrors.CodeRegistry)
	}

	seqOpts := []bootstrap.Option{
		bootstrap.WithLogger(l.opts.logger),
		bootstrap.WithMetrics(roleMetrics),
		bootstrap.WithClock(l.opts.clock),
		bootstrap.WithOnTransition(l.opts.onState),
	}
	if side != nil {
		seqOpts = append(seqOpts, bootstrap.WithSideProcess(side))
	}
	seq, err := bootstrap.New(deps.reg, deps.prober, deps.executor, cfg.BootstrapConfig(secret), seqOpts...)
	if err != nil {
		return xerrors.WithCode(err, xerrors.CodeConfig)
	}
	return seq.Run(ctx, outcome)
}

// startPublisher 启动失败只告警，角色标签仍由启动序列写入
func (l *Launcher) startPublisher(ctx context.Context, createdAt time.Time) bootstrap.SideProcess {
	spawner := l.opts.spawner
	if spawner == nil {
		var err error
		if spawner, err = NewProcessSpawner(l.opts.args, l.cfg.Publisher.StopTimeout, l.opts.logger); err != nil {
			l.logger.Warn("cannot start label publisher", clog.Error(err))
			return nil
		}
	}
	side, err := spawner.Spawn(ctx, createdAt)
	if err != nil {
		l.logger.Warn("cannot start label publisher", clog.Error(err))
		return nil
	}
	return side
}

func (l *Launcher) stopPublisher(side bootstrap.SideProcess) {
	if stopErr := side.Stop(); stopErr != nil {
		l.logger.Warn("failed to stop label publisher", clog.Error(stopErr))
	}
}

// deps 注册中心、探测器和执行器，测试可以通过 Option 替换
type deps struct {
	reg      registry.Registry
	prober   probe.Prober
	executor bootstrap.Executor
	closers  []func() error
}

func newDeps(ctx context.Context, cfg *Config, o *options, meter metrics.Meter, rm *metrics.RoleMetrics, secret string, createdAt time.Time) (*deps, error) {
	d := &deps{
		reg:      o.registry,
		prober:   o.prober,
		executor: o.executor,
	}

	if d.reg == nil {
		conn, err := connector.NewEtcd(&cfg.Etcd, connector.WithLogger(o.logger), connector.WithMeter(meter))
		if err != nil {
			return nil, xerrors.WithCode(err, xerrors.CodeConfig)
		}
		d.closers = append(d.closers, conn.Close)

		// 连不上也继续，注册中心的读写错误由各组件重试
		if err := conn.Connect(ctx); err != nil {
			o.logger.Warn("etcd not reachable yet, continuing", clog.Error(err))
		}

		reg, err := registry.New(conn, &cfg.Registry,
			registry.WithLogger(o.logger),
			registry.WithMetrics(rm),
			registry.WithIncarnation(createdAt))
		if err != nil {
			d.close()
			return nil, xerrors.WithCode(err, xerrors.CodeConfig)
		}
		d.reg = reg
		d.closers = append([]func() error{reg.Close}, d.closers...)
	}

	if d.prober == nil {
		d.prober = probe.New(
			probe.WithLogger(o.logger),
			probe.WithMeter(meter),
			probe.WithPassword(secret))
	}

	if d.executor == nil {
		if cfg.DryRun {
			d.executor = bootstrap.NewDryRun(o.stdout)
		} else {
			d.executor = bootstrap.NewExecHandoff(o.logger)
		}
	}
	return d, nil
}

func (d *deps) close() {
	for _, c := range d.closers {
		_ = c()
	}
}

func newRoleMetrics(cfg *metrics.Config, logger clog.Logger) (metrics.Meter, *metrics.RoleMetrics, error) {
	meter, err := metrics.New(cfg, metrics.WithLogger(logger))
	if err != nil {
		return nil, nil, xerrors.WithCode(err, xerrors.CodeConfig)
	}
	rm, err := metrics.NewRoleMetrics(meter)
	if err != nil {
		_ = meter.Shutdown(context.Background())
		return nil, nil, xerrors.WithCode(err, xerrors.CodeConfig)
	}
	return meter, rm, nil
}
