package launcher

import (
	"context"
	"fmt"
	"time"

	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/config"
	"github.com/ceyewan/kvrole/internal/clock"
	"github.com/ceyewan/kvrole/metrics"
	"github.com/ceyewan/kvrole/probe"
	"github.com/ceyewan/kvrole/registry"
	"github.com/ceyewan/kvrole/xerrors"
)

// Publisher label publisher：发布带租约的实例记录，并让角色标签跟随存储服务的实际复制角色
//
// witness 的标签由启动序列写入后保持不变；primary/replica 的标签在哨兵完成故障转移后
// 通过 INFO replication 同步。租约丢失时重新发布。
type Publisher struct {
	reg     registry.Registry
	prober  probe.Prober
	inst    *registry.Instance
	cfg     *Config
	logger  clog.Logger
	metrics *metrics.RoleMetrics
	clock   clock.Clock
}

// NewPublisher 创建 Publisher，inst 是要发布的本实例记录
func NewPublisher(reg registry.Registry, prober probe.Prober, inst *registry.Instance, cfg *Config, rm *metrics.RoleMetrics, opts ...Option) (*Publisher, error) {
	if reg == nil || prober == nil || inst == nil || cfg == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "registry, prober, instance and config are required")
	}
	o := applyOptions(opts)
	return &Publisher{
		reg:     reg,
		prober:  prober,
		inst:    inst.Clone(),
		cfg:     cfg,
		logger:  o.logger.WithNamespace("publisher").With(clog.String("identity", inst.Identity)),
		metrics: rm,
		clock:   o.clock,
	}, nil
}

// Run 发布记录并周期同步角色，直到 ctx 被取消
//
// 正常退出返回 nil，在发布完成前被取消时返回 ctx.Err()。
func (p *Publisher) Run(ctx context.Context) error {
	lost, err := p.publish(ctx)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(p.cfg.Publisher.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("label publisher stopping")
			return nil
		case <-lost:
			p.logger.Warn("lease lost, republishing")
			if lost, err = p.publish(ctx); err != nil {
				return err
			}
		case <-ticker.C:
			p.sync(ctx)
		}
	}
}

// publish 发布记录，失败时按固定间隔重试，只在 ctx 取消时返回错误
func (p *Publisher) publish(ctx context.Context) (<-chan struct{}, error) {
	for attempt := 1; ; attempt++ {
		lost, err := p.reg.Publish(ctx, p.inst)
		if err == nil {
			return lost, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("publish failed, retrying",
			clog.Int("attempt", attempt),
			clog.Duration("retry_in", p.cfg.Election.RetryInterval),
			clog.Error(err))
		if err := p.clock.Sleep(ctx, p.cfg.Election.RetryInterval); err != nil {
			return nil, err
		}
	}
}

// sync 读取本地存储的复制角色，与标签不一致时改写标签
func (p *Publisher) sync(ctx context.Context) {
	current, ok := p.currentRole(ctx)
	if !ok || current == registry.RoleWitness {
		return
	}

	observed, err := p.prober.Role(ctx, p.cfg.Publisher.StoreHost, p.cfg.Store.Port, p.cfg.ProbeTimeout)
	if err != nil {
		p.logger.Debug("local store not ready", clog.Error(err))
		p.metrics.PublisherSync(ctx, string(current), false)
		return
	}
	if observed == current {
		p.metrics.PublisherSync(ctx, string(current), true)
		return
	}

	if err := p.reg.SetRoleLabel(ctx, p.inst.Identity, observed); err != nil {
		p.logger.Warn("failed to update role label",
			clog.String("from", string(current)),
			clog.String("to", string(observed)),
			clog.Error(err))
		p.metrics.PublisherSync(ctx, string(observed), false)
		return
	}
	p.logger.Info("role label updated",
		clog.String("from", string(current)),
		clog.String("to", string(observed)))
	p.metrics.PublisherSync(ctx, string(observed), true)
}

func (p *Publisher) currentRole(ctx context.Context) (registry.Role, bool) {
	instances, err := p.reg.ListInstances(ctx, registry.Selector{Pool: p.cfg.Pool})
	if err != nil {
		p.logger.Debug("registry read failed during sync", clog.Error(err))
		return "", false
	}
	for _, inst := range instances {
		if inst.Identity == p.inst.Identity {
			return inst.Role, true
		}
	}
	return "", false
}

// WatchLogLevel 监听 log.level 并实时调整日志级别，ctx 取消时停止
func WatchLogLevel(ctx context.Context, loader config.Loader, logger clog.Logger) error {
	ch, err := loader.Watch(ctx, "log.level")
	if err != nil {
		return err
	}
	go func() {
		for ev := range ch {
			level, err := clog.ParseLevel(fmt.Sprint(ev.Value))
			if err != nil {
				logger.Warn("ignoring invalid log level", clog.Any("value", ev.Value))
				continue
			}
			if err := logger.SetLevel(level); err == nil {
				logger.Info("log level changed", clog.String("level", level.String()))
			}
		}
	}()
	return nil
}

// RunPublisher publish 子命令入口，返回进程退出码
func RunPublisher(ctx context.Context, cfg *Config, opts ...Option) int {
	o := applyOptions(opts)
	logger := o.logger.WithNamespace("publisher")

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", clog.Error(err))
		return ExitConfig
	}

	createdAt := o.clock.Now().UTC()
	if cfg.CreatedAt != "" {
		createdAt, _ = cfg.Incarnation()
	}

	secret, err := cfg.Secret()
	if err != nil {
		logger.Error("cannot read secret", clog.Error(err))
		return ExitConfig
	}

	meter, rm, err := newRoleMetrics(&cfg.Metrics, o.logger)
	if err != nil {
		logger.Error("cannot create metrics", clog.Error(err))
		return ExitConfig
	}
	defer meter.Shutdown(context.Background())

	// publisher 从不交接进程，执行器不会被使用
	deps, err := newDeps(ctx, cfg, o, meter, rm, secret, createdAt)
	if err != nil {
		logger.Error("cannot create registry", clog.Error(err))
		return ExitConfig
	}
	defer deps.close()

	if o.loader != nil {
		if err := WatchLogLevel(ctx, o.loader, o.logger); err != nil {
			logger.Debug("log level watch unavailable", clog.Error(err))
		}
	}

	inst := &registry.Instance{
		Identity:  cfg.Identity,
		Pool:      cfg.Pool,
		Address:   cfg.Address,
		CreatedAt: createdAt,
	}
	pub, err := NewPublisher(deps.reg, deps.prober, inst, cfg, rm, opts...)
	if err != nil {
		logger.Error("cannot create publisher", clog.Error(err))
		return ExitConfig
	}
	_ = pub.Run(ctx)
	return ExitHandoff
}
