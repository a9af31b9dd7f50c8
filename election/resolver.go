// Package election 决定本实例应当承担的角色。
//
// 决策顺序：
//  1. 运维覆盖（primary / witness）直接生效，不访问注册中心
//  2. 池中已有 running 的 primary（不含本实例旧进程留下的记录）：成为它的 replica
//  3. 否则在 running 的非 witness 实例中选出 (CreatedAt, Identity) 最小者，
//     自己胜出则成为 primary，否则成为胜者的 replica；候选为空时成为 primary
//
// 注册中心返回错误时按固定间隔无限重试，空结果不是错误。
// 多个实例在注册中心为空时同时自选为 primary 的竞争无法在这里消除，
// 观察到多个 primary 时记录 WARN 和指标，并继续使用第一个。
package election

import (
	"context"

	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/internal/clock"
	"github.com/ceyewan/kvrole/metrics"
	"github.com/ceyewan/kvrole/registry"
	"github.com/ceyewan/kvrole/xerrors"
)

// Resolver 角色决策器
type Resolver struct {
	reg     registry.Registry
	cfg     *Config
	logger  clog.Logger
	metrics *metrics.RoleMetrics
	clock   clock.Clock
}

// New 创建 Resolver
func New(reg registry.Registry, cfg *Config, opts ...Option) (*Resolver, error) {
	if reg == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "registry is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	return &Resolver{
		reg:     reg,
		cfg:     cfg,
		logger:  o.logger,
		metrics: o.metrics,
		clock:   o.clock,
	}, nil
}

// Resolve 计算本实例的角色
//
// 只有 ctx 被取消或 override 非法时返回错误。
func (r *Resolver) Resolve(ctx context.Context, local *registry.Instance, override Override) (Outcome, error) {
	if err := override.validate(); err != nil {
		return Outcome{}, err
	}
	if local == nil || local.Identity == "" {
		return Outcome{}, xerrors.Wrap(ErrInvalidConfig, "local identity is required")
	}

	outcome, err := r.resolve(ctx, local, override)
	if err != nil {
		return Outcome{}, err
	}

	r.metrics.ElectionOutcome(ctx, outcome.Kind.String())
	r.logger.Info("role resolved",
		clog.String("identity", local.Identity),
		clog.String("outcome", outcome.Kind.String()),
		clog.String("target", outcome.Target))
	return outcome, nil
}

func (r *Resolver) resolve(ctx context.Context, local *registry.Instance, override Override) (Outcome, error) {
	switch override {
	case OverridePrimary:
		r.logger.Info("role override in effect", clog.String("override", string(override)))
		return Outcome{Kind: BecomePrimary}, nil
	case OverrideWitness:
		r.logger.Info("role override in effect", clog.String("override", string(override)))
		return Outcome{Kind: BecomeWitness}, nil
	}

	listed, err := r.list(ctx, registry.Selector{Pool: r.cfg.Pool, Role: registry.RolePrimary})
	if err != nil {
		return Outcome{}, err
	}
	primaries := r.otherPrimaries(listed, local)
	if len(primaries) > 1 {
		addrs := make([]string, len(primaries))
		for i, p := range primaries {
			addrs[i] = p.Identity + "@" + p.Address
		}
		r.metrics.PrimaryAnomaly(ctx)
		r.logger.Warn("multiple running primaries observed, following the first one",
			clog.Strings("primaries", addrs))
	}
	if len(primaries) > 0 {
		return Outcome{Kind: BecomeReplica, Target: primaries[0].Address}, nil
	}

	members, err := r.list(ctx, registry.Selector{Pool: r.cfg.Pool})
	if err != nil {
		return Outcome{}, err
	}
	candidates := dataHolders(members)
	winner := Elect(candidates)
	if winner == nil {
		r.logger.Info("no running instances in pool, self-electing as primary",
			clog.String("pool", r.cfg.Pool))
		return Outcome{Kind: BecomePrimary}, nil
	}

	r.logger.Debug("bootstrap election",
		clog.Int("candidates", len(candidates)),
		clog.String("winner", winner.Identity),
		clog.Time("winner_created_at", winner.CreatedAt))

	if winner.Identity == local.Identity {
		return Outcome{Kind: BecomePrimary}, nil
	}
	return Outcome{Kind: BecomeReplica, Target: winner.Address}, nil
}

// list 列出 running 实例，注册中心出错时无限重试
func (r *Resolver) list(ctx context.Context, sel registry.Selector) ([]*registry.Instance, error) {
	for attempt := 1; ; attempt++ {
		instances, err := r.reg.ListInstances(ctx, sel)
		if err == nil {
			return running(instances), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		r.logger.Warn("registry read failed, retrying",
			clog.String("role", string(sel.Role)),
			clog.Int("attempt", attempt),
			clog.Duration("retry_in", r.cfg.RetryInterval),
			clog.Error(err))

		if err := r.clock.Sleep(ctx, r.cfg.RetryInterval); err != nil {
			return nil, err
		}
	}
}

// otherPrimaries 去掉本实例上一个进程实例留下、租约尚未过期的 primary 记录
func (r *Resolver) otherPrimaries(primaries []*registry.Instance, local *registry.Instance) []*registry.Instance {
	out := primaries[:0:0]
	for _, p := range primaries {
		if p.Identity == local.Identity {
			r.logger.Info("ignoring stale primary record of this instance",
				clog.String("identity", p.Identity),
				clog.Time("created_at", p.CreatedAt))
			continue
		}
		out = append(out, p)
	}
	return out
}

// dataHolders 去掉 witness，它们不持有数据，不能成为 primary
func dataHolders(instances []*registry.Instance) []*registry.Instance {
	out := instances[:0:0]
	for _, inst := range instances {
		if inst.Role != registry.RoleWitness {
			out = append(out, inst)
		}
	}
	return out
}

func running(instances []*registry.Instance) []*registry.Instance {
	out := instances[:0:0]
	for _, inst := range instances {
		if inst.State == registry.StateRunning {
			out = append(out, inst)
		}
	}
	return out
}
