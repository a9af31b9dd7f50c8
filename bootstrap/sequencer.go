// Package bootstrap 把选举结果落实为实际运行的存储服务。
//
// 三条路径都是显式的状态机，每次迁移都会记录日志并回调 OnTransition：
//
//	primary: announcing -> preparing -> launched
//	witness: announcing -> discovering(n) -> configuring -> launched
//	replica: announcing -> connecting(n) -> configuring | aborted -> launched
//
// 所有等待都是同步的探测加 clock.Sleep。witness 的发现没有次数上限，
// replica 在 connect_attempts 次失败后停止伴随进程并返回 ErrReplicaAborted。
// 到达 launched 后通过 Executor 把进程交给 redis-server 或 redis-sentinel。
package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/election"
	"github.com/ceyewan/kvrole/internal/clock"
	"github.com/ceyewan/kvrole/metrics"
	"github.com/ceyewan/kvrole/probe"
	"github.com/ceyewan/kvrole/registry"
	"github.com/ceyewan/kvrole/xerrors"
)

// 启动路径名称，用于日志和指标
const (
	PathPrimary = "primary"
	PathWitness = "witness"
	PathReplica = "replica"
)

// Sequencer 启动序列
type Sequencer struct {
	reg    registry.Registry
	prober probe.Prober
	exec   Executor
	cfg    *Config

	base         clog.Logger
	logger       clog.Logger
	metrics      *metrics.RoleMetrics
	clock        clock.Clock
	sideProcess  SideProcess
	onTransition func(Transition)

	path  string
	state State
}

// New 创建启动序列
func New(reg registry.Registry, prober probe.Prober, exec Executor, cfg *Config, opts ...Option) (*Sequencer, error) {
	if reg == nil || prober == nil || exec == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "registry, prober and executor are required")
	}
	if cfg == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "config is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	base := o.logger.With(clog.String("identity", cfg.Identity))
	return &Sequencer{
		reg:          reg,
		prober:       prober,
		exec:         exec,
		cfg:          cfg,
		base:         base,
		logger:       base,
		metrics:      o.metrics,
		clock:        o.clock,
		sideProcess:  o.sideProcess,
		onTransition: o.onTransition,
	}, nil
}

// Run 执行与 outcome 对应的启动路径
//
// 交接成功时 Executor 不返回，因此 Run 只在失败时返回。
func (s *Sequencer) Run(ctx context.Context, outcome election.Outcome) error {
	switch outcome.Kind {
	case election.BecomePrimary:
		return s.runPrimary(ctx)
	case election.BecomeWitness:
		return s.runWitness(ctx)
	case election.BecomeReplica:
		return s.runReplica(ctx, outcome.Target)
	default:
		return xerrors.Wrapf(ErrInvalidConfig, "unknown outcome %s", outcome)
	}
}

func (s *Sequencer) runPrimary(ctx context.Context) error {
	s.begin(PathPrimary)
	if err := s.announce(ctx, registry.RolePrimary); err != nil {
		return err
	}

	s.transition(StatePreparing, 0)
	if err := s.ensureDataDir(); err != nil {
		return err
	}
	if err := s.writeStoreOptions(StoreOptions{Secret: s.cfg.Secret}); err != nil {
		return err
	}

	s.transition(StateLaunched, 0)
	return s.handoff(s.cfg.Store.ServerBinary, s.serverArgs(nil))
}

func (s *Sequencer) runWitness(ctx context.Context) error {
	s.begin(PathWitness)
	if err := s.announce(ctx, registry.RoleWitness); err != nil {
		return err
	}

	var (
		host string
		port int
	)
	for attempt := 1; ; attempt++ {
		s.transition(StateDiscovering, attempt)

		var (
			ok   bool
			took time.Duration
		)
		if host, port, ok = s.discoverPrimary(ctx); ok {
			if ok, took = s.probe(ctx, PathWitness, host, port, s.cfg.ProbeTimeout); ok {
				break
			}
		}
		wait := remaining(s.cfg.Witness.DiscoverInterval, took)
		s.logger.Info("primary not available yet, waiting",
			clog.Int("attempt", attempt),
			clog.String("candidate", host),
			clog.Duration("retry_in", wait))

		if err := s.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	s.transition(StateConfiguring, 0)
	mc := s.monitorConfig(host, port)
	if err := writeFile(s.cfg.Witness.ConfigPath, mc.Render()); err != nil {
		return err
	}
	s.logger.Info("monitor config written",
		clog.String("path", s.cfg.Witness.ConfigPath),
		clog.String("primary", probe.JoinHostPort(host, port)),
		clog.Int("quorum", mc.Quorum))

	s.transition(StateLaunched, 0)
	return s.handoff(s.cfg.Witness.SentinelBinary, []string{s.cfg.Witness.ConfigPath, "--protected-mode", "no"})
}

func (s *Sequencer) runReplica(ctx context.Context, target string) error {
	s.begin(PathReplica)
	host, port, err := s.splitTarget(target)
	if err != nil {
		return err
	}
	if err := s.announce(ctx, registry.RoleReplica); err != nil {
		return err
	}

	// 每次尝试占用一个 connect_interval，探测超时不超过它
	interval := s.cfg.Replica.ConnectInterval
	timeout := min(s.cfg.ProbeTimeout, interval)

	connected := false
	for attempt := 1; attempt <= s.cfg.Replica.ConnectAttempts; attempt++ {
		s.transition(StateConnecting, attempt)
		ok, took := s.probe(ctx, PathReplica, host, port, timeout)
		if ok {
			connected = true
			break
		}
		wait := remaining(interval, took)
		s.logger.Info("primary unreachable, retrying",
			clog.String("target", target),
			clog.Int("attempt", attempt),
			clog.Int("max_attempts", s.cfg.Replica.ConnectAttempts),
			clog.Duration("retry_in", wait))

		if err := s.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	if !connected {
		s.transition(StateAborted, 0)
		s.logger.Error("giving up on primary",
			clog.String("target", target),
			clog.Int("attempts", s.cfg.Replica.ConnectAttempts))
		s.stopSideProcess()
		return ErrReplicaAborted
	}

	s.transition(StateConfiguring, 0)
	if err := s.ensureDataDir(); err != nil {
		return err
	}
	if err := s.writeStoreOptions(StoreOptions{
		Replica:     true,
		PrimaryHost: host,
		PrimaryPort: port,
		Secret:      s.cfg.Secret,
	}); err != nil {
		return err
	}

	s.transition(StateLaunched, 0)
	return s.handoff(s.cfg.Store.ServerBinary, s.serverArgs([]string{"--replica-announce-ip", s.cfg.Address}))
}

// announce 写入角色标签，失败时按固定间隔无限重试
func (s *Sequencer) announce(ctx context.Context, role registry.Role) error {
	s.transition(StateAnnouncing, 0)
	for attempt := 1; ; attempt++ {
		err := s.reg.SetRoleLabel(ctx, s.cfg.Identity, role)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("failed to write role label, retrying",
			clog.String("role", string(role)),
			clog.Int("attempt", attempt),
			clog.Duration("retry_in", s.cfg.RetryInterval),
			clog.Error(err))
		if err := s.clock.Sleep(ctx, s.cfg.RetryInterval); err != nil {
			return err
		}
	}
}

// discoverPrimary 先查注册中心，再退回到配置的服务地址
func (s *Sequencer) discoverPrimary(ctx context.Context) (string, int, bool) {
	primaries, err := s.reg.ListInstances(ctx, registry.Selector{Pool: s.cfg.Pool, Role: registry.RolePrimary})
	if err != nil {
		s.logger.Warn("registry read failed during discovery", clog.Error(err))
	}
	for _, p := range primaries {
		if p.State != registry.StateRunning || p.Address == "" {
			continue
		}
		host, port, err := s.splitTarget(p.Address)
		if err != nil {
			s.logger.Warn("ignoring primary with malformed address",
				clog.String("primary", p.Identity),
				clog.String("address", p.Address))
			continue
		}
		return host, port, true
	}

	if s.cfg.Primary.ServiceHost != "" {
		s.logger.Debug("no primary in registry, falling back to service host",
			clog.String("service_host", s.cfg.Primary.ServiceHost))
		return s.cfg.Primary.ServiceHost, s.cfg.Primary.ServicePort, true
	}
	return "", 0, false
}

// probe 探测一次，返回结果和耗时
func (s *Sequencer) probe(ctx context.Context, path, host string, port int, timeout time.Duration) (bool, time.Duration) {
	start := s.clock.Now()
	ok := s.prober.Probe(ctx, host, port, timeout)
	took := s.clock.Now().Sub(start)
	s.metrics.ProbeAttempt(ctx, path, ok, took)
	return ok, took
}

// remaining 返回一次尝试的间隔中扣除探测耗时后剩余的等待时间
func remaining(interval, took time.Duration) time.Duration {
	return max(interval-took, 0)
}

func (s *Sequencer) monitorConfig(host string, port int) *MonitorConfig {
	w := s.cfg.Witness
	return &MonitorConfig{
		MasterName:        w.MasterName,
		Host:              host,
		Port:              port,
		Quorum:            w.Quorum,
		DownAfterMs:       w.DownAfterMs,
		FailoverTimeoutMs: w.FailoverTimeoutMs,
		ParallelSyncs:     w.ParallelSyncs,
		ReconfigScript:    w.ReconfigScript,
		ListenPort:        w.Port,
		Bind:              "0.0.0.0",
		AuthPass:          s.cfg.Secret,
	}
}

func (s *Sequencer) serverArgs(extra []string) []string {
	args := []string{s.cfg.Store.ConfigPath, "--protected-mode", "no"}
	args = append(args, extra...)
	return append(args, s.cfg.Store.ExtraArgs...)
}

func (s *Sequencer) writeStoreOptions(opts StoreOptions) error {
	tmpl, err := os.ReadFile(s.cfg.Store.TemplatePath)
	if err != nil {
		return xerrors.Wrapf(ErrTemplate, "%s: %v", s.cfg.Store.TemplatePath, err)
	}
	if err := writeFile(s.cfg.Store.ConfigPath, RenderStoreOptions(string(tmpl), opts)); err != nil {
		return err
	}
	s.logger.Info("store options written",
		clog.String("path", s.cfg.Store.ConfigPath),
		clog.Bool("replica", opts.Replica),
		clog.Bool("auth", opts.Secret != ""))
	return nil
}

func (s *Sequencer) ensureDataDir() error {
	dir := s.cfg.Store.DataDir
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return xerrors.Wrapf(err, "stat data dir %s", dir)
	}

	s.logger.Warn("data directory missing, creating it; storage is non-persistent",
		clog.String("data_dir", dir))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return xerrors.Wrapf(err, "create data dir %s", dir)
	}
	return nil
}

func (s *Sequencer) stopSideProcess() {
	if s.sideProcess == nil {
		return
	}
	if err := s.sideProcess.Stop(); err != nil {
		s.logger.Warn("failed to stop side process", clog.Error(err))
	}
}

func (s *Sequencer) handoff(binary string, args []string) error {
	if err := s.exec.Exec(binary, args); err != nil {
		s.logger.Error("handoff failed", clog.String("binary", binary), clog.Error(err))
		return err
	}
	return nil
}

// splitTarget 拆分目标地址，不带端口时使用存储服务端口
func (s *Sequencer) splitTarget(addr string) (string, int, error) {
	if addr != "" && !strings.Contains(addr, ":") {
		return addr, s.cfg.Store.Port, nil
	}
	host, port, err := probe.SplitHostPort(addr)
	if err != nil {
		return "", 0, xerrors.Wrapf(ErrInvalidConfig, "target %q: %v", addr, err)
	}
	return host, port, nil
}

func (s *Sequencer) begin(path string) {
	s.path = path
	s.state = ""
	s.logger = s.base.With(clog.String("path", path))
}

func (s *Sequencer) transition(to State, attempt int) {
	t := Transition{Path: s.path, From: s.state, To: to, Attempt: attempt}
	s.state = to

	fields := []clog.Field{clog.String("state", string(to)), clog.String("from", string(t.From))}
	if attempt > 0 {
		fields = append(fields, clog.Int("attempt", attempt))
	}
	s.logger.Info("state transition", fields...)

	if s.onTransition != nil {
		s.onTransition(t)
	}
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return xerrors.Wrapf(err, "create directory for %s", path)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return xerrors.Wrapf(err, "write %s", path)
	}
	return nil
}
