// Package registry 提供实例元数据注册中心，基于 Etcd 实现，另附内存实现用于测试。
//
// 每个实例对应一条 JSON 记录：
//
//	<namespace>/<pool>/<identity> -> JSON(Instance)
//
// 例如 `/kvrole/instances/redis/redis-0`。
//
// 记录的存活由租约表达：label publisher 通过 Publish 将记录绑定到租约并持续续约，
// 进程退出后租约过期，记录随之消失；kvrole 从不显式删除记录。
// 不带租约的记录是 SetRoleLabel 在发布之前写下的占位记录，读取时状态为 pending。
//
// 所有写操作都是基于 ModRevision 的读改写事务（CAS），
// 角色修改使用 WithIgnoreLease 保留记录原有的租约。
//
// 基本使用：
//
//	etcdConn, _ := connector.NewEtcd(&cfg.Etcd, connector.WithLogger(logger))
//	defer etcdConn.Close()
//	_ = etcdConn.Connect(ctx)
//
//	reg, _ := registry.New(etcdConn, &registry.Config{Pool: "redis"}, registry.WithLogger(logger))
//	defer reg.Close()
//
//	primaries, err := reg.ListInstances(ctx, registry.Selector{Role: registry.RolePrimary})
package registry

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/kvrole/clog"
	"github.com/ceyewan/kvrole/connector"
	"github.com/ceyewan/kvrole/metrics"
	"github.com/ceyewan/kvrole/xerrors"
)

// New 创建基于 Etcd 的 Registry，借用连接器的客户端，不负责其生命周期
func New(conn connector.EtcdConnector, cfg *Config, opts ...Option) (Registry, error) {
	if conn == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "etcd connector is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "etcd client is nil")
	}

	opt := applyOptions(opts)

	return &etcdRegistry{
		client:      client,
		cfg:         cfg,
		logger:      opt.logger,
		metrics:     opt.metrics,
		incarnation: opt.incarnation,
		keepAlives:  make(map[string]*leaseKeepAlive),
	}, nil
}

// leaseKeepAlive 一次 Publish 的租约保活信息
type leaseKeepAlive struct {
	identity    string
	leaseID     clientv3.LeaseID
	keepAliveCh <-chan *clientv3.LeaseKeepAliveResponse
	cancel      context.CancelFunc
	lost        chan struct{}
	stopped     atomic.Bool
}

type etcdRegistry struct {
	client      *clientv3.Client
	cfg         *Config
	logger      clog.Logger
	metrics     *metrics.RoleMetrics
	incarnation time.Time

	mu         sync.Mutex
	keepAlives map[string]*leaseKeepAlive // identity -> 当前租约
	wg         sync.WaitGroup
	closed     atomic.Bool
}

func (r *etcdRegistry) ensureOpen() error {
	if r.closed.Load() {
		return ErrRegistryClosed
	}
	return nil
}

// ListInstances 按 key 顺序返回池中满足条件的实例
func (r *etcdRegistry) ListInstances(ctx context.Context, sel Selector) ([]*Instance, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}

	pool := sel.Pool
	if pool == "" {
		pool = r.cfg.Pool
	}

	resp, err := r.client.Get(ctx, r.buildPrefix(pool), clientv3.WithPrefix())
	if err != nil {
		r.metrics.RegistryError(ctx, "list")
		return nil, xerrors.Wrapf(err, "list instances in pool %s", pool)
	}

	instances := make([]*Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		inst, err := decodeInstance(kv)
		if err != nil {
			r.logger.Warn("skipping malformed instance record",
				clog.String("key", string(kv.Key)),
				clog.Error(err))
			continue
		}
		if sel.matches(inst) {
			instances = append(instances, inst)
		}
	}
	return instances, nil
}

// SetRoleLabel 修改角色标签，保留记录原有的租约
func (r *etcdRegistry) SetRoleLabel(ctx context.Context, identity string, role Role) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	if _, err := ParseRole(string(role)); err != nil || role == "" {
		return xerrors.Wrapf(ErrInvalidRole, "%q", role)
	}
	if err := (&Instance{Identity: identity}).validate(); err != nil {
		return err
	}

	key := r.buildKey(r.cfg.Pool, identity)
	for attempt := 1; attempt <= r.cfg.CASRetries; attempt++ {
		resp, err := r.client.Get(ctx, key)
		if err != nil {
			r.metrics.RegistryError(ctx, "set_role")
			return xerrors.Wrapf(err, "read instance %s", identity)
		}

		var (
			cmp clientv3.Cmp
			put clientv3.Op
		)
		if len(resp.Kvs) == 0 {
			value, err := json.Marshal(placeholder(identity, r.cfg.Pool, role, r.incarnation))
			if err != nil {
				return xerrors.Wrap(err, "marshal instance")
			}
			cmp = clientv3.Compare(clientv3.CreateRevision(key), "=", 0)
			put = clientv3.OpPut(key, string(value))
		} else {
			kv := resp.Kvs[0]
			existing, err := decodeInstance(kv)
			malformed := err != nil
			if malformed {
				r.logger.Warn("overwriting malformed instance record",
					clog.String("key", key), clog.Error(err))
				existing = placeholder(identity, r.cfg.Pool, role, r.incarnation)
			}
			if existing.Pool == "" {
				existing.Pool = r.cfg.Pool
			}
			updated, replaced := relabel(existing, role, r.incarnation)
			if !replaced && !malformed && existing.Role == role {
				return nil
			}
			value, err := json.Marshal(updated)
			if err != nil {
				return xerrors.Wrap(err, "marshal instance")
			}
			cmp = clientv3.Compare(clientv3.ModRevision(key), "=", kv.ModRevision)
			if replaced {
				// 旧进程实例的租约不再拥有这条记录
				r.logger.Info("replacing record of previous incarnation",
					clog.String("identity", identity),
					clog.Time("previous_created_at", existing.CreatedAt))
				put = clientv3.OpPut(key, string(value))
			} else if kv.Lease != 0 {
				put = clientv3.OpPut(key, string(value), clientv3.WithIgnoreLease())
			} else {
				put = clientv3.OpPut(key, string(value))
			}
		}

		txn, err := r.client.Txn(ctx).If(cmp).Then(put).Commit()
		if err != nil {
			r.metrics.RegistryError(ctx, "set_role")
			return xerrors.Wrapf(err, "write role label for %s", identity)
		}
		if txn.Succeeded {
			r.logger.Info("role label set",
				clog.String("identity", identity),
				clog.String("role", string(role)))
			return nil
		}
		r.logger.Debug("role label write conflict, retrying",
			clog.String("identity", identity),
			clog.Int("attempt", attempt))
	}

	r.metrics.RegistryError(ctx, "set_role")
	return xerrors.Wrapf(ErrConflict, "set role label for %s after %d attempts", identity, r.cfg.CASRetries)
}

// Publish 将实例记录绑定到新租约并启动续约
func (r *etcdRegistry) Publish(ctx context.Context, inst *Instance) (<-chan struct{}, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	if err := inst.validate(); err != nil {
		return nil, err
	}
	inst = inst.Clone()
	if inst.Pool == "" {
		inst.Pool = r.cfg.Pool
	}

	lease, err := r.client.Grant(ctx, int64(r.cfg.LeaseTTL.Seconds()))
	if err != nil {
		r.metrics.RegistryError(ctx, "publish")
		return nil, xerrors.Wrap(err, "grant lease")
	}

	written, err := r.putWithLease(ctx, inst, lease.ID)
	if err != nil {
		r.revoke(lease.ID)
		r.metrics.RegistryError(ctx, "publish")
		return nil, err
	}

	kaCtx, kaCancel := context.WithCancel(context.Background())
	keepAliveCh, err := r.client.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		kaCancel()
		r.revoke(lease.ID)
		r.metrics.RegistryError(ctx, "publish")
		return nil, xerrors.Wrap(err, "keepalive")
	}

	ka := &leaseKeepAlive{
		identity:    inst.Identity,
		leaseID:     lease.ID,
		keepAliveCh: keepAliveCh,
		cancel:      kaCancel,
		lost:        make(chan struct{}),
	}

	r.mu.Lock()
	previous := r.keepAlives[inst.Identity]
	r.keepAlives[inst.Identity] = ka
	r.mu.Unlock()

	// 记录已迁移到新租约，旧租约撤销不会删除记录
	if previous != nil {
		previous.stopped.Store(true)
		previous.cancel()
		r.revoke(previous.leaseID)
	}

	r.wg.Add(1)
	go r.monitorKeepAlive(ka)

	r.logger.Info("instance published",
		clog.String("identity", written.Identity),
		clog.String("address", written.Address),
		clog.String("role", string(written.Role)),
		clog.Duration("ttl", r.cfg.LeaseTTL))

	return ka.lost, nil
}

// putWithLease 以 CAS 方式写入合并后的记录
func (r *etcdRegistry) putWithLease(ctx context.Context, inst *Instance, leaseID clientv3.LeaseID) (*Instance, error) {
	key := r.buildKey(inst.Pool, inst.Identity)
	for attempt := 1; attempt <= r.cfg.CASRetries; attempt++ {
		resp, err := r.client.Get(ctx, key)
		if err != nil {
			return nil, xerrors.Wrapf(err, "read instance %s", inst.Identity)
		}

		var (
			existing *Instance
			cmp      clientv3.Cmp
		)
		if len(resp.Kvs) == 0 {
			cmp = clientv3.Compare(clientv3.CreateRevision(key), "=", 0)
		} else {
			kv := resp.Kvs[0]
			cmp = clientv3.Compare(clientv3.ModRevision(key), "=", kv.ModRevision)
			if existing, err = decodeInstance(kv); err != nil {
				existing = nil
			}
		}

		merged := mergeForPublish(existing, inst)
		value, err := json.Marshal(merged)
		if err != nil {
			return nil, xerrors.Wrap(err, "marshal instance")
		}

		txn, err := r.client.Txn(ctx).
			If(cmp).
			Then(clientv3.OpPut(key, string(value), clientv3.WithLease(leaseID))).
			Commit()
		if err != nil {
			return nil, xerrors.Wrapf(err, "publish instance %s", inst.Identity)
		}
		if txn.Succeeded {
			return merged, nil
		}
		r.logger.Debug("publish write conflict, retrying",
			clog.String("identity", inst.Identity),
			clog.Int("attempt", attempt))
	}
	return nil, xerrors.Wrapf(ErrConflict, "publish %s after %d attempts", inst.Identity, r.cfg.CASRetries)
}

// Close 停止所有续约，租约自然过期，记录随之消失
// 此方法是幂等的
func (r *etcdRegistry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	r.mu.Lock()
	for identity, ka := range r.keepAlives {
		ka.stopped.Store(true)
		ka.cancel()
		delete(r.keepAlives, identity)
	}
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Debug("registry stopped")
	return nil
}

// monitorKeepAlive 监控租约续约，续约通道意外关闭时通知调用方
func (r *etcdRegistry) monitorKeepAlive(ka *leaseKeepAlive) {
	defer r.wg.Done()

	for resp := range ka.keepAliveCh {
		r.logger.Debug("keepalive renewed",
			clog.String("identity", ka.identity),
			clog.Int64("lease_id", int64(resp.ID)),
			clog.Int64("ttl", resp.TTL))
	}

	if ka.stopped.Load() {
		return
	}

	r.logger.Warn("keepalive channel closed, lease expired or connection lost",
		clog.String("identity", ka.identity),
		clog.Int64("lease_id", int64(ka.leaseID)))

	r.mu.Lock()
	if r.keepAlives[ka.identity] == ka {
		delete(r.keepAlives, ka.identity)
	}
	r.mu.Unlock()

	ka.cancel()
	close(ka.lost)
}

func (r *etcdRegistry) revoke(leaseID clientv3.LeaseID) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.LeaseTTL)
	defer cancel()
	if _, err := r.client.Revoke(ctx, leaseID); err != nil {
		r.logger.Warn("failed to revoke lease",
			clog.Int64("lease_id", int64(leaseID)),
			clog.Error(err))
	}
}

// buildKey 构建存储键
func (r *etcdRegistry) buildKey(pool, identity string) string {
	return r.buildPrefix(pool) + identity
}

// buildPrefix 构建池前缀
func (r *etcdRegistry) buildPrefix(pool string) string {
	return r.cfg.Namespace + "/" + pool + "/"
}

// decodeInstance 解析记录，状态由是否绑定租约决定
func decodeInstance(kv *mvccpb.KeyValue) (*Instance, error) {
	var inst Instance
	if err := json.Unmarshal(kv.Value, &inst); err != nil {
		return nil, err
	}
	if inst.Identity == "" {
		return nil, xerrors.Wrap(ErrInvalidInstance, "record has no identity")
	}
	if kv.Lease != 0 {
		inst.State = StateRunning
	} else {
		inst.State = StatePending
	}
	return &inst, nil
}
