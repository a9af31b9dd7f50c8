package registry

import (
	"context"
	"sort"
	"sync"
)

// Memory 内存实现的 Registry，语义与 Etcd 实现一致，用于单元测试
//
// 额外提供 Put、Expire、Get 和故障注入方法，便于构造陈旧或不可用的注册中心。
type Memory struct {
	cfg  *Config
	opts *options

	mu        sync.Mutex
	records   map[string]*memRecord // pool/identity -> record
	listFails []error
	setFails  []error
	listCalls int
	closed    bool
}

type memRecord struct {
	inst   *Instance
	leased bool
	lost   chan struct{}
}

// NewMemory 创建内存 Registry
func NewMemory(cfg *Config, opts ...Option) (*Memory, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Memory{
		cfg:     cfg,
		opts:    applyOptions(opts),
		records: make(map[string]*memRecord),
	}, nil
}

func (m *Memory) key(pool, identity string) string {
	return pool + "/" + identity
}

// ListInstances 按 identity 顺序返回实例，与 Etcd 的 key 顺序一致
func (m *Memory) ListInstances(ctx context.Context, sel Selector) ([]*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrRegistryClosed
	}
	m.listCalls++
	if len(m.listFails) > 0 {
		err := m.listFails[0]
		m.listFails = m.listFails[1:]
		m.opts.metrics.RegistryError(ctx, "list")
		return nil, err
	}

	pool := sel.Pool
	if pool == "" {
		pool = m.cfg.Pool
	}
	prefix := pool + "/"

	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]*Instance, 0, len(keys))
	for _, k := range keys {
		inst := m.records[k].inst.Clone()
		if sel.matches(inst) {
			out = append(out, inst)
		}
	}
	return out, nil
}

// SetRoleLabel 修改角色标签，不存在时写入 pending 占位记录
func (m *Memory) SetRoleLabel(ctx context.Context, identity string, role Role) error {
	if _, err := ParseRole(string(role)); err != nil || role == "" {
		return ErrInvalidRole
	}
	if err := (&Instance{Identity: identity}).validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrRegistryClosed
	}
	if len(m.setFails) > 0 {
		err := m.setFails[0]
		m.setFails = m.setFails[1:]
		m.opts.metrics.RegistryError(ctx, "set_role")
		return err
	}

	k := m.key(m.cfg.Pool, identity)
	rec, ok := m.records[k]
	if !ok {
		m.records[k] = &memRecord{
			inst: placeholder(identity, m.cfg.Pool, role, m.opts.incarnation),
		}
		return nil
	}
	inst, replaced := relabel(rec.inst, role, m.opts.incarnation)
	if replaced {
		m.records[k] = &memRecord{inst: inst}
		return nil
	}
	rec.inst = inst
	return nil
}

// Publish 发布实例记录，返回的通道在 Expire 时关闭
func (m *Memory) Publish(_ context.Context, inst *Instance) (<-chan struct{}, error) {
	if err := inst.validate(); err != nil {
		return nil, err
	}
	inst = inst.Clone()
	if inst.Pool == "" {
		inst.Pool = m.cfg.Pool
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrRegistryClosed
	}

	k := m.key(inst.Pool, inst.Identity)
	var existing *Instance
	if rec, ok := m.records[k]; ok {
		existing = rec.inst
	}

	rec := &memRecord{
		inst:   mergeForPublish(existing, inst),
		leased: true,
		lost:   make(chan struct{}),
	}
	m.records[k] = rec
	return rec.lost, nil
}

// Close 关闭 Registry，此方法是幂等的
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Put 直接写入一条记录，State 为 running 时视为已绑定租约
func (m *Memory) Put(inst *Instance) {
	inst = inst.Clone()
	if inst.Pool == "" {
		inst.Pool = m.cfg.Pool
	}
	if inst.State == "" {
		inst.State = StateRunning
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[m.key(inst.Pool, inst.Identity)] = &memRecord{
		inst:   inst,
		leased: inst.State == StateRunning,
		lost:   make(chan struct{}),
	}
}

// Expire 模拟租约过期：删除带租约的记录并通知发布者
func (m *Memory) Expire(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := m.key(m.cfg.Pool, identity)
	rec, ok := m.records[k]
	if !ok || !rec.leased {
		return
	}
	delete(m.records, k)
	if rec.lost != nil {
		close(rec.lost)
	}
}

// Get 返回默认池中某个实例的记录副本
func (m *Memory) Get(identity string) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[m.key(m.cfg.Pool, identity)]
	if !ok {
		return nil, false
	}
	return rec.inst.Clone(), true
}

// FailList 让接下来的 ListInstances 依次返回给定错误
func (m *Memory) FailList(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listFails = append(m.listFails, errs...)
}

// FailSetRole 让接下来的 SetRoleLabel 依次返回给定错误
func (m *Memory) FailSetRole(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setFails = append(m.setFails, errs...)
}

// ListCalls 返回 ListInstances 被调用的次数
func (m *Memory) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

var (
	_ Registry = (*Memory)(nil)
	_ Registry = (*etcdRegistry)(nil)
)
