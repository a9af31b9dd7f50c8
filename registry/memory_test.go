package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newMemory(t *testing.T, opts ...Option) *Memory {
	t.Helper()
	m, err := NewMemory(&Config{Pool: "redis"}, opts...)
	require.NoError(t, err)
	return m
}

func identities(instances []*Instance) []string {
	out := make([]string, len(instances))
	for i, inst := range instances {
		out[i] = inst.Identity
	}
	return out
}

func TestMemoryListInstances(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	m.Put(&Instance{Identity: "c", Address: "10.0.0.3", Role: RoleReplica, CreatedAt: t0.Add(2 * time.Second)})
	m.Put(&Instance{Identity: "a", Address: "10.0.0.1", Role: RolePrimary, CreatedAt: t0})
	m.Put(&Instance{Identity: "b", Address: "10.0.0.2", Role: RolePrimary, CreatedAt: t0.Add(time.Second), State: StatePending})
	m.Put(&Instance{Identity: "x", Pool: "other", Role: RolePrimary})

	all, err := m.ListInstances(ctx, Selector{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, identities(all))

	primaries, err := m.ListInstances(ctx, Selector{Role: RolePrimary})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, identities(primaries))
	assert.Equal(t, StatePending, primaries[1].State)

	other, err := m.ListInstances(ctx, Selector{Pool: "other"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, identities(other))

	// 返回的是副本
	all[0].Role = RoleWitness
	got, _ := m.Get("a")
	assert.Equal(t, RolePrimary, got.Role)
}

func TestMemorySetRoleLabelPlaceholder(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t, WithIncarnation(t0))

	require.NoError(t, m.SetRoleLabel(ctx, "redis-0", RoleWitness))

	got, ok := m.Get("redis-0")
	require.True(t, ok)
	assert.Equal(t, RoleWitness, got.Role)
	assert.Equal(t, StatePending, got.State)
	assert.True(t, got.CreatedAt.Equal(t0))
	assert.Empty(t, got.Address)
}

func TestMemorySetRoleLabelValidation(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	assert.ErrorIs(t, m.SetRoleLabel(ctx, "a", Role("leader")), ErrInvalidRole)
	assert.ErrorIs(t, m.SetRoleLabel(ctx, "a", ""), ErrInvalidRole)
	assert.ErrorIs(t, m.SetRoleLabel(ctx, "", RolePrimary), ErrInvalidInstance)
	assert.ErrorIs(t, m.SetRoleLabel(ctx, "a/b", RolePrimary), ErrInvalidInstance)
}

func TestMemoryPublishKeepsSameIncarnationRole(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t, WithIncarnation(t0))

	require.NoError(t, m.SetRoleLabel(ctx, "redis-0", RoleReplica))

	lost, err := m.Publish(ctx, &Instance{Identity: "redis-0", Address: "10.0.0.1", CreatedAt: t0})
	require.NoError(t, err)
	require.NotNil(t, lost)

	got, _ := m.Get("redis-0")
	assert.Equal(t, RoleReplica, got.Role)
	assert.Equal(t, StateRunning, got.State)
	assert.Equal(t, "10.0.0.1", got.Address)
}

func TestMemoryPublishReplacesOldIncarnation(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	m.Put(&Instance{Identity: "redis-0", Address: "10.0.0.1", Role: RolePrimary, CreatedAt: t0})

	_, err := m.Publish(ctx, &Instance{Identity: "redis-0", Address: "10.0.0.9", CreatedAt: t0.Add(time.Hour)})
	require.NoError(t, err)

	got, _ := m.Get("redis-0")
	assert.Equal(t, RoleUnassigned, got.Role)
	assert.Equal(t, "10.0.0.9", got.Address)
	assert.True(t, got.CreatedAt.Equal(t0.Add(time.Hour)))
}

func TestMemoryExpireSignalsLost(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	lost, err := m.Publish(ctx, &Instance{Identity: "redis-0", Address: "10.0.0.1", CreatedAt: t0})
	require.NoError(t, err)

	m.Expire("redis-0")

	select {
	case <-lost:
	default:
		t.Fatal("lost channel not closed after expiry")
	}
	_, ok := m.Get("redis-0")
	assert.False(t, ok)

	// 没有租约的占位记录不会过期
	require.NoError(t, m.SetRoleLabel(ctx, "redis-1", RoleWitness))
	m.Expire("redis-1")
	_, ok = m.Get("redis-1")
	assert.True(t, ok)
}

func TestMemoryFaultInjection(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	boom := errors.New("etcdserver: request timed out")

	m.FailList(boom)
	m.FailSetRole(boom)

	_, err := m.ListInstances(ctx, Selector{})
	assert.ErrorIs(t, err, boom)
	_, err = m.ListInstances(ctx, Selector{})
	assert.NoError(t, err)
	assert.Equal(t, 2, m.ListCalls())

	assert.ErrorIs(t, m.SetRoleLabel(ctx, "a", RolePrimary), boom)
	assert.NoError(t, m.SetRoleLabel(ctx, "a", RolePrimary))
}

func TestMemoryClosed(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err := m.ListInstances(ctx, Selector{})
	assert.ErrorIs(t, err, ErrRegistryClosed)
	assert.ErrorIs(t, m.SetRoleLabel(ctx, "a", RolePrimary), ErrRegistryClosed)
	_, err = m.Publish(ctx, &Instance{Identity: "a"})
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"primary", RolePrimary, false},
		{" Witness ", RoleWitness, false},
		{"REPLICA", RoleReplica, false},
		{"", RoleUnassigned, false},
		{"leader", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.wantErr, err != nil, tt.in)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{Namespace: "/kv/"}
	require.NoError(t, cfg.validate())
	assert.Equal(t, "/kv", cfg.Namespace)
	assert.Equal(t, "redis", cfg.Pool)
	assert.Equal(t, 10*time.Second, cfg.LeaseTTL)
	assert.Equal(t, 10, cfg.CASRetries)

	assert.ErrorIs(t, (&Config{LeaseTTL: time.Millisecond}).validate(), ErrInvalidConfig)
	assert.ErrorIs(t, (&Config{Pool: "a/b"}).validate(), ErrInvalidConfig)
}

func TestMergeForPublish(t *testing.T) {
	inst := &Instance{Identity: "a", Address: "10.0.0.1", CreatedAt: t0}

	tests := []struct {
		name     string
		existing *Instance
		want     Role
	}{
		{name: "no record", existing: nil, want: RoleUnassigned},
		{name: "same incarnation keeps role", existing: &Instance{Identity: "a", Role: RoleWitness, CreatedAt: t0}, want: RoleWitness},
		{name: "same incarnation unassigned", existing: &Instance{Identity: "a", Role: RoleUnassigned, CreatedAt: t0}, want: RoleUnassigned},
		{name: "old incarnation replaced", existing: &Instance{Identity: "a", Role: RolePrimary, CreatedAt: t0.Add(-time.Minute)}, want: RoleUnassigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeForPublish(tt.existing, inst)
			assert.Equal(t, tt.want, got.Role)
			assert.Equal(t, StateRunning, got.State)
			assert.Equal(t, "10.0.0.1", got.Address)
		})
	}
}

func TestMemoryRestartWithinLeaseKeepsAnnouncedRole(t *testing.T) {
	ctx := context.Background()
	restarted := t0.Add(time.Hour)
	m := newMemory(t, WithIncarnation(restarted))

	// 上一个进程实例的记录仍绑定着租约
	m.Put(&Instance{Identity: "redis-1", Address: "10.0.0.2", Role: RoleReplica, CreatedAt: t0})

	require.NoError(t, m.SetRoleLabel(ctx, "redis-1", RolePrimary))
	got, _ := m.Get("redis-1")
	assert.Equal(t, RolePrimary, got.Role)
	assert.Equal(t, StatePending, got.State)
	assert.True(t, got.CreatedAt.Equal(restarted))

	// 旧租约过期不再影响新记录
	m.Expire("redis-1")
	_, ok := m.Get("redis-1")
	require.True(t, ok)

	_, err := m.Publish(ctx, &Instance{Identity: "redis-1", Address: "10.0.0.2", CreatedAt: restarted})
	require.NoError(t, err)
	got, _ = m.Get("redis-1")
	assert.Equal(t, RolePrimary, got.Role)
	assert.Equal(t, StateRunning, got.State)
}

func TestMemoryRelabelSameIncarnationKeepsLease(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t, WithIncarnation(t0))

	lost, err := m.Publish(ctx, &Instance{Identity: "redis-1", Address: "10.0.0.2", CreatedAt: t0})
	require.NoError(t, err)
	require.NoError(t, m.SetRoleLabel(ctx, "redis-1", RoleReplica))

	got, _ := m.Get("redis-1")
	assert.Equal(t, RoleReplica, got.Role)
	assert.Equal(t, StateRunning, got.State)

	m.Expire("redis-1")
	select {
	case <-lost:
	default:
		t.Fatal("relabel detached the record from its lease")
	}
}

func TestRelabel(t *testing.T) {
	existing := &Instance{Identity: "a", Pool: "redis", Address: "10.0.0.1", Role: RoleReplica, CreatedAt: t0, State: StateRunning}

	tests := []struct {
		name         string
		incarnation  time.Time
		wantReplaced bool
		wantCreated  time.Time
		wantAddress  string
	}{
		{name: "no incarnation", incarnation: time.Time{}, wantReplaced: false, wantCreated: t0, wantAddress: "10.0.0.1"},
		{name: "same incarnation", incarnation: t0, wantReplaced: false, wantCreated: t0, wantAddress: "10.0.0.1"},
		{name: "previous incarnation", incarnation: t0.Add(time.Minute), wantReplaced: true, wantCreated: t0.Add(time.Minute), wantAddress: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, replaced := relabel(existing, RolePrimary, tt.incarnation)
			assert.Equal(t, tt.wantReplaced, replaced)
			assert.Equal(t, RolePrimary, got.Role)
			assert.True(t, got.CreatedAt.Equal(tt.wantCreated))
			assert.Equal(t, tt.wantAddress, got.Address)
			assert.Equal(t, "redis", got.Pool)
		})
	}
	assert.Equal(t, RoleReplica, existing.Role)
}
