package registry_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/kvrole/registry"
	"github.com/ceyewan/kvrole/testkit"
)

func newEtcdRegistry(t *testing.T, opts ...registry.Option) (registry.Registry, *clientv3.Client, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping etcd integration test in short mode")
	}

	conn := testkit.NewEtcdContainerConnector(t)
	ns := "/kvrole-test/" + testkit.NewID()
	opts = append([]registry.Option{registry.WithLogger(testkit.NewLogger())}, opts...)

	reg, err := registry.New(conn, &registry.Config{
		Namespace: ns,
		Pool:      "redis",
		LeaseTTL:  2 * time.Second,
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	return reg, conn.GetClient(), ns
}

func findInstance(t *testing.T, reg registry.Registry, identity string) *registry.Instance {
	t.Helper()
	all, err := reg.ListInstances(context.Background(), registry.Selector{})
	require.NoError(t, err)
	for _, inst := range all {
		if inst.Identity == identity {
			return inst
		}
	}
	return nil
}

func TestEtcdPlaceholderThenPublish(t *testing.T) {
	incarnation := time.Now().UTC().Truncate(time.Millisecond)
	reg, _, _ := newEtcdRegistry(t, registry.WithIncarnation(incarnation))
	ctx := testkit.NewContext(t, 30*time.Second)

	require.NoError(t, reg.SetRoleLabel(ctx, "redis-0", registry.RoleWitness))

	inst := findInstance(t, reg, "redis-0")
	require.NotNil(t, inst)
	assert.Equal(t, registry.StatePending, inst.State)
	assert.Equal(t, registry.RoleWitness, inst.Role)

	lost, err := reg.Publish(ctx, &registry.Instance{
		Identity:  "redis-0",
		Address:   "10.0.0.1",
		CreatedAt: incarnation,
	})
	require.NoError(t, err)
	require.NotNil(t, lost)

	inst = findInstance(t, reg, "redis-0")
	require.NotNil(t, inst)
	assert.Equal(t, registry.StateRunning, inst.State)
	assert.Equal(t, registry.RoleWitness, inst.Role)
	assert.Equal(t, "10.0.0.1", inst.Address)
}

func TestEtcdRelabelKeepsLease(t *testing.T) {
	reg, client, ns := newEtcdRegistry(t)
	ctx := testkit.NewContext(t, 30*time.Second)

	_, err := reg.Publish(ctx, &registry.Instance{
		Identity:  "redis-1",
		Address:   "10.0.0.2",
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, reg.SetRoleLabel(ctx, "redis-1", registry.RolePrimary))

	resp, err := client.Get(ctx, ns+"/redis/redis-1")
	require.NoError(t, err)
	require.Len(t, resp.Kvs, 1)
	assert.NotZero(t, resp.Kvs[0].Lease)

	primaries, err := reg.ListInstances(ctx, registry.Selector{Role: registry.RolePrimary})
	require.NoError(t, err)
	require.Len(t, primaries, 1)
	assert.Equal(t, registry.StateRunning, primaries[0].State)
}

func TestEtcdPublishReplacesOldIncarnation(t *testing.T) {
	reg, _, _ := newEtcdRegistry(t)
	ctx := testkit.NewContext(t, 30*time.Second)
	first := time.Now().UTC().Add(-time.Hour)

	_, err := reg.Publish(ctx, &registry.Instance{Identity: "redis-2", Address: "10.0.0.3", CreatedAt: first})
	require.NoError(t, err)
	require.NoError(t, reg.SetRoleLabel(ctx, "redis-2", registry.RolePrimary))

	_, err = reg.Publish(ctx, &registry.Instance{Identity: "redis-2", Address: "10.0.0.3", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	inst := findInstance(t, reg, "redis-2")
	require.NotNil(t, inst)
	assert.Equal(t, registry.RoleUnassigned, inst.Role)
}

func TestEtcdRecordExpiresAfterClose(t *testing.T) {
	reg, _, _ := newEtcdRegistry(t)
	ctx := testkit.NewContext(t, 30*time.Second)

	_, err := reg.Publish(ctx, &registry.Instance{Identity: "redis-3", Address: "10.0.0.4", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	require.NotNil(t, findInstance(t, reg, "redis-3"))

	require.NoError(t, reg.Close())

	_, err = reg.ListInstances(ctx, registry.Selector{})
	assert.ErrorIs(t, err, registry.ErrRegistryClosed)
}

func TestEtcdListSkipsMalformedRecords(t *testing.T) {
	reg, client, ns := newEtcdRegistry(t)
	ctx := testkit.NewContext(t, 30*time.Second)

	_, err := client.Put(ctx, ns+"/redis/garbage", "not-json")
	require.NoError(t, err)
	require.NoError(t, reg.SetRoleLabel(ctx, "redis-4", registry.RoleReplica))

	all, err := reg.ListInstances(ctx, registry.Selector{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "redis-4", all[0].Identity)
}

func TestEtcdRestartWithinLeaseKeepsAnnouncedRole(t *testing.T) {
	restarted := time.Now().UTC().Truncate(time.Millisecond)
	reg, client, ns := newEtcdRegistry(t, registry.WithIncarnation(restarted))
	ctx := testkit.NewContext(t, 30*time.Second)

	// 上一个进程实例留下的记录，租约尚未过期
	old, err := json.Marshal(&registry.Instance{
		Identity:  "redis-5",
		Pool:      "redis",
		Address:   "10.0.0.6",
		Role:      registry.RoleReplica,
		CreatedAt: restarted.Add(-time.Minute),
	})
	require.NoError(t, err)
	lease, err := client.Grant(ctx, 60)
	require.NoError(t, err)
	_, err = client.Put(ctx, ns+"/redis/redis-5", string(old), clientv3.WithLease(lease.ID))
	require.NoError(t, err)

	require.NoError(t, reg.SetRoleLabel(ctx, "redis-5", registry.RolePrimary))

	inst := findInstance(t, reg, "redis-5")
	require.NotNil(t, inst)
	assert.Equal(t, registry.RolePrimary, inst.Role)
	assert.Equal(t, registry.StatePending, inst.State)
	assert.True(t, inst.CreatedAt.Equal(restarted))

	_, err = reg.Publish(ctx, &registry.Instance{Identity: "redis-5", Address: "10.0.0.6", CreatedAt: restarted})
	require.NoError(t, err)

	inst = findInstance(t, reg, "redis-5")
	require.NotNil(t, inst)
	assert.Equal(t, registry.RolePrimary, inst.Role)
	assert.Equal(t, registry.StateRunning, inst.State)

	// 撤销旧租约不会删除新记录
	_, err = client.Revoke(ctx, lease.ID)
	require.NoError(t, err)
	assert.NotNil(t, findInstance(t, reg, "redis-5"))
}
