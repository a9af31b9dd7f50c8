package registry

import "time"

// mergeForPublish 计算 Publish 实际写入的记录
//
// 同一进程实例之前通过 SetRoleLabel 写下的角色优先于发布者自带的角色，
// 来自旧进程实例的记录则被整体覆盖。
func mergeForPublish(existing, inst *Instance) *Instance {
	out := inst.Clone()
	if out.Role == "" {
		out.Role = RoleUnassigned
	}
	if existing != nil && existing.SameIncarnation(inst) &&
		existing.Role != "" && existing.Role != RoleUnassigned {
		out.Role = existing.Role
	}
	out.State = StateRunning
	return out
}

// placeholder 在记录尚未发布时由 SetRoleLabel 写入的占位记录
func placeholder(identity, pool string, role Role, incarnation time.Time) *Instance {
	return &Instance{
		Identity:  identity,
		Pool:      pool,
		Role:      role,
		CreatedAt: incarnation,
		State:     StatePending,
	}
}

// relabel 计算 SetRoleLabel 对已有记录写入的内容
//
// 已有记录来自本进程之前的实例（租约尚未过期）时，整条替换为本实例的占位记录，
// 否则随后同一实例的 Publish 会把角色当作旧实例的角色丢弃。
// 未配置 incarnation 时只修改角色。
func relabel(existing *Instance, role Role, incarnation time.Time) (out *Instance, replaced bool) {
	if !incarnation.IsZero() && !existing.CreatedAt.Equal(incarnation) {
		return placeholder(existing.Identity, existing.Pool, role, incarnation), true
	}
	out = existing.Clone()
	out.Role = role
	return out, false
}
