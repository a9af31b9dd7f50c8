package election

import (
	"github.com/ceyewan/kvrole/registry"
	"github.com/ceyewan/kvrole/xerrors"
)

// Kind 选举结果类型
type Kind int

const (
	BecomePrimary Kind = iota + 1
	BecomeReplica
	BecomeWitness
)

func (k Kind) String() string {
	switch k {
	case BecomePrimary:
		return "primary"
	case BecomeReplica:
		return "replica"
	case BecomeWitness:
		return "witness"
	default:
		return "unknown"
	}
}

// Role 返回结果对应的角色标签
func (k Kind) Role() registry.Role {
	switch k {
	case BecomePrimary:
		return registry.RolePrimary
	case BecomeReplica:
		return registry.RoleReplica
	case BecomeWitness:
		return registry.RoleWitness
	default:
		return registry.RoleUnassigned
	}
}

// Outcome 一次角色决策的结果，进程内计算一次，之后不再修改
//
// 只有 BecomeReplica 携带 Target，即要连接的 primary 地址。
type Outcome struct {
	Kind   Kind
	Target string
}

func (o Outcome) String() string {
	if o.Target == "" {
		return o.Kind.String()
	}
	return o.Kind.String() + "(" + o.Target + ")"
}

// Override 运维人员指定的角色，跳过选举
type Override string

const (
	OverrideNone    Override = ""
	OverridePrimary Override = "primary"
	OverrideWitness Override = "witness"
)

// ParseOverride 解析角色覆盖，primary 和 witness 同时设置时报错
func ParseOverride(primary, witness bool) (Override, error) {
	switch {
	case primary && witness:
		return OverrideNone, xerrors.Wrap(ErrInvalidOverride, "role.primary and role.witness are mutually exclusive")
	case primary:
		return OverridePrimary, nil
	case witness:
		return OverrideWitness, nil
	default:
		return OverrideNone, nil
	}
}

func (o Override) validate() error {
	switch o {
	case OverrideNone, OverridePrimary, OverrideWitness:
		return nil
	default:
		return xerrors.Wrapf(ErrInvalidOverride, "%q", string(o))
	}
}
