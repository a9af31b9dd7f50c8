package registry

import (
	"strings"
	"time"

	"github.com/ceyewan/kvrole/xerrors"
)

// Role 实例在复制拓扑中的角色标签
type Role string

const (
	RolePrimary    Role = "primary"
	RoleWitness    Role = "witness"
	RoleReplica    Role = "replica"
	RoleUnassigned Role = "unassigned"
)

// ParseRole 解析角色标签，空字符串视为 unassigned
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RolePrimary, RoleWitness, RoleReplica, RoleUnassigned:
		return r, nil
	case "":
		return RoleUnassigned, nil
	default:
		return "", xerrors.Wrapf(ErrInvalidRole, "%q", s)
	}
}

// State 注册中心观测到的实例存活状态
type State string

const (
	StateRunning State = "running"
	StatePending State = "pending"
	StateUnknown State = "unknown"
)

// Instance 代表池中的一个实例
//
// Identity 和 Address 一旦写入不再变化，Role 可变。
// CreatedAt 是本次进程实例（incarnation）的启动时间，只用于选举排序。
type Instance struct {
	Identity  string    `json:"identity"`
	Pool      string    `json:"pool"`
	Address   string    `json:"address,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	State     State     `json:"state"`
}

// Clone 返回实例的副本
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// SameIncarnation 判断两条记录是否来自同一个进程实例
func (i *Instance) SameIncarnation(other *Instance) bool {
	if i == nil || other == nil {
		return false
	}
	return i.Identity == other.Identity && i.CreatedAt.Equal(other.CreatedAt)
}

func (i *Instance) validate() error {
	if i == nil || i.Identity == "" {
		return xerrors.Wrap(ErrInvalidInstance, "identity is required")
	}
	if strings.Contains(i.Identity, "/") {
		return xerrors.Wrapf(ErrInvalidInstance, "identity %q contains '/'", i.Identity)
	}
	return nil
}

// Selector 实例过滤条件
//
// Pool 为空时使用 Registry 配置的默认池；Role 为空表示不按角色过滤。
type Selector struct {
	Pool string
	Role Role
}

// matches 判断实例是否满足角色条件（池已由存储前缀保证）
func (s Selector) matches(inst *Instance) bool {
	return s.Role == "" || inst.Role == s.Role
}
