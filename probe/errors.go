package probe

import "github.com/ceyewan/kvrole/xerrors"

var (
	// ErrUnreachable 目标实例不可达
	ErrUnreachable = xerrors.New("probe: instance unreachable")

	// ErrUnknownRole INFO replication 中的 role 无法识别
	ErrUnknownRole = xerrors.New("probe: unknown replication role")

	// ErrInvalidAddress 地址格式错误
	ErrInvalidAddress = xerrors.New("probe: invalid address")
)
