package election

import "github.com/ceyewan/kvrole/xerrors"

var (
	// ErrInvalidConfig 无效的配置
	ErrInvalidConfig = xerrors.New("election: invalid config")

	// ErrInvalidOverride 无效的角色覆盖
	ErrInvalidOverride = xerrors.New("election: invalid override")
)
