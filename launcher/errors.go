package launcher

import "github.com/ceyewan/kvrole/xerrors"

var (
	// ErrInvalidConfig 应用配置无效，进程以退出码 2 结束
	ErrInvalidConfig = xerrors.WithCode(xerrors.New("launcher: invalid config"), xerrors.CodeConfig)

	// ErrSecretFile 密码文件无法读取
	ErrSecretFile = xerrors.WithCode(xerrors.New("launcher: cannot read secret file"), xerrors.CodeConfig)
)

// 进程退出码
const (
	ExitHandoff        = 0
	ExitReplicaAborted = 1
	ExitConfig         = 2
)
