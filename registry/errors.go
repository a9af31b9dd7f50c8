package registry

import "github.com/ceyewan/kvrole/xerrors"

var (
	// ErrRegistryClosed registry 已关闭
	ErrRegistryClosed = xerrors.New("registry is closed")

	// ErrInvalidInstance 无效的实例
	ErrInvalidInstance = xerrors.New("invalid instance")

	// ErrInvalidRole 无效的角色标签
	ErrInvalidRole = xerrors.New("invalid role")

	// ErrInvalidConfig 无效的配置
	ErrInvalidConfig = xerrors.New("invalid registry config")

	// ErrConflict 读改写在重试次数内未能提交
	ErrConflict = xerrors.New("registry write conflict")
)
