package config

import "github.com/ceyewan/kvrole/xerrors"

var (
	// ErrValidationFailed 配置验证失败
	ErrValidationFailed = xerrors.New("configuration validation failed")

	// ErrNotLoaded 在 Load 之前调用 Watch
	ErrNotLoaded = xerrors.New("configuration not loaded")
)

// IsValidationError 检查错误是否为配置验证失败
func IsValidationError(err error) bool {
	return xerrors.Is(err, ErrValidationFailed)
}
