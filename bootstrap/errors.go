package bootstrap

import "github.com/ceyewan/kvrole/xerrors"

var (
	// ErrReplicaAborted replica 在最大尝试次数内未能连上 primary
	ErrReplicaAborted = xerrors.WithCode(xerrors.New("bootstrap: replica could not reach primary"), xerrors.CodeAborted)

	// ErrInvalidConfig 无效的配置
	ErrInvalidConfig = xerrors.New("bootstrap: invalid config")

	// ErrTemplate 存储配置模板无法读取
	ErrTemplate = xerrors.New("bootstrap: store options template unavailable")

	// ErrMonitorConfig 监控配置无法解析
	ErrMonitorConfig = xerrors.New("bootstrap: malformed monitor config")

	// ErrHandoff 无法把进程交给存储服务
	ErrHandoff = xerrors.WithCode(xerrors.New("bootstrap: process handoff failed"), xerrors.CodeHandoff)
)
