package metrics

import "github.com/ceyewan/kvrole/xerrors"

var (
	// ErrInvalidConfig 指标配置无效
	ErrInvalidConfig = xerrors.New("metrics: invalid config")

	// ErrNilMeter 未提供 Meter
	ErrNilMeter = xerrors.New("metrics: meter is nil")
)
