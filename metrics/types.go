// Package metrics 为 kvrole 提供统一的指标收集能力。
// 基于 OpenTelemetry 构建，通过 Prometheus exporter 暴露，提供 Counter、Gauge、Histogram 接口。
//
// 未启用时 New 返回 noop Meter，调用方无需判空：
//
//	meter, err := metrics.New(&metrics.Config{Enabled: true, Port: 9090})
//	if err != nil {
//	    return err
//	}
//	defer meter.Shutdown(ctx)
//
//	rm, _ := metrics.NewRoleMetrics(meter)
//	rm.ElectionOutcome(ctx, "replica")
package metrics

import "context"

// Counter 计数器接口，记录只增不减的累计值
type Counter interface {
	// Inc 将计数器增加 1
	Inc(ctx context.Context, labels ...Label)

	// Add 将计数器增加给定的值，负数会被忽略
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 仪表盘接口，记录可以任意增减的瞬时值
type Gauge interface {
	// Set 将 gauge 设置为给定的值
	Set(ctx context.Context, val float64, labels ...Label)

	// Inc 将 gauge 增加 1
	Inc(ctx context.Context, labels ...Label)

	// Dec 将 gauge 减少 1
	Dec(ctx context.Context, labels ...Label)
}

// Histogram 直方图接口，记录值的分布情况
type Histogram interface {
	// Record 在直方图中记录一个值
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标创建工厂接口
//
// Meter 创建的指标是并发安全的。
type Meter interface {
	// Counter 创建计数器实例，name 应符合 Prometheus 命名规范（如 kvrole_probe_attempts_total）
	Counter(name string, desc string, opts ...MetricOption) (Counter, error)

	// Gauge 创建仪表盘实例
	Gauge(name string, desc string, opts ...MetricOption) (Gauge, error)

	// Histogram 创建直方图实例
	Histogram(name string, desc string, opts ...MetricOption) (Histogram, error)

	// Shutdown 关闭 Meter 和指标 HTTP 服务器，刷新所有指标
	Shutdown(ctx context.Context) error
}

// MetricOption 指标配置选项函数类型
type MetricOption func(*MetricOptions)

// MetricOptions 指标选项
type MetricOptions struct {
	// Unit 指标的单位，建议使用 UCUM 单位代码（如 "s"、"By"）
	Unit string

	// Buckets 直方图的显式桶边界，仅对 Histogram 生效
	Buckets []float64
}

// WithUnit 设置指标的单位
func WithUnit(unit string) MetricOption {
	return func(o *MetricOptions) {
		o.Unit = unit
	}
}

// WithBuckets 设置直方图的桶边界
func WithBuckets(buckets []float64) MetricOption {
	return func(o *MetricOptions) {
		o.Buckets = append([]float64(nil), buckets...)
	}
}
