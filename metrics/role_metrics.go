package metrics

import (
	"context"
	"time"

	"github.com/ceyewan/kvrole/xerrors"
)

var defaultProbeDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// RoleMetrics 封装角色决策与启动过程的指标集
//
// nil *RoleMetrics 的所有方法都是空操作，组件未注入指标时可以直接调用。
type RoleMetrics struct {
	outcomes       Counter
	anomalies      Counter
	probeAttempts  Counter
	probeDuration  Histogram
	registryErrors Counter
	publisherSyncs Counter
}

// NewRoleMetrics 基于 Meter 创建角色指标集
func NewRoleMetrics(m Meter) (*RoleMetrics, error) {
	if m == nil {
		return nil, ErrNilMeter
	}

	rm := &RoleMetrics{}
	var err error

	if rm.outcomes, err = m.Counter(MetricElectionOutcomes, "Election outcomes by resolved role."); err != nil {
		return nil, xerrors.Wrap(err, "create election outcomes counter")
	}
	if rm.anomalies, err = m.Counter(MetricPrimaryAnomalies, "Resolutions that observed more than one running primary."); err != nil {
		return nil, xerrors.Wrap(err, "create primary anomalies counter")
	}
	if rm.probeAttempts, err = m.Counter(MetricProbeAttempts, "Readiness probe attempts by bootstrap path and result."); err != nil {
		return nil, xerrors.Wrap(err, "create probe attempts counter")
	}
	if rm.probeDuration, err = m.Histogram(MetricProbeDurationSecs, "Readiness probe duration in seconds.",
		WithUnit("s"), WithBuckets(defaultProbeDurationBuckets)); err != nil {
		return nil, xerrors.Wrap(err, "create probe duration histogram")
	}
	if rm.registryErrors, err = m.Counter(MetricRegistryErrors, "Registry operation failures by operation."); err != nil {
		return nil, xerrors.Wrap(err, "create registry errors counter")
	}
	if rm.publisherSyncs, err = m.Counter(MetricPublisherSyncs, "Label publisher sync rounds by role and result."); err != nil {
		return nil, xerrors.Wrap(err, "create publisher syncs counter")
	}

	return rm, nil
}

// ElectionOutcome 记录一次角色决策结果
func (rm *RoleMetrics) ElectionOutcome(ctx context.Context, outcome string) {
	if rm == nil {
		return
	}
	rm.outcomes.Inc(ctx, L(LabelOutcome, outcome))
}

// PrimaryAnomaly 记录一次多主异常
func (rm *RoleMetrics) PrimaryAnomaly(ctx context.Context) {
	if rm == nil {
		return
	}
	rm.anomalies.Inc(ctx)
}

// ProbeAttempt 记录一次探测的结果和耗时
func (rm *RoleMetrics) ProbeAttempt(ctx context.Context, path string, ok bool, elapsed time.Duration) {
	if rm == nil {
		return
	}
	labels := []Label{L(LabelPath, path), L(LabelResult, Result(ok))}
	rm.probeAttempts.Inc(ctx, labels...)
	rm.probeDuration.Record(ctx, elapsed.Seconds(), labels...)
}

// RegistryError 记录一次注册中心操作失败
func (rm *RoleMetrics) RegistryError(ctx context.Context, operation string) {
	if rm == nil {
		return
	}
	rm.registryErrors.Inc(ctx, L(LabelOperation, operation))
}

// PublisherSync 记录一次 label publisher 同步
func (rm *RoleMetrics) PublisherSync(ctx context.Context, role string, ok bool) {
	if rm == nil {
		return
	}
	rm.publisherSyncs.Inc(ctx, L(LabelRole, role), L(LabelResult, Result(ok)))
}
