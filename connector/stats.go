package connector

import (
	"context"

	"github.com/ceyewan/kvrole/metrics"
)

const metricConnectAttempts = "kvrole_connector_connect_total"

// connectStats 记录连接尝试次数，按连接器类型、名称和结果分组
type connectStats struct {
	kind     string
	name     string
	attempts metrics.Counter
}

func newConnectStats(meter metrics.Meter, kind, name string) (*connectStats, error) {
	c, err := meter.Counter(metricConnectAttempts, "Connector connect attempts by kind and result.")
	if err != nil {
		return nil, err
	}
	return &connectStats{kind: kind, name: name, attempts: c}, nil
}

func (s *connectStats) record(ctx context.Context, ok bool) {
	s.attempts.Inc(ctx,
		metrics.L("connector", s.kind),
		metrics.L("name", s.name),
		metrics.L(metrics.LabelResult, metrics.Result(ok)),
	)
}
