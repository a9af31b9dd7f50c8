package testkit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceyewan/kvrole/metrics"
)

// NewRoleMetrics 返回一个启用的 Meter 及其上的角色指标集，用于断言指标取值
func NewRoleMetrics(t *testing.T) (metrics.Meter, *metrics.RoleMetrics) {
	t.Helper()
	meter, err := metrics.New(&metrics.Config{Enabled: true, ServiceName: "kvrole-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = meter.Shutdown(context.Background()) })

	rm, err := metrics.NewRoleMetrics(meter)
	require.NoError(t, err)
	return meter, rm
}

// Scrape 以 Prometheus 文本格式导出 Meter 当前的指标
func Scrape(t *testing.T, m metrics.Meter) string {
	t.Helper()
	rec := httptest.NewRecorder()
	metrics.Handler(m).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}
