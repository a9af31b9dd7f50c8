package metrics

const (
	// 常见的标签
	LabelOutcome   = "outcome"
	LabelPath      = "path"
	LabelResult    = "result"
	LabelOperation = "operation"
	LabelRole      = "role"
)

const (
	// 常见的结果
	ResultSuccess = "success"
	ResultFailure = "failure"
)

const (
	MetricElectionOutcomes  = "kvrole_election_outcomes_total"
	MetricPrimaryAnomalies  = "kvrole_primary_anomalies_total"
	MetricProbeAttempts     = "kvrole_probe_attempts_total"
	MetricRegistryErrors    = "kvrole_registry_errors_total"
	MetricPublisherSyncs    = "kvrole_publisher_syncs_total"
	MetricProbeDurationSecs = "kvrole_probe_duration_seconds"
)

// Result 将布尔结果映射为 success/failure 标签值
func Result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}
