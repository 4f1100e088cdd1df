package types

// Metric names exported on /metrics. All components use these constants.
const (
	MetricHTTPRequests        = "http_requests_total"
	MetricHTTPRequestDuration = "http_request_duration_seconds"
	MetricPaymentsProcessed   = "payments_processed_total"
	MetricInsightsGenerated   = "insights_generated_total"
	MetricExternalAPIFailure  = "external_api_failures_total"

	LabelMethod   = "method"
	LabelEndpoint = "endpoint"
	LabelStatus   = "status"
	LabelProvider = "provider"
	LabelSource   = "source"

	DefaultMetricNamespace = "bizpulse"
)
