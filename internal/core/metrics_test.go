package core

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"bizpulse/internal/types"
)

func TestPrometheusMetrics_RecordAndExpose(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics("bizpulse", reg)

	m.RecordRequest(http.MethodGet, "/v1/analytics", "200", 150*time.Millisecond)
	m.RecordRequest(http.MethodGet, "/v1/analytics", "200", 50*time.Millisecond)
	m.RecordPayment("Hardcoded-Payment-Simulator", types.PaymentSucceeded)
	m.RecordInsight("rules")
	m.RecordExternalFailure("gemini")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	counts := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				counts[f.GetName()] += c.GetValue()
			}
		}
	}
	if counts["bizpulse_http_requests_total"] != 2 {
		t.Errorf("http_requests_total = %v, want 2", counts["bizpulse_http_requests_total"])
	}
	for _, name := range []string{"bizpulse_payments_processed_total", "bizpulse_insights_generated_total", "bizpulse_external_api_failures_total"} {
		if counts[name] != 1 {
			t.Errorf("%s = %v, want 1", name, counts[name])
		}
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `bizpulse_http_request_duration_seconds_count{endpoint="/v1/analytics",method="GET"} 2`) {
		t.Errorf("exposition missing duration histogram:\n%s", body)
	}
}

func TestPrometheusMetrics_DefaultNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics("", reg)
	m.RecordInsight("ai")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	if len(families) != 1 || families[0].GetName() != "bizpulse_insights_generated_total" {
		t.Errorf("unexpected families: %v", families)
	}
}
