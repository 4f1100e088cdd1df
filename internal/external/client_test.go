package external

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"bizpulse/internal/types"
)

// noopSleep is a sleep function that does nothing, for fast tests.
func noopSleep(time.Duration) {}

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{MaxRetries: retries, MinWait: time.Millisecond, MaxWait: 10 * time.Millisecond}
}

func newTestClient(t *testing.T, policy RetryPolicy, opts ...BaseClientOption) *BaseClient {
	t.Helper()
	opts = append([]BaseClientOption{WithSleepFunc(noopSleep)}, opts...)
	return NewBaseClient(&http.Client{Timeout: 5 * time.Second}, "test-upstream", policy, "BizPulse-Test/1.0", opts...)
}

type countingRecorder struct {
	mu        sync.Mutex
	providers []string
}

func (r *countingRecorder) RecordExternalFailure(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, provider)
}

func appErrorCode(t *testing.T, err error) types.ErrorCode {
	t.Helper()
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	return appErr.Code
}

func TestDo_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := newTestClient(t, DefaultRetryPolicy())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"status":"ok"}` {
		t.Errorf("body = %q", body)
	}
}

func TestDo_PropagatesRequestIDAndUserAgent(t *testing.T) {
	var gotID, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Request-Id")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, DefaultRetryPolicy())
	ctx := types.WithRequestID(context.Background(), "req-123")
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if gotID != "req-123" {
		t.Errorf("X-Request-Id = %q, want req-123", gotID)
	}
	if gotUA != "BizPulse-Test/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestDo_NoRequestIDWhenNotInContext(t *testing.T) {
	var had bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, had = r.Header["X-Request-Id"]
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, DefaultRetryPolicy())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if had {
		t.Error("X-Request-Id should not be set without a request id in context")
	}
}

func TestDo_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, fastPolicy(3))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestDo_ExhaustedRetriesOn500(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	rec := &countingRecorder{}
	client := newTestClient(t, fastPolicy(2), WithFailureRecorder(rec))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := client.Do(req)
	if resp != nil {
		t.Error("expected nil response on failure")
	}
	if code := appErrorCode(t, err); code != types.ErrCodeUpstreamUnavailable {
		t.Errorf("code = %s, want %s", code, types.ErrCodeUpstreamUnavailable)
	}
	if !strings.Contains(err.Error(), "returned 500 after retries") {
		t.Errorf("message = %q", err.Error())
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if len(rec.providers) != 1 || rec.providers[0] != "test-upstream" {
		t.Errorf("recorded failures = %v", rec.providers)
	}
}

func TestDo_ExhaustedRetriesOn429ReturnsRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, fastPolicy(1))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := client.Do(req)

	if code := appErrorCode(t, err); code != types.ErrCodeUpstreamRateLimited {
		t.Errorf("code = %s, want %s", code, types.ErrCodeUpstreamRateLimited)
	}
}

func TestDo_4xxNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	rec := &countingRecorder{}
	client := newTestClient(t, fastPolicy(3), WithFailureRecorder(rec))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("4xx should be returned to the caller, got error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if len(rec.providers) != 0 {
		t.Errorf("4xx should not be recorded as failure, got %v", rec.providers)
	}
}

func TestDo_RespectsRetryAfterHeader(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-upstream",
		RetryPolicy{MaxRetries: 2, MinWait: time.Millisecond, MaxWait: 10 * time.Second},
		"",
		WithSleepFunc(func(d time.Duration) { slept = append(slept, d) }),
	)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Errorf("sleeps = %v, want [2s]", slept)
	}
}

func TestDo_RetryAfterCappedByMaxWait(t *testing.T) {
	client := newTestClient(t, RetryPolicy{MaxRetries: 1, MinWait: time.Millisecond, MaxWait: 3 * time.Second})
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"120"}}}

	if got := client.computeBackoff(0, resp); got != 3*time.Second {
		t.Errorf("backoff = %v, want 3s", got)
	}
}

func TestComputeBackoff_StaysWithinBounds(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, MinWait: 100 * time.Millisecond, MaxWait: time.Second}
	client := newTestClient(t, policy)

	for attempt := 0; attempt < 6; attempt++ {
		got := client.computeBackoff(attempt, nil)
		if got < policy.MinWait || got > policy.MaxWait {
			t.Errorf("attempt %d: backoff %v outside [%v, %v]", attempt, got, policy.MinWait, policy.MaxWait)
		}
	}
}

func TestDo_PostBodyPreservedAcrossRetries(t *testing.T) {
	var calls atomic.Int32
	var bodies []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, fastPolicy(2))
	req, _ := http.NewRequest(http.MethodPost, server.URL, strings.NewReader("mode=payment"))
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if len(bodies) != 2 || bodies[0] != "mode=payment" || bodies[1] != "mode=payment" {
		t.Errorf("bodies = %v", bodies)
	}
}

func TestDo_CircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	settings := NewBreakerSettings("gemini")
	settings.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 }
	breaker := gobreaker.NewCircuitBreaker[*http.Response](settings)
	client := NewBaseClientWithBreaker(&http.Client{Timeout: 5 * time.Second}, breaker, fastPolicy(0), "", WithSleepFunc(noopSleep))

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		if _, err := client.Do(req); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := client.Do(req)
	if code := appErrorCode(t, err); code != types.ErrCodeUpstreamUnavailable {
		t.Errorf("code = %s, want %s", code, types.ErrCodeUpstreamUnavailable)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected wrapped ErrOpenState, got %v", err)
	}
	if !strings.Contains(err.Error(), "gemini is temporarily unavailable") {
		t.Errorf("message = %q", err.Error())
	}
	if calls.Load() != 2 {
		t.Errorf("open breaker should short-circuit, server saw %d calls", calls.Load())
	}
}

func TestDo_NetworkErrorMapsToUpstreamUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t, fastPolicy(1))
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	_, err := client.Do(req)

	if code := appErrorCode(t, err); code != types.ErrCodeUpstreamUnavailable {
		t.Errorf("code = %s, want %s", code, types.ErrCodeUpstreamUnavailable)
	}
}

func TestDo_CancelledContextStopsRetries(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		cancel()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, fastPolicy(5))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	_, err := client.Do(req)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxRetries != 3 || p.MinWait != 500*time.Millisecond || p.MaxWait != 10*time.Second {
		t.Errorf("unexpected default policy: %+v", p)
	}
}

func TestNewBreakerSettings_TripsAfterFiveConsecutiveFailures(t *testing.T) {
	s := NewBreakerSettings("stripe")
	if s.Name != "stripe" {
		t.Errorf("name = %q", s.Name)
	}
	if s.ReadyToTrip(gobreaker.Counts{ConsecutiveFailures: 5}) {
		t.Error("should not trip at 5 consecutive failures")
	}
	if !s.ReadyToTrip(gobreaker.Counts{ConsecutiveFailures: 6}) {
		t.Error("should trip at 6 consecutive failures")
	}
	if s.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", s.Timeout)
	}
}
