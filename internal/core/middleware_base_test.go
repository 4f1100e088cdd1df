package core

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("wildcard echoes origin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/products", nil)
		req.Header.Set("Origin", "https://app.example.com")
		NewCORSMiddleware([]string{"*"})(next).ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
			t.Errorf("Allow-Origin = %q", got)
		}
		if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("credentials should be allowed")
		}
	})

	t.Run("unlisted origin gets no headers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/products", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		NewCORSMiddleware([]string{"https://app.example.com/"})(next).ServeHTTP(rec, req)

		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("unlisted origin should not be allowed")
		}
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, request should still be served", rec.Code)
		}
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/v1/products", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		NewCORSMiddleware([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("preflight should not reach the handler")
		})).ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
	})
}

func TestRequestLogger_RedactsHeaders(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := RequestLogger(logger, []string{"Authorization", "Cookie"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/products/prd_1", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set("Cookie", "token=secret-cookie")
	req.Header.Set("User-Agent", "bizpulse-test")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Contains(out, "secret-token") || strings.Contains(out, "secret-cookie") {
		t.Errorf("credentials leaked into log: %s", out)
	}
	if !strings.Contains(out, `"level":"WARN"`) {
		t.Errorf("4xx should log at warn: %s", out)
	}
	if !strings.Contains(out, `"status":404`) || !strings.Contains(out, "bizpulse-test") {
		t.Errorf("missing fields in log: %s", out)
	}
}

func TestExtractClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := extractClientIP(req); got != "10.0.0.1" {
		t.Errorf("got %q, want 10.0.0.1", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")
	if got := extractClientIP(req); got != "203.0.113.9" {
		t.Errorf("got %q, want 203.0.113.9", got)
	}
}

func TestWriteJSON_Escapes(t *testing.T) {
	rec := httptest.NewRecorder()
	_ = writeJSON(rec, APIErrorResponse{Error: ErrorDetail{Code: "c", Message: `say "hi"` + "\n", RequestID: "r"}})
	want := `{"error":{"code":"c","message":"say \"hi\"\n","request_id":"r"}}`
	if rec.Body.String() != want {
		t.Errorf("got %s\nwant %s", rec.Body.String(), want)
	}
}
