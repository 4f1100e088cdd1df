package core

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"bizpulse/internal/types"
)

func decodeError(t *testing.T, body io.Reader) ErrorDetail {
	t.Helper()
	var resp APIErrorResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	return resp.Error
}

func TestMountRoutes_HealthEndpoint(t *testing.T) {
	srv := newTestServer(t, func(s *Server) {
		s.Authenticator = &MockAuthenticator{Err: types.NewAppError(types.ErrCodeAuthTokenInvalid, "bad", nil)}
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"version":"test"`) {
		t.Errorf("body should carry the build version: %s", rec.Body.String())
	}
}

func TestMountRoutes_NotFoundEnvelope(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if got := decodeError(t, rec.Body); got.Code != string(types.ErrCodeNotFoundRoute) {
		t.Errorf("code = %s", got.Code)
	}
}

func TestMountRoutes_MethodNotAllowedEnvelope(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/health", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if got := decodeError(t, rec.Body); got.Code != string(types.ErrCodeMethodNotAllowed) {
		t.Errorf("code = %s", got.Code)
	}
}

func TestMountRoutes_MetricsEndpoint(t *testing.T) {
	t.Run("mounted when handler set", func(t *testing.T) {
		srv := newTestServer(t, func(s *Server) {
			s.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("# metrics"))
			})
		})
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "# metrics" {
			t.Errorf("got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("absent otherwise", func(t *testing.T) {
		srv := newTestServer(t, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestMountRoutes_SecurityHeaders(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
}

func TestMountRoutes_RecovererCatchesPanics(t *testing.T) {
	srv := newTestServer(t, func(s *Server) {
		s.V1RouteRegistrars = append(s.V1RouteRegistrars, func(r chi.Router) {
			r.Get("/boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/boom", nil)
	req.Header.Set("X-Request-Id", "req-panic")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	got := decodeError(t, rec.Body)
	if got.Code != string(types.ErrCodeInternalUnexpected) || got.RequestID != "req-panic" {
		t.Errorf("unexpected envelope: %+v", got)
	}
}

func TestMountRoutes_RecovererReportsGeneratedRequestID(t *testing.T) {
	srv := newTestServer(t, func(s *Server) {
		s.V1RouteRegistrars = append(s.V1RouteRegistrars, func(r chi.Router) {
			r.Get("/boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })
		})
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	got := decodeError(t, rec.Body)
	if got.RequestID == "" || got.RequestID != rec.Header().Get("X-Request-Id") {
		t.Errorf("request id = %q, header = %q", got.RequestID, rec.Header().Get("X-Request-Id"))
	}
}

func TestMountRoutes_MetricsUseRoutePattern(t *testing.T) {
	metrics := &MockMetricsCollector{}
	srv := newTestServer(t, func(s *Server) {
		s.Metrics = metrics
		s.V1RouteRegistrars = append(s.V1RouteRegistrars, func(r chi.Router) {
			r.Get("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		})
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/products/prd_123", nil))

	recorded := metrics.Recorded()
	if len(recorded) != 1 {
		t.Fatalf("recorded %d requests, want 1", len(recorded))
	}
	if recorded[0].Endpoint != "/v1/products/{id}" {
		t.Errorf("endpoint = %q, want route pattern", recorded[0].Endpoint)
	}
	if recorded[0].Status != "204" || recorded[0].Method != http.MethodGet {
		t.Errorf("unexpected record: %+v", recorded[0])
	}
}

func TestMountRoutes_CompressesLargeResponses(t *testing.T) {
	payload := strings.Repeat("revenue ", 1024)
	srv := newTestServer(t, func(s *Server) {
		s.V1RouteRegistrars = append(s.V1RouteRegistrars, func(r chi.Router) {
			r.Get("/big", func(w http.ResponseWriter, r *http.Request) {
				Success(w, r, http.StatusOK, payload)
			})
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/big", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", rec.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	body, _ := io.ReadAll(zr)
	if !strings.Contains(string(body), "revenue revenue") {
		t.Error("decompressed body does not contain the payload")
	}
}

func TestRequestIDMiddleware_Generation(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if len(seen) != 32 {
		t.Errorf("generated id %q should be 32 hex chars", seen)
	}
	if rec.Header().Get("X-Request-Id") != seen {
		t.Error("response header should echo the generated id")
	}
}

func TestRequestIDMiddleware_Propagation(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "client-id-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "client-id-1" {
		t.Errorf("request id = %q, want client-id-1", seen)
	}
}

func TestContextTimeoutMiddleware_SetsDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := ContextTimeoutMiddleware(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !ok {
		t.Fatal("expected a deadline on the request context")
	}
	if time.Until(deadline) > time.Minute {
		t.Errorf("deadline too far in the future: %v", deadline)
	}
}
