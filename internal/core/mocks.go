package core

import (
	"context"
	"sync"
	"time"

	"bizpulse/internal/types"
)

// MockAuthenticator implements Authenticator for tests in this and other
// packages.
//
//	mock := &MockAuthenticator{Actor: &types.Actor{ID: "usr_1", Role: types.RoleUser}}
//
// To simulate a failure set Err instead.
type MockAuthenticator struct {
	// Actor is returned on success. With Actor and Err both nil,
	// ResolveToken returns (nil, nil).
	Actor *types.Actor

	// Err takes precedence over Actor.
	Err error

	// ResolveTokenFunc overrides Actor and Err when set.
	ResolveTokenFunc func(ctx context.Context, token string) (*types.Actor, error)

	mu    sync.Mutex
	Calls []string
}

// ResolveToken implements Authenticator.
func (m *MockAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, token)
	m.mu.Unlock()

	if m.ResolveTokenFunc != nil {
		return m.ResolveTokenFunc(ctx, token)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Actor, nil
}

// CallCount returns the number of ResolveToken calls.
func (m *MockAuthenticator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// RecordedRequest is one call captured by MockMetricsCollector.
type RecordedRequest struct {
	Method   string
	Endpoint string
	Status   string
	Duration time.Duration
}

// MockMetricsCollector records RecordRequest calls.
type MockMetricsCollector struct {
	mu       sync.Mutex
	Requests []RecordedRequest
}

// RecordRequest implements MetricsCollector.
func (m *MockMetricsCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, RecordedRequest{Method: method, Endpoint: endpoint, Status: status, Duration: duration})
}

// Recorded returns a copy of the recorded calls.
func (m *MockMetricsCollector) Recorded() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.Requests...)
}
