package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// mockHealthProbe implements HealthProbe for testing.
type mockHealthProbe struct {
	name     string
	checkErr error
	// delay blocks Check until it elapses or the context ends.
	delay  time.Duration
	panics bool
	called atomic.Bool
}

func (m *mockHealthProbe) Name() string { return m.name }

func (m *mockHealthProbe) Check(ctx context.Context) error {
	m.called.Store(true)
	if m.panics {
		panic("probe exploded")
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.checkErr
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func serveHealth(t *testing.T, probes ...HealthProbe) (*httptest.ResponseRecorder, healthResponse) {
	t.Helper()
	srv := newTestServer(t)
	srv.HealthProbes = probes

	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	return rec, resp
}

func TestHandleHealth_NoProbes(t *testing.T) {
	rec, resp := serveHealth(t)
	if rec.Code != http.StatusOK || resp.Status != "healthy" {
		t.Errorf("expected 200 healthy, got %d %s", rec.Code, resp.Status)
	}
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	db := DatabaseProbe{DB: fakePinger{}}
	other := &mockHealthProbe{name: "ssm"}

	rec, resp := serveHealth(t, db, other)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if resp.Components["database"].Status != "healthy" || resp.Components["ssm"].Status != "healthy" {
		t.Errorf("unexpected components: %+v", resp.Components)
	}
	if !other.called.Load() {
		t.Error("expected probe to be called")
	}
}

func TestHandleHealth_DatabaseDown(t *testing.T) {
	rec, resp := serveHealth(t, DatabaseProbe{DB: fakePinger{err: errors.New("connection refused")}})

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	c := resp.Components["database"]
	if c.Status != "unhealthy" || c.Message != "connection refused" {
		t.Errorf("unexpected database component: %+v", c)
	}
}

func TestHandleHealth_Timeout(t *testing.T) {
	slow := &mockHealthProbe{name: "slow", delay: 10 * time.Second}

	start := time.Now()
	rec, resp := serveHealth(t, slow)

	if elapsed := time.Since(start); elapsed > healthCheckTimeout+time.Second {
		t.Errorf("health check exceeded its budget: %v", elapsed)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if resp.Components["slow"].Status != "unhealthy" {
		t.Errorf("expected slow probe unhealthy, got %+v", resp.Components["slow"])
	}
}

func TestHandleHealth_ProbePanic(t *testing.T) {
	rec, resp := serveHealth(t, &mockHealthProbe{name: "boom", panics: true}, &mockHealthProbe{name: "ok"})

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if resp.Components["boom"].Status != "unhealthy" {
		t.Errorf("expected panicking probe unhealthy, got %+v", resp.Components["boom"])
	}
	if resp.Components["ok"].Status != "healthy" {
		t.Errorf("expected other probe healthy, got %+v", resp.Components["ok"])
	}
}
