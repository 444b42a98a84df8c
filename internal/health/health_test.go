package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func probe(t *testing.T, h http.Handler, path string) (int, result) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("%s Content-Type = %q", path, ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("%s: decode JSON: %v", path, err)
	}
	return rec.Code, body
}

func mux(h *Handler) *http.ServeMux {
	m := http.NewServeMux()
	h.Register(m)
	return m
}

func pass(context.Context) error { return nil }

func failWith(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func TestHealthz(t *testing.T) {
	h := New(Checker{Name: "voice_store", Check: failWith("down")})
	h.started = time.Now().Add(-90 * time.Second)

	code, body := probe(t, mux(h), "/healthz")
	if code != http.StatusOK || body.Status != StatusOK {
		t.Errorf("healthz = %d %q, want 200 ok", code, body.Status)
	}
	if body.Uptime < 90 {
		t.Errorf("uptime = %v, want >= 90", body.Uptime)
	}
	if len(body.Checks) != 0 {
		t.Errorf("healthz should not run checks: %v", body.Checks)
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name     string
		checkers []Checker
		code     int
		status   string
		checks   map[string]string
	}{
		{
			name:   "no checkers",
			code:   http.StatusOK,
			status: StatusOK,
		},
		{
			name: "all pass",
			checkers: []Checker{
				{Name: "voice_store", Check: pass},
				{Name: "providers", Check: pass, Optional: true},
			},
			code:   http.StatusOK,
			status: StatusOK,
			checks: map[string]string{"voice_store": "ok", "providers": "ok"},
		},
		{
			name: "optional fails",
			checkers: []Checker{
				{Name: "voice_store", Check: pass},
				{Name: "providers", Check: failWith("circuit open: tts"), Optional: true},
			},
			code:   http.StatusOK,
			status: StatusDegraded,
			checks: map[string]string{"voice_store": "ok", "providers": "degraded: circuit open: tts"},
		},
		{
			name: "required fails",
			checkers: []Checker{
				{Name: "voice_store", Check: failWith("connection refused")},
				{Name: "providers", Check: failWith("circuit open: llm"), Optional: true},
			},
			code:   http.StatusServiceUnavailable,
			status: StatusFail,
			checks: map[string]string{"voice_store": "fail: connection refused", "providers": "degraded: circuit open: llm"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := probe(t, mux(New(tt.checkers...)), "/readyz")
			if code != tt.code || body.Status != tt.status {
				t.Errorf("readyz = %d %q, want %d %q", code, body.Status, tt.code, tt.status)
			}
			for name, want := range tt.checks {
				if got := body.Checks[name]; got != want {
					t.Errorf("checks[%s] = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestReadyz_Draining(t *testing.T) {
	h := New(Checker{Name: "voice_store", Check: pass})
	h.SetDraining()

	code, body := probe(t, mux(h), "/readyz")
	if code != http.StatusServiceUnavailable || body.Status != StatusDraining {
		t.Errorf("readyz = %d %q, want 503 draining", code, body.Status)
	}
	if code, _ := probe(t, mux(h), "/healthz"); code != http.StatusOK {
		t.Errorf("healthz while draining = %d, want 200", code)
	}
}

func TestReadyz_ChecksRunConcurrently(t *testing.T) {
	slow := func(ctx context.Context) error {
		select {
		case <-time.After(100 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h := New(
		Checker{Name: "a", Check: slow},
		Checker{Name: "b", Check: slow},
		Checker{Name: "c", Check: slow},
	)

	start := time.Now()
	code, _ := probe(t, mux(h), "/readyz")
	if code != http.StatusOK {
		t.Fatalf("readyz = %d", code)
	}
	if d := time.Since(start); d > 250*time.Millisecond {
		t.Errorf("readyz took %v; checks should run concurrently", d)
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	h := New(Checker{Name: "voice_store", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil).WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "context canceled") {
		t.Errorf("body should report cancellation: %s", rec.Body.String())
	}
}
