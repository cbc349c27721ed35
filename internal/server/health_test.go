package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ---------------------------------------------------------------------------
// Fake Pinger for readiness tests
// ---------------------------------------------------------------------------

// fakePinger is a test double for the Pinger interface.
type fakePinger struct {
	// name is returned by Name().
	name string
	// err is returned by Ping(); nil means healthy.
	err error
	// delay is slept before answering.
	delay time.Duration
	// calls counts Ping invocations.
	calls atomic.Int32
}

func (f *fakePinger) Name() string { return f.name }

func (f *fakePinger) Ping(ctx context.Context) error {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

// newReadyTestServer builds a *Server with the given pingers wired in.
func newReadyTestServer(t *testing.T, pingers ...Pinger) *Server {
	t.Helper()
	s := newTestServer(t, &fakeRunner{}, nil)
	s.pingers = pingers
	return s
}

// ---------------------------------------------------------------------------
// GET /api/health: liveness
// ---------------------------------------------------------------------------

// TestHandleHealth_OK verifies that GET /api/health returns 200 with the
// status and build version, without probing any dependency.
func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	p := &fakePinger{name: "completion", err: errors.New("down")}
	s := newReadyTestServer(t, p)

	w := do(t, s, http.MethodGet, "/api/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d, body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if body["status"] != "ok" || body["version"] == "" {
		t.Errorf("unexpected body: %v", body)
	}
	if p.calls.Load() != 0 {
		t.Error("liveness must not probe dependencies")
	}
}

// ---------------------------------------------------------------------------
// GET /api/ready: readiness
// ---------------------------------------------------------------------------

func TestHandleReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		errs       map[string]error
		wantStatus int
		wantReady  bool
	}{
		{
			name:       "no pingers",
			wantStatus: http.StatusOK,
			wantReady:  true,
		},
		{
			name:       "all healthy",
			errs:       map[string]error{"azure-search": nil, "completion": nil},
			wantStatus: http.StatusOK,
			wantReady:  true,
		},
		{
			name:       "search down",
			errs:       map[string]error{"azure-search": errors.New("index \"docs\": HTTP 403"), "completion": nil},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "all down",
			errs:       map[string]error{"azure-search": errors.New("timeout"), "completion": errors.New("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var pingers []Pinger
			for _, name := range []string{"azure-search", "completion"} {
				if err, ok := tc.errs[name]; ok {
					pingers = append(pingers, &fakePinger{name: name, err: err})
				}
			}
			s := newReadyTestServer(t, pingers...)

			w := do(t, s, http.MethodGet, "/api/ready", "")

			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d, body: %s", tc.wantStatus, w.Code, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type: expected application/json, got %q", ct)
			}

			var resp readyResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Ready != tc.wantReady {
				t.Errorf("ready = %v, want %v", resp.Ready, tc.wantReady)
			}
			if len(resp.Checks) != len(pingers) {
				t.Fatalf("expected %d checks, got %d", len(pingers), len(resp.Checks))
			}
			for i, c := range resp.Checks {
				if c.Name != pingers[i].Name() {
					t.Errorf("check[%d] = %q, want registration order", i, c.Name)
				}
				wantErr := tc.errs[c.Name]
				if c.OK != (wantErr == nil) {
					t.Errorf("check %q: ok = %v", c.Name, c.OK)
				}
				if wantErr != nil && c.Error != wantErr.Error() {
					t.Errorf("check %q: error = %q, want %q", c.Name, c.Error, wantErr.Error())
				}
			}
		})
	}
}

// TestHandleReady_ProbesRunConcurrently verifies two slow probes finish in
// roughly the time of one.
func TestHandleReady_ProbesRunConcurrently(t *testing.T) {
	t.Parallel()

	const delay = 200 * time.Millisecond
	s := newReadyTestServer(t,
		&fakePinger{name: "azure-search", delay: delay},
		&fakePinger{name: "completion", delay: delay},
	)

	start := time.Now()
	w := do(t, s, http.MethodGet, "/api/ready", "")
	elapsed := time.Since(start)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if elapsed >= 2*delay {
		t.Errorf("probes took %v, expected them to overlap", elapsed)
	}

	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, c := range resp.Checks {
		if c.LatencyMS < delay.Milliseconds()/2 {
			t.Errorf("check %q latency = %dms, want about %dms", c.Name, c.LatencyMS, delay.Milliseconds())
		}
	}
}

// TestHandleReady_DependencyUpGauge verifies each probe result is exported.
func TestHandleReady_DependencyUpGauge(t *testing.T) {
	t.Parallel()

	s := newReadyTestServer(t,
		&fakePinger{name: "azure-search"},
		&fakePinger{name: "completion", err: errors.New("401")},
	)
	reg, ok := s.cfg.MetricsGatherer.(*prometheus.Registry)
	if !ok {
		t.Fatal("expected an isolated registry")
	}

	do(t, s, http.MethodGet, "/api/ready", "")

	for name, want := range map[string]float64{"azure-search": 1, "completion": 0} {
		m := findMetric(t, reg, "ragchat_dependency_up", map[string]string{"dependency": name})
		if m == nil {
			t.Fatalf("ragchat_dependency_up{dependency=%q} not found", name)
		}
		if got := m.GetGauge().GetValue(); got != want {
			t.Errorf("dependency %q up = %v, want %v", name, got, want)
		}
	}
}
