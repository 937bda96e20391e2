package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func pass(context.Context) error { return nil }

func failWith(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

// probe serves path through a mux built by Register.
func probe(t *testing.T, h *Handler, path string) (int, Report) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("%s Content-Type = %q", path, ct)
	}
	var rep Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("%s: decode: %v", path, err)
	}
	return rec.Code, rep
}

func TestHealthz_IgnoresChecks(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "store", Check: failWith("down")})
	code, rep := probe(t, h, "/healthz")
	if code != http.StatusOK || rep.Status != StatusOK || len(rep.Checks) != 0 {
		t.Errorf("/healthz = %d %+v", code, rep)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		checkers []Checker
		code     int
		checks   map[string]string
	}{
		{
			name: "no checks",
			code: http.StatusOK,
		},
		{
			name:     "all pass",
			checkers: []Checker{{Name: "store", Check: pass}, {Name: "chat", Check: pass}},
			code:     http.StatusOK,
			checks:   map[string]string{"store": "ok", "chat": "ok"},
		},
		{
			name:     "required fails",
			checkers: []Checker{{Name: "store", Check: failWith("disk full")}, {Name: "chat", Check: pass}},
			code:     http.StatusServiceUnavailable,
			checks:   map[string]string{"store": "fail: disk full", "chat": "ok"},
		},
		{
			name: "optional fails",
			checkers: []Checker{
				{Name: "store", Check: pass},
				{Name: "ffmpeg", Check: failWith("not found"), Optional: true},
			},
			code:   http.StatusOK,
			checks: map[string]string{"store": "ok", "ffmpeg": "warn: not found"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, rep := probe(t, New(tt.checkers...), "/readyz")
			if code != tt.code {
				t.Errorf("code = %d, want %d", code, tt.code)
			}
			if rep.OK() != (tt.code == http.StatusOK) {
				t.Errorf("status = %q", rep.Status)
			}
			if len(rep.Checks) != len(tt.checks) {
				t.Fatalf("checks = %v, want %v", rep.Checks, tt.checks)
			}
			for name, want := range tt.checks {
				if rep.Checks[name] != want {
					t.Errorf("checks[%s] = %q, want %q", name, rep.Checks[name], want)
				}
			}
		})
	}
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := h.Run(ctx)
	if rep.OK() || rep.Checks["slow"] != "fail: context canceled" {
		t.Errorf("Run = %+v", rep)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestPing(t *testing.T) {
	t.Parallel()
	ok := Ping("store", fakePinger{})
	if ok.Name != "store" || ok.Optional || ok.Check(context.Background()) != nil {
		t.Errorf("Ping(healthy) = %+v", ok)
	}
	down := errors.New("disk gone")
	if err := Ping("store", fakePinger{err: down}).Check(context.Background()); !errors.Is(err, down) {
		t.Errorf("Check = %v, want %v", err, down)
	}
}

func TestExecutable(t *testing.T) {
	t.Parallel()
	c := Executable("ffmpeg", "definitely-not-a-real-binary-arvin")
	if !c.Optional {
		t.Error("Executable checks should be optional")
	}
	if err := c.Check(context.Background()); err == nil {
		t.Error("expected error for missing binary")
	}
}
