package resilience

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

// trio is a group of three named members whose calls fail when listed in down.
type trio struct {
	fg    *FallbackGroup[string]
	down  []string
	calls []string
	fails []string
}

func newTrio(maxFailures int, down ...string) *trio {
	tr := &trio{down: down}
	tr.fg = NewFallbackGroup("a", "a", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: maxFailures, ResetTimeout: time.Hour},
		OnFailover:     func(name string, _ error) { tr.fails = append(tr.fails, name) },
	})
	tr.fg.AddFallback("b", "b")
	tr.fg.AddFallback("c", "c")
	return tr
}

func (tr *trio) call(v string) (string, error) {
	tr.calls = append(tr.calls, v)
	if slices.Contains(tr.down, v) {
		return "", errTest
	}
	return "from " + v, nil
}

func TestExecuteWithResult(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		down      []string
		want      string
		wantCalls []string
	}{
		{"primary answers", nil, "from a", []string{"a"}},
		{"first fallback", []string{"a"}, "from b", []string{"a", "b"}},
		{"last fallback", []string{"a", "b"}, "from c", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := newTrio(3, tt.down...)
			got, err := ExecuteWithResult(tr.fg, tr.call)
			if err != nil || got != tt.want {
				t.Fatalf("ExecuteWithResult = %q, %v; want %q", got, err, tt.want)
			}
			if !slices.Equal(tr.calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", tr.calls, tt.wantCalls)
			}
			if !slices.Equal(tr.fails, tt.down) {
				t.Errorf("failovers = %v, want %v", tr.fails, tt.down)
			}
		})
	}
}

func TestExecuteWithResult_AllFailed(t *testing.T) {
	t.Parallel()
	tr := newTrio(3, "a", "b", "c")
	_, err := ExecuteWithResult(tr.fg, tr.call)
	if !errors.Is(err, ErrAllFailed) || !errors.Is(err, errTest) {
		t.Fatalf("err = %v, want ErrAllFailed wrapping the last failure", err)
	}
}

func TestFallbackGroup_OpenBreakerSkipped(t *testing.T) {
	t.Parallel()
	tr := newTrio(2, "a")
	for range 2 {
		_ = tr.fg.Execute(func(v string) error { _, err := tr.call(v); return err })
	}
	if st := tr.fg.Status(); st[0].State != StateOpen || st[1].State != StateClosed {
		t.Fatalf("status = %+v, want a open and b closed", st)
	}

	tr.calls, tr.fails = nil, nil
	got, err := ExecuteWithResult(tr.fg, tr.call)
	if err != nil || got != "from b" {
		t.Fatalf("ExecuteWithResult = %q, %v", got, err)
	}
	if !slices.Equal(tr.calls, []string{"b"}) || len(tr.fails) != 0 {
		t.Errorf("calls = %v, failovers = %v; want [b] and none", tr.calls, tr.fails)
	}
}

func TestExecuteWithResult_CancellationStopsWalk(t *testing.T) {
	t.Parallel()
	tr := newTrio(1)
	var calls []string
	_, err := ExecuteWithResult(tr.fg, func(v string) (int, error) {
		calls = append(calls, v)
		return 0, context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want the bare deadline error", err)
	}
	if len(calls) != 1 || len(tr.fails) != 0 {
		t.Fatalf("calls = %v, failovers = %v", calls, tr.fails)
	}
	if st := tr.fg.Status()[0].State; st != StateClosed {
		t.Errorf("primary = %v, want closed after cancellation", st)
	}
}

func TestFallbackGroup_Healthy(t *testing.T) {
	t.Parallel()
	tr := newTrio(1, "a", "b", "c")
	if err := tr.fg.Healthy(context.Background()); err != nil {
		t.Fatalf("Healthy before failures: %v", err)
	}
	_ = tr.fg.Execute(func(v string) error { _, err := tr.call(v); return err })

	if err := tr.fg.Healthy(context.Background()); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("Healthy = %v, want ErrAllFailed", err)
	}
	if tr.fg.Primary() != "a" {
		t.Errorf("Primary = %q", tr.fg.Primary())
	}
}
