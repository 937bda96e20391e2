package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm"
	llmmock "github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm/mock"
)

// chain builds primary -> secondary and records every failover.
func chain(primary, secondary *llmmock.Provider) (*LLMFallback, *[]string) {
	var failovers []string
	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
		OnFailover:     func(name string, _ error) { failovers = append(failovers, name) },
	})
	fb.AddFallback("secondary", secondary)
	return fb, &failovers
}

func reply(text string) *llm.CompletionResponse { return &llm.CompletionResponse{Content: text} }

func TestLLMFallback_Complete(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		primary       *llmmock.Provider
		secondary     *llmmock.Provider
		want          string
		wantErr       error
		wantSecondary int
		wantFailovers int
	}{
		{
			name:      "primary answers",
			primary:   &llmmock.Provider{CompleteResponse: reply("one")},
			secondary: &llmmock.Provider{CompleteResponse: reply("two")},
			want:      "one",
		},
		{
			name:          "primary down",
			primary:       &llmmock.Provider{CompleteErr: errors.New("503")},
			secondary:     &llmmock.Provider{CompleteResponse: reply("two")},
			want:          "two",
			wantSecondary: 1,
			wantFailovers: 1,
		},
		{
			name:          "both down",
			primary:       &llmmock.Provider{CompleteErr: errors.New("503")},
			secondary:     &llmmock.Provider{CompleteErr: errors.New("429")},
			wantErr:       ErrAllFailed,
			wantSecondary: 1,
			wantFailovers: 2,
		},
		{
			name:      "caller cancelled",
			primary:   &llmmock.Provider{CompleteErr: context.Canceled},
			secondary: &llmmock.Provider{CompleteResponse: reply("two")},
			wantErr:   context.Canceled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fb, failovers := chain(tt.primary, tt.secondary)

			resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil || resp.Content != tt.want {
				t.Fatalf("Complete = %+v, %v; want %q", resp, err, tt.want)
			}
			if len(tt.primary.CompleteCalls) != 1 {
				t.Errorf("primary calls = %d, want 1", len(tt.primary.CompleteCalls))
			}
			if got := len(tt.secondary.CompleteCalls); got != tt.wantSecondary {
				t.Errorf("secondary calls = %d, want %d", got, tt.wantSecondary)
			}
			if len(*failovers) != tt.wantFailovers {
				t.Errorf("failovers = %v, want %d", *failovers, tt.wantFailovers)
			}
		})
	}
}

func TestLLMFallback_Stream(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		primary       *llmmock.Provider
		secondary     *llmmock.Provider
		want          []llm.Chunk
		wantSecondary int
	}{
		{
			name:          "connect error",
			primary:       &llmmock.Provider{StreamErr: errors.New("dial")},
			secondary:     &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "a"}, {Text: "b", FinishReason: "stop"}}},
			want:          []llm.Chunk{{Text: "a"}, {Text: "b", FinishReason: "stop"}},
			wantSecondary: 1,
		},
		{
			name:          "first chunk is an error",
			primary:       &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "quota exceeded", FinishReason: "error"}}},
			secondary:     &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "b", FinishReason: "stop"}}},
			want:          []llm.Chunk{{Text: "b", FinishReason: "stop"}},
			wantSecondary: 1,
		},
		{
			name:          "closes empty",
			primary:       &llmmock.Provider{},
			secondary:     &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "ok", FinishReason: "stop"}}},
			want:          []llm.Chunk{{Text: "ok", FinishReason: "stop"}},
			wantSecondary: 1,
		},
		{
			name:      "error after text passes through",
			primary:   &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "partial"}, {Text: "boom", FinishReason: "error"}}},
			secondary: &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "never"}}},
			want:      []llm.Chunk{{Text: "partial"}, {Text: "boom", FinishReason: "error"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fb, _ := chain(tt.primary, tt.secondary)

			ch, err := fb.StreamCompletion(context.Background(), llm.CompletionRequest{})
			if err != nil {
				t.Fatalf("StreamCompletion: %v", err)
			}
			var got []llm.Chunk
			for c := range ch {
				got = append(got, c)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("chunks = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i].Text != tt.want[i].Text || got[i].FinishReason != tt.want[i].FinishReason {
					t.Errorf("chunk %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
			if n := len(tt.secondary.StreamCalls); n != tt.wantSecondary {
				t.Errorf("secondary calls = %d, want %d", n, tt.wantSecondary)
			}
		})
	}
}

func TestLLMFallback_StreamAllFailed(t *testing.T) {
	t.Parallel()
	fb, _ := chain(&llmmock.Provider{StreamErr: errors.New("dial")}, &llmmock.Provider{})

	_, err := fb.StreamCompletion(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrAllFailed) || !strings.Contains(err.Error(), "without output") {
		t.Fatalf("err = %v, want ErrAllFailed wrapping the empty stream", err)
	}
}

func TestLLMFallback_CountTokensAndCapabilities(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{
		CountTokensErr:    errors.New("count failed"),
		ModelCapabilities: llm.ModelCapabilities{ContextWindow: 1_048_576, SupportsGrounding: true},
	}
	secondary := &llmmock.Provider{TokenCount: 42, ModelCapabilities: llm.ModelCapabilities{ContextWindow: 8_192}}
	fb, _ := chain(primary, secondary)

	if n, err := fb.CountTokens([]llm.Message{{Role: llm.RoleUser, Content: "test"}}); err != nil || n != 42 {
		t.Errorf("CountTokens = %d, %v; want 42 from the fallback", n, err)
	}
	// Capabilities always describe the primary.
	if caps := fb.Capabilities(); caps.ContextWindow != 1_048_576 || !caps.SupportsGrounding {
		t.Errorf("Capabilities = %+v", caps)
	}
}

func TestLLMFallback_Healthy(t *testing.T) {
	t.Parallel()
	down := &llmmock.Provider{CompleteErr: errors.New("503")}
	fb := NewLLMFallback(down, "only", FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1}})

	if err := fb.Healthy(context.Background()); err != nil {
		t.Fatalf("Healthy before failures: %v", err)
	}
	_, _ = fb.Complete(context.Background(), llm.CompletionRequest{})
	if err := fb.Healthy(context.Background()); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("Healthy = %v, want ErrAllFailed", err)
	}
	if st := fb.Status(); len(st) != 1 || st[0].Name != "only" || st[0].State != StateOpen {
		t.Errorf("Status = %+v", st)
	}
}
