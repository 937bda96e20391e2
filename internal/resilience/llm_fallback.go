package resilience

import (
	"context"
	"errors"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm"
)

// errEmptyStream is reported for a stream that closed without a single chunk.
var errEmptyStream = errors.New("resilience: stream closed without output")

// LLMFallback implements [llm.Provider] with automatic failover across multiple
// LLM backends. Each backend has its own circuit breaker; when the primary fails
// or its breaker is open, the next healthy fallback is tried.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional LLM provider as a fallback.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Status reports the breaker state of every backend.
func (f *LLMFallback) Status() []EntryStatus { return f.group.Status() }

// Healthy returns nil while at least one backend accepts calls.
func (f *LLMFallback) Healthy(ctx context.Context) error { return f.group.Healthy(ctx) }

// Complete sends the request to the first healthy provider and returns its
// response. If the primary fails, subsequent fallbacks are tried.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// StreamCompletion sends the request to the first healthy provider and returns a
// streaming chunk channel. Failover covers the connection and the first chunk:
// a stream whose first chunk is an error, or that closes empty, counts as a
// failure and the next backend is tried. Once text has been delivered,
// mid-stream errors reach the caller as an error chunk.
func (f *LLMFallback) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (<-chan llm.Chunk, error) {
		src, err := p.StreamCompletion(ctx, req)
		if err != nil {
			return nil, err
		}
		var first llm.Chunk
		select {
		case c, ok := <-src:
			if !ok {
				return nil, errEmptyStream
			}
			first = c
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if first.FinishReason == "error" {
			go drain(src)
			return nil, errors.New(first.Text)
		}
		return prepend(ctx, first, src), nil
	})
}

// CountTokens delegates to the first healthy provider's token counter.
func (f *LLMFallback) CountTokens(messages []llm.Message) (int, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (int, error) {
		return p.CountTokens(messages)
	})
}

// Capabilities returns the capabilities of the primary.
// This does not participate in failover because capabilities are static metadata.
func (f *LLMFallback) Capabilities() llm.ModelCapabilities {
	return f.group.Primary().Capabilities()
}

// prepend returns a channel that yields first and then everything from src.
func prepend(ctx context.Context, first llm.Chunk, src <-chan llm.Chunk) <-chan llm.Chunk {
	out := make(chan llm.Chunk, 1)
	out <- first
	go func() {
		defer close(out)
		for c := range src {
			select {
			case out <- c:
			case <-ctx.Done():
				go drain(src)
				return
			}
		}
	}()
	return out
}

func drain(ch <-chan llm.Chunk) {
	for range ch {
	}
}
