// Package mock is a scripted llm.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm"
)

// Call is one recorded StreamCompletion or Complete request.
type Call struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Provider replays the configured results. Set the result fields before the
// provider is shared; the call records are read after the code under test
// returns.
type Provider struct {
	StreamChunks []llm.Chunk
	StreamErr    error

	CompleteResponse *llm.CompletionResponse
	CompleteErr      error

	TokenCount     int
	CountTokensErr error

	ModelCapabilities llm.ModelCapabilities

	mu            sync.Mutex
	StreamCalls   []Call
	CompleteCalls []Call
}

var _ llm.Provider = (*Provider)(nil)

func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.StreamCalls = append(p.StreamCalls, Call{Ctx: ctx, Req: req})
	err := p.StreamErr
	chunks := append([]llm.Chunk(nil), p.StreamChunks...)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make(chan llm.Chunk, len(chunks))
	go func() {
		defer close(out)
		for _, c := range chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = append(p.CompleteCalls, Call{Ctx: ctx, Req: req})
	return p.CompleteResponse, p.CompleteErr
}

func (p *Provider) CountTokens([]llm.Message) (int, error) {
	return p.TokenCount, p.CountTokensErr
}

func (p *Provider) Capabilities() llm.ModelCapabilities {
	return p.ModelCapabilities
}
