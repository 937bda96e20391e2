// Package anyllm adapts github.com/mozilla-ai/any-llm-go to llm.Provider so
// that any backend it supports (Anthropic, Ollama, DeepSeek, Mistral, Groq,
// llama.cpp and others) can serve as a chat fallback.
//
// Grounding, top-k and thinking budgets have no portable equivalent and are
// not forwarded. A response schema is written into the system prompt.
package anyllm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm"
)

// schemaInstruction precedes the JSON Schema appended to the system prompt.
const schemaInstruction = "Respond with a single JSON object, without markdown fences, that matches this JSON Schema:\n"

type backendFactory func(...anyllmlib.Option) (anyllmlib.Provider, error)

func adapt[P anyllmlib.Provider](fn func(...anyllmlib.Option) (P, error)) backendFactory {
	return func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		return fn(opts...)
	}
}

var backends = map[string]backendFactory{
	"anthropic": adapt(anthropic.New),
	"deepseek":  adapt(deepseek.New),
	"gemini":    adapt(gemini.New),
	"groq":      adapt(groq.New),
	"llamacpp":  adapt(llamacpp.New),
	"llamafile": adapt(llamafile.New),
	"mistral":   adapt(mistral.New),
	"ollama":    adapt(ollama.New),
	"openai":    adapt(anyllmoai.New),
}

// Backends lists the backend names [New] accepts, sorted.
func Backends() []string {
	return slices.Sorted(maps.Keys(backends))
}

// Provider is an llm.Provider over one any-llm backend.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

var _ llm.Provider = (*Provider)(nil)

// New builds a provider for the named backend (see [Backends]). Without an
// API key option the backend reads its usual environment variable, such as
// ANTHROPIC_API_KEY.
func New(backend, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if model == "" {
		return nil, errors.New("anyllm: model must not be empty")
	}
	factory, ok := backends[strings.ToLower(backend)]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported backend %q (supported: %s)", backend, strings.Join(Backends(), ", "))
	}
	b, err := factory(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %s backend: %w", backend, err)
	}
	return &Provider{backend: b, model: model}, nil
}

func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	chunks, errs := p.backend.CompletionStream(ctx, p.buildParams(req))

	out := make(chan llm.Chunk, 32)
	go func() {
		defer close(out)
		send := func(c llm.Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for chunk := range chunks {
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0]
			if delta.Delta.Content == "" && delta.FinishReason == "" {
				continue
			}
			if !send(llm.Chunk{Text: delta.Delta.Content, FinishReason: delta.FinishReason}) {
				return
			}
		}
		// errs is written once the chunk channel has been drained.
		if err := <-errs; err != nil {
			send(llm.Chunk{FinishReason: "error", Text: err.Error()})
		}
	}()
	return out, nil
}

func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("anyllm: response has no choices")
	}
	out := &llm.CompletionResponse{Content: resp.Choices[0].Message.ContentString()}
	if u := resp.Usage; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

// CountTokens is a local estimate; any-llm exposes no tokenizer.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	return llm.EstimateTokens(messages, 0), nil
}

func (p *Provider) Capabilities() llm.ModelCapabilities {
	return llm.LookupModel(p.model)
}

func (p *Provider) buildParams(req llm.CompletionRequest) anyllmlib.CompletionParams {
	params := anyllmlib.CompletionParams{Model: p.model}

	system := req.SystemPrompt
	if req.ResponseSchema != nil {
		schema, _ := json.Marshal(req.ResponseSchema)
		system = strings.TrimSpace(system + "\n\n" + schemaInstruction + string(schema))
	}
	if system != "" {
		params.Messages = append(params.Messages, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: system})
	}
	for _, m := range req.Messages {
		params.Messages = append(params.Messages, convertMessage(m))
	}

	if t := req.Temperature; t != 0 {
		params.Temperature = &t
	}
	if n := req.MaxTokens; n > 0 {
		params.MaxTokens = &n
	}
	return params
}

// convertMessage flattens attachments into a text note; the message content
// is plain text for every backend.
func convertMessage(m llm.Message) anyllmlib.Message {
	var b strings.Builder
	b.WriteString(m.Content)
	for _, a := range m.Attachments {
		fmt.Fprintf(&b, "\n[attachment: %s, %d bytes]", a.MIMEType, len(a.Data))
	}
	return anyllmlib.Message{Role: m.Role, Content: b.String()}
}
