// Package gemini provides an LLM provider backed by the Gemini API through the
// google.golang.org/genai SDK.
//
// It supports everything the coach needs from a chat model: per-request
// sampling parameters, a thinking budget, web search and maps grounding, inline
// image/PDF attachments, and JSON-schema constrained responses.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gemini-3-pro-preview"

// Provider implements llm.Provider using the Gemini API.
type Provider struct {
	client *genai.Client
	model  string
}

type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default Gemini API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new Gemini LLM Provider. An empty model selects
// [DefaultModel].
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := NewClient(ctx, apiKey, opts...)
	if err != nil {
		return nil, err
	}
	return &Provider{client: client, model: model}, nil
}

// NewClient builds a genai client for the Gemini API backend. It is shared
// with the media provider so both honour the same options.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (*genai.Client, error) {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.baseURL
	}
	if cfg.timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.timeout}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return client, nil
}

// StreamCompletion implements llm.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	gcfg := buildConfig(req)

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)
		send := func(c llm.Chunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		finish := ""
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, gcfg) {
			if err != nil {
				if ctx.Err() == nil {
					send(llm.Chunk{FinishReason: "error", Text: err.Error()})
				}
				return
			}
			out := llm.Chunk{Text: responseText(resp), Sources: sources(resp)}
			if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
				finish = string(resp.Candidates[0].FinishReason)
			}
			if out.Text == "" && len(out.Sources) == 0 {
				continue
			}
			if !send(out) {
				return
			}
		}
		if finish == "" {
			finish = "stop"
		}
		send(llm.Chunk{FinishReason: finish})
	}()
	return ch, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, buildConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	out := &llm.CompletionResponse{
		Content: responseText(resp),
		Sources: sources(resp),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// CountTokens implements llm.Provider with a local approximation so that it
// never blocks on the network. Images are billed at a flat rate per tile.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	return llm.EstimateTokens(messages, 258), nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return llm.ModelCapabilities{
		ContextWindow:      1_048_576,
		MaxOutputTokens:    65_536,
		SupportsVision:     true,
		SupportsStreaming:  true,
		SupportsGrounding:  true,
		SupportsJSONSchema: true,
	}
}

// buildConfig converts request parameters into a genai generation config.
func buildConfig(req llm.CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature != 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.TopP != 0 {
		cfg.TopP = genai.Ptr(float32(req.TopP))
	}
	if req.TopK != 0 {
		cfg.TopK = genai.Ptr(float32(req.TopK))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(req.ThinkingBudget))}
	}

	switch req.Grounding {
	case llm.GroundingSearch:
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	case llm.GroundingMaps:
		cfg.Tools = []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}}
		if req.Location != nil {
			cfg.ToolConfig = &genai.ToolConfig{
				RetrievalConfig: &genai.RetrievalConfig{
					LatLng: &genai.LatLng{
						Latitude:  genai.Ptr(req.Location.Latitude),
						Longitude: genai.Ptr(req.Location.Longitude),
					},
				},
			}
		}
	}

	if req.ResponseSchema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseJsonSchema = req.ResponseSchema
	}
	return cfg
}

// convertMessages maps llm messages onto genai contents. System messages in
// the history are folded into user turns.
func convertMessages(msgs []llm.Message) ([]*genai.Content, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("gemini: no messages")
	}
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		var role genai.Role
		switch m.Role {
		case llm.RoleUser, llm.RoleSystem:
			role = genai.RoleUser
		case llm.RoleAssistant:
			role = genai.RoleModel
		default:
			return nil, fmt.Errorf("gemini: unknown message role %q", m.Role)
		}
		parts := make([]*genai.Part, 0, 1+len(m.Attachments))
		for _, a := range m.Attachments {
			parts = append(parts, genai.NewPartFromBytes(a.Data, a.MIMEType))
		}
		if m.Content != "" {
			parts = append(parts, genai.NewPartFromText(m.Content))
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, genai.NewContentFromParts(parts, role))
	}
	return out, nil
}

// responseText concatenates the non-thought text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		text += part.Text
	}
	return text
}

// sources extracts web and maps citations from grounding metadata.
func sources(resp *genai.GenerateContentResponse) []llm.Source {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return nil
	}
	var out []llm.Source
	for _, c := range gm.GroundingChunks {
		if c == nil {
			continue
		}
		if c.Web != nil {
			out = llm.AppendSources(out, llm.Source{Title: c.Web.Title, URI: c.Web.URI})
		}
		if c.Maps != nil {
			out = llm.AppendSources(out, llm.Source{Title: c.Maps.Title, URI: c.Maps.URI})
		}
	}
	return out
}

var _ llm.Provider = (*Provider)(nil)
