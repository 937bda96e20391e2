// Package llm defines the Provider interface for text generation backends.
//
// An LLM provider wraps a remote model API (Gemini, OpenAI, or any backend
// reachable through any-llm) and exposes a uniform interface for the coach
// service to stream replies, request structured JSON, and inspect model
// capabilities without coupling to any specific SDK.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends or
// when the supplied context is cancelled.
package llm

import "context"

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation history.
	SystemPrompt string

	// Temperature controls output randomness in the range [0.0, 2.0]. Zero
	// means the provider default.
	Temperature float64

	// TopP and TopK are nucleus and top-k sampling limits. Zero means the
	// provider default. Providers without top-k support ignore it.
	TopP float64
	TopK int

	// ThinkingBudget is the number of reasoning tokens the model may spend
	// before answering. Zero means the provider default; providers without
	// a thinking budget ignore it.
	ThinkingBudget int

	// MaxTokens caps the number of completion tokens. Zero means the provider
	// default.
	MaxTokens int

	// Grounding selects a server-side retrieval tool. Providers that cannot
	// ground answers ignore it.
	Grounding Grounding

	// Location biases maps grounding towards the user's position.
	Location *LatLng

	// ResponseSchema, when set, requests a JSON response conforming to this
	// JSON Schema.
	ResponseSchema map[string]any
}

// Chunk is a single fragment emitted by a streaming completion.
type Chunk struct {
	// Text is the incremental text content of this chunk.
	Text string

	// FinishReason is set on the final chunk. "error" marks a stream that
	// failed after it started; Text then carries the error message.
	FinishReason string

	// Sources lists grounding citations attached to this chunk.
	Sources []Source
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full text of the reply.
	Content string

	// Sources lists grounding citations, deduplicated by URI.
	Sources []Source

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any text generation backend.
//
// Each method should propagate context cancellation promptly: when ctx is
// cancelled the method must return (or close its channel) as quickly as
// possible.
type Provider interface {
	// StreamCompletion sends req to the model and returns a read-only channel
	// that emits Chunk values as they arrive. The channel is closed when
	// generation finishes or when ctx is cancelled.
	//
	// Errors after the stream has started are surfaced as a Chunk with
	// FinishReason "error". The returned channel is never nil when error is nil.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates the number of tokens the messages would consume.
	// The result need not be exact but should not undercount.
	CountTokens(messages []Message) (int, error)

	// Capabilities returns static metadata describing the underlying model.
	Capabilities() ModelCapabilities
}
