package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm"
)

// TestConvertMessage_System checks that system role is converted correctly.
func TestConvertMessage_System(t *testing.T) {
	param, err := convertMessage(llm.Message{Role: llm.RoleSystem, Content: "You are helpful."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfSystem == nil {
		t.Fatal("expected OfSystem to be set")
	}
}

// TestConvertMessage_User checks that a plain user message stays a string.
func TestConvertMessage_User(t *testing.T) {
	param, err := convertMessage(llm.Message{Role: llm.RoleUser, Content: "Hello!"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfUser == nil {
		t.Fatal("expected OfUser to be set")
	}
	if len(param.OfUser.Content.OfArrayOfContentParts) != 0 {
		t.Error("plain user message should not use content parts")
	}
}

// TestConvertMessage_UserWithImage checks image attachments become parts and
// non-image attachments are dropped.
func TestConvertMessage_UserWithImage(t *testing.T) {
	param, err := convertMessage(llm.Message{
		Role:    llm.RoleUser,
		Content: "What is this?",
		Attachments: []llm.Attachment{
			{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
			{MIMEType: "application/pdf", Data: []byte("%PDF")},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parts := param.OfUser.Content.OfArrayOfContentParts
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts (image + text), got %d", len(parts))
	}
	if parts[0].OfImageURL == nil || !strings.HasPrefix(parts[0].OfImageURL.ImageURL.URL, "data:image/png;base64,") {
		t.Error("first part should be a data-URL image")
	}
	if parts[1].OfText == nil || parts[1].OfText.Text != "What is this?" {
		t.Error("last part should be the text")
	}
}

// TestConvertMessage_Assistant checks that assistant role is converted.
func TestConvertMessage_Assistant(t *testing.T) {
	param, err := convertMessage(llm.Message{Role: llm.RoleAssistant, Content: "Hi there!"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfAssistant == nil {
		t.Fatal("expected OfAssistant to be set")
	}
}

// TestConvertMessage_UnknownRole checks that unknown roles return an error.
func TestConvertMessage_UnknownRole(t *testing.T) {
	if _, err := convertMessage(llm.Message{Role: "tool", Content: "test"}); err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

// TestBuildParams_Sampling checks temperature, top-p and the JSON schema.
func TestBuildParams_Sampling(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt:   "coach",
		Messages:       []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		Temperature:    1.4,
		TopP:           0.95,
		TopK:           64,
		ResponseSchema: map[string]any{"type": "object"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(params.Messages) != 2 || params.Messages[0].OfSystem == nil {
		t.Fatalf("messages = %d; want system + user", len(params.Messages))
	}
	if params.Temperature.Value != 1.4 {
		t.Errorf("temperature = %v", params.Temperature.Value)
	}
	if params.TopP.Value != 0.95 {
		t.Errorf("topP = %v", params.TopP.Value)
	}
	if params.ResponseFormat.OfJSONSchema == nil {
		t.Error("expected a JSON schema response format")
	}
}

// TestModelCapabilities_GPT4o checks gpt-4o capabilities.
func TestModelCapabilities_GPT4o(t *testing.T) {
	caps := modelCapabilities("gpt-4o")
	if caps.ContextWindow != 128_000 {
		t.Errorf("gpt-4o: expected context window 128000, got %d", caps.ContextWindow)
	}
	if !caps.SupportsVision {
		t.Error("gpt-4o: expected SupportsVision=true")
	}
	if caps.SupportsGrounding {
		t.Error("openai: grounding is not supported")
	}
}

// TestModelCapabilities_GPT35Turbo checks gpt-3.5-turbo capabilities.
func TestModelCapabilities_GPT35Turbo(t *testing.T) {
	caps := modelCapabilities("gpt-3.5-turbo")
	if caps.ContextWindow != 16_385 {
		t.Errorf("gpt-3.5-turbo: expected context window 16385, got %d", caps.ContextWindow)
	}
	if caps.SupportsVision {
		t.Error("gpt-3.5-turbo: expected SupportsVision=false")
	}
}

// TestModelCapabilities_UnknownModel checks defaults for unrecognised models.
func TestModelCapabilities_UnknownModel(t *testing.T) {
	caps := modelCapabilities("my-custom-model")
	if caps.ContextWindow <= 0 || caps.MaxOutputTokens <= 0 {
		t.Errorf("unknown model: expected positive limits, got %+v", caps)
	}
}

// TestCountTokens_Estimation checks that token counting returns a reasonable value.
func TestCountTokens_Estimation(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	count, err := p.CountTokens([]llm.Message{{Role: llm.RoleUser, Content: "Hello world"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count <= 0 {
		t.Errorf("expected positive token count, got %d", count)
	}
}

// TestNew_Validation ensures the constructor rejects missing settings.
func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gpt-4o"); err == nil {
		t.Fatal("expected error for empty API key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Fatal("expected error for empty model")
	}
	if _, err := New("sk-test", "gpt-4o", WithBaseURL("https://custom.example.com"), WithOrganization("org-123")); err != nil {
		t.Fatalf("unexpected error with valid options: %v", err)
	}
}

// TestComplete_RoundTrip runs a completion against a fake API server.
func TestComplete_RoundTrip(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Sure."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`)
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o", WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "Help me"}},
		Temperature: 1.6,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Sure." || resp.Usage.TotalTokens != 7 {
		t.Errorf("response = %+v", resp)
	}
	if gotBody["model"] != "gpt-4o" || gotBody["temperature"] != 1.6 {
		t.Errorf("request body = %v", gotBody)
	}
}
