package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"google.golang.org/genai"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm"
)

func TestBuildConfig_SamplingAndThinking(t *testing.T) {
	t.Parallel()
	cfg := buildConfig(llm.CompletionRequest{
		SystemPrompt:   "be a coach",
		Temperature:    1.6,
		TopP:           0.95,
		TopK:           64,
		ThinkingBudget: 32768,
	})
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "be a coach" {
		t.Errorf("system instruction = %+v", cfg.SystemInstruction)
	}
	if cfg.Temperature == nil || *cfg.Temperature != float32(1.6) {
		t.Errorf("temperature = %v", cfg.Temperature)
	}
	if cfg.TopP == nil || *cfg.TopP != float32(0.95) {
		t.Errorf("topP = %v", cfg.TopP)
	}
	if cfg.TopK == nil || *cfg.TopK != 64 {
		t.Errorf("topK = %v", cfg.TopK)
	}
	if cfg.ThinkingConfig == nil || *cfg.ThinkingConfig.ThinkingBudget != 32768 {
		t.Errorf("thinking = %+v", cfg.ThinkingConfig)
	}
	if len(cfg.Tools) != 0 {
		t.Errorf("tools = %d; want none", len(cfg.Tools))
	}
}

func TestBuildConfig_Grounding(t *testing.T) {
	t.Parallel()

	search := buildConfig(llm.CompletionRequest{Grounding: llm.GroundingSearch})
	if len(search.Tools) != 1 || search.Tools[0].GoogleSearch == nil {
		t.Fatalf("search tools = %+v", search.Tools)
	}
	if search.ToolConfig != nil {
		t.Error("search grounding should not set a retrieval config")
	}

	maps := buildConfig(llm.CompletionRequest{
		Grounding: llm.GroundingMaps,
		Location:  &llm.LatLng{Latitude: 35.7, Longitude: 51.4},
	})
	if len(maps.Tools) != 1 || maps.Tools[0].GoogleMaps == nil {
		t.Fatalf("maps tools = %+v", maps.Tools)
	}
	ll := maps.ToolConfig.RetrievalConfig.LatLng
	if *ll.Latitude != 35.7 || *ll.Longitude != 51.4 {
		t.Errorf("latlng = %v,%v", *ll.Latitude, *ll.Longitude)
	}
}

func TestBuildConfig_JSONSchema(t *testing.T) {
	t.Parallel()
	schema := map[string]any{"type": "object"}
	cfg := buildConfig(llm.CompletionRequest{ResponseSchema: schema})
	if cfg.ResponseMIMEType != "application/json" {
		t.Errorf("mime = %q", cfg.ResponseMIMEType)
	}
	if cfg.ResponseJsonSchema == nil {
		t.Error("schema not set")
	}
}

func TestConvertMessages(t *testing.T) {
	t.Parallel()
	contents, err := convertMessages([]llm.Message{
		{Role: llm.RoleUser, Content: "look", Attachments: []llm.Attachment{{MIMEType: "image/png", Data: []byte{1, 2}}}},
		{Role: llm.RoleAssistant, Content: "nice"},
		{Role: llm.RoleAssistant},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 2 {
		t.Fatalf("contents = %d; want 2 (empty message dropped)", len(contents))
	}
	if contents[0].Role != genai.RoleUser || len(contents[0].Parts) != 2 {
		t.Errorf("user content = %+v", contents[0])
	}
	if contents[0].Parts[0].InlineData == nil || contents[0].Parts[0].InlineData.MIMEType != "image/png" {
		t.Error("attachment should precede text as inline data")
	}
	if contents[1].Role != genai.RoleModel {
		t.Errorf("assistant role = %q; want model", contents[1].Role)
	}

	if _, err := convertMessages([]llm.Message{{Role: "tool", Content: "x"}}); err == nil {
		t.Error("expected error for unknown role")
	}
	if _, err := convertMessages(nil); err == nil {
		t.Error("expected error for empty history")
	}
}

func TestResponseTextAndSources(t *testing.T) {
	t.Parallel()
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "secret plan", Thought: true},
				{Text: "Hello "},
				{Text: "world"},
			}},
			GroundingMetadata: &genai.GroundingMetadata{
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{Title: "A", URI: "https://a"}},
					{Web: &genai.GroundingChunkWeb{Title: "A again", URI: "https://a"}},
					{Maps: &genai.GroundingChunkMaps{Title: "Cafe", URI: "https://maps/cafe"}},
				},
			},
		}},
	}
	if got := responseText(resp); got != "Hello world" {
		t.Errorf("text = %q", got)
	}
	src := sources(resp)
	if len(src) != 2 || src[0].URI != "https://a" || src[1].Title != "Cafe" {
		t.Errorf("sources = %+v", src)
	}
}

// ── HTTP round trips ──────────────────────────────────────────────────────────

type recordedRequest struct {
	Path string
	Body map[string]any
}

func newFakeServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(data, &body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{Path: r.URL.Path, Body: body})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), reqs...)
	}
}

func TestComplete_RoundTrip(t *testing.T) {
	t.Parallel()
	srv, reqs := newFakeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"ok\":true}"}]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":4,"totalTokenCount":7}}`)
	})

	p, err := New(context.Background(), "key", "gemini-2.5-flash", WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages:       []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		ResponseSchema: map[string]any{"type": "object"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"ok":true}` {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 7 {
		t.Errorf("usage = %+v", resp.Usage)
	}

	got := reqs()
	if len(got) != 1 {
		t.Fatalf("requests = %d", len(got))
	}
	if !strings.Contains(got[0].Path, "gemini-2.5-flash:generateContent") {
		t.Errorf("path = %q", got[0].Path)
	}
	gc, _ := got[0].Body["generationConfig"].(map[string]any)
	if gc["responseMimeType"] != "application/json" {
		t.Errorf("generationConfig = %v", gc)
	}
}

func TestStreamCompletion_RoundTrip(t *testing.T) {
	t.Parallel()
	srv, _ := newFakeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"Hel\"}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"lo\"}]},\"finishReason\":\"STOP\"}]}\n\n")
	})

	p, err := New(context.Background(), "key", "", WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatal(err)
	}
	ch, err := p.StreamCompletion(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	var text, finish string
	for c := range ch {
		text += c.Text
		if c.FinishReason != "" {
			finish = c.FinishReason
		}
	}
	if text != "Hello" {
		t.Errorf("text = %q; want Hello", text)
	}
	if finish != "STOP" {
		t.Errorf("finish = %q; want STOP", finish)
	}
}

func TestStreamCompletion_ErrorChunk(t *testing.T) {
	t.Parallel()
	srv, _ := newFakeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`)
	})

	p, err := New(context.Background(), "key", "", WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatal(err)
	}
	ch, err := p.StreamCompletion(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	var last llm.Chunk
	for c := range ch {
		last = c
	}
	if last.FinishReason != "error" {
		t.Errorf("last chunk = %+v; want error chunk", last)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := New(context.Background(), "", ""); err == nil {
		t.Error("expected error for empty api key")
	}
	p, err := New(context.Background(), "key", "")
	if err != nil {
		t.Fatal(err)
	}
	if p.model != DefaultModel {
		t.Errorf("model = %q; want %q", p.model, DefaultModel)
	}
	if !p.Capabilities().SupportsGrounding {
		t.Error("gemini should support grounding")
	}
}
