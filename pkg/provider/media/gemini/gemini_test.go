package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/media"
)

type captured struct {
	path string
	body map[string]any
}

func newTestProvider(t *testing.T, reply string) (*Provider, <-chan captured) {
	t.Helper()
	reqs := make(chan captured, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(data, &body)
		select {
		case reqs <- captured{path: r.URL.Path, body: body}:
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, reply)
	}))
	t.Cleanup(srv.Close)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL + "/"},
	})
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(client)
	if err != nil {
		t.Fatal(err)
	}
	return p, reqs
}

func inlineReply(mime string, data []byte) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"role":"model","parts":[{"text":"here you go"},{"inlineData":{"mimeType":%q,"data":%q}}]}}]}`,
		mime, base64.StdEncoding.EncodeToString(data))
}

func TestGenerateImage(t *testing.T) {
	t.Parallel()
	p, reqs := newTestProvider(t, inlineReply("image/png", []byte{0x89, 'P', 'N', 'G'}))

	img, err := p.GenerateImage(context.Background(), media.ImageRequest{Prompt: "a lighthouse", AspectRatio: "16:9"})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if img.MIMEType != "image/png" || string(img.Data[1:]) != "PNG" {
		t.Errorf("image = %+v", img)
	}
	req := <-reqs
	if !strings.Contains(req.path, DefaultImageModel) {
		t.Errorf("path = %q", req.path)
	}
	gc, _ := req.body["generationConfig"].(map[string]any)
	ic, _ := gc["imageConfig"].(map[string]any)
	if ic["aspectRatio"] != "16:9" || ic["imageSize"] != "1K" {
		t.Errorf("imageConfig = %v", ic)
	}
}

func TestGenerateImage_NoImage(t *testing.T) {
	t.Parallel()
	p, _ := newTestProvider(t, `{"candidates":[{"content":{"role":"model","parts":[{"text":"sorry"}]}}]}`)
	_, err := p.GenerateImage(context.Background(), media.ImageRequest{Prompt: "x"})
	if !errors.Is(err, media.ErrNoImage) {
		t.Fatalf("err = %v; want ErrNoImage", err)
	}
	if _, err := p.GenerateImage(context.Background(), media.ImageRequest{Prompt: "  "}); err == nil {
		t.Error("expected error for empty prompt")
	}
}

func TestEditImage(t *testing.T) {
	t.Parallel()
	p, reqs := newTestProvider(t, inlineReply("image/jpeg", []byte{1, 2, 3}))

	img, err := p.EditImage(context.Background(), media.EditRequest{
		Prompt: "make it blue",
		Source: media.Image{Data: []byte{9, 9}, MIMEType: "image/png"},
	})
	if err != nil {
		t.Fatalf("EditImage: %v", err)
	}
	if img.MIMEType != "image/jpeg" {
		t.Errorf("mime = %q", img.MIMEType)
	}
	body := (<-reqs).body
	contents, _ := body["contents"].([]any)
	if len(contents) != 1 {
		t.Fatalf("contents = %v", body["contents"])
	}
	parts, _ := contents[0].(map[string]any)["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("parts = %v", parts)
	}
	if _, ok := parts[0].(map[string]any)["inlineData"]; !ok {
		t.Error("source image should be the first part")
	}

	if _, err := p.EditImage(context.Background(), media.EditRequest{Prompt: "x"}); err == nil {
		t.Error("expected error without source image")
	}
}

func TestSynthesize(t *testing.T) {
	t.Parallel()
	pcm := []byte{0, 1, 2, 3}
	p, reqs := newTestProvider(t, inlineReply("audio/L16;codec=pcm;rate=24000", pcm))

	sp, err := p.Synthesize(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if sp.SampleRate != 24000 || len(sp.PCM) != 4 {
		t.Errorf("speech = %+v", sp)
	}
	gc, _ := (<-reqs).body["generationConfig"].(map[string]any)
	sc, _ := gc["speechConfig"].(map[string]any)
	vc, _ := sc["voiceConfig"].(map[string]any)
	pv, _ := vc["prebuiltVoiceConfig"].(map[string]any)
	if pv["voiceName"] != DefaultVoice {
		t.Errorf("speechConfig = %v", sc)
	}
}

func TestSampleRate(t *testing.T) {
	t.Parallel()
	tests := map[string]int{
		"audio/L16;codec=pcm;rate=16000": 16000,
		"audio/pcm; rate=48000":          48000,
		"audio/pcm":                      DefaultSampleRate,
		"audio/pcm;rate=bogus":           DefaultSampleRate,
	}
	for mime, want := range tests {
		if got := sampleRate(mime); got != want {
			t.Errorf("sampleRate(%q) = %d; want %d", mime, got, want)
		}
	}
}

func TestNew_NilClient(t *testing.T) {
	t.Parallel()
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}
