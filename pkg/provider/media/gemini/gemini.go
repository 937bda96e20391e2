// Package gemini implements media.Provider on the Gemini API: image generation
// and editing use an image-capable model, speech uses a TTS model.
package gemini

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/media"
)

const (
	// DefaultImageModel generates and edits images.
	DefaultImageModel = "gemini-3-pro-image-preview"

	// DefaultSpeechModel synthesizes speech.
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"

	// DefaultVoice is the prebuilt TTS voice.
	DefaultVoice = "Kore"

	// DefaultSampleRate is the rate of PCM returned by the TTS model.
	DefaultSampleRate = 24000
)

// Provider implements media.Provider.
type Provider struct {
	client      *genai.Client
	imageModel  string
	speechModel string
}

// Option configures a Provider.
type Option func(*Provider)

// WithImageModel overrides [DefaultImageModel].
func WithImageModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.imageModel = model
		}
	}
}

// WithSpeechModel overrides [DefaultSpeechModel].
func WithSpeechModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.speechModel = model
		}
	}
}

// New wraps an existing genai client.
func New(client *genai.Client, opts ...Option) (*Provider, error) {
	if client == nil {
		return nil, fmt.Errorf("gemini media: client must not be nil")
	}
	p := &Provider{
		client:      client,
		imageModel:  DefaultImageModel,
		speechModel: DefaultSpeechModel,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// GenerateImage implements media.ImageGenerator.
func (p *Provider) GenerateImage(ctx context.Context, req media.ImageRequest) (*media.Image, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("gemini media: empty prompt")
	}
	aspect, size := req.AspectRatio, req.Size
	if aspect == "" {
		aspect = "1:1"
	}
	if size == "" {
		size = "1K"
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage), string(genai.ModalityText)},
		ImageConfig:        &genai.ImageConfig{AspectRatio: aspect, ImageSize: size},
	}
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	resp, err := p.client.Models.GenerateContent(ctx, p.imageModel, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini media: generate image: %w", err)
	}
	return firstImage(resp)
}

// EditImage implements media.ImageEditor.
func (p *Provider) EditImage(ctx context.Context, req media.EditRequest) (*media.Image, error) {
	if len(req.Source.Data) == 0 {
		return nil, fmt.Errorf("gemini media: edit needs a source image")
	}
	input := []*genai.Part{
		genai.NewPartFromBytes(req.Source.Data, req.Source.MIMEType),
		genai.NewPartFromText(req.Prompt),
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage), string(genai.ModalityText)},
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.imageModel,
		[]*genai.Content{genai.NewContentFromParts(input, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini media: edit image: %w", err)
	}
	return firstImage(resp)
}

// Synthesize implements media.SpeechSynthesizer.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) (*media.Speech, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("gemini media: empty text")
	}
	if voice == "" {
		voice = DefaultVoice
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.speechModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini media: synthesize: %w", err)
	}
	for _, part := range parts(resp) {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		return &media.Speech{
			PCM:        part.InlineData.Data,
			SampleRate: sampleRate(part.InlineData.MIMEType),
		}, nil
	}
	return nil, media.ErrNoAudio
}

func parts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}

func firstImage(resp *genai.GenerateContentResponse) (*media.Image, error) {
	for _, part := range parts(resp) {
		if part == nil || part.InlineData == nil {
			continue
		}
		if !strings.HasPrefix(part.InlineData.MIMEType, "image/") {
			continue
		}
		return &media.Image{Data: part.InlineData.Data, MIMEType: part.InlineData.MIMEType}, nil
	}
	return nil, media.ErrNoImage
}

// sampleRate reads "rate=N" from an audio MIME type such as
// "audio/L16;codec=pcm;rate=24000".
func sampleRate(mime string) int {
	for _, field := range strings.Split(mime, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok || k != "rate" {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultSampleRate
}

var _ media.Provider = (*Provider)(nil)
