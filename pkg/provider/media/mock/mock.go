// Package mock provides a test double for media.Provider.
package mock

import (
	"context"
	"sync"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/media"
)

// SpeakCall records a single Synthesize invocation.
type SpeakCall struct {
	Text  string
	Voice string
}

// Provider is a mock implementation of media.Provider.
type Provider struct {
	mu sync.Mutex

	// Image is returned by GenerateImage and EditImage.
	Image *media.Image

	// Speech is returned by Synthesize.
	Speech *media.Speech

	// Err, if non-nil, is returned by every method.
	Err error

	GenerateCalls []media.ImageRequest
	EditCalls     []media.EditRequest
	SpeakCalls    []SpeakCall
}

// GenerateImage implements media.ImageGenerator.
func (p *Provider) GenerateImage(_ context.Context, req media.ImageRequest) (*media.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = append(p.GenerateCalls, req)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Image, nil
}

// EditImage implements media.ImageEditor.
func (p *Provider) EditImage(_ context.Context, req media.EditRequest) (*media.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EditCalls = append(p.EditCalls, req)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Image, nil
}

// Synthesize implements media.SpeechSynthesizer.
func (p *Provider) Synthesize(_ context.Context, text, voice string) (*media.Speech, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SpeakCalls = append(p.SpeakCalls, SpeakCall{Text: text, Voice: voice})
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Speech, nil
}

var _ media.Provider = (*Provider)(nil)
