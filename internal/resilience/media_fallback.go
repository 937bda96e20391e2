package resilience

import (
	"context"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/media"
)

// MediaFallback implements [media.Provider] with automatic failover across
// multiple image and speech backends. Each backend has its own circuit breaker.
type MediaFallback struct {
	group *FallbackGroup[media.Provider]
}

var _ media.Provider = (*MediaFallback)(nil)

// NewMediaFallback creates a [MediaFallback] with primary as the preferred backend.
func NewMediaFallback(primary media.Provider, primaryName string, cfg FallbackConfig) *MediaFallback {
	return &MediaFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional media provider as a fallback.
func (f *MediaFallback) AddFallback(name string, provider media.Provider) {
	f.group.AddFallback(name, provider)
}

// Healthy returns nil while at least one backend accepts calls.
func (f *MediaFallback) Healthy(ctx context.Context) error { return f.group.Healthy(ctx) }

// GenerateImage tries each healthy backend in turn.
func (f *MediaFallback) GenerateImage(ctx context.Context, req media.ImageRequest) (*media.Image, error) {
	return ExecuteWithResult(f.group, func(p media.Provider) (*media.Image, error) {
		return p.GenerateImage(ctx, req)
	})
}

// EditImage tries each healthy backend in turn.
func (f *MediaFallback) EditImage(ctx context.Context, req media.EditRequest) (*media.Image, error) {
	return ExecuteWithResult(f.group, func(p media.Provider) (*media.Image, error) {
		return p.EditImage(ctx, req)
	})
}

// Synthesize tries each healthy backend in turn.
func (f *MediaFallback) Synthesize(ctx context.Context, text, voice string) (*media.Speech, error) {
	return ExecuteWithResult(f.group, func(p media.Provider) (*media.Speech, error) {
		return p.Synthesize(ctx, text, voice)
	})
}
