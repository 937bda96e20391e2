package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/media"
	mediamock "github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/media/mock"
)

func TestMediaFallback_Failover(t *testing.T) {
	primary := &mediamock.Provider{Err: errors.New("primary down")}
	secondary := &mediamock.Provider{
		Image:  &media.Image{Data: []byte{1}, MIMEType: "image/png"},
		Speech: &media.Speech{PCM: []byte{0, 0}, SampleRate: 24000},
	}

	fb := NewMediaFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 5},
	})
	fb.AddFallback("secondary", secondary)
	ctx := context.Background()

	img, err := fb.GenerateImage(ctx, media.ImageRequest{Prompt: "logo"})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if img.MIMEType != "image/png" {
		t.Fatalf("MIMEType = %q, want image/png", img.MIMEType)
	}
	if _, err := fb.EditImage(ctx, media.EditRequest{Prompt: "brighter"}); err != nil {
		t.Fatalf("EditImage: %v", err)
	}
	sp, err := fb.Synthesize(ctx, "salam", "Kore")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if sp.SampleRate != 24000 {
		t.Fatalf("SampleRate = %d, want 24000", sp.SampleRate)
	}

	if len(primary.GenerateCalls) != 1 || len(primary.EditCalls) != 1 || len(primary.SpeakCalls) != 1 {
		t.Fatal("primary should have been tried once per call")
	}
	if len(secondary.SpeakCalls) != 1 || secondary.SpeakCalls[0].Voice != "Kore" {
		t.Fatalf("secondary speak calls = %+v", secondary.SpeakCalls)
	}
}

func TestMediaFallback_AllFail(t *testing.T) {
	fb := NewMediaFallback(&mediamock.Provider{Err: errors.New("down")}, "only", FallbackConfig{})
	if _, err := fb.GenerateImage(context.Background(), media.ImageRequest{}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
