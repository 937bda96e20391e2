// Package media defines the provider interfaces for non-text generation:
// images from a prompt, edits of an existing image, and speech synthesis.
//
// Implementations must be safe for concurrent use.
package media

import (
	"context"
	"errors"
)

// ErrNoImage is returned when the model answered without any image part.
var ErrNoImage = errors.New("media: response contained no image")

// ErrNoAudio is returned when speech synthesis produced no audio.
var ErrNoAudio = errors.New("media: response contained no audio")

// Image is a generated or edited picture.
type Image struct {
	Data     []byte
	MIMEType string
}

// ImageRequest describes an image to generate.
type ImageRequest struct {
	Prompt string

	// AspectRatio is one of "1:1", "3:4", "4:3", "9:16", "16:9". Empty
	// selects "1:1".
	AspectRatio string

	// Size is "1K", "2K" or "4K". Empty selects "1K".
	Size string
}

// EditRequest describes an edit applied to Source.
type EditRequest struct {
	Prompt string
	Source Image
}

// Speech is mono signed 16-bit little-endian PCM.
type Speech struct {
	PCM        []byte
	SampleRate int
}

// ImageGenerator creates images from text.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*Image, error)
}

// ImageEditor modifies an existing image according to a prompt.
type ImageEditor interface {
	EditImage(ctx context.Context, req EditRequest) (*Image, error)
}

// SpeechSynthesizer converts text to audio. An empty voice selects the
// implementation's default.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*Speech, error)
}

// Provider bundles all media capabilities of one backend.
type Provider interface {
	ImageGenerator
	ImageEditor
	SpeechSynthesizer
}
