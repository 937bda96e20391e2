// Package audio defines the audio primitives of the live conversation
// pipeline and the interfaces to local audio devices.
//
// The two device abstractions are:
//
//   - [Source] opens the microphone and returns a [CaptureStream] of
//     fixed-size [AudioFrame] values.
//   - [Sink] opens an [Output]: a clocked device on which sample buffers are
//     scheduled at absolute times and returned as stoppable [Voice] handles.
//
// Implementations live in sub-packages (audio/ffmpeg for the real devices,
// audio/mock for tests). The package also carries the PCM and base64 codec
// helpers shared by the encoder and the playback scheduler.
package audio

import (
	"context"
	"time"
)

// CaptureConfig describes the microphone stream requested from a [Source].
type CaptureConfig struct {
	// SampleRate in Hz. Default: [CaptureSampleRate].
	SampleRate int

	// FrameSamples is the exact number of samples per delivered frame.
	// Default: [FrameSamples].
	FrameSamples int

	// Device selects a platform-specific input device. Empty means the
	// system default.
	Device string

	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// DefaultCaptureConfig returns the capture settings used by live sessions:
// 16 kHz mono, 4096-sample frames, all voice processing enabled.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:       CaptureSampleRate,
		FrameSamples:     FrameSamples,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

// WithDefaults fills zero-valued numeric fields with their defaults.
func (c CaptureConfig) WithDefaults() CaptureConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = CaptureSampleRate
	}
	if c.FrameSamples <= 0 {
		c.FrameSamples = FrameSamples
	}
	return c
}

// Source acquires microphone input.
//
// Open fails with an error wrapping [ErrPermissionDenied] or
// [ErrDeviceUnavailable] when the device cannot be acquired. No resources are
// held when Open returns an error.
type Source interface {
	Open(ctx context.Context, cfg CaptureConfig) (CaptureStream, error)
}

// CaptureStream is an open microphone.
//
// Frames delivers frames of exactly CaptureConfig.FrameSamples samples in
// capture order and is closed when the stream ends. Frames are never dropped:
// the producer blocks when the consumer falls behind. Close releases the
// device; it is idempotent. Err reports why the stream ended early, if it did.
type CaptureStream interface {
	Frames() <-chan AudioFrame
	Err() error
	Close() error
}

// Sink opens audio outputs at a given sample rate.
type Sink interface {
	OpenOutput(ctx context.Context, sampleRate int) (Output, error)
}

// Output is a clocked playback device.
//
// Now reports the output clock, starting at zero when the output is opened.
// Play schedules mono samples to start at the output-clock time at (which
// must not be in the past; implementations start late buffers immediately)
// and returns a handle for the scheduled buffer. Close stops every scheduled
// buffer and releases the device; it is idempotent.
//
// Implementations must be safe for concurrent use.
type Output interface {
	Now() time.Duration
	Play(samples []float32, at time.Duration) (Voice, error)
	Close() error
}

// Voice is one scheduled buffer on an [Output].
//
// Done is closed when the buffer finishes playing or is stopped. Stop is
// idempotent and safe to call after the buffer finished.
type Voice interface {
	Stop()
	Done() <-chan struct{}
}
