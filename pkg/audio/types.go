package audio

import (
	"strconv"
	"time"
)

const (
	// CaptureSampleRate is the microphone capture rate expected by the live API.
	CaptureSampleRate = 16000

	// PlaybackSampleRate is the rate of model audio returned by the live API.
	PlaybackSampleRate = 24000

	// FrameSamples is the number of samples in one captured [AudioFrame].
	FrameSamples = 4096
)

// AudioFrame is a buffer of single-channel float samples in [-1, 1].
// Frames are produced by a [CaptureStream] and consumed immediately by the
// outbound encoder; they are never retained.
type AudioFrame struct {
	// Samples holds mono samples, normalised to [-1.0, 1.0].
	Samples []float32

	// SampleRate in Hz (16000 for capture, 24000 for model playback).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback length of the frame at its sample rate.
func (f AudioFrame) Duration() time.Duration {
	return SamplesDuration(len(f.Samples), f.SampleRate)
}

// SamplesDuration returns the playback length of n samples at rate Hz.
func SamplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}

// WireChunk is audio in transit to or from the remote session: base64-encoded
// little-endian 16-bit PCM tagged with a MIME type that carries the rate.
type WireChunk struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

// PCMMIMEType returns the MIME type used on the wire for raw PCM at rate Hz,
// e.g. "audio/pcm;rate=16000".
func PCMMIMEType(rate int) string {
	return "audio/pcm;rate=" + strconv.Itoa(rate)
}
