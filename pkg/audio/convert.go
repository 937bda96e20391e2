package audio

import (
	"log/slog"
	"sync"
)

// Resampler converts frames to a fixed target rate. It logs a warning on the
// first rate mismatch. Create one per stream; not designed for shared use
// across goroutines.
type Resampler struct {
	TargetRate     int
	warnedMismatch sync.Once
}

// Convert returns f at the target rate. Frames already at the target rate are
// returned unchanged (zero allocation).
func (r *Resampler) Convert(f AudioFrame) AudioFrame {
	if f.SampleRate == r.TargetRate || r.TargetRate <= 0 {
		return f
	}
	r.warnedMismatch.Do(func() {
		slog.Warn("audio rate mismatch: resampling",
			"from", f.SampleRate,
			"to", r.TargetRate,
		)
	})
	return AudioFrame{
		Samples:    ResampleMono(f.Samples, f.SampleRate, r.TargetRate),
		SampleRate: r.TargetRate,
		Timestamp:  f.Timestamp,
	}
}

// ResampleMono resamples mono float samples from srcRate to dstRate using
// linear interpolation. If srcRate == dstRate, the input is returned unchanged.
func ResampleMono(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 {
		return samples
	}
	if srcRate == dstRate || len(samples) < 2 {
		return samples
	}
	dstSamples := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]float32, dstSamples)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		s0 := samples[srcIdx]
		s1 := s0
		if srcIdx+1 < len(samples) {
			s1 = samples[srcIdx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}

// Chunker slices an arbitrary-length sample stream into fixed-size frames.
// Leftover samples are carried over to the next Push.
type Chunker struct {
	Size       int
	SampleRate int

	pending []float32
	emitted int
}

// Push appends samples and returns every complete frame now available.
func (c *Chunker) Push(samples []float32) []AudioFrame {
	c.pending = append(c.pending, samples...)
	var frames []AudioFrame
	for len(c.pending) >= c.Size {
		buf := make([]float32, c.Size)
		copy(buf, c.pending[:c.Size])
		c.pending = c.pending[c.Size:]
		frames = append(frames, AudioFrame{
			Samples:    buf,
			SampleRate: c.SampleRate,
			Timestamp:  SamplesDuration(c.emitted, c.SampleRate),
		})
		c.emitted += c.Size
	}
	if len(c.pending) == 0 {
		c.pending = nil
	}
	return frames
}
