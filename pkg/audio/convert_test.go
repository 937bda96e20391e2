package audio_test

import (
	"math"
	"testing"
	"time"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio"
)

func TestResampleMono_SameRate(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := audio.ResampleMono(in, 24000, 24000)
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(in))
	}
}

func TestResampleMono_Upsample(t *testing.T) {
	// 2 samples at 16kHz → 3 samples at 24kHz (1.5x)
	out := audio.ResampleMono([]float32{0, 0.5}, 16000, 24000)
	if len(out) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(out))
	}
	if out[0] != 0 {
		t.Errorf("first sample = %v; want 0", out[0])
	}
	// Second output sits 2/3 of the way between the two inputs.
	if math.Abs(float64(out[1])-1.0/3.0) > 1e-6 {
		t.Errorf("second sample = %v; want ~0.3333", out[1])
	}
}

func TestResampleMono_Downsample(t *testing.T) {
	in := make([]float32, 480)
	out := audio.ResampleMono(in, 48000, 16000)
	if len(out) != 160 {
		t.Fatalf("expected 160 samples, got %d", len(out))
	}
}

func TestResampler_PassThrough(t *testing.T) {
	r := &audio.Resampler{TargetRate: 24000}
	f := audio.AudioFrame{Samples: []float32{0.1}, SampleRate: 24000}
	got := r.Convert(f)
	if &got.Samples[0] != &f.Samples[0] {
		t.Error("expected same backing array for matching rate")
	}
}

func TestResampler_Converts(t *testing.T) {
	r := &audio.Resampler{TargetRate: 24000}
	got := r.Convert(audio.AudioFrame{Samples: make([]float32, 160), SampleRate: 16000})
	if got.SampleRate != 24000 {
		t.Errorf("rate = %d; want 24000", got.SampleRate)
	}
	if len(got.Samples) != 240 {
		t.Errorf("samples = %d; want 240", len(got.Samples))
	}
}

func TestChunker_ExactFrames(t *testing.T) {
	t.Parallel()
	c := &audio.Chunker{Size: 4, SampleRate: 16000}

	if frames := c.Push([]float32{1, 2, 3}); len(frames) != 0 {
		t.Fatalf("got %d frames from 3 samples; want 0", len(frames))
	}
	frames := c.Push([]float32{4, 5, 6, 7, 8, 9})
	if len(frames) != 2 {
		t.Fatalf("got %d frames; want 2", len(frames))
	}
	want := [][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}}
	for i, f := range frames {
		if len(f.Samples) != 4 {
			t.Fatalf("frame %d has %d samples; want 4", i, len(f.Samples))
		}
		for j := range want[i] {
			if f.Samples[j] != want[i][j] {
				t.Errorf("frame %d sample %d = %v; want %v", i, j, f.Samples[j], want[i][j])
			}
		}
	}
	if frames[1].Timestamp != 250*time.Microsecond {
		t.Errorf("second frame timestamp = %v; want 250µs", frames[1].Timestamp)
	}

	// The ninth sample is carried over.
	frames = c.Push([]float32{10, 11, 12})
	if len(frames) != 1 || frames[0].Samples[0] != 9 {
		t.Fatalf("carry-over frame = %+v; want one frame starting at 9", frames)
	}
}

func TestAudioFrame_Duration(t *testing.T) {
	f := audio.AudioFrame{Samples: make([]float32, audio.FrameSamples), SampleRate: audio.CaptureSampleRate}
	if got, want := f.Duration(), 256*time.Millisecond; got != want {
		t.Errorf("Duration() = %v; want %v", got, want)
	}
}
