package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio"
)

const defaultTick = 20 * time.Millisecond

// Sink plays audio through an ffplay subprocess.
type Sink struct {
	// Path is the ffplay binary. Default: "ffplay" resolved via PATH.
	Path string

	// Tick is the render period. Default: 20ms.
	Tick time.Duration
}

// NewSink returns a Sink using the ffplay binary at path ("" for PATH).
func NewSink(path string) *Sink {
	return &Sink{Path: path}
}

// OpenOutput implements [audio.Sink].
func (s *Sink) OpenOutput(_ context.Context, sampleRate int) (audio.Output, error) {
	bin := s.Path
	if bin == "" {
		bin = "ffplay"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", audio.ErrDeviceUnavailable, bin, err)
	}

	cmd := exec.Command(path, playbackArgs(sampleRate)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffplay: open stdin: %w", err)
	}
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffplay: %v", audio.ErrDeviceUnavailable, err)
	}

	o := newOutput(stdin, sampleRate)
	o.stop = func() error {
		_ = cmd.Process.Kill()
		err := cmd.Wait()
		if msg := stderr.String(); msg != "" {
			slog.Debug("ffplay: exited", "stderr", msg)
		}
		return err
	}
	tick := s.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	go o.run(tick)
	return o, nil
}

// output is a software mixer that renders scheduled voices onto a single PCM
// stream. The output clock is the number of samples written so far.
type output struct {
	w    io.WriteCloser
	rate int
	stop func() error

	mu      sync.Mutex
	written int64
	voices  []*voice
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newOutput(w io.WriteCloser, rate int) *output {
	return &output{w: w, rate: rate, done: make(chan struct{})}
}

// Now implements [audio.Output].
func (o *output) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return audio.SamplesDuration(int(o.written), o.rate)
}

// Play implements [audio.Output]. A start time in the past plays immediately.
func (o *output) Play(samples []float32, at time.Duration) (audio.Voice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, fmt.Errorf("ffplay: output closed")
	}
	v := &voice{
		start:   int64(at.Seconds()*float64(o.rate) + 0.5),
		samples: samples,
		done:    make(chan struct{}),
	}
	o.voices = append(o.voices, v)
	return v, nil
}

func (o *output) run(tick time.Duration) {
	n := int(int64(o.rate) * int64(tick) / int64(time.Second))
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-o.done:
			return
		case <-t.C:
			if err := o.step(n); err != nil {
				slog.Warn("ffplay: write failed, stopping output", "err", err)
				_ = o.Close()
				return
			}
		}
	}
}

// step renders the next n samples and writes them to the player.
func (o *output) step(n int) error {
	buf := make([]float32, n)

	o.mu.Lock()
	from, to := o.written, o.written+int64(n)
	live := o.voices[:0]
	for _, v := range o.voices {
		if v.stopped.Load() {
			continue
		}
		end := v.start + int64(len(v.samples))
		if v.start < to && end > from {
			lo, hi := max(v.start, from), min(end, to)
			for i := lo; i < hi; i++ {
				buf[i-from] += v.samples[i-v.start]
			}
		}
		if end <= to {
			v.finish()
			continue
		}
		live = append(live, v)
	}
	clear(o.voices[len(live):])
	o.voices = live
	o.written = to
	o.mu.Unlock()

	_, err := o.w.Write(audio.FloatToPCM16(buf))
	return err
}

// Close implements [audio.Output]. Pending voices are stopped.
func (o *output) Close() error {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		for _, v := range o.voices {
			v.Stop()
		}
		o.voices = nil
		o.mu.Unlock()

		close(o.done)
		o.closeErr = o.w.Close()
		if o.stop != nil {
			_ = o.stop()
		}
	})
	return o.closeErr
}

// voice is one scheduled buffer on the output timeline.
type voice struct {
	start   int64
	samples []float32

	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}
}

func (v *voice) Stop() {
	v.stopped.Store(true)
	v.finish()
}

func (v *voice) finish() {
	v.once.Do(func() { close(v.done) })
}

func (v *voice) Done() <-chan struct{} { return v.done }

var (
	_ audio.Sink   = (*Sink)(nil)
	_ audio.Output = (*output)(nil)
	_ audio.Voice  = (*voice)(nil)
)
