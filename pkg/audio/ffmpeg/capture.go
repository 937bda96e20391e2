package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio"
)

// defaultProbeTimeout bounds how long Open waits for the first PCM bytes
// before assuming a slow but working device.
const defaultProbeTimeout = 2 * time.Second

// Source captures the microphone with an ffmpeg subprocess.
type Source struct {
	// Path is the ffmpeg binary. Default: "ffmpeg" resolved via PATH.
	Path string

	// ProbeTimeout overrides defaultProbeTimeout.
	ProbeTimeout time.Duration

	goos string
}

// NewSource returns a Source using the ffmpeg binary at path ("" for PATH).
func NewSource(path string) *Source {
	return &Source{Path: path}
}

func (s *Source) binary() string {
	if s.Path == "" {
		return "ffmpeg"
	}
	return s.Path
}

func (s *Source) os() string {
	if s.goos == "" {
		return runtime.GOOS
	}
	return s.goos
}

// Open implements [audio.Source]. It starts ffmpeg and waits until the first
// audio arrives, ffmpeg exits, or the probe timeout passes. On Linux, a
// missing echo-cancel source falls back to the default device.
func (s *Source) Open(ctx context.Context, cfg audio.CaptureConfig) (audio.CaptureStream, error) {
	cfg = cfg.WithDefaults()
	st, err := s.open(ctx, cfg)
	if err != nil && errors.Is(err, audio.ErrDeviceUnavailable) &&
		s.os() == "linux" && cfg.EchoCancellation && cfg.Device == "" {
		slog.Warn("ffmpeg: echo-cancel source unavailable, using default input", "err", err)
		cfg.Device = "default"
		return s.open(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Source) open(ctx context.Context, cfg audio.CaptureConfig) (*stream, error) {
	path, err := exec.LookPath(s.binary())
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", audio.ErrDeviceUnavailable, s.binary(), err)
	}
	args, err := captureArgs(s.os(), cfg)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: open stdout: %w", err)
	}
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", audio.ErrDeviceUnavailable, err)
	}

	st := &stream{
		cmd:    cmd,
		stderr: stderr,
		frames: make(chan audio.AudioFrame, 8),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
		ended:  make(chan struct{}),
	}
	go st.readLoop(stdout, cfg)

	probe := s.ProbeTimeout
	if probe <= 0 {
		probe = defaultProbeTimeout
	}
	timer := time.NewTimer(probe)
	defer timer.Stop()

	select {
	case <-st.ready:
		return st, nil
	case <-st.ended:
		select {
		case <-st.ready:
			return st, nil
		default:
		}
		if err := classifyStderr(stderr.String()); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: ffmpeg exited before producing audio", audio.ErrDeviceUnavailable)
	case <-timer.C:
		slog.Debug("ffmpeg: no audio within probe window, continuing", "timeout", probe)
		return st, nil
	case <-ctx.Done():
		_ = st.Close()
		return nil, ctx.Err()
	}
}

// stream is a running ffmpeg capture process.
type stream struct {
	cmd    *exec.Cmd
	stderr *tailBuffer
	frames chan audio.AudioFrame

	ready chan struct{} // closed on first PCM bytes
	done  chan struct{} // closed by Close
	ended chan struct{} // closed when readLoop returns

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

func (st *stream) Frames() <-chan audio.AudioFrame { return st.frames }

func (st *stream) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

// Close kills ffmpeg and waits for the reader to finish. It is idempotent.
func (st *stream) Close() error {
	st.closeOnce.Do(func() {
		close(st.done)
		if st.cmd.Process != nil {
			_ = st.cmd.Process.Kill()
		}
	})
	<-st.ended
	return nil
}

func (st *stream) closing() bool {
	select {
	case <-st.done:
		return true
	default:
		return false
	}
}

// readLoop converts ffmpeg's s16le output into fixed-size frames. Frames are
// handed over with a blocking send so none are dropped.
func (st *stream) readLoop(r io.Reader, cfg audio.CaptureConfig) {
	defer close(st.ended)
	defer close(st.frames)

	chunker := audio.Chunker{Size: cfg.FrameSamples, SampleRate: cfg.SampleRate}
	buf := make([]byte, cfg.FrameSamples*2)
	var carry []byte
	first := true

read:
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if first {
				close(st.ready)
				first = false
			}
			data := append(carry, buf[:n]...)
			even := len(data) &^ 1
			samples, _ := audio.PCM16ToFloat(data[:even])
			carry = append([]byte(nil), data[even:]...)
			for _, f := range chunker.Push(samples) {
				select {
				case st.frames <- f:
				case <-st.done:
					break read
				}
			}
		}
		if err != nil {
			break
		}
	}

	// Drain so ffmpeg never blocks on a full pipe while being killed.
	_, _ = io.Copy(io.Discard, r)
	waitErr := st.cmd.Wait()
	if st.closing() {
		return
	}
	err := classifyStderr(st.stderr.String())
	if err == nil && waitErr != nil {
		err = fmt.Errorf("ffmpeg: %w", waitErr)
	}
	if err != nil {
		st.mu.Lock()
		st.err = err
		st.mu.Unlock()
	}
}

// tailBuffer is an io.Writer that keeps the last max bytes written.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

var _ audio.Source = (*Source)(nil)
