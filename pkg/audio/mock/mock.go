// Package mock provides in-memory mock implementations of the [audio.Source],
// [audio.CaptureStream], [audio.Sink], [audio.Output], and [audio.Voice]
// interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	stream := mock.NewStream(4)
//	src := &mock.Source{OpenResult: stream}
//	out := &mock.Output{}
//	sink := &mock.Sink{OpenResult: out}
//	stream.Push(audio.AudioFrame{Samples: make([]float32, 4096), SampleRate: 16000})
//	out.SetNow(500 * time.Millisecond)
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio"
)

// ─── Source ──────────────────────────────────────────────────────────────────

// Source is a mock implementation of [audio.Source].
type Source struct {
	mu sync.Mutex

	// OpenResult is returned by [Source.Open] when OpenErr is nil.
	OpenResult audio.CaptureStream

	// OpenErr, if non-nil, is returned by [Source.Open].
	OpenErr error

	// OpenCalls records the config of every Open call.
	OpenCalls []audio.CaptureConfig
}

// Open implements [audio.Source].
func (s *Source) Open(_ context.Context, cfg audio.CaptureConfig) (audio.CaptureStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OpenCalls = append(s.OpenCalls, cfg)
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	return s.OpenResult, nil
}

// CallCountOpen returns how many times Open was called.
func (s *Source) CallCountOpen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.OpenCalls)
}

// ─── Stream ──────────────────────────────────────────────────────────────────

// Stream is a mock implementation of [audio.CaptureStream]. Tests feed frames
// with Push; Close closes the frame channel.
type Stream struct {
	mu     sync.Mutex
	frames chan audio.AudioFrame
	closed bool

	// ErrResult is returned by [Stream.Err].
	ErrResult error

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// NewStream returns a Stream whose frame channel has the given buffer size.
func NewStream(buffer int) *Stream {
	return &Stream{frames: make(chan audio.AudioFrame, buffer)}
}

// Push delivers f to the consumer. It reports false if the stream is closed.
func (s *Stream) Push(f audio.AudioFrame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.frames <- f
	return true
}

// Frames implements [audio.CaptureStream].
func (s *Stream) Frames() <-chan audio.AudioFrame { return s.frames }

// Err implements [audio.CaptureStream].
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrResult
}

// Close implements [audio.CaptureStream].
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return nil
}

// Closes returns how many times Close was called.
func (s *Stream) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountClose
}

// ─── Sink ────────────────────────────────────────────────────────────────────

// Sink is a mock implementation of [audio.Sink].
type Sink struct {
	mu sync.Mutex

	// OpenResult is returned by [Sink.OpenOutput] when OpenErr is nil.
	OpenResult audio.Output

	// OpenErr, if non-nil, is returned by [Sink.OpenOutput].
	OpenErr error

	// OpenRates records the sample rate of every OpenOutput call.
	OpenRates []int
}

// OpenOutput implements [audio.Sink].
func (s *Sink) OpenOutput(_ context.Context, sampleRate int) (audio.Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OpenRates = append(s.OpenRates, sampleRate)
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	return s.OpenResult, nil
}

// CallCountOpen returns how many times OpenOutput was called.
func (s *Sink) CallCountOpen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.OpenRates)
}

// ─── Output ──────────────────────────────────────────────────────────────────

// PlayCall records a single [Output.Play] invocation.
type PlayCall struct {
	Samples []float32
	At      time.Duration
	Voice   *Voice
}

// Output is a mock implementation of [audio.Output] with a manually advanced
// clock. Voices never finish on their own; call [Voice.Finish].
type Output struct {
	mu  sync.Mutex
	now time.Duration

	// PlayErr, if non-nil, is returned by [Output.Play].
	PlayErr error

	// PlayCalls records every Play call in order.
	PlayCalls []PlayCall

	// CallCountClose records how many times Close was called.
	CallCountClose int

	// OnPlay, if set, is called (without the lock held) after each Play.
	OnPlay func(PlayCall)
}

// SetNow sets the value returned by [Output.Now].
func (o *Output) SetNow(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now = d
}

// Now implements [audio.Output].
func (o *Output) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

// Play implements [audio.Output].
func (o *Output) Play(samples []float32, at time.Duration) (audio.Voice, error) {
	o.mu.Lock()
	if o.PlayErr != nil {
		err := o.PlayErr
		o.mu.Unlock()
		return nil, err
	}
	call := PlayCall{Samples: samples, At: at, Voice: NewVoice()}
	o.PlayCalls = append(o.PlayCalls, call)
	hook := o.OnPlay
	o.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return call.Voice, nil
}

// Plays returns a copy of the recorded Play calls.
func (o *Output) Plays() []PlayCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]PlayCall(nil), o.PlayCalls...)
}

// Close implements [audio.Output].
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.CallCountClose++
	return nil
}

// Closes returns how many times Close was called.
func (o *Output) Closes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.CallCountClose
}

// ─── Voice ───────────────────────────────────────────────────────────────────

// Voice is a mock implementation of [audio.Voice].
type Voice struct {
	mu       sync.Mutex
	done     chan struct{}
	finished bool

	// CallCountStop records how many times Stop was called.
	CallCountStop int
}

// NewVoice returns an unfinished Voice.
func NewVoice() *Voice {
	return &Voice{done: make(chan struct{})}
}

// Stop implements [audio.Voice].
func (v *Voice) Stop() {
	v.mu.Lock()
	v.CallCountStop++
	v.mu.Unlock()
	v.Finish()
}

// Finish simulates natural completion. It is idempotent.
func (v *Voice) Finish() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.finished {
		v.finished = true
		close(v.done)
	}
}

// Done implements [audio.Voice].
func (v *Voice) Done() <-chan struct{} { return v.done }

// Stops returns how many times Stop was called.
func (v *Voice) Stops() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.CallCountStop
}

// Compile-time interface assertions.
var (
	_ audio.Source        = (*Source)(nil)
	_ audio.CaptureStream = (*Stream)(nil)
	_ audio.Sink          = (*Sink)(nil)
	_ audio.Output        = (*Output)(nil)
	_ audio.Voice         = (*Voice)(nil)
)
