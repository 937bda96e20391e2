// Package playback schedules inbound model audio for gapless sequential
// playback on an [audio.Output].
//
// A [Scheduler] keeps a playback cursor: every decoded chunk starts at
// max(cursor, output clock) and advances the cursor by its own duration, so
// chunks play back-to-back regardless of how late they were decoded, and never
// start in the past. Every scheduled [audio.Voice] is tracked until it finishes
// so that [Scheduler.Interrupt] can silence all pending audio at once (barge-in).
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio"
)

var (
	// ErrClosed is returned by Enqueue after [Scheduler.Close].
	ErrClosed = errors.New("playback: scheduler closed")

	// ErrDiscarded is returned when a chunk decoded before an interruption
	// arrives after it. The chunk is dropped instead of being scheduled into
	// the freshly cleared set.
	ErrDiscarded = errors.New("playback: chunk discarded after interruption")
)

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithSampleRate sets the output sample rate. Chunks at other rates are
// resampled. Default: [audio.PlaybackSampleRate].
func WithSampleRate(rate int) Option {
	return func(s *Scheduler) { s.rate = rate }
}

// WithLogger sets the logger used for skipped chunks. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// Scheduler is the inbound playback scheduler. It is safe for concurrent use.
type Scheduler struct {
	out       audio.Output
	rate      int
	log       *slog.Logger
	resampler audio.Resampler

	mu     sync.Mutex
	cursor time.Duration
	active map[uint64]audio.Voice
	nextID uint64
	// gen is bumped by every interruption; work started under an older
	// generation must not touch the active set.
	gen    uint64
	sealed bool // no new voices; set by Seal and Close
	closed bool
}

// New returns a Scheduler that plays on out.
func New(out audio.Output, opts ...Option) *Scheduler {
	s := &Scheduler{
		out:    out,
		rate:   audio.PlaybackSampleRate,
		log:    slog.Default(),
		active: make(map[uint64]audio.Voice),
	}
	for _, o := range opts {
		o(s)
	}
	s.resampler.TargetRate = s.rate
	return s
}

// Enqueue decodes a wire chunk and schedules it after everything already
// queued. It returns the scheduled start time on the output clock.
//
// Malformed chunks are logged and skipped: the returned error wraps
// [audio.ErrDecodeFailure] and the cursor is left untouched.
func (s *Scheduler) Enqueue(chunk audio.WireChunk) (time.Duration, error) {
	gen, err := s.generation()
	if err != nil {
		return 0, err
	}
	frame, err := audio.DecodeChunk(chunk, s.rate)
	if err != nil {
		s.log.Warn("playback: skipping undecodable chunk", "mime", chunk.MIMEType, "err", err)
		return 0, err
	}
	return s.schedule(gen, frame)
}

// EnqueuePCM schedules raw little-endian int16 PCM recorded at rate Hz.
func (s *Scheduler) EnqueuePCM(pcm []byte, rate int) (time.Duration, error) {
	gen, err := s.generation()
	if err != nil {
		return 0, err
	}
	frame, err := audio.DecodePCM(pcm, rate)
	if err != nil {
		s.log.Warn("playback: skipping undecodable buffer", "bytes", len(pcm), "err", err)
		return 0, err
	}
	return s.schedule(gen, frame)
}

func (s *Scheduler) generation() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return 0, ErrClosed
	}
	return s.gen, nil
}

// schedule places frame at max(cursor, now). gen is the generation observed
// before decoding started.
func (s *Scheduler) schedule(gen uint64, frame audio.AudioFrame) (time.Duration, error) {
	frame = s.resampler.Convert(frame)
	if len(frame.Samples) == 0 {
		return 0, fmt.Errorf("%w: empty buffer", audio.ErrDecodeFailure)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return 0, ErrClosed
	}
	if gen != s.gen {
		return 0, ErrDiscarded
	}

	start := max(s.cursor, s.out.Now())
	voice, err := s.out.Play(frame.Samples, start)
	if err != nil {
		return 0, fmt.Errorf("playback: play: %w", err)
	}
	s.cursor = start + frame.Duration()

	id := s.nextID
	s.nextID++
	s.active[id] = voice
	go s.reap(id, voice)

	return start, nil
}

// reap removes a voice from the active set once it completes naturally.
func (s *Scheduler) reap(id uint64, v audio.Voice) {
	<-v.Done()
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// Interrupt stops every scheduled voice, clears the active set and resets the
// cursor to zero. Chunks whose decode was in flight are discarded. It returns
// the number of voices that were stopped.
func (s *Scheduler) Interrupt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked()
}

func (s *Scheduler) resetLocked() int {
	s.gen++
	n := len(s.active)
	for id, v := range s.active {
		v.Stop()
		delete(s.active, id)
	}
	s.cursor = 0
	return n
}

// Seal rejects every chunk enqueued from now on, including decodes already
// in flight, while voices scheduled earlier keep playing.
func (s *Scheduler) Seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}

// Close stops all playback, resets the cursor and rejects further chunks.
// It does not close the underlying output. Close is idempotent.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.resetLocked()
	s.sealed = true
	s.closed = true
}

// Cursor returns the time at which the next chunk would start if the output
// clock has not caught up with it.
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Active returns the number of scheduled voices that have not finished.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Drained returns a channel closed once every voice scheduled so far has
// finished. Voices scheduled afterwards are not waited for.
func (s *Scheduler) Drained() <-chan struct{} {
	s.mu.Lock()
	voices := make([]audio.Voice, 0, len(s.active))
	for _, v := range s.active {
		voices = append(voices, v)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, v := range voices {
			<-v.Done()
		}
	}()
	return done
}
