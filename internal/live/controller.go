// Package live runs voice conversations with the remote model.
//
// A [Controller] owns every resource of one conversation: the microphone
// stream, the encoder pump, the audio output with its playback scheduler, the
// remote session and the transcript merger. It moves through an explicit
// state machine:
//
//	Idle --Start--> Starting --Opened--> Live --Stop|error|close--> Stopping --> Idle
//
// Start failures, remote errors, remote closes and manual stops all route
// through the same teardown, which runs exactly once per conversation and
// tolerates resources that were never acquired.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/observe"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/transcript"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio/playback"
	remote "github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/live"
)

// DefaultCooldown is how long the stop guard stays held after a teardown.
const DefaultCooldown = 500 * time.Millisecond

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// controller's current state, e.g. Start while a conversation runs.
	ErrInvalidState = errors.New("live: invalid state")

	// ErrStopped is returned by Start when Stop was called before start-up
	// finished.
	ErrStopped = errors.New("live: stopped during start")
)

// State is the lifecycle state of a [Controller].
type State int

const (
	StateIdle State = iota
	StateStarting
	StateLive
	StateStopping
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateLive:
		return "live"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	State          State
	Cursor         time.Duration
	ActivePlayback int
	QueuedFiles    int
	Transcript     []transcript.Message
	Err            error
}

// Option configures a [Controller].
type Option func(*Controller)

// WithCaptureConfig sets the microphone settings. Default:
// [audio.DefaultCaptureConfig].
func WithCaptureConfig(cfg audio.CaptureConfig) Option {
	return func(c *Controller) { c.capture = cfg.WithDefaults() }
}

// WithPlaybackRate sets the output sample rate. Default:
// [audio.PlaybackSampleRate].
func WithPlaybackRate(rate int) Option {
	return func(c *Controller) {
		if rate > 0 {
			c.playbackRate = rate
		}
	}
}

// WithCooldown sets how long near-simultaneous stop triggers and new starts
// are ignored after a teardown. Default: [DefaultCooldown].
func WithCooldown(d time.Duration) Option {
	return func(c *Controller) { c.cooldown = d }
}

// WithTranscriptSink receives merged transcript updates.
func WithTranscriptSink(s transcript.Sink) Option {
	return func(c *Controller) { c.transcripts = s }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithMetrics sets the metric instruments. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock replaces time.Now, for tests of the cooldown.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller is the session lifecycle controller. All methods are safe for
// concurrent use.
type Controller struct {
	source   audio.Source
	sink     audio.Sink
	provider remote.Provider

	capture      audio.CaptureConfig
	playbackRate int
	cooldown     time.Duration
	transcripts  transcript.Sink
	log          *slog.Logger
	metrics      *observe.Metrics
	now          func() time.Time

	mu        sync.Mutex
	state     State
	cur       *liveState
	files     []remote.AttachedFile
	err       error
	coolUntil time.Time
}

// liveState holds the resources of one conversation. Fields are written
// under Controller.mu; once stopping is set no new resource is attached.
type liveState struct {
	ctx    context.Context
	cancel context.CancelFunc

	stream    audio.CaptureStream
	output    audio.Output
	scheduler *playback.Scheduler
	session   remote.Session
	merger    *transcript.Merger

	pumpDone chan struct{}
	finished chan struct{}
	stopping bool
	wasLive  bool
	openedAt time.Time
}

// New returns an idle Controller.
func New(source audio.Source, sink audio.Sink, provider remote.Provider, opts ...Option) *Controller {
	c := &Controller{
		source:       source,
		sink:         sink,
		provider:     provider,
		capture:      audio.DefaultCaptureConfig(),
		playbackRate: audio.PlaybackSampleRate,
		cooldown:     DefaultCooldown,
		log:          slog.Default(),
		now:          time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// ── Start ────────────────────────────────────────────────────────────────────

// Start acquires the microphone and the audio output, then connects to the
// remote model. It returns once the connection is pending; the controller
// enters [StateLive] when the remote side accepts the session.
//
// Start fails with [ErrInvalidState] unless the controller is idle and its
// stop cooldown has elapsed. Any failure releases everything acquired so far
// and is also reported by [Controller.Err].
func (c *Controller) Start(ctx context.Context, cfg remote.Config) error {
	c.mu.Lock()
	if c.state != StateIdle {
		s := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: start while %s", ErrInvalidState, s)
	}
	if c.now().Before(c.coolUntil) {
		c.mu.Unlock()
		return fmt.Errorf("%w: start during stop cooldown", ErrInvalidState)
	}
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ls := &liveState{ctx: sctx, cancel: cancel, finished: make(chan struct{})}
	c.state = StateStarting
	c.cur = ls
	c.err = nil
	c.mu.Unlock()

	c.log.Info("live: starting", "model", cfg.Model, "voice", cfg.Voice)

	stream, err := c.source.Open(ctx, c.capture)
	if err != nil {
		return c.abort(ls, fmt.Errorf("live: open microphone: %w", err))
	}
	if !c.attach(ls, func() { ls.stream = stream }) {
		_ = stream.Close()
		return ErrStopped
	}

	out, err := c.sink.OpenOutput(ctx, c.playbackRate)
	if err != nil {
		return c.abort(ls, fmt.Errorf("live: open output: %w", err))
	}
	sched := playback.New(out, playback.WithSampleRate(c.playbackRate), playback.WithLogger(c.log))
	if !c.attach(ls, func() {
		ls.output = out
		ls.scheduler = sched
		ls.merger = transcript.NewMerger(c.transcripts)
	}) {
		sched.Close()
		_ = out.Close()
		return ErrStopped
	}

	session, err := c.provider.Connect(ls.ctx, cfg)
	if err != nil {
		return c.abort(ls, fmt.Errorf("live: connect: %w", err))
	}
	if !c.attach(ls, func() { ls.session = session }) {
		_ = session.Close()
		return ErrStopped
	}

	go c.eventLoop(ls, session)
	return nil
}

// attach runs set under the lock unless teardown of ls has begun.
func (c *Controller) attach(ls *liveState, set func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ls.stopping {
		return false
	}
	set()
	return true
}

// abort tears ls down after a start failure and returns err.
func (c *Controller) abort(ls *liveState, err error) error {
	c.log.Warn("live: start failed", "err", err)
	if !c.shutdown(ls, err) {
		return ErrStopped
	}
	return err
}

// ── Event handling ───────────────────────────────────────────────────────────

func (c *Controller) eventLoop(ls *liveState, session remote.Session) {
	for ev := range session.Events() {
		switch ev := ev.(type) {
		case remote.Opened:
			c.onOpened(ls, session)

		case remote.Transcript:
			ls.merger.Add(ev.Role, ev.Text)

		case remote.Audio:
			c.metrics.LiveChunksReceived.Add(ls.ctx, 1)
			_, err := ls.scheduler.Enqueue(audio.WireChunk{Data: ev.Data, MIMEType: ev.MIMEType})
			if errors.Is(err, audio.ErrDecodeFailure) {
				c.metrics.LiveDecodeFailures.Add(ls.ctx, 1)
			}

		case remote.Interrupted:
			n := ls.scheduler.Interrupt()
			c.metrics.LiveInterruptions.Add(ls.ctx, 1)
			c.log.Debug("live: interrupted", "stopped_voices", n)

		case remote.TurnComplete:
			ls.merger.TurnComplete()

		case remote.Closed:
			if ev.Err != nil {
				c.log.Warn("live: session closed with error", "err", ev.Err)
			} else {
				c.log.Info("live: session closed by remote")
			}
			c.shutdown(ls, ev.Err)
		}
	}
	// The channel also closes without a Closed event after a local Close;
	// shutdown is then a no-op.
	c.shutdown(ls, nil)
}

// onOpened flushes the queued files in FIFO order and only then starts the
// microphone pump, so attachments always precede live audio.
func (c *Controller) onOpened(ls *liveState, session remote.Session) {
	c.mu.Lock()
	if c.cur != ls || c.state != StateStarting || ls.stopping {
		c.mu.Unlock()
		return
	}
	files := c.files
	c.files = nil
	c.state = StateLive
	ls.wasLive = true
	ls.openedAt = c.now()
	ls.pumpDone = make(chan struct{})
	stream := ls.stream
	c.mu.Unlock()

	c.metrics.LiveStarted(ls.ctx)
	c.log.Info("live: session open", "queued_files", len(files))

	for _, f := range files {
		if err := session.SendRealtimeInput(f.Chunk()); err != nil {
			c.log.Warn("live: send attached file", "name", f.Name, "err", err)
			continue
		}
		c.metrics.RecordLiveSent(ls.ctx, "file")
	}

	go c.pump(ls, stream, session)
}

// pump is the outbound encoder: it encodes each captured frame and submits it
// before reading the next one.
func (c *Controller) pump(ls *liveState, stream audio.CaptureStream, session remote.Session) {
	defer close(ls.pumpDone)
	for frame := range stream.Frames() {
		if err := session.SendRealtimeInput(audio.EncodeFrame(frame)); err != nil {
			if errors.Is(err, remote.ErrSessionClosed) {
				audio.Drain(stream.Frames())
				return
			}
			c.log.Warn("live: send audio", "err", err)
			continue
		}
		c.metrics.RecordLiveSent(ls.ctx, "audio")
	}

	c.mu.Lock()
	stopping := ls.stopping
	c.mu.Unlock()
	if stopping {
		return
	}
	err := stream.Err()
	if err == nil {
		err = audio.ErrDeviceUnavailable
	}
	// Teardown waits for this goroutine, so it must run elsewhere.
	go c.shutdown(ls, fmt.Errorf("live: capture ended: %w", err))
}

// ── Stop ─────────────────────────────────────────────────────────────────────

// Stop ends the current conversation. It is safe in every state, including
// mid-connect, and concurrent or repeated calls collapse into one teardown.
func (c *Controller) Stop() {
	c.mu.Lock()
	ls := c.cur
	c.mu.Unlock()
	if ls != nil {
		c.shutdown(ls, nil)
	}
}

// shutdown tears ls down once. It reports whether this call performed the
// teardown.
func (c *Controller) shutdown(ls *liveState, cause error) bool {
	c.mu.Lock()
	if ls.stopping || c.cur != ls {
		c.mu.Unlock()
		return false
	}
	ls.stopping = true
	c.state = StateStopping
	if cause != nil {
		c.err = cause
	}
	// From here on inbound audio and transcript events are dropped.
	if ls.scheduler != nil {
		ls.scheduler.Seal()
	}
	if ls.merger != nil {
		ls.merger.Close()
	}
	c.mu.Unlock()

	if err := c.teardown(ls); err != nil {
		c.log.Warn("live: teardown", "err", err)
	}

	c.mu.Lock()
	c.cur = nil
	c.state = StateIdle
	c.coolUntil = c.now().Add(c.cooldown)
	wasLive, openedAt := ls.wasLive, ls.openedAt
	c.mu.Unlock()

	if wasLive {
		c.metrics.LiveEnded(ls.ctx, c.now().Sub(openedAt))
	}
	ls.cancel()
	close(ls.finished)
	c.log.Info("live: stopped", "err", cause)
	return true
}

// teardown releases the resources of ls in order. Every step tolerates a
// resource that was never acquired.
func (c *Controller) teardown(ls *liveState) error {
	var errs []error

	// Microphone first so no new frames are produced.
	if ls.stream != nil {
		if err := ls.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close microphone: %w", err))
		}
	}
	if ls.pumpDone != nil {
		<-ls.pumpDone
	}
	if ls.output != nil {
		if err := ls.output.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close output: %w", err))
		}
	}
	if ls.session != nil {
		if err := ls.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session: %w", err))
		}
	}
	// Stops every remaining voice and resets the cursor.
	if ls.scheduler != nil {
		ls.scheduler.Close()
	}
	return errors.Join(errs...)
}

// ── Files ────────────────────────────────────────────────────────────────────

// QueueFile adds f to the files sent when the next session opens. While a
// session is live the file is sent right away.
func (c *Controller) QueueFile(f remote.AttachedFile) error {
	c.mu.Lock()
	if c.state == StateLive && c.cur != nil && c.cur.session != nil {
		ls := c.cur
		c.mu.Unlock()
		if err := ls.session.SendRealtimeInput(f.Chunk()); err != nil {
			return fmt.Errorf("live: send file %q: %w", f.Name, err)
		}
		c.metrics.RecordLiveSent(ls.ctx, "file")
		return nil
	}
	defer c.mu.Unlock()
	if c.state == StateStopping {
		return fmt.Errorf("%w: queue file while stopping", ErrInvalidState)
	}
	c.files = append(c.files, f)
	return nil
}

// RemoveFile drops a queued file by its TempID. It reports whether the file
// was queued.
func (c *Controller) RemoveFile(tempID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, f := range c.files {
		if f.TempID == tempID {
			c.files = append(c.files[:i], c.files[i+1:]...)
			return true
		}
	}
	return false
}

// QueuedFiles returns a copy of the files waiting for the next session.
func (c *Controller) QueuedFiles() []remote.AttachedFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]remote.AttachedFile(nil), c.files...)
}

// ── Accessors ────────────────────────────────────────────────────────────────

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the failure that ended the last conversation, or nil if it was
// stopped normally or is still running.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done returns a channel that is closed when the current conversation has
// been torn down. When idle it returns a closed channel.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.cur.finished
}

// Snapshot returns the current state of the controller and its conversation.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	snap := Snapshot{State: c.state, QueuedFiles: len(c.files), Err: c.err}
	ls := c.cur
	var (
		sched  *playback.Scheduler
		merger *transcript.Merger
	)
	if ls != nil {
		sched, merger = ls.scheduler, ls.merger
	}
	c.mu.Unlock()

	if sched != nil {
		snap.Cursor = sched.Cursor()
		snap.ActivePlayback = sched.Active()
	}
	if merger != nil {
		snap.Transcript = merger.Messages()
	}
	return snap
}
