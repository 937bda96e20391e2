// Package app wires the Dr. Arvin subsystems into a running application.
//
// The App struct owns the full lifecycle: New opens storage and builds the
// coach service and the live controller, Run serves health and metrics until
// the context ends, and Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithBackend, WithAudio, etc.). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/chat"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/coach"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/config"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/health"
	livectl "github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/live"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/observe"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/store"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio/ffmpeg"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/live"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/media"
)

// ErrNoActiveSession is returned by operations that need a selected chat
// session when none is open.
var ErrNoActiveSession = errors.New("app: no active session")

// ErrLiveUnavailable is returned by live operations when no live provider is
// configured.
var ErrLiveUnavailable = errors.New("app: live conversations are not configured")

// ErrSessionInCall rejects typed turns in the session that is recording a
// running live conversation.
var ErrSessionInCall = errors.New("app: session is in a live conversation, /stop it first")

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	// Chat is required. It is usually a resilience.LLMFallback when
	// fallbacks are configured.
	Chat llm.Provider

	// ChatName labels Chat in metrics.
	ChatName string

	// Suggest answers mode suggestions and prompt refinement. Nil reuses Chat.
	Suggest llm.Provider

	Media media.Provider
	Live  live.Provider

	// Checks are extra readiness checks contributed by the providers, such
	// as circuit breaker health.
	Checks []health.Checker
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	log       *slog.Logger
	level     *slog.LevelVar
	metrics   *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	backend store.Backend
	chats   *chat.Store
	coach   *coach.Service
	live    *livectl.Controller
	health  *health.Handler

	source  audio.Source
	sink    audio.Sink
	speaker audio.Sink

	// ctx outlives individual calls; it backs writes triggered by the live
	// transcript stream.
	ctx context.Context

	mu     sync.Mutex
	active string // selected chat session id
	talkID string // the chat session receiving the live transcript

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithBackend injects a storage backend instead of creating one from config.
// The App does not close an injected backend.
func WithBackend(b store.Backend) Option {
	return func(a *App) { a.backend = b }
}

// WithAudio injects the microphone source and speaker sink used for live
// conversations and speech playback instead of ffmpeg/ffplay.
func WithAudio(source audio.Source, sink audio.Sink) Option {
	return func(a *App) {
		a.source = source
		a.sink = sink
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithLevel lets configuration reloads adjust the log level at runtime.
func WithLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithMetrics sets the metric instruments. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
//
// New opens the store, loads every chat session, seeds the profile from
// config, and builds the coach service and, when a live provider is
// configured, the live controller.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Chat == nil {
		return nil, errors.New("app: a chat provider is required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		log:       slog.Default(),
		ctx:       context.WithoutCancel(ctx),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Storage ───────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("app: init store: %w", err), a.close())
	}

	// ── 2. Chats + profile ───────────────────────────────────────────────
	if err := a.initChats(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("app: init chats: %w", err), a.close())
	}

	// ── 3. Audio devices ─────────────────────────────────────────────────
	if a.source == nil {
		a.source = ffmpeg.NewSource(cfg.Live.FFmpegPath)
	}
	if a.sink == nil {
		a.sink = ffmpeg.NewSink(cfg.Live.FFplayPath)
	}
	a.speaker = a.sink

	// ── 4. Coach ─────────────────────────────────────────────────────────
	a.coach = a.newCoach(cfg.Coach)

	// ── 5. Live controller ───────────────────────────────────────────────
	a.initLive()

	// ── 6. Health ────────────────────────────────────────────────────────
	a.initHealth()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore opens the configured backend unless one was injected.
func (a *App) initStore(ctx context.Context) error {
	if a.backend != nil {
		return nil
	}
	switch a.cfg.Storage.Backend {
	case config.StoragePostgres:
		pg, err := store.NewPostgres(ctx, a.cfg.Storage.PostgresDSN)
		if err != nil {
			return err
		}
		a.backend = pg
	default:
		f, err := store.NewFile(a.cfg.Storage.Dir)
		if err != nil {
			return err
		}
		a.backend = f
	}
	a.closers = append(a.closers, a.backend.Close)
	a.log.Info("store opened", "backend", a.cfg.Storage.Backend)
	return nil
}

// initChats loads the chat store and fills empty profile fields from the
// configured seed.
func (a *App) initChats(ctx context.Context) error {
	chats, err := chat.Open(ctx, a.backend)
	if err != nil {
		return err
	}
	a.chats = chats

	seed := a.cfg.Profile
	if cur := chats.Profile(); !seedProfile(&cur, seed) {
		return nil
	}
	_, err = chats.UpdateProfile(ctx, func(p *chat.Profile) { seedProfile(p, seed) })
	return err
}

// seedProfile copies seed values into empty profile fields and reports
// whether anything changed. The business stage counts as empty while it
// still holds the default.
func seedProfile(p *chat.Profile, seed config.ProfileSeed) bool {
	changed := false
	fill := func(dst *string, v, empty string) {
		if *dst == empty && v != "" && v != *dst {
			*dst = v
			changed = true
		}
	}
	fill(&p.Name, seed.Name, "")
	fill(&p.City, seed.City, "")
	fill(&p.Province, seed.Province, "")
	fill(&p.BusinessName, seed.BusinessName, "")
	fill(&p.BusinessType, seed.BusinessType, "")
	fill(&p.BusinessStage, seed.BusinessStage, chat.DefaultProfile().BusinessStage)
	return changed
}

func (a *App) newCoach(cc config.CoachConfig) *coach.Service {
	opts := []coach.Option{
		coach.WithSpeaker(a.speaker),
		coach.WithVoice(cc.Voice),
		coach.WithOutputDir(a.cfg.OutputDir),
		coach.WithAutoSuggest(cc.AutoSuggest),
		coach.WithLogger(a.log),
		coach.WithMetrics(a.metrics),
		coach.WithSessionGuard(a.sessionFree),
	}
	if a.providers.ChatName != "" {
		opts = append(opts, coach.WithProviderName(a.providers.ChatName))
	}
	if a.providers.Media != nil {
		opts = append(opts, coach.WithMedia(a.providers.Media))
	}
	if a.providers.Suggest != nil {
		opts = append(opts, coach.WithSuggester(a.providers.Suggest))
	}
	if loc := cc.Location; loc != nil {
		opts = append(opts, coach.WithLocation(loc.Latitude, loc.Longitude))
	}
	return coach.New(a.chats, a.providers.Chat, opts...)
}

func (a *App) initHealth() {
	checks := []health.Checker{health.Ping("store", a.backend)}
	if a.providers.Live != nil || a.providers.Media != nil {
		checks = append(checks,
			health.Executable("ffmpeg", binaryOr(a.cfg.Live.FFmpegPath, "ffmpeg")),
			health.Executable("ffplay", binaryOr(a.cfg.Live.FFplayPath, "ffplay")),
		)
	}
	checks = append(checks, a.providers.Checks...)
	a.health = health.New(checks...)
}

func binaryOr(path, def string) string {
	if path == "" {
		return def
	}
	return path
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Chats returns the chat store.
func (a *App) Chats() *chat.Store { return a.chats }

// Coach returns the coach service. The returned value may be replaced by a
// configuration reload; callers should not cache it.
func (a *App) Coach() *coach.Service {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.coach
}

// Live returns the live controller, or nil when no live provider is
// configured.
func (a *App) Live() *livectl.Controller { return a.live }

// Health returns the health handler.
func (a *App) Health() *health.Handler { return a.health }

// ─── Sessions ────────────────────────────────────────────────────────────────

// Active returns the selected chat session.
func (a *App) Active() (chat.Session, error) {
	a.mu.Lock()
	id := a.active
	a.mu.Unlock()
	if id == "" {
		return chat.Session{}, ErrNoActiveSession
	}
	return a.chats.Session(id)
}

// Select makes the session with the given id active.
func (a *App) Select(id string) (chat.Session, error) {
	sess, err := a.chats.Session(id)
	if err != nil {
		return chat.Session{}, err
	}
	a.mu.Lock()
	a.active = sess.ID
	a.mu.Unlock()
	return sess, nil
}

// NewSession creates a session in mode and makes it active.
func (a *App) NewSession(ctx context.Context, mode chat.Mode) (chat.Session, error) {
	sess, err := a.chats.NewSession(ctx, mode)
	if err != nil {
		return chat.Session{}, err
	}
	a.mu.Lock()
	a.active = sess.ID
	a.mu.Unlock()
	return sess, nil
}

// ActiveOrNew returns the active session, creating one in mode when none is
// selected.
func (a *App) ActiveOrNew(ctx context.Context, mode chat.Mode) (chat.Session, error) {
	sess, err := a.Active()
	if errors.Is(err, ErrNoActiveSession) || errors.Is(err, chat.ErrSessionNotFound) {
		return a.NewSession(ctx, mode)
	}
	return sess, err
}

// SetMode switches the active session's mode. Leaving the voice modes ends a
// running live conversation.
func (a *App) SetMode(ctx context.Context, mode chat.Mode) error {
	sess, err := a.ActiveOrNew(ctx, mode)
	if err != nil {
		return err
	}
	if err := a.chats.SetMode(ctx, sess.ID, mode); err != nil {
		return err
	}
	if !mode.Live() && a.live != nil && a.live.State() != livectl.StateIdle {
		a.log.Info("leaving voice mode, ending live conversation", "mode", mode)
		a.StopLive()
	}
	return nil
}

// ─── Configuration reload ────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable parts of a changed configuration.
// It is meant as the callback of config.NewWatcher.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(LogLevel(d.NewLogLevel))
		a.log.Info("log level changed", "level", d.NewLogLevel)
	}

	a.mu.Lock()
	if d.LiveVoiceChanged {
		a.cfg.Live.Voice = d.NewLiveVoice
		a.log.Info("live voice changed", "voice", d.NewLiveVoice)
	}
	if d.CoachChanged {
		a.cfg.Coach = new.Coach
		a.coach = a.newCoach(new.Coach)
		a.log.Info("coach settings reloaded")
	}
	a.mu.Unlock()

	if len(d.RestartRequired) > 0 {
		a.log.Warn("configuration changes need a restart", "sections", d.RestartRequired)
	}
}

// LogLevel maps a config log level to its slog equivalent.
func LogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops a running live conversation and then runs the closers. It
// respects the context deadline: if ctx expires before the conversation has
// stopped, the closers still run and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))

		if a.live != nil {
			a.live.Stop()
			select {
			case <-a.live.Done():
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded while stopping live conversation")
				shutdownErr = ctx.Err()
			}
		}

		if err := a.close(); err != nil {
			shutdownErr = errors.Join(shutdownErr, err)
		}
		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) close() error {
	var errs []error
	for i, closer := range a.closers {
		if err := closer(); err != nil {
			a.log.Warn("closer error", "index", i, "err", err)
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
