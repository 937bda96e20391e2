// Package gemini implements the live.Provider interface for Google's Gemini
// Live API.
//
// A session dials the BidiGenerateContent WebSocket endpoint in the
// background, sends the setup message and waits for setupComplete before
// flushing any queued realtime input. Server messages are translated into
// live events in a fixed order: input transcription, output transcription,
// audio, interruption, turn completion.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/live"
)

// Compile-time assertions that Provider and session satisfy the live interfaces.
var _ live.Provider = (*Provider)(nil)
var _ live.Session = (*session)(nil)

const (
	defaultModel   = "gemini-2.5-flash-native-audio-preview-09-2025"
	defaultBaseURL = "wss://generativelanguage.googleapis.com/ws"
	endpointPath   = "/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	keepaliveInterval = 20 * time.Second
	keepaliveTimeout  = 5 * time.Second

	// Model turns carry whole seconds of base64 audio; the library default
	// of 32 KiB is far too small.
	readLimit = 16 << 20
)

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Gemini model used for sessions.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithKeepalive overrides the ping interval.
func WithKeepalive(d time.Duration) Option {
	return func(p *Provider) { p.keepalive = d }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// ── Provider ───────────────────────────────────────────────────────────────────

// Provider implements live.Provider for Google's Gemini Live API.
type Provider struct {
	apiKey    string
	model     string
	baseURL   string
	keepalive time.Duration
	log       *slog.Logger
}

// New creates a new Gemini Live Provider with the given API key and options.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:    apiKey,
		model:     defaultModel,
		baseURL:   defaultBaseURL,
		keepalive: keepaliveInterval,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Connect returns a pending session and starts dialling in the background.
// The session lives until Close is called, the remote side ends it, or ctx
// is cancelled.
func (p *Provider) Connect(ctx context.Context, cfg live.Config) (live.Session, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = p.model
	}
	setup, err := json.Marshal(buildSetup(model, cfg))
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal setup: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	s := &session{
		log:      p.log,
		events:   make(chan live.Event, 64),
		opened:   make(chan struct{}),
		wake:     make(chan struct{}, 1),
		finished: make(chan struct{}),
		ctx:      sessCtx,
		cancel:   cancel,
	}
	wsURL := strings.TrimRight(p.baseURL, "/") + endpointPath + "?key=" + url.QueryEscape(p.apiKey)
	go s.run(wsURL, setup, p.keepalive)
	return s, nil
}

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type setupMessage struct {
	Setup setupConfig `json:"setup"`
}

type setupConfig struct {
	Model                    string             `json:"model"`
	GenerationConfig         generationConfig   `json:"generationConfig"`
	SystemInstruction        *systemInstruction `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}          `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}          `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type systemInstruction struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string           `json:"text,omitempty"`
	InlineData *audio.WireChunk `json:"inlineData,omitempty"`
	Thought    bool             `json:"thought,omitempty"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []audio.WireChunk `json:"mediaChunks"`
}

// ── Protocol message types (incoming) ─────────────────────────────────────────

type serverMessage struct {
	SetupComplete *json.RawMessage `json:"setupComplete,omitempty"`
	ServerContent *serverContent   `json:"serverContent,omitempty"`
	GoAway        *json.RawMessage `json:"goAway,omitempty"`
	Error         *geminiError     `json:"error,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

type serverContent struct {
	ModelTurn           *modelTurn     `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type modelTurn struct {
	Parts []part `json:"parts"`
}

type transcription struct {
	Text     string `json:"text"`
	Finished bool   `json:"finished,omitempty"`
}

func buildSetup(model string, cfg live.Config) setupMessage {
	voice := cfg.Voice
	if voice == "" {
		voice = live.DefaultVoice
	}
	msg := setupMessage{
		Setup: setupConfig{
			Model: "models/" + strings.TrimPrefix(model, "models/"),
			GenerationConfig: generationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: &speechConfig{
					VoiceConfig: voiceConfig{
						PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: voice},
					},
				},
			},
		},
	}
	if cfg.SystemInstruction != "" {
		msg.Setup.SystemInstruction = &systemInstruction{
			Parts: []part{{Text: cfg.SystemInstruction}},
		}
	}
	if cfg.InputTranscription {
		msg.Setup.InputAudioTranscription = &struct{}{}
	}
	if cfg.OutputTranscription {
		msg.Setup.OutputAudioTranscription = &struct{}{}
	}
	return msg
}

// translate maps one server message to live events in delivery order.
func translate(sc *serverContent) []live.Event {
	var evs []live.Event
	if t := sc.InputTranscription; t != nil && t.Text != "" {
		evs = append(evs, live.Transcript{Role: live.RoleUser, Text: t.Text, Final: t.Finished})
	}
	if t := sc.OutputTranscription; t != nil && t.Text != "" {
		evs = append(evs, live.Transcript{Role: live.RoleModel, Text: t.Text, Final: t.Finished})
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			if !strings.HasPrefix(p.InlineData.MIMEType, "audio/") {
				continue
			}
			evs = append(evs, live.Audio{Data: p.InlineData.Data, MIMEType: p.InlineData.MIMEType})
		}
	}
	if sc.Interrupted {
		evs = append(evs, live.Interrupted{})
	}
	if sc.TurnComplete {
		evs = append(evs, live.TurnComplete{})
	}
	return evs
}

// ── session ────────────────────────────────────────────────────────────────────

type session struct {
	log    *slog.Logger
	events chan live.Event

	mu      sync.Mutex
	pending [][]byte
	closed  bool

	opened   chan struct{} // closed on setupComplete
	wake     chan struct{} // signals the writer that pending grew
	finished chan struct{} // closed when run has returned

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// run owns the connection and the event channel for the session's lifetime.
func (s *session) run(wsURL string, setup []byte, keepalive time.Duration) {
	defer close(s.finished)
	defer close(s.events)
	defer s.cancel()

	conn, _, err := websocket.Dial(s.ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Content-Type": []string{"application/json"},
		},
	})
	if err != nil {
		if s.ctx.Err() == nil {
			s.emit(live.Closed{Err: fmt.Errorf("%w: dial: %v", live.ErrConnectionFailed, err)})
		}
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	if err := conn.Write(s.ctx, websocket.MessageText, setup); err != nil {
		if s.ctx.Err() == nil {
			s.emit(live.Closed{Err: fmt.Errorf("%w: setup: %v", live.ErrConnectionFailed, err)})
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.writeLoop(conn) }()
	go func() { defer wg.Done(); s.keepaliveLoop(conn, keepalive) }()
	defer wg.Wait()
	// Stop the helpers before waiting for them.
	defer s.cancel()

	if ev := s.readLoop(conn); ev != nil && s.ctx.Err() == nil {
		s.emit(*ev)
	}
}

// readLoop dispatches server messages until the connection ends. It returns
// the terminal Closed event, or nil when the session was closed locally.
func (s *session) readLoop(conn *websocket.Conn) *live.Closed {
	isOpen := false
	for {
		_, data, err := conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			switch {
			case !isOpen:
				return &live.Closed{Err: fmt.Errorf("%w: closed before setup completed: %v", live.ErrConnectionFailed, err)}
			case websocket.CloseStatus(err) == websocket.StatusNormalClosure:
				return &live.Closed{}
			default:
				return &live.Closed{Err: fmt.Errorf("%w: %v", live.ErrRemote, err)}
			}
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Debug("gemini: skipping malformed server message", "err", err)
			continue
		}

		if msg.Error != nil {
			text := msg.Error.Message
			if text == "" {
				text = "unknown error"
			}
			return &live.Closed{Err: fmt.Errorf("%w: %s (code %d)", live.ErrRemote, text, msg.Error.Code)}
		}
		if msg.SetupComplete != nil && !isOpen {
			isOpen = true
			close(s.opened)
			if !s.emit(live.Opened{}) {
				return nil
			}
		}
		if msg.ServerContent != nil {
			for _, ev := range translate(msg.ServerContent) {
				if !s.emit(ev) {
					return nil
				}
			}
		}
		if msg.GoAway != nil {
			s.log.Info("gemini: server announced disconnect", "details", string(*msg.GoAway))
		}
	}
}

// writeLoop waits for setupComplete, then writes queued input in order.
// It is the only writer of data frames.
func (s *session) writeLoop(conn *websocket.Conn) {
	select {
	case <-s.opened:
	case <-s.ctx.Done():
		return
	}
	for {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, data := range batch {
			if err := conn.Write(s.ctx, websocket.MessageText, data); err != nil {
				if s.ctx.Err() == nil {
					s.log.Warn("gemini: write failed", "err", err)
				}
				return
			}
		}

		select {
		case <-s.wake:
		case <-s.ctx.Done():
			return
		}
	}
}

// keepaliveLoop sends WebSocket pings to keep the Gemini Live connection alive.
func (s *session) keepaliveLoop(conn *websocket.Conn, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(s.ctx, keepaliveTimeout)
			if err := conn.Ping(pingCtx); err != nil && s.ctx.Err() == nil {
				s.log.Debug("gemini: keepalive ping failed", "err", err)
			}
			cancel()
		}
	}
}

// emit delivers ev unless the session is closing. It reports whether the
// event was delivered.
func (s *session) emit(ev live.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// ── live.Session methods ───────────────────────────────────────────────────────

// SendRealtimeInput queues one media chunk for delivery.
func (s *session) SendRealtimeInput(chunk audio.WireChunk) error {
	data, err := json.Marshal(realtimeInputMessage{
		RealtimeInput: realtimeInput{MediaChunks: []audio.WireChunk{chunk}},
	})
	if err != nil {
		return fmt.Errorf("gemini: marshal: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return live.ErrSessionClosed
	}
	s.pending = append(s.pending, data)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Events returns the session's event stream.
func (s *session) Events() <-chan live.Event { return s.events }

// Close terminates the session and waits for its goroutines. Idempotent.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.pending = nil
		s.mu.Unlock()
		s.cancel()
	})
	<-s.finished
	return nil
}

