// Package coach turns chat messages into model calls.
//
// A [Service] owns the per-mode behaviour of the assistant: it builds the
// system instruction and sampling settings for the session's mode, streams
// text replies, routes image modes to the media provider, synthesises speech
// and recommends a better mode when the conversation calls for one. Every
// exchange is written to the [chat.Store] as it happens.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/chat"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/observe"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio/playback"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/live"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/media"
)

var (
	// ErrEmptyMessage is returned when a message has neither text nor a file.
	ErrEmptyMessage = errors.New("coach: message is empty")

	// ErrImageRequired is returned by image editing without an attached image.
	ErrImageRequired = errors.New("coach: image editing needs an attached image")

	// ErrNoMedia is returned by image and speech operations when no media
	// provider is configured.
	ErrNoMedia = errors.New("coach: no media provider configured")

	// ErrNoSpeaker is returned by Speak when no audio output is configured.
	ErrNoSpeaker = errors.New("coach: no audio output configured")
)

// FailureReply is stored as the model's answer when an exchange fails.
const FailureReply = "Something went wrong. Please try again."

// DefaultAspectRatio is used for image generation when none is given.
const DefaultAspectRatio = "1:1"

// suggestMinReply is the reply length above which an automatic suggestion is
// requested.
const suggestMinReply = 50

var (
	speechCommand = regexp.MustCompile(`(?is)^(?:بگو|say|voice|صدا|ویس)\s*[:\s]*(.*)`)
	imageCommand  = regexp.MustCompile(`(?is)^(?:بساز|ساخت|generate|create)\s*(?:image|عکس|تصویر)\s*[:\s]*(.*)`)
	markdownLink  = regexp.MustCompile(`\[(.*?)\]\(.*?\)`)
	markdownMarks = regexp.MustCompile("[#*`_~>]")
)

// Option configures a [Service].
type Option func(*Service)

// WithMedia sets the image and speech provider.
func WithMedia(p media.Provider) Option {
	return func(s *Service) { s.media = p }
}

// WithSuggester sets the provider used for mode suggestions and prompt
// refinement. Default: the chat provider.
func WithSuggester(p llm.Provider) Option {
	return func(s *Service) { s.suggester = p }
}

// WithSpeaker sets the audio sink used by Speak.
func WithSpeaker(sink audio.Sink) Option {
	return func(s *Service) { s.speaker = sink }
}

// WithVoice sets the prebuilt TTS voice. Default: "Kore".
func WithVoice(voice string) Option {
	return func(s *Service) { s.voice = voice }
}

// WithOutputDir makes generated images land in dir as files referenced by
// file:// URLs. Without it images are stored inline as data URLs.
func WithOutputDir(dir string) Option {
	return func(s *Service) { s.outputDir = dir }
}

// WithLocation biases maps grounding towards a position.
func WithLocation(lat, lng float64) Option {
	return func(s *Service) { s.location = &llm.LatLng{Latitude: lat, Longitude: lng} }
}

// WithAutoSuggest requests a mode suggestion after every long text reply.
func WithAutoSuggest(enabled bool) Option {
	return func(s *Service) { s.autoSuggest = enabled }
}

// WithProviderName sets the provider label used on metrics.
func WithProviderName(name string) Option {
	return func(s *Service) { s.providerName = name }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithSessionGuard installs a check run before a turn touches a session. A
// non-nil error rejects the turn and leaves the session unchanged.
func WithSessionGuard(fn func(sessionID string) error) Option {
	return func(s *Service) { s.guard = fn }
}

// WithMetrics sets the metrics sink. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service runs coaching exchanges. It is safe for concurrent use.
type Service struct {
	chats     *chat.Store
	llm       llm.Provider
	suggester llm.Provider
	media     media.Provider
	speaker   audio.Sink

	voice        string
	outputDir    string
	location     *llm.LatLng
	autoSuggest  bool
	providerName string
	guard        func(sessionID string) error

	log     *slog.Logger
	metrics *observe.Metrics
}

// New returns a Service that stores conversations in chats and generates text
// with provider.
func New(chats *chat.Store, provider llm.Provider, opts ...Option) *Service {
	s := &Service{
		chats:        chats,
		llm:          provider,
		voice:        "Kore",
		providerName: "chat",
		log:          slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.suggester == nil {
		s.suggester = s.llm
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Request is one user turn.
type Request struct {
	SessionID string
	Text      string
	// File is an optional attachment. In image editing modes it is the image
	// to edit; otherwise it is sent to the chat model with the text.
	File *live.AttachedFile
	// AspectRatio applies to image generation. Default: [DefaultAspectRatio].
	AspectRatio string
}

// Result is the outcome of [Service.Send].
type Result struct {
	// Reply is the model message as stored in the session.
	Reply chat.Message
	// Suggestion is set when automatic suggestions are enabled and the model
	// recommended another mode.
	Suggestion *chat.Suggestion
}

// Send runs one user turn in the session's mode. onUpdate, when non-nil, is
// called with the growing model message while a text reply streams in.
//
// The user message and a model placeholder are appended before any model
// call. When the call fails the placeholder is replaced by [FailureReply] and
// the error is returned.
func (s *Service) Send(ctx context.Context, req Request, onUpdate func(chat.Message)) (Result, error) {
	if strings.TrimSpace(req.Text) == "" && req.File == nil {
		return Result{}, ErrEmptyMessage
	}
	if err := s.admit(req.SessionID); err != nil {
		return Result{}, err
	}
	sess, err := s.chats.Session(req.SessionID)
	if err != nil {
		return Result{}, err
	}

	user := chat.Message{Role: chat.RoleUser, Content: req.Text}
	if req.File != nil && isImage(req.File.MIMEType) &&
		(sess.Mode == chat.ModeImageEditing || sess.Mode == chat.ModeProSalesCampaign) {
		user.ImageURL = dataURL(req.File.MIMEType, req.File.Data)
	}

	reply, err := s.exchange(ctx, sess, user, func(ctx context.Context, history []chat.Message) (chat.Message, error) {
		return s.dispatch(ctx, sess, history, req, onUpdate)
	})
	if err != nil {
		return Result{Reply: chat.Message{Role: chat.RoleModel, Content: FailureReply}}, err
	}

	res := Result{Reply: reply}
	if s.autoSuggest && req.File == nil && reply.ImageURL == "" && len(reply.Content) > suggestMinReply {
		sugg, err := s.Suggest(ctx, req.SessionID)
		if err != nil {
			s.log.Warn("coach: suggestion failed", "session", req.SessionID, "err", err)
		}
		res.Suggestion = sugg
	}
	return res, nil
}

func (s *Service) dispatch(ctx context.Context, sess chat.Session, history []chat.Message, req Request, onUpdate func(chat.Message)) (chat.Message, error) {
	switch sess.Mode {
	case chat.ModeImageGeneration:
		return s.generate(ctx, history, req.Text, req.AspectRatio)

	case chat.ModeImageEditing:
		if req.File == nil || !isImage(req.File.MIMEType) {
			return chat.Message{}, ErrImageRequired
		}
		return s.edit(ctx, req.Text, req.File)

	case chat.ModeProSalesCampaign:
		if m := speechCommand.FindStringSubmatch(req.Text); m != nil && strings.TrimSpace(m[1]) != "" {
			text := strings.TrimSpace(m[1])
			if err := s.Speak(ctx, text); err != nil {
				return chat.Message{}, err
			}
			return chat.Message{Role: chat.RoleModel, Content: "Audio generated and played.\n\nText: " + text}, nil
		}
		if req.File != nil && isImage(req.File.MIMEType) {
			return s.edit(ctx, req.Text, req.File)
		}
		if m := imageCommand.FindStringSubmatch(req.Text); m != nil && strings.TrimSpace(m[1]) != "" {
			return s.generate(ctx, history, strings.TrimSpace(m[1]), req.AspectRatio)
		}
	}
	return s.reply(ctx, sess, history, req, onUpdate)
}

func (s *Service) admit(sessionID string) error {
	if s.guard == nil {
		return nil
	}
	return s.guard(sessionID)
}

// exchange appends user and a model placeholder to the session, runs fn with
// the history that preceded user, and stores fn's message (or FailureReply)
// in place of the placeholder.
func (s *Service) exchange(ctx context.Context, sess chat.Session, user chat.Message, fn func(context.Context, []chat.Message) (chat.Message, error)) (chat.Message, error) {
	if err := s.chats.RecordMessage(ctx, sess.Mode); err != nil {
		return chat.Message{}, err
	}
	history := sess.Messages
	if err := s.chats.Append(ctx, sess.ID, user); err != nil {
		return chat.Message{}, err
	}
	if err := s.chats.Append(ctx, sess.ID, chat.Message{Role: chat.RoleModel}); err != nil {
		return chat.Message{}, err
	}

	reply, err := fn(ctx, history)
	if err != nil {
		s.log.Warn("coach: exchange failed", "session", sess.ID, "mode", sess.Mode, "err", err)
		if serr := s.chats.ReplaceLast(ctx, sess.ID, chat.Message{Role: chat.RoleModel, Content: FailureReply}); serr != nil {
			return chat.Message{}, errors.Join(err, serr)
		}
		return chat.Message{}, err
	}
	reply.Role = chat.RoleModel
	if err := s.chats.ReplaceLast(ctx, sess.ID, reply); err != nil {
		return chat.Message{}, err
	}
	return reply, nil
}

// ── Text ─────────────────────────────────────────────────────────────────────

func (s *Service) reply(ctx context.Context, sess chat.Session, history []chat.Message, req Request, onUpdate func(chat.Message)) (chat.Message, error) {
	ctx, span := observe.StartSpan(ctx, "coach.reply")
	defer span.End()

	profile := s.chats.Profile()
	creq := llm.CompletionRequest{
		SystemPrompt: SystemInstruction(sess.Mode, &profile),
		Messages:     toLLM(history),
	}
	last := llm.Message{Role: llm.RoleUser, Content: req.Text}
	if req.File != nil {
		data, err := audio.DecodeBase64(req.File.Data)
		if err != nil {
			return chat.Message{}, fmt.Errorf("coach: attachment: %w", err)
		}
		last.Attachments = []llm.Attachment{{MIMEType: req.File.MIMEType, Data: data}}
	}
	creq.Messages = append(creq.Messages, last)
	params := ParamsFor(sess.Mode)
	params.Apply(&creq)
	if params.Grounding == llm.GroundingMaps {
		creq.Location = s.location
	}

	start := time.Now()
	ch, err := s.llm.StreamCompletion(ctx, creq)
	if err != nil {
		s.record(ctx, "chat", start, err)
		return chat.Message{}, fmt.Errorf("coach: stream: %w", err)
	}

	var b strings.Builder
	msg := chat.Message{Role: chat.RoleModel}
	for chunk := range ch {
		if chunk.FinishReason == "error" {
			err := fmt.Errorf("coach: stream: %s", chunk.Text)
			s.record(ctx, "chat", start, err)
			return chat.Message{}, err
		}
		if chunk.Text == "" {
			continue
		}
		b.WriteString(chunk.Text)
		msg.Content = b.String()
		if err := s.chats.UpdateLast(sess.ID, msg); err != nil {
			return chat.Message{}, err
		}
		if onUpdate != nil {
			onUpdate(msg)
		}
	}
	if err := ctx.Err(); err != nil {
		s.record(ctx, "chat", start, err)
		return chat.Message{}, fmt.Errorf("coach: stream: %w", err)
	}
	s.record(ctx, "chat", start, nil)
	return msg, nil
}

func toLLM(history []chat.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := llm.RoleUser
		if m.Role == chat.RoleModel {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}

// ── Images ───────────────────────────────────────────────────────────────────

// GenerateImage runs an image generation turn in the session regardless of
// its mode.
func (s *Service) GenerateImage(ctx context.Context, sessionID, prompt, aspectRatio string) (chat.Message, error) {
	if strings.TrimSpace(prompt) == "" {
		return chat.Message{}, ErrEmptyMessage
	}
	if err := s.admit(sessionID); err != nil {
		return chat.Message{}, err
	}
	sess, err := s.chats.Session(sessionID)
	if err != nil {
		return chat.Message{}, err
	}
	return s.exchange(ctx, sess, chat.Message{Role: chat.RoleUser, Content: prompt}, func(ctx context.Context, history []chat.Message) (chat.Message, error) {
		return s.generate(ctx, history, prompt, aspectRatio)
	})
}

// EditImage runs an image editing turn in the session regardless of its mode.
func (s *Service) EditImage(ctx context.Context, sessionID, prompt string, file live.AttachedFile) (chat.Message, error) {
	if !isImage(file.MIMEType) {
		return chat.Message{}, ErrImageRequired
	}
	if err := s.admit(sessionID); err != nil {
		return chat.Message{}, err
	}
	sess, err := s.chats.Session(sessionID)
	if err != nil {
		return chat.Message{}, err
	}
	user := chat.Message{Role: chat.RoleUser, Content: prompt, ImageURL: dataURL(file.MIMEType, file.Data)}
	return s.exchange(ctx, sess, user, func(ctx context.Context, _ []chat.Message) (chat.Message, error) {
		return s.edit(ctx, prompt, &file)
	})
}

func (s *Service) generate(ctx context.Context, history []chat.Message, prompt, aspectRatio string) (chat.Message, error) {
	if s.media == nil {
		return chat.Message{}, ErrNoMedia
	}
	ctx, span := observe.StartSpan(ctx, "coach.generate_image")
	defer span.End()

	if aspectRatio == "" {
		aspectRatio = DefaultAspectRatio
	}
	refined := s.refinePrompt(ctx, history, prompt)

	start := time.Now()
	img, err := s.media.GenerateImage(ctx, media.ImageRequest{Prompt: refined, AspectRatio: aspectRatio, Size: "1K"})
	s.record(ctx, "image", start, err)
	if err != nil {
		return chat.Message{}, fmt.Errorf("coach: generate image: %w", err)
	}
	url, err := s.storeImage(img)
	if err != nil {
		return chat.Message{}, err
	}
	return chat.Message{Role: chat.RoleModel, ImageURL: url}, nil
}

// refinePrompt asks the chat model for a richer English image prompt, using
// the last two messages as context. On failure the prompt is used as given.
func (s *Service) refinePrompt(ctx context.Context, history []chat.Message, prompt string) string {
	var recent strings.Builder
	for _, m := range history[max(0, len(history)-2):] {
		fmt.Fprintf(&recent, "%s: %s\n", m.Role, m.Content)
	}
	start := time.Now()
	resp, err := s.suggester.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Content: fmt.Sprintf("Enhance this image prompt for a high-quality, photorealistic generation.\nContext:\n%sUser prompt: %q\nOutput ONLY the English prompt.",
				recent.String(), prompt),
		}},
	})
	s.record(ctx, "refine", start, err)
	if err != nil || resp == nil || strings.TrimSpace(resp.Content) == "" {
		if err != nil {
			s.log.Warn("coach: prompt refinement failed, using prompt as given", "err", err)
		}
		return prompt
	}
	return strings.TrimSpace(resp.Content)
}

func (s *Service) edit(ctx context.Context, prompt string, file *live.AttachedFile) (chat.Message, error) {
	if s.media == nil {
		return chat.Message{}, ErrNoMedia
	}
	ctx, span := observe.StartSpan(ctx, "coach.edit_image")
	defer span.End()

	data, err := audio.DecodeBase64(file.Data)
	if err != nil {
		return chat.Message{}, fmt.Errorf("coach: attachment: %w", err)
	}
	start := time.Now()
	img, err := s.media.EditImage(ctx, media.EditRequest{
		Prompt: prompt,
		Source: media.Image{Data: data, MIMEType: file.MIMEType},
	})
	s.record(ctx, "image_edit", start, err)
	if err != nil {
		return chat.Message{}, fmt.Errorf("coach: edit image: %w", err)
	}
	url, err := s.storeImage(img)
	if err != nil {
		return chat.Message{}, err
	}
	return chat.Message{Role: chat.RoleModel, ImageURL: url}, nil
}

// storeImage writes img into the output directory and returns its file://
// URL, or returns a data URL when no directory is configured.
func (s *Service) storeImage(img *media.Image) (string, error) {
	if s.outputDir == "" {
		return dataURL(img.MIMEType, audio.EncodeBase64(img.Data)), nil
	}
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("coach: output dir: %w", err)
	}
	path := filepath.Join(s.outputDir, "image-"+uuid.NewString()+imageExt(img.MIMEType))
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return "", fmt.Errorf("coach: save image: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs), nil
}

func imageExt(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".img"
	}
}

func isImage(mimeType string) bool { return strings.HasPrefix(mimeType, "image/") }

func dataURL(mimeType, b64 string) string {
	return "data:" + mimeType + ";base64," + b64
}

// ── Speech ───────────────────────────────────────────────────────────────────

// Speak synthesises text and plays it to completion on the configured
// speaker. Markdown markup is stripped first; text that is empty afterwards
// is ignored. Cancelling ctx stops playback.
func (s *Service) Speak(ctx context.Context, text string) error {
	clean := CleanForSpeech(text)
	if clean == "" {
		return nil
	}
	if s.media == nil {
		return ErrNoMedia
	}
	if s.speaker == nil {
		return ErrNoSpeaker
	}
	ctx, span := observe.StartSpan(ctx, "coach.speak")
	defer span.End()

	start := time.Now()
	speech, err := s.media.Synthesize(ctx, clean, s.voice)
	s.record(ctx, "speech", start, err)
	if err != nil {
		return fmt.Errorf("coach: synthesize: %w", err)
	}

	out, err := s.speaker.OpenOutput(ctx, speech.SampleRate)
	if err != nil {
		return fmt.Errorf("coach: open output: %w", err)
	}
	defer out.Close()

	sched := playback.New(out, playback.WithSampleRate(speech.SampleRate), playback.WithLogger(s.log))
	defer sched.Close()
	if _, err := sched.EnqueuePCM(speech.PCM, speech.SampleRate); err != nil {
		return fmt.Errorf("coach: play: %w", err)
	}
	select {
	case <-sched.Drained():
		return nil
	case <-ctx.Done():
		sched.Interrupt()
		return ctx.Err()
	}
}

// CleanForSpeech removes markdown emphasis, headings, quotes and code marks,
// and replaces links by their text.
func CleanForSpeech(text string) string {
	text = markdownMarks.ReplaceAllString(text, "")
	text = markdownLink.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// ── Metrics ──────────────────────────────────────────────────────────────────

func (s *Service) record(ctx context.Context, kind string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		s.metrics.RecordProviderError(ctx, s.providerName, kind)
		observe.MarkError(ctx, err)
		observe.Logger(ctx, s.log).Debug("coach: provider call failed", "kind", kind, "provider", s.providerName, "err", err)
	}
	s.metrics.RecordProviderRequest(ctx, s.providerName, kind, status, time.Since(start))
}
