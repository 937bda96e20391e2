package coach_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/chat"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/coach"
	storemock "github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/store/mock"
	audiomock "github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio/mock"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/live"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm"
	llmmock "github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm/mock"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/media"
	mediamock "github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/media/mock"
)

type fixture struct {
	chats *chat.Store
	llm   *llmmock.Provider
	media *mediamock.Provider
	sess  chat.Session
}

func newFixture(t *testing.T, mode chat.Mode) *fixture {
	t.Helper()
	chats, err := chat.Open(context.Background(), storemock.New(nil))
	if err != nil {
		t.Fatal(err)
	}
	sess, err := chats.NewSession(context.Background(), mode)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		chats: chats,
		llm:   &llmmock.Provider{},
		media: &mediamock.Provider{},
		sess:  sess,
	}
}

func (f *fixture) service(opts ...coach.Option) *coach.Service {
	return coach.New(f.chats, f.llm, append([]coach.Option{coach.WithMedia(f.media)}, opts...)...)
}

func (f *fixture) messages(t *testing.T) []chat.Message {
	t.Helper()
	s, err := f.chats.Session(f.sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	return s.Messages
}

// ── Text replies ─────────────────────────────────────────────────────────────

func TestSend_StreamsReply(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.ModeCreativeIdeas)
	f.llm.StreamChunks = []llm.Chunk{{Text: "Open a "}, {Text: "tea house."}, {FinishReason: "stop"}}

	var updates []string
	res, err := f.service().Send(context.Background(), coach.Request{SessionID: f.sess.ID, Text: "Ideas for Shiraz?"},
		func(m chat.Message) { updates = append(updates, m.Content) })
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Reply.Content != "Open a tea house." {
		t.Errorf("reply = %q", res.Reply.Content)
	}
	if len(updates) != 2 || updates[1] != "Open a tea house." {
		t.Errorf("updates = %q", updates)
	}

	msgs := f.messages(t)
	if len(msgs) != 2 || msgs[0].Role != chat.RoleUser || msgs[1].Content != "Open a tea house." {
		t.Errorf("stored = %+v", msgs)
	}

	req := f.llm.StreamCalls[0].Req
	if req.Temperature != 2.0 || req.Grounding != llm.GroundingSearch {
		t.Errorf("params = %v / %v", req.Temperature, req.Grounding)
	}
	if !strings.Contains(req.SystemPrompt, "CREATIVE_IDEAS") {
		t.Error("system prompt should name the active mode")
	}
	if n := len(req.Messages); n != 1 || req.Messages[0].Content != "Ideas for Shiraz?" {
		t.Errorf("messages = %+v", req.Messages)
	}
	if got := f.chats.Profile().Stats.TotalMessages; got != 1 {
		t.Errorf("totalMessages = %d; want 1", got)
	}
}

func TestSend_HistoryAndAttachment(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.ModeMaps)
	ctx := context.Background()
	_ = f.chats.Append(ctx, f.sess.ID, chat.Message{Role: chat.RoleUser, Content: "earlier"})
	_ = f.chats.Append(ctx, f.sess.ID, chat.Message{Role: chat.RoleModel, Content: "answer"})
	f.llm.StreamChunks = []llm.Chunk{{Text: "ok"}}

	file := &live.AttachedFile{Name: "menu.png", MIMEType: "image/png", Data: "iVBORw=="}
	svc := f.service(coach.WithLocation(29.6, 52.5))
	if _, err := svc.Send(ctx, coach.Request{SessionID: f.sess.ID, Text: "where?", File: file}, nil); err != nil {
		t.Fatal(err)
	}

	req := f.llm.StreamCalls[0].Req
	if len(req.Messages) != 3 {
		t.Fatalf("messages = %d; want 3", len(req.Messages))
	}
	if req.Messages[1].Role != llm.RoleAssistant {
		t.Errorf("model turn role = %q", req.Messages[1].Role)
	}
	last := req.Messages[2]
	if len(last.Attachments) != 1 || last.Attachments[0].MIMEType != "image/png" {
		t.Errorf("attachments = %+v", last.Attachments)
	}
	if req.Grounding != llm.GroundingMaps || req.Location == nil || req.Location.Latitude != 29.6 {
		t.Errorf("grounding = %v location = %+v", req.Grounding, req.Location)
	}
}

func TestSend_Empty(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.ModeNormal)
	if _, err := f.service().Send(context.Background(), coach.Request{SessionID: f.sess.ID, Text: "  "}, nil); !errors.Is(err, coach.ErrEmptyMessage) {
		t.Errorf("err = %v; want ErrEmptyMessage", err)
	}
	if len(f.messages(t)) != 0 {
		t.Error("empty message must not be stored")
	}
}

func TestSend_UnknownSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.ModeNormal)
	if _, err := f.service().Send(context.Background(), coach.Request{SessionID: "nope", Text: "hi"}, nil); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestSessionGuard_RejectsTurns(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.ModeNormal)
	busy := errors.New("busy")
	var checked []string
	svc := f.service(coach.WithSessionGuard(func(id string) error {
		checked = append(checked, id)
		return busy
	}))
	ctx := context.Background()
	img := live.AttachedFile{Name: "a.png", MIMEType: "image/png", Data: "iVBORw=="}

	if _, err := svc.Send(ctx, coach.Request{SessionID: f.sess.ID, Text: "hi"}, nil); !errors.Is(err, busy) {
		t.Errorf("Send err = %v; want the guard error", err)
	}
	if _, err := svc.GenerateImage(ctx, f.sess.ID, "a cat", "1:1"); !errors.Is(err, busy) {
		t.Errorf("GenerateImage err = %v; want the guard error", err)
	}
	if _, err := svc.EditImage(ctx, f.sess.ID, "brighter", img); !errors.Is(err, busy) {
		t.Errorf("EditImage err = %v; want the guard error", err)
	}

	if len(checked) != 3 || checked[0] != f.sess.ID {
		t.Errorf("guard calls = %v", checked)
	}
	if n := len(f.messages(t)); n != 0 {
		t.Errorf("messages = %d; a rejected turn must not touch the session", n)
	}
	if len(f.llm.StreamCalls) != 0 || len(f.media.GenerateCalls) != 0 || len(f.media.EditCalls) != 0 {
		t.Error("a rejected turn must not reach a provider")
	}
}

func TestSend_StreamErrorStoresFailure(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		setup func(*llmmock.Provider)
	}{
		{"connect", func(p *llmmock.Provider) { p.StreamErr = errors.New("quota") }},
		{"mid-stream", func(p *llmmock.Provider) {
			p.StreamChunks = []llm.Chunk{{Text: "partial"}, {Text: "boom", FinishReason: "error"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, chat.ModeNormal)
			tt.setup(f.llm)
			res, err := f.service().Send(context.Background(), coach.Request{SessionID: f.sess.ID, Text: "hi"}, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if res.Reply.Content != coach.FailureReply {
				t.Errorf("reply = %q", res.Reply.Content)
			}
			msgs := f.messages(t)
			if len(msgs) != 2 || msgs[1].Content != coach.FailureReply {
				t.Errorf("stored = %+v", msgs)
			}
		})
	}
}

func TestSend_AutoSuggest(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.ModeNormal)
	f.llm.StreamChunks = []llm.Chunk{{Text: strings.Repeat("pricing strategy ", 5)}}
	f.llm.CompleteResponse = &llm.CompletionResponse{
		Content: `{"recommendedMode":"FINANCE","reason":"money talk","label":"Go to finance"}`,
	}

	res, err := f.service(coach.WithAutoSuggest(true)).Send(context.Background(),
		coach.Request{SessionID: f.sess.ID, Text: "How should I price?"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Suggestion == nil || res.Suggestion.Mode != chat.ModeFinance || res.Suggestion.Label != "Go to finance" {
		t.Errorf("suggestion = %+v", res.Suggestion)
	}
}

// ── Suggestions ──────────────────────────────────────────────────────────────

func TestSuggest(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.ModeNormal)
	ctx := context.Background()
	svc := f.service()

	got, err := svc.Suggest(ctx, f.sess.ID)
	if err != nil || got != nil {
		t.Fatalf("short session: got %+v, %v; want nil", got, err)
	}
	if len(f.llm.CompleteCalls) != 0 {
		t.Error("short sessions must not call the model")
	}

	_ = f.chats.Append(ctx, f.sess.ID, chat.Message{Role: chat.RoleUser, Content: "I need a shop in Tabriz"})
	_ = f.chats.Append(ctx, f.sess.ID, chat.Message{Role: chat.RoleModel, Content: "Let us look at areas"})
	f.llm.CompleteResponse = &llm.CompletionResponse{Content: `{"recommendedMode":"LOCATION_BUSINESS","reason":"r","label":"l"}`}

	got, err = svc.Suggest(ctx, f.sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Mode != chat.ModeLocationBusiness {
		t.Fatalf("suggestion = %+v", got)
	}
	req := f.llm.CompleteCalls[0].Req
	if req.ResponseSchema == nil {
		t.Error("suggestion request should carry a response schema")
	}
	prompt := req.Messages[0].Content
	if strings.Contains(prompt, "GUIDE_MODE") || strings.Contains(prompt, "NORMAL,") {
		t.Error("guide and the current mode should not be offered")
	}

	f.llm.CompleteResponse = &llm.CompletionResponse{Content: `{"recommendedMode":"TAROT"}`}
	if got, _ := svc.Suggest(ctx, f.sess.ID); got != nil {
		t.Errorf("invalid mode should yield nil, got %+v", got)
	}

	f.llm.CompleteErr = errors.New("down")
	if _, err := svc.Suggest(ctx, f.sess.ID); err == nil {
		t.Error("expected provider error")
	}
}

// ── Images ───────────────────────────────────────────────────────────────────

func TestSend_ImageGenerationMode(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.ModeImageGeneration)
	f.llm.CompleteResponse = &llm.CompletionResponse{Content: "A minimalist saffron logo, studio light"}
	f.media.Image = &media.Image{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"}
	dir := t.TempDir()

	res, err := f.service(coach.WithOutputDir(dir)).Send(context.Background(),
		coach.Request{SessionID: f.sess.ID, Text: "saffron logo", AspectRatio: "16:9"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.media.GenerateCalls) != 1 {
		t.Fatalf("generate calls = %d", len(f.media.GenerateCalls))
	}
	call := f.media.GenerateCalls[0]
	if call.Prompt != "A minimalist saffron logo, studio light" || call.AspectRatio != "16:9" || call.Size != "1K" {
		t.Errorf("image request = %+v", call)
	}
	if !strings.HasPrefix(res.Reply.ImageURL, "file://") || !strings.HasSuffix(res.Reply.ImageURL, ".png") {
		t.Fatalf("image url = %q", res.Reply.ImageURL)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("output dir has %d files; want 1", len(entries))
	}
	if len(f.llm.StreamCalls) != 0 {
		t.Error("image mode must not stream a text reply")
	}
}

func TestGenerateImage_RefinementFailureUsesPrompt(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.ModeNormal)
	f.llm.CompleteErr = errors.New("down")
	f.media.Image = &media.Image{Data: []byte{1}, MIMEType: "image/jpeg"}

	msg, err := f.service().GenerateImage(context.Background(), f.sess.ID, "desert cafe", "")
	if err != nil {
		t.Fatal(err)
	}
	call := f.media.GenerateCalls[0]
	if call.Prompt != "desert cafe" || call.AspectRatio != coach.DefaultAspectRatio {
		t.Errorf("image request = %+v", call)
	}
	if msg.ImageURL != "data:image/jpeg;base64,AQ==" {
		t.Errorf("image url = %q", msg.ImageURL)
	}
}

func TestSend_ImageEditing(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.ModeImageEditing)
	f.media.Image = &media.Image{Data: []byte{2}, MIMEType: "image/png"}
	svc := f.service()
	ctx := context.Background()

	_, err := svc.Send(ctx, coach.Request{SessionID: f.sess.ID, Text: "brighter"}, nil)
	if !errors.Is(err, coach.ErrImageRequired) {
		t.Fatalf("err = %v; want ErrImageRequired", err)
	}

	file := &live.AttachedFile{MIMEType: "image/jpeg", Data: "AQID"}
	res, err := svc.Send(ctx, coach.Request{SessionID: f.sess.ID, Text: "brighter", File: file}, nil)
	if err != nil {
		t.Fatal(err)
	}
	edit := f.media.EditCalls[0]
	if edit.Prompt != "brighter" || string(edit.Source.Data) != "\x01\x02\x03" {
		t.Errorf("edit = %+v", edit)
	}
	if res.Reply.ImageURL == "" {
		t.Error("reply should carry the edited image")
	}
	msgs := f.messages(t)
	if msgs[len(msgs)-2].ImageURL != "data:image/jpeg;base64,AQID" {
		t.Errorf("user message image = %q", msgs[len(msgs)-2].ImageURL)
	}
}

func TestSend_NoMediaProvider(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.ModeImageGeneration)
	svc := coach.New(f.chats, f.llm)
	if _, err := svc.Send(context.Background(), coach.Request{SessionID: f.sess.ID, Text: "logo"}, nil); !errors.Is(err, coach.ErrNoMedia) {
		t.Errorf("err = %v; want ErrNoMedia", err)
	}
}

// ── Campaign commands ────────────────────────────────────────────────────────

func TestSend_CampaignCommands(t *testing.T) {
	t.Parallel()

	t.Run("image", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, chat.ModeProSalesCampaign)
		f.llm.CompleteResponse = &llm.CompletionResponse{Content: "refined"}
		f.media.Image = &media.Image{Data: []byte{1}, MIMEType: "image/png"}
		if _, err := f.service().Send(context.Background(), coach.Request{SessionID: f.sess.ID, Text: "generate image: a poster"}, nil); err != nil {
			t.Fatal(err)
		}
		if len(f.media.GenerateCalls) != 1 || len(f.llm.StreamCalls) != 0 {
			t.Errorf("generate = %d, stream = %d", len(f.media.GenerateCalls), len(f.llm.StreamCalls))
		}
	})

	t.Run("speech", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, chat.ModeProSalesCampaign)
		f.media.Speech = &media.Speech{PCM: make([]byte, 480), SampleRate: 24000}
		out := &audiomock.Output{}
		out.OnPlay = func(c audiomock.PlayCall) { c.Voice.Finish() }
		sink := &audiomock.Sink{OpenResult: out}

		res, err := f.service(coach.WithSpeaker(sink)).Send(context.Background(),
			coach.Request{SessionID: f.sess.ID, Text: "say: Big sale today"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(f.media.SpeakCalls) != 1 || f.media.SpeakCalls[0].Text != "Big sale today" {
			t.Errorf("speak calls = %+v", f.media.SpeakCalls)
		}
		if !strings.Contains(res.Reply.Content, "Big sale today") {
			t.Errorf("reply = %q", res.Reply.Content)
		}
	})

	t.Run("plain", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, chat.ModeProSalesCampaign)
		f.llm.StreamChunks = []llm.Chunk{{Text: "funnel"}}
		if _, err := f.service().Send(context.Background(), coach.Request{SessionID: f.sess.ID, Text: "plan a launch"}, nil); err != nil {
			t.Fatal(err)
		}
		if len(f.llm.StreamCalls) != 1 {
			t.Error("plain campaign text should stream a reply")
		}
	})
}

// ── Speech ───────────────────────────────────────────────────────────────────

func TestSpeak(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.ModeNormal)
	f.media.Speech = &media.Speech{PCM: make([]byte, 4800), SampleRate: 24000}
	out := &audiomock.Output{}
	out.OnPlay = func(c audiomock.PlayCall) { c.Voice.Finish() }
	sink := &audiomock.Sink{OpenResult: out}

	svc := f.service(coach.WithSpeaker(sink), coach.WithVoice("Puck"))
	if err := svc.Speak(context.Background(), "**Hello** [there](http://x)"); err != nil {
		t.Fatal(err)
	}
	if got := f.media.SpeakCalls[0]; got.Text != "Hello there" || got.Voice != "Puck" {
		t.Errorf("speak call = %+v", got)
	}
	if len(sink.OpenRates) != 1 || sink.OpenRates[0] != 24000 {
		t.Errorf("open rates = %v", sink.OpenRates)
	}
	if len(out.Plays()) != 1 || out.Closes() != 1 {
		t.Errorf("plays = %d closes = %d", len(out.Plays()), out.Closes())
	}
}

func TestSpeak_Errors(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.ModeNormal)
	if err := f.service().Speak(context.Background(), "**"); err != nil {
		t.Errorf("markup-only text: err = %v", err)
	}
	if err := f.service().Speak(context.Background(), "hi"); !errors.Is(err, coach.ErrNoSpeaker) {
		t.Errorf("err = %v; want ErrNoSpeaker", err)
	}
	f.media.Err = errors.New("tts down")
	svc := f.service(coach.WithSpeaker(&audiomock.Sink{OpenResult: &audiomock.Output{}}))
	if err := svc.Speak(context.Background(), "hi"); err == nil {
		t.Error("expected synthesis error")
	}
}

func TestSpeak_CancelStopsPlayback(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.ModeNormal)
	f.media.Speech = &media.Speech{PCM: make([]byte, 4800), SampleRate: 24000}
	out := &audiomock.Output{}
	ctx, cancel := context.WithCancel(context.Background())
	out.OnPlay = func(audiomock.PlayCall) { cancel() }

	err := f.service(coach.WithSpeaker(&audiomock.Sink{OpenResult: out})).Speak(ctx, "long speech")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	plays := out.Plays()
	if len(plays) != 1 || plays[0].Voice.Stops() == 0 {
		t.Error("cancelled playback should stop the voice")
	}
}
