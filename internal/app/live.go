package app

import (
	"context"
	"fmt"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/chat"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/coach"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/config"
	livectl "github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/live"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/transcript"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/live"
)

func (a *App) initLive() {
	if a.providers.Live == nil {
		return
	}
	lc := a.cfg.Live
	capture := audio.CaptureConfig{
		SampleRate:       lc.CaptureRate,
		FrameSamples:     lc.FrameSize,
		Device:           lc.InputDevice,
		EchoCancellation: config.Enabled(lc.EchoCancellation),
		NoiseSuppression: config.Enabled(lc.NoiseSuppression),
		AutoGainControl:  config.Enabled(lc.AutoGainControl),
	}
	a.live = livectl.New(a.source, a.sink, a.providers.Live,
		livectl.WithCaptureConfig(capture),
		livectl.WithPlaybackRate(lc.PlaybackRate),
		livectl.WithCooldown(lc.StopCooldown),
		livectl.WithTranscriptSink(transcript.SinkFunc(a.transcriptUpdated)),
		livectl.WithLogger(a.log),
		livectl.WithMetrics(a.metrics),
	)
}

// StartLive starts a voice conversation whose transcript is recorded in the
// active session (a new live conversation session when none is selected).
// The model speaks with the hero path audio persona when the session is in
// that mode and with the live persona otherwise.
func (a *App) StartLive(ctx context.Context) (chat.Session, error) {
	if a.live == nil {
		return chat.Session{}, ErrLiveUnavailable
	}
	sess, err := a.ActiveOrNew(ctx, chat.ModeLiveConversation)
	if err != nil {
		return chat.Session{}, err
	}

	mode := chat.ModeLiveConversation
	if sess.Mode == chat.ModeHeroPathAudio {
		mode = sess.Mode
	}
	profile := a.chats.Profile()

	a.mu.Lock()
	voice := a.cfg.Live.Voice
	a.talkID = sess.ID
	a.mu.Unlock()

	err = a.live.Start(ctx, live.Config{
		Voice:               voice,
		SystemInstruction:   coach.SystemInstruction(mode, &profile),
		InputTranscription:  true,
		OutputTranscription: true,
	})
	if err != nil {
		return chat.Session{}, fmt.Errorf("app: start live: %w", err)
	}
	a.log.Info("live conversation starting", "session", sess.ID, "mode", mode, "voice", voice)
	return sess, nil
}

// StopLive ends the running voice conversation. It is safe to call in any
// state.
func (a *App) StopLive() {
	if a.live != nil {
		a.live.Stop()
	}
}

// QueueLiveFile hands an attachment to the live conversation. Files queued
// before the session opens are sent once it does.
func (a *App) QueueLiveFile(f live.AttachedFile) error {
	if a.live == nil {
		return ErrLiveUnavailable
	}
	return a.live.QueueFile(f)
}

// transcriptUpdated records merged live transcript changes in the chat
// session the conversation was started for. A new merged message is
// appended; an update replaces the session's last message.
func (a *App) transcriptUpdated(_ int, msg transcript.Message, created bool) {
	a.mu.Lock()
	id := a.talkID
	a.mu.Unlock()
	if id == "" {
		return
	}

	m := chat.Message{Role: chat.RoleModel, Content: msg.Text}
	if msg.Role == live.RoleUser {
		m.Role = chat.RoleUser
	}

	var err error
	if created {
		err = a.chats.Append(a.ctx, id, m)
	} else {
		err = a.chats.ReplaceLast(a.ctx, id, m)
	}
	if err != nil {
		a.log.Warn("failed to record live transcript", "session", id, "err", err)
	}
}

// sessionFree keeps coach turns out of the session the live transcript is
// written to, since both append to and rewrite its last message.
func (a *App) sessionFree(id string) error {
	if a.live == nil || a.live.State() == livectl.StateIdle {
		return nil
	}
	a.mu.Lock()
	talk := a.talkID
	a.mu.Unlock()
	if talk == id {
		return ErrSessionInCall
	}
	return nil
}
