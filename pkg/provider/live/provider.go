// Package live defines the Provider interface for real-time duplex audio
// sessions with a remote model (the Gemini Live API and compatible backends).
//
// A [Session] is returned immediately by [Provider.Connect], before the remote
// side has accepted it. Input sent while the session is still pending is queued
// and replayed in submission order once the session opens. Everything the
// remote side does is reported as a typed [Event] on a single channel, so a
// consumer handles the whole lifecycle in one select loop.
//
// All implementations must be safe for concurrent use.
package live

import (
	"context"
	"errors"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio"
)

var (
	// ErrConnectionFailed reports that the session could not be established
	// or the transport dropped before the session opened.
	ErrConnectionFailed = errors.New("live: connection failed")

	// ErrRemote reports an error sent by the remote side or an abnormal
	// termination of an open session.
	ErrRemote = errors.New("live: remote error")

	// ErrSessionClosed is returned by Send methods after Close.
	ErrSessionClosed = errors.New("live: session closed")
)

// DefaultVoice is the prebuilt voice used when Config.Voice is empty.
const DefaultVoice = "Puck"

// Config is the initial configuration of a live session.
type Config struct {
	// Model overrides the provider's default model.
	Model string

	// Voice is the prebuilt voice name. Default: [DefaultVoice].
	Voice string

	// SystemInstruction is sent with the setup message.
	SystemInstruction string

	// InputTranscription asks the remote side to transcribe the user's speech.
	InputTranscription bool

	// OutputTranscription asks the remote side to transcribe its own speech.
	OutputTranscription bool
}

// Session is one live connection. It is never reused: a new conversation
// needs a new Connect.
type Session interface {
	// SendRealtimeInput submits a media chunk (audio, or an attached file
	// with its own MIME type). It never blocks on the network. Chunks sent
	// before the session opens are delivered, in order, right after it does.
	// It returns ErrSessionClosed after Close.
	SendRealtimeInput(chunk audio.WireChunk) error

	// Events returns the event stream. The channel is closed after the final
	// [Closed] event, or when Close is called.
	Events() <-chan Event

	// Close terminates the session. It is idempotent; no events are delivered
	// after it returns.
	Close() error
}

// Provider opens live sessions.
type Provider interface {
	// Connect starts connecting and returns a pending session immediately.
	// Dial and setup failures are reported as a [Closed] event carrying
	// ErrConnectionFailed rather than as a return error; the returned error
	// is reserved for invalid configuration.
	Connect(ctx context.Context, cfg Config) (Session, error)
}
