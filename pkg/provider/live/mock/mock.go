// Package mock provides test doubles for the live.Provider and live.Session
// interfaces.
//
// A [Session] is driven by the test: Emit pushes events as if the remote side
// produced them, and every chunk passed to SendRealtimeInput is recorded.
//
//	sess := mock.NewSession()
//	prov := &mock.Provider{Session: sess}
//	sess.Emit(live.Opened{})
//	sess.Emit(live.Audio{Data: "...", MIMEType: "audio/pcm;rate=24000"})
package mock

import (
	"context"
	"sync"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/audio"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/live"
)

// Provider is a mock implementation of [live.Provider].
type Provider struct {
	mu sync.Mutex

	// Session is returned by Connect when ConnectErr is nil.
	Session *Session

	// ConnectErr, if non-nil, is returned by Connect.
	ConnectErr error

	// ConnectCalls records every Config passed to Connect.
	ConnectCalls []live.Config
}

// Connect implements [live.Provider].
func (p *Provider) Connect(_ context.Context, cfg live.Config) (live.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, cfg)
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	return p.Session, nil
}

// Calls returns a copy of the recorded Connect configs.
func (p *Provider) Calls() []live.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]live.Config(nil), p.ConnectCalls...)
}

// Session is a mock implementation of [live.Session].
type Session struct {
	mu     sync.Mutex
	events chan live.Event
	closed bool
	sent   []audio.WireChunk
	closes int

	// SendErr, if non-nil, is returned by SendRealtimeInput.
	SendErr error

	// OnSend, if set, is called (without the lock held) for every chunk.
	OnSend func(audio.WireChunk)
}

// NewSession returns an open mock session with a buffered event channel.
func NewSession() *Session {
	return &Session{events: make(chan live.Event, 256)}
}

// Emit delivers ev to the consumer. It reports false once the session is
// closed. A [live.Closed] event also closes the channel, mirroring a real
// session.
func (s *Session) Emit(ev live.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.events <- ev
	if _, ok := ev.(live.Closed); ok {
		s.closed = true
		close(s.events)
	}
	return true
}

// SendRealtimeInput implements [live.Session].
func (s *Session) SendRealtimeInput(chunk audio.WireChunk) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return live.ErrSessionClosed
	}
	if s.SendErr != nil {
		err := s.SendErr
		s.mu.Unlock()
		return err
	}
	s.sent = append(s.sent, chunk)
	hook := s.OnSend
	s.mu.Unlock()

	if hook != nil {
		hook(chunk)
	}
	return nil
}

// Events implements [live.Session].
func (s *Session) Events() <-chan live.Event { return s.events }

// Close implements [live.Session].
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// Sent returns a copy of every chunk submitted so far.
func (s *Session) Sent() []audio.WireChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audio.WireChunk(nil), s.sent...)
}

// Closes returns how many times Close was called.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

var (
	_ live.Provider = (*Provider)(nil)
	_ live.Session  = (*Session)(nil)
)
