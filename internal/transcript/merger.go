// Package transcript merges the streamed partial transcripts of a live
// conversation into whole chat messages.
//
// The live API delivers speech-to-text for both sides of the conversation as
// small fragments. A [Merger] keeps one open turn: a fragment whose role
// matches the tail message is appended to it, anything else starts a new
// message. TurnComplete seals the tail so the next fragment, of either role,
// begins a fresh message.
//
// Fragments are concatenated verbatim. There is no overlap detection and no
// deduplication; two same-role utterances without a TurnComplete between them
// end up in one message.
package transcript

import (
	"sync"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/live"
)

// Message is one merged transcript entry.
type Message struct {
	Role live.Role
	Text string
}

// Sink receives every change the merger makes. index is the position of msg
// in [Merger.Messages]; created is true when msg was appended and false when
// it replaced the existing tail.
type Sink interface {
	TranscriptUpdated(index int, msg Message, created bool)
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(index int, msg Message, created bool)

// TranscriptUpdated implements [Sink].
func (f SinkFunc) TranscriptUpdated(index int, msg Message, created bool) {
	f(index, msg, created)
}

// Merger accumulates transcript fragments. The zero value is ready to use and
// reports to no sink.
//
// All methods are safe for concurrent use. The sink is called with the
// merger's lock held, so updates arrive in order; it must not call back into
// the Merger.
type Merger struct {
	mu     sync.Mutex
	msgs   []Message
	sealed bool
	closed bool
	sink   Sink
}

// NewMerger returns a Merger that reports to sink. sink may be nil.
func NewMerger(sink Sink) *Merger {
	return &Merger{sink: sink}
}

// Add merges fragment into the transcript as text spoken by role. Empty
// fragments are ignored.
func (m *Merger) Add(role live.Role, fragment string) {
	if fragment == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	n := len(m.msgs)
	if n > 0 && !m.sealed && m.msgs[n-1].Role == role {
		m.msgs[n-1].Text += fragment
		m.notify(n-1, false)
		return
	}
	m.msgs = append(m.msgs, Message{Role: role, Text: fragment})
	m.sealed = false
	m.notify(n, true)
}

// TurnComplete seals the current turn for both roles.
func (m *Merger) TurnComplete() {
	m.mu.Lock()
	m.sealed = true
	m.mu.Unlock()
}

// Messages returns a copy of the merged transcript.
func (m *Merger) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.msgs...)
}

// Close makes the merger ignore every later fragment. Messages stays
// readable. It waits for a sink call in progress to return.
func (m *Merger) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// Reset discards all messages. The next fragment starts a new message.
func (m *Merger) Reset() {
	m.mu.Lock()
	m.msgs = nil
	m.sealed = false
	m.mu.Unlock()
}

func (m *Merger) notify(i int, created bool) {
	if m.sink != nil {
		m.sink.TranscriptUpdated(i, m.msgs[i], created)
	}
}
