package live

import "fmt"

// Role identifies the speaker of a transcript fragment.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Event is one of [Opened], [Transcript], [Audio], [Interrupted],
// [TurnComplete] or [Closed].
type Event interface {
	isEvent()
}

// Opened is emitted once, when the remote side accepts the session.
type Opened struct{}

// Transcript is a fragment of recognised user speech or of the model's own
// spoken output. Final is set on the last fragment of a turn when the remote
// side reports it.
type Transcript struct {
	Role  Role
	Text  string
	Final bool
}

// Audio is a chunk of model speech as it arrived on the wire.
type Audio struct {
	Data     string // base64
	MIMEType string
}

// Interrupted reports that the user barged in and pending model audio must be
// discarded.
type Interrupted struct{}

// TurnComplete reports that the model finished its turn.
type TurnComplete struct{}

// Closed is the final event. Err is nil on a graceful close, and otherwise
// wraps [ErrConnectionFailed] or [ErrRemote].
type Closed struct {
	Err error
}

func (Opened) isEvent()       {}
func (Transcript) isEvent()   {}
func (Audio) isEvent()        {}
func (Interrupted) isEvent()  {}
func (TurnComplete) isEvent() {}
func (Closed) isEvent()       {}

func (t Transcript) String() string { return fmt.Sprintf("%s: %q", t.Role, t.Text) }
