package live

import (
	"context"
	"errors"
)

// State is the live session lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateActive
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// ErrPermissionDenied indicates the audio capture pipeline could not be
// acquired. User-recoverable; surfaced as a dismissible notice.
var ErrPermissionDenied = errors.New("audio capture permission denied")

// EventKind discriminates inbound session events.
type EventKind int

const (
	// EventAudio carries a transport-encoded synthesized audio fragment.
	EventAudio EventKind = iota
	// EventInterrupted signals the user began speaking over the assistant.
	EventInterrupted
	// EventClosed signals the remote end finished the session.
	EventClosed
	// EventError signals the session failed remotely.
	EventError
)

// Event is one inbound message from the voice backend.
type Event struct {
	Kind  EventKind
	Audio string
	Err   error
}

// Conn is an open bidirectional voice session.
type Conn interface {
	// Send streams one transport-encoded microphone payload upstream.
	Send(ctx context.Context, payload string) error
	// Events yields inbound events until the session ends.
	Events() <-chan Event
	Close() error
}

// Backend opens live sessions against a real-time voice service.
type Backend interface {
	Connect(ctx context.Context) (Conn, error)
}

// Capture is the microphone input pipeline. Start yields floating-point
// frames until Stop releases the pipeline.
type Capture interface {
	Start(ctx context.Context) (<-chan []float32, error)
	Stop()
}
