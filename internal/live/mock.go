package live

import (
	"context"
	"sync"
)

// MockConn is an in-memory remote session for tests and offline mode.
type MockConn struct {
	mu     sync.Mutex
	sent   []string
	events chan Event
	closed bool
}

func NewMockConn() *MockConn {
	return &MockConn{events: make(chan Event, 16)}
}

func (m *MockConn) Send(_ context.Context, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, payload)
	return nil
}

func (m *MockConn) Events() <-chan Event { return m.events }

func (m *MockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.events)
	return nil
}

// Sent returns a copy of every payload streamed upstream so far.
func (m *MockConn) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *MockConn) emit(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.events <- ev
}

// EmitAudio delivers one transport-encoded audio fragment.
func (m *MockConn) EmitAudio(payload string) { m.emit(Event{Kind: EventAudio, Audio: payload}) }

// EmitInterrupted signals that the remote model was barged in on.
func (m *MockConn) EmitInterrupted() { m.emit(Event{Kind: EventInterrupted}) }

// EmitClosed signals a clean remote shutdown.
func (m *MockConn) EmitClosed() { m.emit(Event{Kind: EventClosed}) }

// EmitError signals a remote failure.
func (m *MockConn) EmitError(err error) { m.emit(Event{Kind: EventError, Err: err}) }

// MockBackend hands out a prepared connection, or fails with ConnectErr.
type MockBackend struct {
	Conn       *MockConn
	ConnectErr error

	mu       sync.Mutex
	connects int
}

func (m *MockBackend) Connect(context.Context) (Conn, error) {
	m.mu.Lock()
	m.connects++
	m.mu.Unlock()
	if m.ConnectErr != nil {
		return nil, m.ConnectErr
	}
	return m.Conn, nil
}

// Connects reports how many times Connect was called.
func (m *MockBackend) Connects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects
}

// MockCapture produces frames from an in-memory channel.
type MockCapture struct {
	StartErr error

	mu      sync.Mutex
	frames  chan []float32
	stopped bool
}

func NewMockCapture() *MockCapture {
	return &MockCapture{frames: make(chan []float32, 16)}
}

func (m *MockCapture) Start(context.Context) (<-chan []float32, error) {
	if m.StartErr != nil {
		return nil, m.StartErr
	}
	return m.frames, nil
}

func (m *MockCapture) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	close(m.frames)
}

// Push feeds one captured frame. No-op after Stop.
func (m *MockCapture) Push(frame []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.frames <- frame
}

// Stopped reports whether capture has been released.
func (m *MockCapture) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
