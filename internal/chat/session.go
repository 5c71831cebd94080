package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures a Session.
type Options struct {
	Responder Responder
	Speaker   Speaker
	Fallback  string
	Timeout   time.Duration
	Logger    *slog.Logger
	OnTurn    func(Message)
}

// Session holds one ordered conversation. Turns are strictly serialized: a
// Send issued while another is in flight queues behind it and sees the
// resolved history, never a partial turn.
type Session struct {
	id        string
	responder Responder
	speaker   Speaker
	fallback  string
	timeout   time.Duration
	logger    *slog.Logger
	onTurn    func(Message)
	clock     func() time.Time

	turnMu sync.Mutex // serializes turns
	mu     sync.Mutex // guards history
	hist   []Message
	typing atomic.Bool
}

// NewSession creates a session seeded with the assistant greeting.
func NewSession(id, greeting string, o Options) *Session {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		id:        id,
		responder: o.Responder,
		speaker:   o.Speaker,
		fallback:  o.Fallback,
		timeout:   o.Timeout,
		logger:    logger.With(slog.String("component", "chat-session"), slog.String("session", id)),
		onTurn:    o.OnTurn,
		clock:     time.Now,
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	s.append(Message{Role: RoleAssistant, Text: greeting, At: s.clock()})
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Send submits a typed user turn. Empty input after trimming is a silent
// no-op. The assistant always answers: backend failure or timeout resolves
// to the configured fallback text.
func (s *Session) Send(ctx context.Context, text string) (string, bool) {
	return s.sendTurn(ctx, text, false)
}

// Inject submits an externally-originated query. The user message is kept
// out of the visible history but still sent to the backend as context.
func (s *Session) Inject(ctx context.Context, text string) (string, bool) {
	return s.sendTurn(ctx, text, true)
}

func (s *Session) sendTurn(ctx context.Context, text string, hidden bool) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	prior := s.History()
	s.append(Message{Role: RoleUser, Text: text, Hidden: hidden, At: s.clock()})

	s.typing.Store(true)
	defer s.typing.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.responder.Reply(ctx, prior, text)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			s.logger.Warn("chat backend failed, serving fallback", slog.String("error", err.Error()))
		}
		reply = s.fallback
	}

	s.append(Message{Role: RoleAssistant, Text: reply, At: s.clock()})

	if s.speaker != nil {
		go s.speaker.Speak(context.WithoutCancel(ctx), reply)
	}
	return reply, true
}

// Typing reports whether a turn is currently awaiting the backend.
func (s *Session) Typing() bool { return s.typing.Load() }

// History returns a copy of the full conversation, hidden turns included.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.hist...)
}

// VisibleHistory returns the conversation as shown on screen.
func (s *Session) VisibleHistory() []Message {
	var out []Message
	for _, m := range s.History() {
		if !m.Hidden {
			out = append(out, m)
		}
	}
	return out
}

// Greeting returns the seeded assistant greeting.
func (s *Session) Greeting() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.hist) == 0 {
		return ""
	}
	return s.hist[0].Text
}

func (s *Session) append(m Message) {
	s.mu.Lock()
	s.hist = append(s.hist, m)
	s.mu.Unlock()
	if s.onTurn != nil {
		s.onTurn(m)
	}
}
