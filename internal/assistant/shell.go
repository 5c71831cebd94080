package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cooolfix/airgate/internal/audio"
	"github.com/cooolfix/airgate/internal/chat"
	"github.com/cooolfix/airgate/internal/config"
	"github.com/cooolfix/airgate/internal/live"
	"github.com/cooolfix/airgate/internal/speech"
)

// Mode is the shell's conversational surface.
type Mode string

const (
	ModeChat    Mode = "chat"
	ModeHandoff Mode = "handoff"
)

// Recorder persists conversation turns and session milestones. Implementations
// must be safe for concurrent use.
type Recorder interface {
	RecordTurn(sessionID string, m chat.Message)
	RecordEvent(sessionID, kind, detail string)
}

type nullRecorder struct{}

func (nullRecorder) RecordTurn(string, chat.Message)    {}
func (nullRecorder) RecordEvent(string, string, string) {}

// Options assembles one assistant shell.
type Options struct {
	SessionID string
	Assistant config.AssistantConfig

	Responder   chat.Responder
	Fallback    string
	ChatTimeout time.Duration

	Synthesizer      speech.Synthesizer
	Output           *audio.Output
	SpeechSampleRate int
	SpeechRetryDelay time.Duration

	LiveBackend          live.Backend
	LiveCapture          live.Capture
	LiveOutputSampleRate int
	OnLiveState          func(live.State, string)

	Recorder Recorder
	Logger   *slog.Logger
}

// Shell binds one chat session, one speech engine and one live voice
// controller around a single shared audio output. Exactly one of the speech
// engine and the live session plays at a time; the live session wins.
type Shell struct {
	id             string
	logger         *slog.Logger
	session        *chat.Session
	engine         *speech.Engine
	liveCtl        *live.Controller
	recorder       Recorder
	quickActions   []config.QuickAction
	handoffContact string
	greetingReplay string

	voice atomic.Bool

	mu      sync.Mutex
	open    bool
	greeted bool
	mode    Mode
}

func New(o Options) *Shell {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := o.Recorder
	if recorder == nil {
		recorder = nullRecorder{}
	}

	s := &Shell{
		id:             o.SessionID,
		logger:         logger.With(slog.String("component", "assistant-shell"), slog.String("session", o.SessionID)),
		recorder:       recorder,
		quickActions:   o.Assistant.QuickActions,
		handoffContact: o.Assistant.HandoffContact,
		greetingReplay: o.Assistant.GreetingReplay,
		mode:           ModeChat,
	}
	s.voice.Store(o.Assistant.VoiceEnabled)

	s.engine = speech.NewEngine(speech.Options{
		Synthesizer:  o.Synthesizer,
		Output:       o.Output,
		SampleRate:   o.SpeechSampleRate,
		RetryDelay:   o.SpeechRetryDelay,
		VoiceEnabled: s.IsVoiceEnabled,
		LiveActive:   func() bool { return s.liveCtl.Active() },
		Logger:       logger,
	})

	s.liveCtl = live.NewController(live.Options{
		Backend:          o.LiveBackend,
		Capture:          o.LiveCapture,
		Output:           o.Output,
		OutputSampleRate: o.LiveOutputSampleRate,
		Logger:           logger,
		OnState:          o.OnLiveState,
	})

	s.session = chat.NewSession(o.SessionID, o.Assistant.Greeting, chat.Options{
		Responder: o.Responder,
		Speaker:   s.engine,
		Fallback:  o.Fallback,
		Timeout:   o.ChatTimeout,
		Logger:    logger,
		OnTurn:    func(m chat.Message) { s.recorder.RecordTurn(s.id, m) },
	})
	return s
}

// ID returns the shell's session identifier.
func (s *Shell) ID() string { return s.id }

// Open shows the panel. The greeting is spoken on first open, or on every
// open when the replay policy says always. Reopening is otherwise a no-op.
func (s *Shell) Open(ctx context.Context) {
	s.mu.Lock()
	if s.open {
		s.mu.Unlock()
		return
	}
	s.open = true
	speakGreeting := !s.greeted || s.greetingReplay == "always"
	s.greeted = true
	s.mu.Unlock()

	s.recorder.RecordEvent(s.id, "shell.open", "")
	if speakGreeting {
		go s.engine.Speak(context.WithoutCancel(ctx), s.session.Greeting())
	}
}

// OpenWithQuery opens the panel and submits the query as a hidden turn. The
// query is consumed by this call: reopening later never replays it.
func (s *Shell) OpenWithQuery(ctx context.Context, query string) (string, bool) {
	s.Open(ctx)
	if strings.TrimSpace(query) == "" {
		return "", false
	}
	s.recorder.RecordEvent(s.id, "shell.injected_query", query)
	return s.session.Inject(ctx, query)
}

// Close hides the panel and silences the output: current speech stops and a
// running live session shuts down.
func (s *Shell) Close() {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return
	}
	s.open = false
	s.mu.Unlock()

	s.engine.Stop()
	s.liveCtl.Stop()
	s.recorder.RecordEvent(s.id, "shell.close", "")
}

// IsOpen reports whether the panel is showing.
func (s *Shell) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Ask submits a visible user turn.
func (s *Shell) Ask(ctx context.Context, text string) (string, bool) {
	return s.session.Send(ctx, text)
}

// QuickActions lists the configured one-tap prompts.
func (s *Shell) QuickActions() []config.QuickAction {
	return append([]config.QuickAction(nil), s.quickActions...)
}

// QuickAction submits the query behind a configured label as a visible turn.
func (s *Shell) QuickAction(ctx context.Context, label string) (string, error) {
	for _, qa := range s.quickActions {
		if qa.Label == label {
			reply, _ := s.session.Send(ctx, qa.Query)
			return reply, nil
		}
	}
	return "", fmt.Errorf("unknown quick action %q", label)
}

// SetVoiceEnabled flips spoken replies on or off. Turning voice off stops
// whatever is playing right now.
func (s *Shell) SetVoiceEnabled(enabled bool) {
	s.voice.Store(enabled)
	if !enabled {
		s.engine.Stop()
	}
	s.recorder.RecordEvent(s.id, "voice.enabled", fmt.Sprintf("%t", enabled))
}

// IsVoiceEnabled reports the spoken-reply preference.
func (s *Shell) IsVoiceEnabled() bool {
	return s.voice.Load()
}

// StartLive hands the audio output to the live session. Any speech playback
// is stopped first so the two never overlap.
func (s *Shell) StartLive(ctx context.Context) error {
	s.engine.Stop()
	if err := s.liveCtl.Start(ctx); err != nil {
		return err
	}
	s.recorder.RecordEvent(s.id, "live.start", "")
	return nil
}

// StopLive ends the live session. Safe when none is running.
func (s *Shell) StopLive() {
	if s.liveCtl.State() == live.StateIdle {
		return
	}
	s.liveCtl.Stop()
	s.recorder.RecordEvent(s.id, "live.stop", "")
}

// LiveState reports the live session lifecycle position.
func (s *Shell) LiveState() live.State {
	return s.liveCtl.State()
}

// SpeechActive reports whether a spoken reply is currently playing.
func (s *Shell) SpeechActive() bool {
	return s.engine.Active()
}

// SetMode switches between chat and field-engineer handoff.
func (s *Shell) SetMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
	s.recorder.RecordEvent(s.id, "mode", string(m))
}

// CurrentMode returns the active surface.
func (s *Shell) CurrentMode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Typing reports whether a turn is awaiting the backend.
func (s *Shell) Typing() bool { return s.session.Typing() }

// History returns the full conversation, hidden turns included.
func (s *Shell) History() []chat.Message { return s.session.History() }

// VisibleHistory returns the conversation as the UI shows it.
func (s *Shell) VisibleHistory() []chat.Message { return s.session.VisibleHistory() }

// HandoffSummary renders the visible conversation as a labeled transcript
// for escalation to a field engineer.
func (s *Shell) HandoffSummary() string {
	var b strings.Builder
	b.WriteString("COOOLFIX SUPPORT HANDOFF\n")
	for _, m := range s.session.VisibleHistory() {
		label := "NODE"
		if m.Role == chat.RoleUser {
			label = "CLIENT"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, m.Text)
	}
	if s.handoffContact != "" {
		fmt.Fprintf(&b, "Field engineer: +%s\n", s.handoffContact)
	}
	return b.String()
}
