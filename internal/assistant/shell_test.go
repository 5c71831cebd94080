package assistant

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cooolfix/airgate/internal/audio"
	"github.com/cooolfix/airgate/internal/chat"
	"github.com/cooolfix/airgate/internal/config"
	"github.com/cooolfix/airgate/internal/live"
)

type echoResponder struct{}

func (echoResponder) Reply(_ context.Context, _ []chat.Message, input string) (string, error) {
	return "re: " + input, nil
}

// countingSynth returns seconds of silence and counts invocations.
type countingSynth struct {
	mu      sync.Mutex
	calls   int
	seconds int
}

func (c *countingSynth) Synthesize(context.Context, string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return audio.EncodeBytes(make([]byte, 24000*2*c.seconds)), nil
}

func (c *countingSynth) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type recordedEvent struct {
	kind   string
	detail string
}

type memoryRecorder struct {
	mu     sync.Mutex
	turns  []chat.Message
	events []recordedEvent
}

func (r *memoryRecorder) RecordTurn(_ string, m chat.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, m)
}

func (r *memoryRecorder) RecordEvent(_ string, kind, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{kind, detail})
}

func (r *memoryRecorder) hasEvent(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.kind == kind {
			return true
		}
	}
	return false
}

type shellFixture struct {
	shell    *Shell
	synth    *countingSynth
	conn     *live.MockConn
	capture  *live.MockCapture
	output   *audio.Output
	recorder *memoryRecorder
}

func newShellFixture(t *testing.T, assistantCfg config.AssistantConfig) *shellFixture {
	t.Helper()
	out := audio.NewOutput(audio.NullSink{})
	t.Cleanup(out.Close)

	synth := &countingSynth{seconds: 2}
	conn := live.NewMockConn()
	capture := live.NewMockCapture()
	recorder := &memoryRecorder{}

	s := New(Options{
		SessionID:            "sess-1",
		Assistant:            assistantCfg,
		Responder:            echoResponder{},
		Fallback:             "please call support",
		ChatTimeout:          time.Second,
		Synthesizer:          synth,
		Output:               out,
		SpeechSampleRate:     24000,
		LiveBackend:          &live.MockBackend{Conn: conn},
		LiveCapture:          capture,
		LiveOutputSampleRate: 24000,
		Recorder:             recorder,
		Logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(s.Close)
	return &shellFixture{shell: s, synth: synth, conn: conn, capture: capture, output: out, recorder: recorder}
}

func defaultAssistantCfg() config.AssistantConfig {
	return config.AssistantConfig{
		Greeting:       "Centipid Node Online.",
		GreetingReplay: "once",
		VoiceEnabled:   true,
		HandoffContact: "254712156070",
		QuickActions: []config.QuickAction{
			{Label: "Coverage", Query: "Do you cover my area?"},
		},
	}
}

func waitForCondition(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestGreetingSpokenOncePerShell(t *testing.T) {
	f := newShellFixture(t, defaultAssistantCfg())

	f.shell.Open(context.Background())
	waitForCondition(t, "greeting synthesis", func() bool { return f.synth.Calls() == 1 })

	f.shell.Close()
	f.shell.Open(context.Background())

	time.Sleep(20 * time.Millisecond)
	if got := f.synth.Calls(); got != 1 {
		t.Fatalf("greeting synthesized %d times across reopens, want 1", got)
	}
}

func TestGreetingReplayAlways(t *testing.T) {
	cfg := defaultAssistantCfg()
	cfg.GreetingReplay = "always"
	f := newShellFixture(t, cfg)

	f.shell.Open(context.Background())
	f.shell.Close()
	f.shell.Open(context.Background())

	waitForCondition(t, "greeting replay", func() bool { return f.synth.Calls() == 2 })
}

func TestOpenWithQueryInjectsHiddenTurn(t *testing.T) {
	f := newShellFixture(t, defaultAssistantCfg())

	reply, ok := f.shell.OpenWithQuery(context.Background(), "upgrade my fiber plan")
	if !ok {
		t.Fatal("injected query produced no turn")
	}
	if reply != "re: upgrade my fiber plan" {
		t.Fatalf("reply = %q", reply)
	}

	for _, m := range f.shell.VisibleHistory() {
		if m.Role == chat.RoleUser && m.Text == "upgrade my fiber plan" {
			t.Fatal("injected query leaked into the visible history")
		}
	}
	foundHidden := false
	for _, m := range f.shell.History() {
		if m.Hidden && m.Text == "upgrade my fiber plan" {
			foundHidden = true
		}
	}
	if !foundHidden {
		t.Fatal("injected query missing from the full history")
	}
}

func TestOpenWithEmptyQueryJustOpens(t *testing.T) {
	f := newShellFixture(t, defaultAssistantCfg())

	if _, ok := f.shell.OpenWithQuery(context.Background(), "   "); ok {
		t.Fatal("blank query produced a turn")
	}
	if !f.shell.IsOpen() {
		t.Fatal("shell not open")
	}
	if got := len(f.shell.VisibleHistory()); got != 1 {
		t.Fatalf("history has %d messages, want the greeting only", got)
	}
}

func TestDisablingVoiceStopsPlayback(t *testing.T) {
	f := newShellFixture(t, defaultAssistantCfg())
	f.shell.Open(context.Background())
	waitForCondition(t, "greeting playing", func() bool { return f.shell.SpeechActive() })

	f.shell.SetVoiceEnabled(false)

	if f.shell.SpeechActive() {
		t.Fatal("speech still active after voice disabled")
	}
	if f.shell.IsVoiceEnabled() {
		t.Fatal("voice preference not recorded")
	}
}

func TestVoiceDisabledSuppressesReplySpeech(t *testing.T) {
	cfg := defaultAssistantCfg()
	cfg.VoiceEnabled = false
	f := newShellFixture(t, cfg)
	f.shell.Open(context.Background())

	if _, ok := f.shell.Ask(context.Background(), "hello"); !ok {
		t.Fatal("turn not processed")
	}
	time.Sleep(20 * time.Millisecond)
	if got := f.synth.Calls(); got != 0 {
		t.Fatalf("synthesizer called %d times with voice disabled", got)
	}
}

func TestStartLiveStopsSpeechFirst(t *testing.T) {
	f := newShellFixture(t, defaultAssistantCfg())
	f.shell.Open(context.Background())
	waitForCondition(t, "greeting playing", func() bool { return f.shell.SpeechActive() })

	if err := f.shell.StartLive(context.Background()); err != nil {
		t.Fatalf("StartLive failed: %v", err)
	}
	if f.shell.SpeechActive() {
		t.Fatal("speech playback survived live session start")
	}
	if got := f.output.ActiveCount(); got != 0 {
		t.Fatalf("%d segments active right after live start, want 0", got)
	}
	if got := f.shell.LiveState(); got != live.StateActive {
		t.Fatalf("live state = %v, want %v", got, live.StateActive)
	}
}

func TestStopLiveWhenIdleIsNoOp(t *testing.T) {
	f := newShellFixture(t, defaultAssistantCfg())

	f.shell.StopLive()
	if f.recorder.hasEvent("live.stop") {
		t.Fatal("live.stop recorded without a running session")
	}
}

func TestCloseShutsDownLiveSession(t *testing.T) {
	f := newShellFixture(t, defaultAssistantCfg())
	f.shell.Open(context.Background())
	if err := f.shell.StartLive(context.Background()); err != nil {
		t.Fatalf("StartLive failed: %v", err)
	}

	f.shell.Close()

	waitForCondition(t, "live session released", func() bool {
		return f.shell.LiveState() == live.StateIdle
	})
	if !f.capture.Stopped() {
		t.Fatal("capture still held after shell close")
	}
}

func TestQuickActionSubmitsVisibleTurn(t *testing.T) {
	f := newShellFixture(t, defaultAssistantCfg())
	f.shell.Open(context.Background())

	reply, err := f.shell.QuickAction(context.Background(), "Coverage")
	if err != nil {
		t.Fatalf("QuickAction failed: %v", err)
	}
	if reply != "re: Do you cover my area?" {
		t.Fatalf("reply = %q", reply)
	}

	visible := f.shell.VisibleHistory()
	found := false
	for _, m := range visible {
		if m.Role == chat.RoleUser && m.Text == "Do you cover my area?" {
			found = true
		}
	}
	if !found {
		t.Fatal("quick action query not in visible history")
	}

	if _, err := f.shell.QuickAction(context.Background(), "Nope"); err == nil {
		t.Fatal("unknown quick action accepted")
	}
}

func TestHandoffSummary(t *testing.T) {
	f := newShellFixture(t, defaultAssistantCfg())
	f.shell.Open(context.Background())
	f.shell.Ask(context.Background(), "my link is down")
	f.shell.SetMode(ModeHandoff)

	if got := f.shell.CurrentMode(); got != ModeHandoff {
		t.Fatalf("mode = %v, want %v", got, ModeHandoff)
	}
	summary := f.shell.HandoffSummary()
	for _, want := range []string{
		"CLIENT: my link is down",
		"NODE: re: my link is down",
		"NODE: Centipid Node Online.",
		"+254712156070",
	} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestTurnsAreRecorded(t *testing.T) {
	f := newShellFixture(t, defaultAssistantCfg())
	f.shell.Open(context.Background())
	f.shell.Ask(context.Background(), "hello")

	f.recorder.mu.Lock()
	turns := len(f.recorder.turns)
	f.recorder.mu.Unlock()
	// Greeting + user turn + reply.
	if turns != 3 {
		t.Fatalf("recorded %d turns, want 3", turns)
	}
	if !f.recorder.hasEvent("shell.open") {
		t.Fatal("shell.open milestone not recorded")
	}
}
