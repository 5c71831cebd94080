package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cooolfix/airgate/internal/audio"
)

type countingSynth struct {
	mu      sync.Mutex
	calls   int
	replies []func() (string, error)
}

func (c *countingSynth) Synthesize(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	i := c.calls
	c.calls++
	c.mu.Unlock()
	if i < len(c.replies) {
		return c.replies[i]()
	}
	return audio.EncodeBytes(make([]byte, 480)), nil
}

func (c *countingSynth) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func silence() (string, error) {
	return audio.EncodeBytes(make([]byte, 480)), nil
}

func newTestEngine(t *testing.T, s Synthesizer, voice, live func() bool) *Engine {
	t.Helper()
	out := audio.NewOutput(audio.NullSink{})
	t.Cleanup(out.Close)
	return NewEngine(Options{
		Synthesizer:  s,
		Output:       out,
		SampleRate:   24000,
		RetryDelay:   time.Millisecond,
		VoiceEnabled: voice,
		LiveActive:   live,
	})
}

func TestSpeakNoOpWhenVoiceDisabled(t *testing.T) {
	s := &countingSynth{}
	e := newTestEngine(t, s, func() bool { return false }, nil)
	e.Speak(context.Background(), "hello there")
	if s.count() != 0 {
		t.Fatalf("expected no backend call with voice disabled, got %d", s.count())
	}
	if e.Active() {
		t.Fatal("expected no active playback")
	}
}

func TestSpeakNoOpDuringLiveSession(t *testing.T) {
	s := &countingSynth{}
	e := newTestEngine(t, s, nil, func() bool { return true })
	e.Speak(context.Background(), "hello there")
	if s.count() != 0 {
		t.Fatalf("expected no backend call during live session, got %d", s.count())
	}
}

func TestSpeakNoOpForUnspeakableText(t *testing.T) {
	s := &countingSynth{}
	e := newTestEngine(t, s, nil, nil)
	for _, text := range []string{"", "  ", "🚀", "http://x.co", "a"} {
		e.Speak(context.Background(), text)
	}
	if s.count() != 0 {
		t.Fatalf("expected no backend calls for unspeakable text, got %d", s.count())
	}
}

func TestSpeakRetriesOnceOnTransientError(t *testing.T) {
	s := &countingSynth{replies: []func() (string, error){
		func() (string, error) { return "", ErrTransient },
		silence,
	}}
	e := newTestEngine(t, s, nil, nil)
	e.Speak(context.Background(), "hello world")
	if s.count() != 2 {
		t.Fatalf("expected exactly 2 backend calls, got %d", s.count())
	}
	if !e.Active() {
		t.Fatal("expected playback after successful retry")
	}
}

func TestSpeakAbandonsAfterSecondTransientFailure(t *testing.T) {
	s := &countingSynth{replies: []func() (string, error){
		func() (string, error) { return "", ErrTransient },
		func() (string, error) { return "", ErrTransient },
	}}
	e := newTestEngine(t, s, nil, nil)
	e.Speak(context.Background(), "hello world")
	if s.count() != 2 {
		t.Fatalf("expected exactly 2 backend calls, got %d", s.count())
	}
	if e.Active() {
		t.Fatal("expected no playback after double failure")
	}
}

func TestSpeakDoesNotRetryPermanentError(t *testing.T) {
	s := &countingSynth{replies: []func() (string, error){
		func() (string, error) { return "", errors.New("bad request") },
	}}
	e := newTestEngine(t, s, nil, nil)
	e.Speak(context.Background(), "hello world")
	if s.count() != 1 {
		t.Fatalf("expected exactly 1 backend call, got %d", s.count())
	}
	if e.Active() {
		t.Fatal("expected no playback after permanent error")
	}
}

func TestSpeakStopsPriorPlayback(t *testing.T) {
	// One second of audio so the first playback is still active.
	payload := audio.EncodeBytes(make([]byte, 48000))
	s := &countingSynth{replies: []func() (string, error){
		func() (string, error) { return payload, nil },
		func() (string, error) { return payload, nil },
	}}
	out := audio.NewOutput(audio.NullSink{})
	e := NewEngine(Options{Synthesizer: s, Output: out, SampleRate: 24000})

	e.Speak(context.Background(), "first reply")
	if out.ActiveCount() != 1 {
		t.Fatalf("expected 1 active handle, got %d", out.ActiveCount())
	}
	e.Speak(context.Background(), "second reply")
	if out.ActiveCount() != 1 {
		t.Fatalf("expected prior playback stopped, got %d active", out.ActiveCount())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	e := newTestEngine(t, &countingSynth{}, nil, nil)
	e.Stop()
	e.Speak(context.Background(), "hello world")
	e.Stop()
	e.Stop()
	if e.Active() {
		t.Fatal("expected no active playback after stop")
	}
}
