package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cooolfix/airgate/internal/audio"
)

// Options configures an Engine.
type Options struct {
	Synthesizer Synthesizer
	Output      *audio.Output
	SampleRate  int
	RetryDelay  time.Duration
	// VoiceEnabled and LiveActive are read before every playback decision.
	VoiceEnabled func() bool
	LiveActive   func() bool
	Logger       *slog.Logger
}

// Engine turns one assistant reply into audible speech with at-most-one
// active playback. Speech is a convenience: every failure past the single
// transient retry is swallowed.
type Engine struct {
	synth        Synthesizer
	out          *audio.Output
	sampleRate   int
	retryDelay   time.Duration
	voiceEnabled func() bool
	liveActive   func() bool
	logger       *slog.Logger

	mu      sync.Mutex
	current *audio.Handle
}

func NewEngine(o Options) *Engine {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		synth:        o.Synthesizer,
		out:          o.Output,
		sampleRate:   o.SampleRate,
		retryDelay:   o.RetryDelay,
		voiceEnabled: o.VoiceEnabled,
		liveActive:   o.LiveActive,
		logger:       logger.With(slog.String("component", "speech-engine")),
	}
	if e.sampleRate <= 0 {
		e.sampleRate = 24000
	}
	if e.voiceEnabled == nil {
		e.voiceEnabled = func() bool { return true }
	}
	if e.liveActive == nil {
		e.liveActive = func() bool { return false }
	}
	return e
}

// Speak synthesizes text and plays it, stopping any prior playback first.
// No-op when voice output is disabled, a live session owns the output, or
// the sanitized text is shorter than 2 characters.
func (e *Engine) Speak(ctx context.Context, text string) {
	if !e.voiceEnabled() || e.liveActive() {
		return
	}
	clean := Sanitize(text)
	if len(clean) < 2 {
		return
	}

	payload, err := e.synthesize(ctx, clean)
	if err != nil {
		e.logger.Warn("speech synthesis abandoned", slog.String("error", err.Error()))
		return
	}

	pcm, err := audio.DecodeBytes(payload)
	if err != nil {
		e.logger.Error("synthesis payload not decodable", slog.String("error", err.Error()))
		return
	}
	buf, err := audio.BufferFromPCM16(pcm, e.sampleRate, 1)
	if err != nil {
		e.logger.Error("synthesis payload not valid PCM", slog.String("error", err.Error()))
		return
	}

	// The live session may have claimed the output while we were waiting on
	// the backend.
	if !e.voiceEnabled() || e.liveActive() {
		return
	}

	e.mu.Lock()
	if e.current != nil {
		e.current.Stop()
	}
	e.current = e.out.Play(buf)
	e.mu.Unlock()
}

func (e *Engine) synthesize(ctx context.Context, text string) (string, error) {
	payload, err := e.synth.Synthesize(ctx, text)
	if err == nil {
		return payload, nil
	}
	if !errors.Is(err, ErrTransient) {
		return "", err
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(e.retryDelay):
	}
	return e.synth.Synthesize(ctx, text)
}

// Stop halts the current playback, if any. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil {
		e.current.Stop()
		e.current = nil
	}
}

// Active reports whether a playback handle is live.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil && !e.current.Done()
}
