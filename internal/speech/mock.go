package speech

import (
	"context"
	"time"

	"github.com/cooolfix/airgate/internal/audio"
)

type mockSynth struct {
	sampleRate int
	delay      time.Duration
}

// NewMockSynth returns a Synthesizer emitting a short silent payload.
func NewMockSynth(sampleRate int, delay time.Duration) Synthesizer {
	return &mockSynth{sampleRate: sampleRate, delay: delay}
}

func (m *mockSynth) Synthesize(ctx context.Context, text string) (string, error) {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.delay):
		}
	}
	// 20ms of silence.
	return audio.EncodeBytes(make([]byte, m.sampleRate/50*2)), nil
}
