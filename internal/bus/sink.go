package bus

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cooolfix/airgate/internal/audio"
	"github.com/cooolfix/airgate/internal/protocol"
)

// AudioSink publishes delivered playback buffers to the session's audio-out
// subject for edge devices to render.
type AudioSink struct {
	client    *Client
	sessionID string
	epoch     time.Time
	seq       atomic.Int64
}

// NewAudioSink creates a sink for one assistant session.
func NewAudioSink(client *Client, sessionID string) *AudioSink {
	return &AudioSink{client: client, sessionID: sessionID, epoch: time.Now()}
}

// Deliver implements audio.Sink.
func (s *AudioSink) Deliver(buf *audio.Buffer) {
	frames := buf.Frames()
	channels := buf.Channels()
	interleaved := make([]float32, 0, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			interleaved = append(interleaved, buf.Data[ch][i])
		}
	}

	chunk := protocol.AudioChunk{
		SessionID:  s.sessionID,
		Sequence:   int(s.seq.Add(1) - 1),
		SampleRate: buf.SampleRate,
		Channels:   channels,
		StartAt:    time.Since(s.epoch).Seconds(),
		PCM:        audio.EncodeFrames(interleaved),
	}
	data, err := json.Marshal(chunk)
	if err != nil {
		s.client.Logger().Warn("failed to marshal audio chunk", slog.String("error", err.Error()))
		return
	}
	if err := s.client.Conn().Publish(protocol.AudioOutSubject(s.sessionID), data); err != nil {
		s.client.Logger().Warn("failed to publish audio chunk", slog.String("error", err.Error()))
	}
}
