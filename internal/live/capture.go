package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/cooolfix/airgate/internal/audio"
	"github.com/cooolfix/airgate/internal/bus"
	"github.com/cooolfix/airgate/internal/protocol"
)

// BusCapture tails microphone frames an edge device publishes for one
// session. Frames arrive as transport-encoded 16kHz mono PCM.
type BusCapture struct {
	client    *bus.Client
	sessionID string
	logger    *slog.Logger

	mu     sync.Mutex
	sub    *nats.Subscription
	frames chan []float32
}

func NewBusCapture(client *bus.Client, sessionID string, logger *slog.Logger) *BusCapture {
	if logger == nil {
		logger = slog.Default()
	}
	return &BusCapture{
		client:    client,
		sessionID: sessionID,
		logger:    logger.With(slog.String("component", "live-capture"), slog.String("session_id", sessionID)),
	}
}

// Start subscribes to the session's mic subject. A subscription failure is
// reported as a capture permission failure: the device side cannot be heard.
func (c *BusCapture) Start(_ context.Context) (<-chan []float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return c.frames, nil
	}

	frames := make(chan []float32, 64)
	sub, err := c.client.Conn().Subscribe(protocol.MicSubject(c.sessionID), func(msg *nats.Msg) {
		var frame protocol.MicFrame
		if err := json.Unmarshal(msg.Data, &frame); err != nil {
			c.logger.Warn("dropping unparseable mic frame", slog.String("error", err.Error()))
			return
		}
		pcm, err := audio.DecodeBytes(frame.PCM)
		if err != nil {
			c.logger.Warn("dropping undecodable mic frame", slog.String("error", err.Error()))
			return
		}
		buf, err := audio.BufferFromPCM16(pcm, frame.SampleRate, 1)
		if err != nil {
			c.logger.Warn("dropping malformed mic frame", slog.String("error", err.Error()))
			return
		}
		// Unsubscribe does not wait for an in-flight callback, so this can
		// race Stop closing the channel. The send only happens while this
		// subscription's channel is still current, checked under the lock.
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.frames != frames {
			return
		}
		select {
		case frames <- buf.Data[0]:
		default:
			// Slow consumer: drop the frame rather than stall the dispatcher.
			c.logger.Warn("mic frame dropped, consumer behind")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: subscribing to mic frames: %v", ErrPermissionDenied, err)
	}

	c.sub = sub
	c.frames = frames
	c.logger.Info("mic capture started")
	return frames, nil
}

// Stop unsubscribes and closes the frame stream. Safe to call repeatedly.
func (c *BusCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub == nil {
		return
	}
	if err := c.sub.Unsubscribe(); err != nil {
		c.logger.Warn("mic unsubscribe failed", slog.String("error", err.Error()))
	}
	c.sub = nil
	close(c.frames)
	c.frames = nil
	c.logger.Info("mic capture stopped")
}
