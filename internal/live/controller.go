package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cooolfix/airgate/internal/audio"
)

// Options configures a Controller.
type Options struct {
	Backend          Backend
	Capture          Capture
	Output           *audio.Output
	OutputSampleRate int
	Logger           *slog.Logger
	// OnState observes lifecycle transitions in order. It runs on the
	// controller's goroutines and must not call back into the Controller.
	OnState func(State, string)
}

// Controller runs one live voice session at a time: continuous microphone
// streaming upstream, gapless scheduling of streamed fragments downstream,
// and all-or-nothing barge-in flushing.
type Controller struct {
	backend    Backend
	capture    Capture
	out        *audio.Output
	sampleRate int
	logger     *slog.Logger
	onState    func(State, string)

	mu        sync.Mutex
	state     State
	conn      Conn
	cancel    context.CancelFunc
	pending   map[*audio.Handle]struct{}
	nextStart float64
}

func NewController(o Options) *Controller {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		backend:    o.Backend,
		capture:    o.Capture,
		out:        o.Output,
		sampleRate: o.OutputSampleRate,
		logger:     logger.With(slog.String("component", "live-controller")),
		onState:    o.OnState,
		pending:    make(map[*audio.Handle]struct{}),
	}
	if c.sampleRate <= 0 {
		c.sampleRate = 24000
	}
	return c
}

// State returns the current lifecycle position.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active reports whether the session owns the audio output.
func (c *Controller) Active() bool {
	return c.State() == StateActive
}

// Start opens the session: capture first, then the remote connection.
// Calling Start while the session is not Idle is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(StateConnecting, "starting")
	c.mu.Unlock()

	frames, err := c.capture.Start(ctx)
	if err != nil {
		c.mu.Lock()
		c.setStateLocked(StateIdle, "capture failed")
		c.mu.Unlock()
		return err
	}

	conn, err := c.backend.Connect(ctx)
	if err != nil {
		c.capture.Stop()
		c.mu.Lock()
		c.setStateLocked(StateIdle, "connect failed")
		c.mu.Unlock()
		return err
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	c.mu.Lock()
	if c.state != StateConnecting {
		// Stopped while connecting.
		c.mu.Unlock()
		cancel()
		conn.Close()
		c.capture.Stop()
		return nil
	}
	c.conn = conn
	c.cancel = cancel
	c.nextStart = 0
	c.setStateLocked(StateActive, "remote session open")
	c.mu.Unlock()

	go c.pumpOutbound(sessionCtx, conn, frames)
	go c.pumpInbound(sessionCtx, conn)
	return nil
}

// Stop closes the session and releases every resource. Safe from Idle and
// safe to call repeatedly.
func (c *Controller) Stop() {
	c.stop("local stop")
}

func (c *Controller) stop(reason string) {
	c.mu.Lock()
	if c.state == StateIdle || c.state == StateClosing {
		c.mu.Unlock()
		return
	}
	if c.state == StateConnecting {
		// Let the in-flight Start observe the abort and clean up.
		c.setStateLocked(StateIdle, reason)
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateClosing, reason)
	conn := c.conn
	cancel := c.cancel
	c.conn = nil
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Warn("remote session close failed", slog.String("error", err.Error()))
		}
	}
	c.capture.Stop()
	c.flush()

	c.mu.Lock()
	c.setStateLocked(StateIdle, reason)
	c.mu.Unlock()
}

// pumpOutbound streams captured frames upstream. It never blocks on the
// inbound path.
func (c *Controller) pumpOutbound(ctx context.Context, conn Conn, frames <-chan []float32) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := conn.Send(ctx, audio.EncodeFrames(frame)); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Warn("failed to stream mic frame", slog.String("error", err.Error()))
			}
		}
	}
}

func (c *Controller) pumpInbound(ctx context.Context, conn Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-conn.Events():
			if !ok {
				go c.stop("remote stream ended")
				return
			}
			switch ev.Kind {
			case EventAudio:
				c.scheduleFragment(ev.Audio)
			case EventInterrupted:
				c.flush()
			case EventClosed:
				go c.stop("remote closed")
				return
			case EventError:
				if ev.Err != nil {
					c.logger.Warn("remote session error", slog.String("error", ev.Err.Error()))
				}
				go c.stop("remote error")
				return
			}
		}
	}
}

// scheduleFragment queues one synthesized fragment so sequential fragments
// play back gaplessly despite irregular network arrival.
func (c *Controller) scheduleFragment(payload string) {
	pcm, err := audio.DecodeBytes(payload)
	if err != nil {
		c.logger.Error("backend sent undecodable audio", slog.String("error", err.Error()))
		return
	}
	buf, err := audio.BufferFromPCM16(pcm, c.sampleRate, 1)
	if err != nil {
		c.logger.Error("backend sent invalid PCM", slog.String("error", err.Error()))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return
	}
	for h := range c.pending {
		if h.Done() {
			delete(c.pending, h)
		}
	}
	start := c.out.Now()
	if c.nextStart > start {
		start = c.nextStart
	}
	h := c.out.PlayAt(buf, start)
	c.pending[h] = struct{}{}
	c.nextStart = start + buf.Seconds()
}

// flush stops every pending fragment and rewinds the scheduling cursor.
func (c *Controller) flush() {
	c.mu.Lock()
	handles := make([]*audio.Handle, 0, len(c.pending))
	for h := range c.pending {
		handles = append(handles, h)
	}
	c.pending = make(map[*audio.Handle]struct{})
	c.nextStart = 0
	c.mu.Unlock()
	for _, h := range handles {
		h.Stop()
	}
}

// PendingCount reports fragments scheduled but not yet finished.
func (c *Controller) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for h := range c.pending {
		if !h.Done() {
			n++
		}
	}
	return n
}

func (c *Controller) setStateLocked(s State, reason string) {
	if c.state == s {
		return
	}
	c.state = s
	c.logger.Info("live session state", slog.String("state", s.String()), slog.String("reason", reason))
	if c.onState != nil {
		c.onState(s, reason)
	}
}
