package audio

import (
	"sync"
	"time"
)

// Sink receives buffers when their scheduled start time arrives. The daemon
// publishes them to the bus for edge playback; tests record them.
type Sink interface {
	Deliver(buf *Buffer)
}

// NullSink discards delivered audio.
type NullSink struct{}

func (NullSink) Deliver(*Buffer) {}

// Output owns the playback clock and the set of in-flight handles. The
// underlying delivery primitive does not serialize independently scheduled
// buffers, so callers that need gapless sequencing schedule against Now().
type Output struct {
	sink  Sink
	epoch time.Time

	mu     sync.Mutex
	active map[*Handle]struct{}
	closed bool
}

// NewOutput opens an output whose clock starts at zero.
func NewOutput(sink Sink) *Output {
	if sink == nil {
		sink = NullSink{}
	}
	return &Output{
		sink:   sink,
		epoch:  time.Now(),
		active: make(map[*Handle]struct{}),
	}
}

// Now returns the output clock position in seconds.
func (o *Output) Now() float64 {
	return time.Since(o.epoch).Seconds()
}

// Play starts buf immediately.
func (o *Output) Play(buf *Buffer) *Handle {
	return o.PlayAt(buf, o.Now())
}

// PlayAt schedules buf to start at the given clock position. Positions in
// the past play immediately.
func (o *Output) PlayAt(buf *Buffer, at float64) *Handle {
	h := &Handle{out: o, buf: buf, startAt: at}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		h.stopped = true
		return h
	}
	o.active[h] = struct{}{}
	delay := time.Duration((at - o.Now()) * float64(time.Second))
	if delay < 0 {
		delay = 0
	}
	h.startTimer = time.AfterFunc(delay, h.begin)
	o.mu.Unlock()
	return h
}

// ActiveCount reports how many handles are scheduled or playing.
func (o *Output) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// StopAll stops every scheduled or playing handle.
func (o *Output) StopAll() {
	o.mu.Lock()
	handles := make([]*Handle, 0, len(o.active))
	for h := range o.active {
		handles = append(handles, h)
	}
	o.mu.Unlock()
	for _, h := range handles {
		h.Stop()
	}
}

// Close stops all playback and rejects further scheduling.
func (o *Output) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.StopAll()
}

func (o *Output) remove(h *Handle) {
	o.mu.Lock()
	delete(o.active, h)
	o.mu.Unlock()
}

// Handle tracks one scheduled audio segment from schedule time until it
// finishes or is stopped.
type Handle struct {
	out     *Output
	buf     *Buffer
	startAt float64

	mu         sync.Mutex
	startTimer *time.Timer
	endTimer   *time.Timer
	stopped    bool
	finished   bool
}

func (h *Handle) begin() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.endTimer = time.AfterFunc(h.buf.Duration(), h.finish)
	h.mu.Unlock()
	h.out.sink.Deliver(h.buf)
}

func (h *Handle) finish() {
	h.mu.Lock()
	if h.stopped || h.finished {
		h.mu.Unlock()
		return
	}
	h.finished = true
	h.mu.Unlock()
	h.out.remove(h)
}

// Stop cancels the segment. Safe to call more than once and after the
// segment already finished.
func (h *Handle) Stop() {
	h.mu.Lock()
	if h.stopped || h.finished {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	if h.startTimer != nil {
		h.startTimer.Stop()
	}
	if h.endTimer != nil {
		h.endTimer.Stop()
	}
	h.mu.Unlock()
	h.out.remove(h)
}

// Done reports whether the segment has finished or been stopped.
func (h *Handle) Done() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped || h.finished
}

// StartAt returns the clock position the segment was scheduled for.
func (h *Handle) StartAt() float64 { return h.startAt }
