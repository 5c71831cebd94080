package audio

import (
	"sync"
	"testing"
	"time"
)

type recordSink struct {
	mu   sync.Mutex
	bufs []*Buffer
}

func (r *recordSink) Deliver(buf *Buffer) {
	r.mu.Lock()
	r.bufs = append(r.bufs, buf)
	r.mu.Unlock()
}

func (r *recordSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bufs)
}

func shortBuffer(frames int) *Buffer {
	return &Buffer{SampleRate: 24000, Data: [][]float32{make([]float32, frames)}}
}

func TestPlayDeliversToSink(t *testing.T) {
	sink := &recordSink{}
	out := NewOutput(sink)
	defer out.Close()

	h := out.Play(shortBuffer(24)) // 1ms
	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sink.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", sink.count())
	}
	for !h.Done() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if out.ActiveCount() != 0 {
		t.Fatalf("expected no active handles after completion, got %d", out.ActiveCount())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	out := NewOutput(NullSink{})
	defer out.Close()

	h := out.PlayAt(shortBuffer(24000), out.Now()+60)
	h.Stop()
	h.Stop()
	h.Stop()
	if !h.Done() {
		t.Fatal("expected handle done after stop")
	}
	if out.ActiveCount() != 0 {
		t.Fatalf("expected no active handles, got %d", out.ActiveCount())
	}
}

func TestStopAfterNaturalCompletion(t *testing.T) {
	out := NewOutput(NullSink{})
	defer out.Close()

	h := out.Play(shortBuffer(24)) // 1ms
	deadline := time.Now().Add(2 * time.Second)
	for !h.Done() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !h.Done() {
		t.Fatal("handle never completed")
	}
	h.Stop() // must be safe after the underlying resource finished
}

func TestScheduledHandleNeverDeliversWhenStopped(t *testing.T) {
	sink := &recordSink{}
	out := NewOutput(sink)
	defer out.Close()

	h := out.PlayAt(shortBuffer(240), out.Now()+0.05)
	h.Stop()
	time.Sleep(100 * time.Millisecond)
	if sink.count() != 0 {
		t.Fatalf("stopped handle still delivered %d buffers", sink.count())
	}
}

func TestStopAllClearsPendingSet(t *testing.T) {
	out := NewOutput(NullSink{})
	defer out.Close()

	for i := 0; i < 3; i++ {
		out.PlayAt(shortBuffer(24000), out.Now()+60)
	}
	if out.ActiveCount() != 3 {
		t.Fatalf("expected 3 active handles, got %d", out.ActiveCount())
	}
	out.StopAll()
	if out.ActiveCount() != 0 {
		t.Fatalf("expected 0 active handles after StopAll, got %d", out.ActiveCount())
	}
}

func TestClosedOutputRejectsScheduling(t *testing.T) {
	sink := &recordSink{}
	out := NewOutput(sink)
	out.Close()

	h := out.Play(shortBuffer(24))
	if !h.Done() {
		t.Fatal("handle on closed output should be done immediately")
	}
	time.Sleep(20 * time.Millisecond)
	if sink.count() != 0 {
		t.Fatal("closed output must not deliver")
	}
}
