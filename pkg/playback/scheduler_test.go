package playback

import (
	"sort"
	"sync"
	"testing"
	"time"
)

// manualClock is a deterministic Clock for scheduler tests. Timers fire in
// order when Advance moves past their deadline.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	when    time.Time
	f       func()
	stopped bool
	fired   bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(1000, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	t := &manualTimer{clock: c, when: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *manualTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.when.After(target) {
				continue
			}
			if next == nil || t.when.Before(next.when) {
				next = t
			}
		}
		if next == nil {
			break
		}
		c.now = next.when
		next.fired = true
		f := next.f
		c.mu.Unlock()
		f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// recordingSink captures Play/Flush calls.
type recordingSink struct {
	mu      sync.Mutex
	played  [][]byte
	flushes int
}

func (r *recordingSink) Play(pcm []byte) {
	r.mu.Lock()
	r.played = append(r.played, pcm)
	r.mu.Unlock()
}

func (r *recordingSink) Flush() {
	r.mu.Lock()
	r.flushes++
	r.mu.Unlock()
}

func pcmOf(d time.Duration) []byte {
	samples := int(d * SampleRate / time.Second)
	return make([]byte, samples*2)
}

func TestEnqueueBackToBack(t *testing.T) {
	clock := newManualClock()
	s := NewScheduler(&recordingSink{}, WithClock(clock))

	start1 := s.Enqueue(pcmOf(time.Second))
	start2 := s.Enqueue(pcmOf(500 * time.Millisecond))

	if !start1.Equal(clock.Now()) {
		t.Fatalf("first segment should start now, got %v", start1)
	}
	if want := start1.Add(time.Second); !start2.Equal(want) {
		t.Fatalf("second start = %v, want %v", start2, want)
	}
}

func TestEnqueueStartTimesNeverOverlap(t *testing.T) {
	clock := newManualClock()
	s := NewScheduler(&recordingSink{}, WithClock(clock))

	durs := []time.Duration{
		300 * time.Millisecond,
		time.Second,
		50 * time.Millisecond,
		700 * time.Millisecond,
	}
	var starts []time.Time
	for _, d := range durs {
		starts = append(starts, s.Enqueue(pcmOf(d)))
		clock.Advance(10 * time.Millisecond)
	}

	if !sort.SliceIsSorted(starts, func(i, j int) bool { return starts[i].Before(starts[j]) }) {
		t.Fatalf("start times not non-decreasing: %v", starts)
	}
	for i := 1; i < len(starts); i++ {
		if starts[i].Before(starts[i-1].Add(durs[i-1])) {
			t.Fatalf("segment %d overlaps previous: start %v < %v",
				i, starts[i], starts[i-1].Add(durs[i-1]))
		}
	}
}

func TestStopClearsActiveAndResetsCursor(t *testing.T) {
	clock := newManualClock()
	sink := &recordingSink{}
	s := NewScheduler(sink, WithClock(clock))

	s.Enqueue(pcmOf(time.Second))
	s.Enqueue(pcmOf(time.Second))
	s.Enqueue(pcmOf(time.Second))
	if s.Active() != 3 {
		t.Fatalf("expected 3 active segments, got %d", s.Active())
	}

	s.Stop()

	if s.Active() != 0 {
		t.Fatalf("expected empty active set after stop, got %d", s.Active())
	}
	if sink.flushes != 1 {
		t.Fatalf("expected one sink flush, got %d", sink.flushes)
	}

	// Cursor was reset: the next segment starts now, not after the
	// superseded three seconds.
	start := s.Enqueue(pcmOf(time.Second))
	if !start.Equal(clock.Now()) {
		t.Fatalf("post-stop start = %v, want %v", start, clock.Now())
	}
}

func TestIdleResetsCursor(t *testing.T) {
	clock := newManualClock()
	sink := &recordingSink{}
	var idleCalls int
	s := NewScheduler(sink, WithClock(clock), WithOnIdle(func() { idleCalls++ }))

	s.Enqueue(pcmOf(time.Second))
	clock.Advance(2 * time.Second)

	if s.Active() != 0 {
		t.Fatalf("segment should have completed, %d active", s.Active())
	}
	if idleCalls != 1 {
		t.Fatalf("expected one idle callback, got %d", idleCalls)
	}

	// A later utterance starts at now, not at the finished segment's end.
	clock.Advance(5 * time.Second)
	start := s.Enqueue(pcmOf(time.Second))
	if !start.Equal(clock.Now()) {
		t.Fatalf("new utterance start = %v, want %v", start, clock.Now())
	}
}

func TestScheduledPlaysReachSink(t *testing.T) {
	clock := newManualClock()
	sink := &recordingSink{}
	s := NewScheduler(sink, WithClock(clock))

	s.Enqueue(pcmOf(time.Second))
	s.Enqueue(pcmOf(time.Second))

	clock.Advance(500 * time.Millisecond)
	if got := len(sink.played); got != 1 {
		t.Fatalf("expected only the first segment playing, sink saw %d", got)
	}
	clock.Advance(time.Second)
	if got := len(sink.played); got != 2 {
		t.Fatalf("expected both segments played, sink saw %d", got)
	}
}

func TestDuration(t *testing.T) {
	if d := Duration(make([]byte, SampleRate*2)); d != time.Second {
		t.Fatalf("one second of PCM reported as %v", d)
	}
}
