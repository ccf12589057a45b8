// Package playback schedules decoded model audio for gapless sequential
// output and supports immediate cancellation on barge-in.
package playback

import (
	"sync"
	"time"
)

// SampleRate is the model's output PCM rate in Hz (s16le mono).
const SampleRate = 24000

// Clock abstracts time for the scheduler. The production clock is the real
// one; tests inject a manual clock to pin start-time arithmetic.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer matches the subset of *time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Sink receives PCM at its scheduled start time. Play must not block; Flush
// discards anything buffered or currently sounding.
type Sink interface {
	Play(pcm []byte)
	Flush()
}

type segment struct {
	start Timer
	done  Timer
}

// Scheduler plays segments back-to-back: each segment starts at
// max(now, cursor) where cursor is the previous segment's end. Stop clears
// everything and resets the cursor to now.
type Scheduler struct {
	mu      sync.Mutex
	clock   Clock
	sink    Sink
	cursor  time.Time
	active  map[int]*segment
	nextID  int
	started bool
	onIdle  func()
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock substitutes the time source.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithOnIdle registers a callback fired when the active set drains, either
// naturally or via Stop. Called without the scheduler lock held.
func WithOnIdle(f func()) Option {
	return func(s *Scheduler) { s.onIdle = f }
}

func NewScheduler(sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:  realClock{},
		sink:   sink,
		active: make(map[int]*segment),
	}
	for _, o := range opts {
		o(s)
	}
	s.cursor = s.clock.Now()
	return s
}

// Duration returns the playback time of an s16le mono buffer.
func Duration(pcm []byte) time.Duration {
	samples := len(pcm) / 2
	return time.Duration(samples) * time.Second / SampleRate
}

// Enqueue schedules pcm to start at max(now, cursor) and advances the cursor
// past its end. The scheduled start time is returned.
func (s *Scheduler) Enqueue(pcm []byte) time.Time {
	dur := Duration(pcm)

	s.mu.Lock()
	now := s.clock.Now()
	start := now
	if s.cursor.After(now) {
		start = s.cursor
	}
	s.cursor = start.Add(dur)
	s.started = true

	id := s.nextID
	s.nextID++
	seg := &segment{}
	seg.start = s.clock.AfterFunc(start.Sub(now), func() {
		s.sink.Play(pcm)
	})
	seg.done = s.clock.AfterFunc(start.Add(dur).Sub(now), func() {
		s.complete(id)
	})
	s.active[id] = seg
	s.mu.Unlock()

	return start
}

func (s *Scheduler) complete(id int) {
	s.mu.Lock()
	delete(s.active, id)
	idle := len(s.active) == 0
	if idle {
		// Reset so a later utterance does not inherit a stale future cursor.
		s.cursor = s.clock.Now()
	}
	cb := s.onIdle
	s.mu.Unlock()

	if idle && cb != nil {
		cb()
	}
}

// Stop halts every active segment, clears the set, and resets the cursor to
// now. Per-segment halt failures are swallowed; the guarantee is only that no
// superseded audio will be heard.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for id, seg := range s.active {
		seg.start.Stop()
		seg.done.Stop()
		delete(s.active, id)
	}
	s.cursor = s.clock.Now()
	cb := s.onIdle
	s.mu.Unlock()

	s.sink.Flush()
	if cb != nil {
		cb()
	}
}

// Active reports how many segments are scheduled or playing.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Started reports whether any segment has ever been enqueued this session,
// which is what makes the session interruptible.
func (s *Scheduler) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
