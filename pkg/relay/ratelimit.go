package relay

import (
	"math"
	"sync"
	"time"
)

// RateLimitMessage is the fixed warning returned when a client exceeds the
// proxy window.
const RateLimitMessage = "Too many requests from this IP, please try again later."

// Limiter is a fixed-window counter per client address: limit requests per
// window, then rejections until the window rolls over.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	maxEntries int

	mu sync.Mutex
	m  map[string]*windowCounter
}

type windowCounter struct {
	start time.Time
	count int
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	RetryAfter int // seconds until the window resets, when rejected
}

func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:      limit,
		window:     window,
		now:        time.Now,
		maxEntries: 10_000,
		m:          make(map[string]*windowCounter),
	}
}

// Allow counts one request for the client and decides whether it may proceed.
func (l *Limiter) Allow(client string) Decision {
	if client == "" {
		client = "anonymous"
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.m) >= l.maxEntries {
		l.gcLocked(now)
		// Bounded memory beats perfect fairness: drop one arbitrary
		// entry if GC did not free anything.
		if len(l.m) >= l.maxEntries {
			for k := range l.m {
				delete(l.m, k)
				break
			}
		}
	}

	wc, ok := l.m[client]
	if !ok || now.Sub(wc.start) >= l.window {
		wc = &windowCounter{start: now}
		l.m[client] = wc
	}

	if wc.count >= l.limit {
		remaining := l.window - now.Sub(wc.start)
		retry := int(math.Ceil(remaining.Seconds()))
		if retry < 1 {
			retry = 1
		}
		return Decision{Allowed: false, RetryAfter: retry}
	}
	wc.count++
	return Decision{Allowed: true}
}

func (l *Limiter) gcLocked(now time.Time) {
	for k, v := range l.m {
		if now.Sub(v.start) >= l.window {
			delete(l.m, k)
		}
	}
}
