package relay

import (
	"testing"
	"time"
)

func TestLimiterFixedWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewLimiter(3, 15*time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if d := l.Allow("1.2.3.4"); !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	d := l.Allow("1.2.3.4")
	if d.Allowed {
		t.Fatal("request over the limit should be rejected")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > 15*60 {
		t.Fatalf("retry-after out of range: %d", d.RetryAfter)
	}

	// Other clients have their own windows.
	if d := l.Allow("5.6.7.8"); !d.Allowed {
		t.Fatal("separate client should not share the window")
	}

	// The window rolls over.
	now = now.Add(15 * time.Minute)
	if d := l.Allow("1.2.3.4"); !d.Allowed {
		t.Fatal("request after window rollover should be allowed")
	}
}

func TestLimiterRetryAfterShrinks(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewLimiter(1, 10*time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("c")
	first := l.Allow("c")
	now = now.Add(9 * time.Minute)
	later := l.Allow("c")

	if !(!first.Allowed && !later.Allowed) {
		t.Fatal("both over-limit requests should be rejected")
	}
	if later.RetryAfter >= first.RetryAfter {
		t.Fatalf("retry-after should shrink: %d then %d", first.RetryAfter, later.RetryAfter)
	}
}
