package ratelimit

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestLimiter_PerMinute(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	l := NewWithClock(clk.now, PerMinute(10), PerHour(100))

	for i := 0; i < 10; i++ {
		if d := l.Allow("1.2.3.4"); !d.Allowed {
			t.Fatalf("request %d denied", i+1)
		}
	}
	d := l.Allow("1.2.3.4")
	if d.Allowed || d.Rule.Label != "minute" {
		t.Fatalf("11th request should hit the minute rule, got %+v", d)
	}
	if d.RetryAfter <= 0 || d.RetryAfter > 7*time.Second {
		t.Fatalf("retry after = %v", d.RetryAfter)
	}
	if other := l.Allow("5.6.7.8"); !other.Allowed {
		t.Fatalf("clients must be limited independently")
	}

	clk.t = clk.t.Add(7 * time.Second)
	if d := l.Allow("1.2.3.4"); !d.Allowed {
		t.Fatalf("token should have refilled, got %+v", d)
	}
}

func TestLimiter_PerHourDoesNotBurnMinuteTokens(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	l := NewWithClock(clk.now, PerMinute(5), PerHour(3))

	for i := 0; i < 3; i++ {
		if !l.Allow("c").Allowed {
			t.Fatalf("request %d denied", i+1)
		}
	}
	d := l.Allow("c")
	if d.Allowed || d.Rule.Label != "hour" || d.Rule.String() != "3 per hour" {
		t.Fatalf("expected hour rule, got %+v", d)
	}
	// denied requests must not consume minute tokens: 2 minute tokens remain
	clk.t = clk.t.Add(21 * time.Minute)
	if !l.Allow("c").Allowed {
		t.Fatalf("hour bucket should have one token after 21m")
	}
}

func TestLimiter_DisabledAndSweep(t *testing.T) {
	if d := New(PerMinute(0)).Allow("x"); !d.Allowed {
		t.Fatalf("no active rules should allow everything")
	}

	clk := &clock{t: time.Unix(0, 0)}
	l := NewWithClock(clk.now, PerMinute(1))
	l.Allow("a")
	l.Allow("b")
	clk.t = clk.t.Add(2 * time.Minute)
	l.Allow("c")
	if n := l.Clients(); n != 1 {
		t.Fatalf("idle clients should be swept, have %d", n)
	}
}
