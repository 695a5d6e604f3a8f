package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rule allows Limit requests per Window for each client. Limit <= 0 disables it.
type Rule struct {
	Limit  int
	Window time.Duration
	Label  string // "minute", "hour"
}

func (r Rule) String() string {
	return fmt.Sprintf("%d per %s", r.Limit, r.Label)
}

// PerMinute and PerHour build the usual rules.
func PerMinute(n int) Rule { return Rule{Limit: n, Window: time.Minute, Label: "minute"} }
func PerHour(n int) Rule   { return Rule{Limit: n, Window: time.Hour, Label: "hour"} }

// Decision is the result of one Allow call.
type Decision struct {
	Allowed    bool
	Rule       Rule // the rule that denied the request
	RetryAfter time.Duration
}

type client struct {
	limiters []*rate.Limiter
	lastSeen time.Time
}

// Limiter enforces every rule for each client key. Each rule is a token bucket
// holding Limit tokens that refills over Window, so a client may burst up to
// Limit and then continues at Limit/Window.
type Limiter struct {
	rules []Rule
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
	idle      time.Duration
}

func New(rules ...Rule) *Limiter {
	return NewWithClock(time.Now, rules...)
}

func NewWithClock(now func() time.Time, rules ...Rule) *Limiter {
	var active []Rule
	var idle time.Duration
	for _, r := range rules {
		if r.Limit <= 0 || r.Window <= 0 {
			continue
		}
		active = append(active, r)
		if r.Window > idle {
			idle = r.Window
		}
	}
	return &Limiter{rules: active, now: now, clients: make(map[string]*client), idle: idle}
}

func (l *Limiter) Rules() []Rule { return l.rules }

// Allow consumes one request for key from every rule, or none if any rule
// would be exceeded.
func (l *Limiter) Allow(key string) Decision {
	if len(l.rules) == 0 {
		return Decision{Allowed: true}
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now)

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiters: make([]*rate.Limiter, len(l.rules))}
		for i, r := range l.rules {
			c.limiters[i] = rate.NewLimiter(rate.Every(r.Window/time.Duration(r.Limit)), r.Limit)
		}
		l.clients[key] = c
	}
	c.lastSeen = now

	taken := make([]*rate.Reservation, 0, len(c.limiters))
	for i, lim := range c.limiters {
		res := lim.ReserveN(now, 1)
		if delay := res.DelayFrom(now); !res.OK() || delay > 0 {
			res.CancelAt(now)
			for _, t := range taken {
				t.CancelAt(now)
			}
			return Decision{Rule: l.rules[i], RetryAfter: delay}
		}
		taken = append(taken, res)
	}
	return Decision{Allowed: true}
}

// sweep drops clients idle for longer than the longest window; their buckets
// are full again by then.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	l.lastSweep = now
	for k, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.idle {
			delete(l.clients, k)
		}
	}
}

// Clients returns the number of tracked clients.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
