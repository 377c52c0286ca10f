package autosave

import (
	"sync"
	"time"
)

// manualClock fires timers only when Advance moves time past them. Callbacks run synchronously
// on the goroutine calling Advance, and may themselves call Advance.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	c     *manualClock
	at    time.Duration
	f     func()
	state int // 0 pending, 1 fired, 2 stopped
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.state != 0 {
		return false
	}
	t.state = 2
	return true
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{c: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *manualTimer
		for _, t := range c.timers {
			if t.state == 0 && t.at <= target && (next == nil || t.at < next.at) {
				next = t
			}
		}
		if next == nil {
			if target > c.now {
				c.now = target
			}
			c.mu.Unlock()
			return
		}
		next.state = 1
		if next.at > c.now {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
	}
}

// dispatched returns the callback of the i-th scheduled timer, as if the runtime had already
// started it before the timer was stopped.
func (c *manualClock) dispatched(i int) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[i].f
}
