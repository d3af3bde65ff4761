package queue

import (
	"sync"
	"time"
)

// Countdown is the purchase window timer: it counts down once per second
// and fires its expiry callback exactly once when it reaches zero. It can
// be stopped and restarted (used when re-entering ready after a resync).
type Countdown struct {
	onExpire func()

	mu        sync.Mutex
	remaining int
	running   bool
	stop      chan struct{}
}

// NewCountdown creates a stopped countdown. onExpire runs on the ticker
// goroutine when the count reaches zero.
func NewCountdown(onExpire func()) *Countdown {
	return &Countdown{onExpire: onExpire}
}

// Start begins counting down from seconds, replacing any previous run.
func (c *Countdown) Start(seconds int) {
	c.mu.Lock()
	if c.running {
		close(c.stop)
	}
	c.remaining = seconds
	c.running = true
	c.stop = make(chan struct{})
	stop := c.stop
	c.mu.Unlock()

	go c.run(stop)
}

// Stop halts the countdown without firing the callback.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	close(c.stop)
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether the countdown is active.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Countdown) run(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if expired := c.tick(stop); expired {
				return
			}
		}
	}
}

// tick decrements the counter. It returns true, after firing the expiry
// callback, when the count hits zero. Separated from run so tests can
// drive the clock directly. The stop channel identifies the run a tick
// belongs to; a tick from a superseded run is discarded.
func (c *Countdown) tick(stop chan struct{}) bool {
	c.mu.Lock()
	if !c.running || c.stop != stop {
		c.mu.Unlock()
		return true
	}
	c.remaining--
	if c.remaining > 0 {
		c.mu.Unlock()
		return false
	}
	c.remaining = 0
	c.running = false
	close(c.stop)
	c.mu.Unlock()

	if c.onExpire != nil {
		c.onExpire()
	}
	return true
}
