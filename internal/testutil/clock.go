package testutil

import (
	"sync"
	"time"
)

// MutableClock is a clock.Clock fixed at a point in time until advanced
type MutableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewMutableClock(now time.Time) *MutableClock {
	return &MutableClock{now: now.UTC()}
}

func (c *MutableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *MutableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
