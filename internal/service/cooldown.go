package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCodeCooldown is the minimum interval between verification codes per phone.
const DefaultCodeCooldown = 60 * time.Second

const cooldownSweepThreshold = 4096

type phoneLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// CodeCooldown enforces one verification code per phone per interval.
type CodeCooldown struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*phoneLimiter
	now      func() time.Time
}

// NewCodeCooldown creates a cooldown; a non-positive interval selects DefaultCodeCooldown.
func NewCodeCooldown(interval time.Duration) *CodeCooldown {
	if interval <= 0 {
		interval = DefaultCodeCooldown
	}
	return &CodeCooldown{
		interval: interval,
		limiters: make(map[string]*phoneLimiter),
		now:      time.Now,
	}
}

// Reserve claims the phone's slot. When the phone is cooling down it returns
// false and the remaining wait.
func (c *CodeCooldown) Reserve(phone string) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweep(now)

	l, ok := c.limiters[phone]
	if !ok {
		l = &phoneLimiter{limiter: rate.NewLimiter(rate.Every(c.interval), 1)}
		c.limiters[phone] = l
	}
	l.lastSeen = now

	r := l.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, c.interval
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Release forgets the phone's slot, e.g. after delivery failed.
func (c *CodeCooldown) Release(phone string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.limiters, phone)
}

// sweep drops idle entries once the map grows large. Caller holds mu.
func (c *CodeCooldown) sweep(now time.Time) {
	if len(c.limiters) < cooldownSweepThreshold {
		return
	}
	for phone, l := range c.limiters {
		if now.Sub(l.lastSeen) > c.interval {
			delete(c.limiters, phone)
		}
	}
}
