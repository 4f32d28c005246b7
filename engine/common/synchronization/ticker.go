package synchronization

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Ticker paces state broadcasts. Broadcasts happen periodically, and can be
// triggered early with TryTick unless one was triggered within the cooldown.
// A manual tick restarts the period.
//
// Ticker is not safe for concurrent use.
type Ticker struct {
	clock         clock.Clock
	period        time.Duration
	cooldown      time.Duration
	nextTick      time.Time
	cooldownUntil time.Time
}

func NewTicker(clock clock.Clock, period time.Duration, cooldown time.Duration) *Ticker {
	now := clock.Now()
	return &Ticker{
		clock:         clock,
		period:        period,
		cooldown:      cooldown,
		nextTick:      now.Add(period),
		cooldownUntil: now,
	}
}

// TryTick records a manual tick and returns true, unless the previous manual
// tick is less than the cooldown ago, in which case it returns false and does
// nothing.
func (t *Ticker) TryTick() bool {
	now := t.clock.Now()
	if now.Before(t.cooldownUntil) {
		return false
	}
	t.cooldownUntil = now.Add(t.cooldown)
	t.nextTick = now.Add(t.period)
	return true
}

// Deadline returns the time of the next periodic tick. It is never within
// the cooldown of a manual tick.
func (t *Ticker) Deadline() time.Time {
	if t.nextTick.Before(t.cooldownUntil) {
		return t.cooldownUntil
	}
	return t.nextTick
}

// Due returns true if the periodic tick is due.
func (t *Ticker) Due() bool {
	return !t.clock.Now().Before(t.Deadline())
}

// Tick records a periodic tick.
func (t *Ticker) Tick() {
	t.nextTick = t.clock.Now().Add(t.period)
}
