// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"sync"
	"time"
)

// SteppingClock is a thread-safe clock that advances by a fixed step on
// every reading, so rows written in sequence get strictly increasing
// timestamps even when the wall clock has not moved.
type SteppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewSteppingClock creates a clock starting at start (UTC) advancing by step.
func NewSteppingClock(start time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{now: start.UTC(), step: step}
}

// Now advances the clock and returns the new reading.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Peek returns the current reading without advancing.
func (c *SteppingClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *SteppingClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
