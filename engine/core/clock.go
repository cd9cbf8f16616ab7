package core

import "time"

// Clock measures elapsed time between updates, in seconds.
type Clock struct {
	start   time.Time
	elapsed float64
}

func NewClock() *Clock {
	return &Clock{}
}

// Start resets the clock and begins measuring.
func (c *Clock) Start() {
	c.start = time.Now()
	c.elapsed = 0
}

// Update refreshes the elapsed time. Has no effect on a stopped clock.
func (c *Clock) Update() {
	if !c.start.IsZero() {
		c.elapsed = time.Since(c.start).Seconds()
	}
}

// Stop halts the clock without resetting the elapsed time.
func (c *Clock) Stop() {
	c.start = time.Time{}
}

// Elapsed returns the seconds measured at the last Update.
func (c *Clock) Elapsed() float64 {
	return c.elapsed
}
