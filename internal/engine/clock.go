package engine

import "sync/atomic"

// Sequencer stamps journal entries with increasing sequence numbers.
type Sequencer interface {
	Next() int64
}

// Clock is the session's monotonic logical clock. Journal entries are
// ordered by its values, never by wall time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
