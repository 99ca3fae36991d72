// Package testutil holds deterministic stand-ins for session collaborators.
package testutil

import "sync"

// StepClock is a journal sequencer for tests. It starts at a chosen value,
// advances by a fixed step and can be rewound, so two runs of one scenario
// stamp identical journals.
type StepClock struct {
	mu    sync.Mutex
	start int64
	step  int64
	seq   int64
}

// NewStepClock returns a clock whose first Next is start+step.
// A step below 1 is treated as 1.
func NewStepClock(start, step int64) *StepClock {
	if step < 1 {
		step = 1
	}
	return &StepClock{start: start, step: step, seq: start}
}

// NewDeterministicClock returns a clock counting 1, 2, 3, ...
func NewDeterministicClock() *StepClock {
	return NewStepClock(0, 1)
}

// Next advances the clock and returns the new value.
func (c *StepClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq += c.step
	return c.seq
}

// Current returns the last value handed out, or start before any Next.
func (c *StepClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds to start.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = c.start
}
