package engine

import "sync/atomic"

// Clock numbers synchronization passes. Pass numbers only appear in logs
// and never affect behaviour.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next pass number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}
