package subledger

import (
	"sync/atomic"
	"time"
)

// Clock supplies the ambient monotonically increasing block height used
// as the system clock. One unit is roughly one consensus round.
// Expiration is a pure function of this counter, never an active timer.
type Clock interface {
	Height() uint64
}

// IntervalClock derives the height from wall time: the number of whole
// rounds elapsed since genesis. It is the default clock for embedders
// that have no chain to follow.
type IntervalClock struct {
	genesis time.Time
	round   time.Duration
}

// NewIntervalClock creates an IntervalClock anchored at genesis with
// the given round length. A non-positive round defaults to ten minutes.
func NewIntervalClock(genesis time.Time, round time.Duration) *IntervalClock {
	if round <= 0 {
		round = 10 * time.Minute
	}
	return &IntervalClock{genesis: genesis, round: round}
}

// Height implements Clock.
func (c *IntervalClock) Height() uint64 {
	elapsed := time.Since(c.genesis)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / c.round)
}

// ManualClock is a settable clock for tests and for embedders that
// follow an external chain and push observed heights in.
type ManualClock struct {
	height atomic.Uint64
}

// NewManualClock creates a ManualClock at the given height.
func NewManualClock(height uint64) *ManualClock {
	c := &ManualClock{}
	c.height.Store(height)
	return c
}

// Height implements Clock.
func (c *ManualClock) Height() uint64 { return c.height.Load() }

// Set moves the clock to the given height. Heights never go backwards;
// Set ignores a value lower than the current one.
func (c *ManualClock) Set(height uint64) {
	for {
		cur := c.height.Load()
		if height <= cur {
			return
		}
		if c.height.CompareAndSwap(cur, height) {
			return
		}
	}
}

// Advance moves the clock forward by delta rounds.
func (c *ManualClock) Advance(delta uint64) uint64 {
	return c.height.Add(delta)
}
