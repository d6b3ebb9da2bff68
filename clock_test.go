package subledger

import (
	"testing"
	"time"
)

func TestIntervalClock(t *testing.T) {
	genesis := time.Now().Add(-25 * time.Minute)
	c := NewIntervalClock(genesis, 10*time.Minute)
	if got := c.Height(); got != 2 {
		t.Errorf("Height: got %d, want 2", got)
	}

	future := NewIntervalClock(time.Now().Add(time.Hour), 10*time.Minute)
	if got := future.Height(); got != 0 {
		t.Errorf("pre-genesis Height: got %d, want 0", got)
	}
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(100)
	if c.Height() != 100 {
		t.Fatalf("Height: got %d, want 100", c.Height())
	}

	c.Advance(60)
	if c.Height() != 160 {
		t.Errorf("after Advance: got %d, want 160", c.Height())
	}

	c.Set(150) // ignored, heights never go backwards
	if c.Height() != 160 {
		t.Errorf("after backwards Set: got %d, want 160", c.Height())
	}

	c.Set(200)
	if c.Height() != 200 {
		t.Errorf("after Set: got %d, want 200", c.Height())
	}
}
