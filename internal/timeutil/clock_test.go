package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Errorf("RealClock.Now() = %v outside [%v, %v]", got, before, after)
	}
	if c.Since(before) < 0 {
		t.Error("RealClock.Since returned negative duration")
	}
}

func TestRealClockTicker(t *testing.T) {
	c := RealClock{}
	ticker := c.NewTicker(time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C():
	case <-time.After(5 * time.Second):
		t.Fatal("ticker never fired")
	}
}

func TestMockClockNowAndSince(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(base)
	if !c.Now().Equal(base) {
		t.Errorf("Now() = %v, want %v", c.Now(), base)
	}
	c.Advance(time.Minute)
	if got := c.Since(base); got != time.Minute {
		t.Errorf("Since(base) = %v, want 1m", got)
	}
}

func TestMockTickerFiresOnAdvance(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(base)
	ticker := c.NewTicker(time.Second)

	select {
	case <-ticker.C():
		t.Fatal("ticker fired before any advance")
	default:
	}

	c.Advance(time.Second)
	select {
	case tick := <-ticker.C():
		if !tick.Equal(base.Add(time.Second)) {
			t.Errorf("tick time = %v, want %v", tick, base.Add(time.Second))
		}
	default:
		t.Fatal("ticker did not fire after a full period")
	}
}

func TestMockTickerNotDueDoesNotFire(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	ticker := c.NewTicker(time.Second)
	c.Advance(400 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its period elapsed")
	default:
	}
}

func TestMockTickerCoalesces(t *testing.T) {
	// Advancing across several periods at once delivers a single tick,
	// like a real ticker channel under a slow receiver.
	c := NewMockClock(time.Unix(0, 0))
	ticker := c.NewTicker(time.Second)
	c.Advance(5 * time.Second)

	ticks := 0
	for {
		select {
		case <-ticker.C():
			ticks++
			continue
		default:
		}
		break
	}
	if ticks != 1 {
		t.Errorf("ticks = %d, want 1", ticks)
	}
}

func TestMockTickerStop(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	ticker := c.NewTicker(time.Second)
	ticker.Stop()
	c.Advance(10 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}
