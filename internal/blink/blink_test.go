package blink

import (
	"testing"
	"time"
)

// recordingLED captures the sequence of levels driven onto the indicator.
type recordingLED struct {
	levels []bool
}

func (l *recordingLED) On() error  { l.levels = append(l.levels, true); return nil }
func (l *recordingLED) Off() error { l.levels = append(l.levels, false); return nil }

// TestHeartbeatCadence walks simulated time through one full heartbeat
// period and checks the toggle points.
func TestHeartbeatCadence(t *testing.T) {
	led := &recordingLED{}
	b := New(led)
	start := time.Now()

	// First tick toggles immediately.
	b.Tick(start, Heartbeat)
	if !b.Level() {
		t.Fatal("first tick should switch the indicator on")
	}

	// Before the on-phase deadline nothing happens.
	b.Tick(start.Add(Heartbeat.On-time.Millisecond), Heartbeat)
	if !b.Level() {
		t.Fatal("toggled before on-phase elapsed")
	}

	// At the deadline the indicator goes off for the long phase.
	offAt := start.Add(Heartbeat.On)
	b.Tick(offAt, Heartbeat)
	if b.Level() {
		t.Fatal("indicator still on after on-phase deadline")
	}

	// The off phase holds until its own deadline.
	b.Tick(offAt.Add(Heartbeat.Off-time.Millisecond), Heartbeat)
	if b.Level() {
		t.Fatal("toggled before off-phase elapsed")
	}
	b.Tick(offAt.Add(Heartbeat.Off), Heartbeat)
	if !b.Level() {
		t.Fatal("indicator did not restart the pattern")
	}

	want := []bool{true, false, true}
	if len(led.levels) != len(want) {
		t.Fatalf("LED driven %d times, want %d: %v", len(led.levels), len(want), led.levels)
	}
	for i, lvl := range want {
		if led.levels[i] != lvl {
			t.Errorf("toggle %d = %v, want %v", i, led.levels[i], lvl)
		}
	}
}

// TestInputPendingIsSymmetric verifies the fast profile spends equal time on
// and off.
func TestInputPendingIsSymmetric(t *testing.T) {
	if InputPending.On != InputPending.Off {
		t.Errorf("input-pending profile asymmetric: on=%v off=%v", InputPending.On, InputPending.Off)
	}
	if InputPending.On >= Heartbeat.Off {
		t.Error("input-pending flash should be visibly faster than the heartbeat gap")
	}
}

// TestReset verifies a mode transition restarts the pattern cleanly.
func TestReset(t *testing.T) {
	led := &recordingLED{}
	b := New(led)
	now := time.Now()

	b.Tick(now, Heartbeat)
	b.Reset()
	if b.Level() {
		t.Fatal("indicator left on after reset")
	}

	// The next tick of the new profile toggles immediately, regardless of
	// the old deadline.
	b.Tick(now, InputPending)
	if !b.Level() {
		t.Fatal("first tick after reset did not toggle")
	}
}
