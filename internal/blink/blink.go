// Package blink drives the status indicator's two timing profiles.
//
// Both runtime modes share one Blinker but never mix profiles within a
// tick: the bridge services the heartbeat profile, the provisioning console
// services the input-pending profile through its idle hook. The indicator
// itself is a plain on/off capability.
package blink

import "time"

// LED is the physical indicator capability.
type LED interface {
	On() error
	Off() error
}

// Profile is a named blink cadence.
type Profile struct {
	On  time.Duration
	Off time.Duration
}

// The two timing profiles of the runtime. Heartbeat is the slow "alive"
// pattern of bridge mode; InputPending is the fast flash shown while the
// console is waiting for the operator to type.
var (
	Heartbeat    = Profile{On: 90 * time.Millisecond, Off: 2910 * time.Millisecond}
	InputPending = Profile{On: 150 * time.Millisecond, Off: 150 * time.Millisecond}
)

// Blinker toggles the indicator when its deadline elapses. Tick is cheap and
// safe to call every scheduler cycle; it touches the LED only on a toggle.
type Blinker struct {
	led        LED
	level      bool
	nextToggle time.Time
}

// New creates a Blinker with the indicator off and an immediate first toggle.
func New(led LED) *Blinker {
	return &Blinker{led: led}
}

// Tick advances the pattern: if the deadline has elapsed, the level flips
// and the next deadline is scheduled from the profile.
func (b *Blinker) Tick(now time.Time, p Profile) {
	if now.Before(b.nextToggle) {
		return
	}
	b.level = !b.level
	if b.level {
		_ = b.led.On()
		b.nextToggle = now.Add(p.On)
	} else {
		_ = b.led.Off()
		b.nextToggle = now.Add(p.Off)
	}
}

// Reset forces the indicator off and re-arms an immediate toggle, used on
// mode transitions so the new profile starts from a clean phase.
func (b *Blinker) Reset() {
	b.level = false
	b.nextToggle = time.Time{}
	_ = b.led.Off()
}

// Level reports the current indicator level.
func (b *Blinker) Level() bool {
	return b.level
}
