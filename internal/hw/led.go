package hw

import (
	"fmt"
	"os"
)

// SysfsLED drives a status indicator through a sysfs brightness file, e.g.
// /sys/class/leds/status/brightness.
type SysfsLED struct {
	path string
}

// NewSysfsLED creates the driver; the file is probed on first use, not here.
func NewSysfsLED(path string) *SysfsLED {
	return &SysfsLED{path: path}
}

// On switches the indicator on.
func (l *SysfsLED) On() error {
	return l.set("1")
}

// Off switches the indicator off.
func (l *SysfsLED) Off() error {
	return l.set("0")
}

func (l *SysfsLED) set(v string) error {
	if err := os.WriteFile(l.path, []byte(v), 0o644); err != nil {
		return fmt.Errorf("led %s: %w", l.path, err)
	}
	return nil
}

// NopLED satisfies the indicator capability on hosts without one.
type NopLED struct{}

// On is a no-op.
func (NopLED) On() error { return nil }

// Off is a no-op.
func (NopLED) Off() error { return nil }
