// Package manifest reads the host manifest, the YAML file binding the
// bridge to this machine's hardware: which serial device to drive, where
// the console lives, where the configuration record is persisted.
//
// The manifest describes the host, never the device configuration itself;
// that lives in the persisted binary record and is edited through the
// provisioning console.
package manifest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration carries the "5ms"/"1s" textual form through YAML; yaml.v3 does
// not decode that into time.Duration on its own.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Manifest is the host wiring for one bridge instance.
type Manifest struct {
	// Serial is the bridged UART device, e.g. /dev/ttyUSB0.
	Serial string `yaml:"serial"`

	// Console is the operator console endpoint: "stdio" or a serial
	// device path.
	Console string `yaml:"console"`

	// ConsoleBaud applies when Console is a serial device.
	ConsoleBaud uint32 `yaml:"console_baud"`

	// Storage is the directory holding the persisted configuration record.
	Storage string `yaml:"storage"`

	// LED is a sysfs LED brightness path; empty disables the indicator.
	LED string `yaml:"led"`

	// Monitor is the WebSocket tap listen address; empty disables the tap.
	Monitor string `yaml:"monitor"`

	// Announce enables the mDNS announcement while bridging.
	Announce bool `yaml:"announce"`

	// Trigger is the configuration-mode request byte, a single printable
	// character.
	Trigger string `yaml:"trigger"`

	// Tick is the relay cadence.
	Tick Duration `yaml:"tick"`

	// BootWindow is how long boot waits for the trigger before bridging.
	BootWindow Duration `yaml:"boot_window"`
}

// Default returns the manifest used when no file is present.
func Default() Manifest {
	return Manifest{
		Serial:      "/dev/ttyUSB0",
		Console:     "stdio",
		ConsoleBaud: 115200,
		Storage:     "/var/lib/uartbridge",
		Announce:    true,
		Trigger:     "+",
		Tick:        Duration(5 * time.Millisecond),
		BootWindow:  Duration(time.Second),
	}
}

// Load reads the manifest at path. A missing file yields the defaults;
// fields absent from the file keep their default values.
func Load(path string) (Manifest, error) {
	m := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return m, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return m, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Validate rejects a manifest the runtime could not honor.
func (m Manifest) Validate() error {
	if m.Serial == "" {
		return fmt.Errorf("serial device must be set")
	}
	if m.Console == "" {
		return fmt.Errorf("console must be \"stdio\" or a device path")
	}
	if m.Storage == "" {
		return fmt.Errorf("storage directory must be set")
	}
	if len(m.Trigger) != 1 || m.Trigger[0] < 0x21 || m.Trigger[0] > 0x7E {
		return fmt.Errorf("trigger must be a single printable character, got %q", m.Trigger)
	}
	if m.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %v", time.Duration(m.Tick))
	}
	if m.BootWindow < 0 {
		return fmt.Errorf("boot window must not be negative, got %v", time.Duration(m.BootWindow))
	}
	return nil
}

// TriggerByte returns the trigger as the byte the runtime compares against.
func (m Manifest) TriggerByte() byte {
	return m.Trigger[0]
}
