package hw

import (
	"fmt"
	"os"

	"go.bug.st/serial"
	"golang.org/x/term"
)

const consoleRingSize = 256

// Console is the operator console endpoint: single-byte polling reads plus
// writes for echo and prompts.
type Console interface {
	// Poll returns one pending input byte, or false when none is buffered.
	Poll() (byte, bool)
	Write(p []byte) (int, error)
	Close() error
}

// StdioConsole serves the console on the controlling terminal. The terminal
// is put into raw mode so single keystrokes (the mode trigger, y/n
// confirmation, backspace editing) arrive unbuffered; Close restores it.
type StdioConsole struct {
	fd    int
	state *term.State
	in    *Ring
}

// OpenStdioConsole claims stdin/stdout as the console.
func OpenStdioConsole() (*StdioConsole, error) {
	c := &StdioConsole{
		fd: int(os.Stdin.Fd()),
		in: NewRing(consoleRingSize),
	}
	if term.IsTerminal(c.fd) {
		state, err := term.MakeRaw(c.fd)
		if err != nil {
			return nil, fmt.Errorf("set raw mode: %w", err)
		}
		c.state = state
	}
	go pumpConsole(os.Stdin, c.in)
	return c, nil
}

// Poll returns one buffered keystroke if available.
func (c *StdioConsole) Poll() (byte, bool) {
	var b [1]byte
	if c.in.Read(b[:]) == 0 {
		return 0, false
	}
	return b[0], true
}

// Write emits console output.
func (c *StdioConsole) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

// Close restores the terminal state.
func (c *StdioConsole) Close() error {
	if c.state != nil {
		return term.Restore(c.fd, c.state)
	}
	return nil
}

// SerialConsole serves the console on a dedicated serial device at a fixed
// rate, the deployment shape for a bench with a separate debug header.
type SerialConsole struct {
	port serial.Port
	in   *Ring
}

// OpenSerialConsole opens the console device.
func OpenSerialConsole(device string, baud uint32) (*SerialConsole, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: int(baud)})
	if err != nil {
		return nil, fmt.Errorf("open console %s @ %d: %w", device, baud, err)
	}
	c := &SerialConsole{port: port, in: NewRing(consoleRingSize)}
	go pumpConsole(port, c.in)
	return c, nil
}

// Poll returns one buffered input byte if available.
func (c *SerialConsole) Poll() (byte, bool) {
	var b [1]byte
	if c.in.Read(b[:]) == 0 {
		return 0, false
	}
	return b[0], true
}

// Write emits console output.
func (c *SerialConsole) Write(p []byte) (int, error) {
	return c.port.Write(p)
}

// Close releases the console device.
func (c *SerialConsole) Close() error {
	return c.port.Close()
}

// pumpConsole moves bytes from a blocking reader into the poll ring until
// the reader fails (device closed or EOF).
func pumpConsole(r interface{ Read([]byte) (int, error) }, ring *Ring) {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			ring.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}
