package console

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/calef/uartbridge/internal/logging"
	"github.com/calef/uartbridge/internal/settings"
)

// pollPause is slept between input polls so an idle session does not spin a
// host core. The idle hook runs once per pause.
const pollPause = 2 * time.Millisecond

// restartDelay gives the operator a moment to read the outcome before the
// device goes down.
const restartDelay = 2 * time.Second

// Port is the console endpoint the session talks over.
type Port interface {
	Poll() (byte, bool)
	Write(p []byte) (int, error)
}

// ConfigStore is the slice of the store the session needs.
type ConfigStore interface {
	Probe() error
	Save(cfg settings.DeviceConfig) (byte, error)
}

// Session is one provisioning dialogue. Run drives it to completion and
// always ends in Restart.
type Session struct {
	Port   Port
	Store  ConfigStore
	Config *settings.DeviceConfig

	// Idle runs between input polls; the scheduler hangs the input-pending
	// blink pattern here.
	Idle func()

	// Restart reboots the device. It is called unconditionally at the end
	// of the session, commit or discard.
	Restart func()

	// Sleep is the delay primitive, replaceable in tests.
	Sleep func(time.Duration)
}

// Run executes the full prompt sequence. The returned error is non-nil only
// when storage is unusable, which the caller treats as fatal.
func (s *Session) Run() error {
	if s.Sleep == nil {
		s.Sleep = time.Sleep
	}

	s.flush()
	s.printf("\r\n=== bridge configuration ===\r\n")

	if err := s.Store.Probe(); err != nil {
		s.printf("storage unusable: %v\r\n", err)
		return fmt.Errorf("configuration entry: %w", err)
	}

	candidate := *s.Config
	candidate.Wifi.SSID = s.readLine("SSID: ", settings.MaxSSIDLen)
	candidate.Wifi.PSK = s.readLine("pre-shared key: ", settings.MaxPSKLen)
	candidate.Wifi.TxPower = s.readFloat("transmit power [dBm]: ")
	candidate.Wifi.ListenPort = uint16(s.readInt("listen port: "))
	candidate.Uart.DutBaud = uint32(s.readInt("DUT baud rate: "))
	candidate.Uart.LogBaud = uint32(s.readInt("log baud rate: "))

	s.printf("\r\nnew configuration:\r\n")
	s.printf("  ssid:        %s\r\n", candidate.Wifi.SSID)
	s.printf("  psk:         %s\r\n", candidate.Wifi.PSK)
	s.printf("  tx power:    %g dBm\r\n", candidate.Wifi.TxPower)
	s.printf("  listen port: %d\r\n", candidate.Wifi.ListenPort)
	s.printf("  DUT baud:    %d\r\n", candidate.Uart.DutBaud)
	s.printf("  log baud:    %d\r\n", candidate.Uart.LogBaud)

	if s.confirm("save? [y/n]: ") {
		*s.Config = candidate
		sum, err := s.Store.Save(candidate)
		if err != nil {
			s.printf("save failed: %v\r\n", err)
			logging.Error("Configuration save failed", zap.Error(err))
		} else {
			s.printf("saved, checksum 0x%02X\r\n", sum)
		}
	} else {
		s.printf("discarded\r\n")
	}

	s.printf("restarting...\r\n")
	s.Sleep(restartDelay)
	s.Restart()
	return nil
}

// flush discards whatever input is already buffered so stray bytes (the
// mode trigger itself, line noise) cannot leak into the first field.
func (s *Session) flush() {
	for {
		if _, ok := s.Port.Poll(); !ok {
			return
		}
	}
}

// readByte busy-polls for one byte, servicing the idle hook while waiting.
func (s *Session) readByte() byte {
	for {
		if b, ok := s.Port.Poll(); ok {
			return b
		}
		if s.Idle != nil {
			s.Idle()
		}
		s.Sleep(pollPause)
	}
}

// numericFieldLen bounds the numeric prompts; the widest legal value is far
// shorter.
const numericFieldLen = 15

// readLine collects one line of at most max bytes with local echo and
// destructive backspace editing. Printable bytes beyond max are dropped
// without echo, matching the record's fixed field capacity so a committed
// value is always encodable. Non-printable bytes other than backspace and
// the terminator are ignored.
func (s *Session) readLine(prompt string, max int) string {
	s.printf("%s", prompt)
	var line []byte
	for {
		b := s.readByte()
		switch {
		case b == '\r' || b == '\n':
			s.printf("\r\n")
			return string(line)
		case b == 0x08 || b == 0x7F:
			if len(line) > 0 {
				line = line[:len(line)-1]
				s.printf("\b \b")
			}
		case b >= 0x20 && b <= 0x7E:
			if len(line) >= max {
				continue
			}
			line = append(line, b)
			_, _ = s.Port.Write([]byte{b})
		}
	}
}

// readFloat reads a line and parses it permissively: garbage becomes 0.
func (s *Session) readFloat(prompt string) float64 {
	v, _ := strconv.ParseFloat(s.readLine(prompt, numericFieldLen), 64)
	return v
}

// readInt reads a line and parses it permissively: garbage becomes 0.
func (s *Session) readInt(prompt string) int {
	v, _ := strconv.Atoi(s.readLine(prompt, numericFieldLen))
	return v
}

// confirm polls single characters until a decisive one arrives. Anything
// other than y/Y/n/N re-prompts.
func (s *Session) confirm(prompt string) bool {
	for {
		s.printf("%s", prompt)
		switch b := s.readByte(); b {
		case 'y', 'Y':
			s.printf("%c\r\n", b)
			return true
		case 'n', 'N':
			s.printf("%c\r\n", b)
			return false
		default:
			s.printf("\r\n")
		}
	}
}

func (s *Session) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.Port, format, args...)
}
