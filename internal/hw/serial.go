package hw

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/calef/uartbridge/internal/logging"
)

const (
	serialRingSize    = 4096
	serialReadTimeout = 5 * time.Millisecond
)

// Port is the bridged hardware serial link. It owns the physical device and
// exposes it as a budgeted non-blocking endpoint: Readable/Writable report
// the exact byte counts a tick may move without blocking.
//
// The firmware routes one UART peripheral between two pin pairs; here the
// equivalent swap is reopening the device at the console (log) rate or the
// device-under-test rate. RouteConsole and RouteBridge are each invoked
// exactly once per mode transition by the scheduler.
type Port struct {
	device  string
	logBaud int
	dutBaud int

	mu   sync.Mutex
	port serial.Port
	in   *Ring
	out  *Ring
	stop chan struct{}
	wg   sync.WaitGroup
}

// OpenPort opens the serial device in its console routing.
func OpenPort(device string, logBaud, dutBaud uint32) (*Port, error) {
	p := &Port{
		device:  device,
		logBaud: int(logBaud),
		dutBaud: int(dutBaud),
		in:      NewRing(serialRingSize),
		out:     NewRing(serialRingSize),
	}
	if err := p.reopen(p.logBaud); err != nil {
		return nil, err
	}
	return p, nil
}

// RouteConsole switches the link to the console rate.
func (p *Port) RouteConsole() error {
	return p.reopen(p.logBaud)
}

// RouteBridge switches the link to the device-under-test rate.
func (p *Port) RouteBridge() error {
	return p.reopen(p.dutBaud)
}

func (p *Port) reopen(baud int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopPumpsLocked()

	port, err := serial.Open(p.device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return fmt.Errorf("open %s @ %d: %w", p.device, baud, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return fmt.Errorf("set read timeout on %s: %w", p.device, err)
	}

	// Bytes belonging to the previous routing must not leak into the new one.
	p.in.Reset()
	p.out.Reset()

	p.port = port
	p.stop = make(chan struct{})
	p.wg.Add(2)
	go p.readPump(port, p.stop)
	go p.writePump(port, p.stop)

	logging.Info("Serial port routed",
		zap.String("device", p.device),
		zap.Int("baud", baud),
	)
	return nil
}

func (p *Port) stopPumpsLocked() {
	if p.port == nil {
		return
	}
	close(p.stop)
	p.port.Close()
	p.wg.Wait()
	p.port = nil
}

// Close releases the device and stops the pumps.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopPumpsLocked()
	return nil
}

func (p *Port) readPump(port serial.Port, stop chan struct{}) {
	defer p.wg.Done()
	buf := make([]byte, 256)
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := port.Read(buf)
		if n > 0 {
			if taken := p.in.Write(buf[:n]); taken < n {
				// Nobody is draining the link; excess bytes are dropped.
				logging.Debug("Serial inbound overflow",
					zap.Int("dropped", n-taken),
				)
			}
		}
		if err != nil {
			select {
			case <-stop:
			default:
				logging.Warn("Serial read error", zap.Error(err))
			}
			return
		}
	}
}

func (p *Port) writePump(port serial.Port, stop chan struct{}) {
	defer p.wg.Done()
	buf := make([]byte, 256)
	for {
		n := p.out.Read(buf)
		if n == 0 {
			select {
			case <-stop:
				return
			case <-time.After(time.Millisecond):
			}
			continue
		}
		if _, err := port.Write(buf[:n]); err != nil {
			select {
			case <-stop:
			default:
				logging.Warn("Serial write error", zap.Error(err))
			}
			return
		}
	}
}

// Readable returns the bytes available from the link right now.
func (p *Port) Readable() int {
	return p.in.Len()
}

// Writable returns the bytes the link can accept right now.
func (p *Port) Writable() int {
	return p.out.Free()
}

// Read moves up to len(buf) available bytes; it never blocks.
func (p *Port) Read(buf []byte) (int, error) {
	return p.in.Read(buf), nil
}

// Write queues up to Writable() bytes; it never blocks.
func (p *Port) Write(buf []byte) (int, error) {
	return p.out.Write(buf), nil
}
