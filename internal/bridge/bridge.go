package bridge

import (
	"go.uber.org/zap"

	"github.com/calef/uartbridge/internal/logging"
)

const (
	// MaxClients is the default number of client slots.
	MaxClients = 2

	// ChunkLimit bounds one tick's serial read, keeping the relay buffer
	// small and the per-tick latency flat.
	ChunkLimit = 128
)

// busyReply is sent to a connection offered while every slot is occupied,
// just before it is closed.
const busyReply = "bridge busy: all client slots in use\r\n"

// Client is one network client connection. All methods must be non-blocking;
// Readable and Writable report the exact byte budgets available this
// instant.
type Client interface {
	Connected() bool
	Readable() int
	Read(p []byte) (int, error)
	Writable() int
	Write(p []byte) (int, error)
	Close() error
	RemoteAddr() string
}

// Acceptor offers at most one pending connection per Poll without blocking.
type Acceptor interface {
	Poll() (Client, bool)
}

// SerialPort is the budgeted view of the bridged hardware link.
type SerialPort interface {
	Readable() int
	Writable() int
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// Tap observes each serial-to-client chunk, e.g. the diagnostics monitor.
// Forward must not block.
type Tap interface {
	Forward(p []byte)
}

// Engine relays bytes between the serial link and the client slots. It is
// owned by the scheduler's bridge state and driven by Tick; all state is
// single-owner, so no locking is needed.
type Engine struct {
	serial SerialPort
	accept Acceptor
	tap    Tap

	slots   []Client
	budgets []int // per-tick snapshot, reused across ticks
	buf     [ChunkLimit]byte
}

// New creates an Engine with the default slot count. tap may be nil.
func New(serial SerialPort, accept Acceptor, tap Tap) *Engine {
	return NewWithSlots(serial, accept, tap, MaxClients)
}

// NewWithSlots creates an Engine with a fixed arena of n client slots.
func NewWithSlots(serial SerialPort, accept Acceptor, tap Tap, n int) *Engine {
	return &Engine{
		serial:  serial,
		accept:  accept,
		tap:     tap,
		slots:   make([]Client, n),
		budgets: make([]int, n),
	}
}

// Tick runs one relay cycle. It never blocks and leaves the slot table valid
// for the next tick regardless of how clients behaved.
func (e *Engine) Tick() {
	e.reap()
	e.acceptOne()
	e.drainToSerial()
	e.fanOut()
}

// ClientCount returns the number of occupied slots.
func (e *Engine) ClientCount() int {
	n := 0
	for _, c := range e.slots {
		if c != nil {
			n++
		}
	}
	return n
}

// Close tears down every client connection. Called on mode switch; the
// acceptor is owned and closed by the scheduler.
func (e *Engine) Close() {
	for i, c := range e.slots {
		if c == nil {
			continue
		}
		logging.LogClientEvent(c.RemoteAddr(), i, "closed_on_teardown")
		_ = c.Close()
		e.slots[i] = nil
	}
}

// reap frees slots whose client has disconnected so they are reusable this
// very tick. Scan order is fixed; the next connection takes the first free
// slot.
func (e *Engine) reap() {
	for i, c := range e.slots {
		if c == nil || c.Connected() {
			continue
		}
		logging.LogClientEvent(c.RemoteAddr(), i, "disconnected")
		_ = c.Close()
		e.slots[i] = nil
	}
}

// acceptOne admits at most one pending connection per tick. With every slot
// occupied the connection is told off and closed immediately; nothing is
// queued.
func (e *Engine) acceptOne() {
	c, ok := e.accept.Poll()
	if !ok {
		return
	}
	for i := range e.slots {
		if e.slots[i] == nil {
			e.slots[i] = c
			logging.LogClientEvent(c.RemoteAddr(), i, "connected")
			return
		}
	}
	_, _ = c.Write([]byte(busyReply))
	_ = c.Close()
	logging.LogClientEvent(c.RemoteAddr(), -1, "rejected_all_slots_full")
}

// drainToSerial moves pending client bytes to the serial link, bounded by
// the link's writable budget at this instant. Byte volume in this direction
// is operator keystrokes and commands; throughput is not the concern,
// keeping the serial link unclogged is.
func (e *Engine) drainToSerial() {
	budget := e.serial.Writable()
	var tmp [ChunkLimit]byte

	for i, c := range e.slots {
		if c == nil || budget <= 0 {
			continue
		}
		pending := c.Readable()
		if pending == 0 {
			continue
		}
		n := min(pending, budget, len(tmp))
		n, err := c.Read(tmp[:n])
		if err != nil || n == 0 {
			continue
		}
		w, err := e.serial.Write(tmp[:n])
		if err != nil || w != n {
			logging.Warn("Serial write shortfall",
				zap.Int("slot", i),
				zap.Int("wrote", w),
				zap.Int("want", n),
				zap.Error(err),
			)
		}
		budget -= w
	}
}

// fanOut forwards one serial chunk to every client whose budget can take it
// whole. Budgets are snapshotted once per tick so the congestion check, the
// fairness bound, and the delivery test all observe the same values.
//
// A client whose budget cannot hold the pending chunk is congested: it is
// skipped when computing the bound, so it cannot stall the other clients to
// its pace. It stays connected and simply misses this chunk.
func (e *Engine) fanOut() {
	want := min(e.serial.Readable(), ChunkLimit)
	if want <= 0 {
		return
	}

	bound := -1
	for i, c := range e.slots {
		if c == nil {
			e.budgets[i] = 0
			continue
		}
		b := c.Writable()
		e.budgets[i] = b
		if b < want {
			logging.LogClientEvent(c.RemoteAddr(), i, "congested")
			continue
		}
		if bound < 0 || b < bound {
			bound = b
		}
	}
	if bound <= 0 {
		return
	}

	n := min(want, bound)
	n, err := e.serial.Read(e.buf[:n])
	if err != nil || n == 0 {
		return
	}
	logging.LogRawBytes("serial chunk", e.buf[:n])

	if e.tap != nil {
		e.tap.Forward(e.buf[:n])
	}

	for i, c := range e.slots {
		if c == nil || e.budgets[i] < n {
			continue
		}
		w, err := c.Write(e.buf[:n])
		if err != nil || w != n {
			logging.LogWriteFault(c.RemoteAddr(), i, w, n, err)
		}
	}
}
