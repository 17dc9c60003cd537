package hw

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/calef/uartbridge/internal/logging"
)

const (
	// clientRingSize is the per-client budget window in each direction. The
	// outbound ring's free space is the client's writable budget the bridge
	// fairness policy is computed over.
	clientRingSize = 1024

	acceptPollTimeout = time.Millisecond

	// closeFlushTimeout bounds how long Close spends pushing queued outbound
	// bytes to the socket before tearing it down.
	closeFlushTimeout = 100 * time.Millisecond
)

// Acceptor wraps the listening socket with a non-blocking accept: Poll
// returns immediately whether or not a connection is pending, so it can be
// serviced once per tick.
type Acceptor struct {
	ln *net.TCPListener
}

// Listen opens the bridge listening socket on the given port, all interfaces.
func Listen(port uint16) (*Acceptor, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}
	logging.Info("Bridge listening",
		zap.String("addr", ln.Addr().String()),
	)
	return &Acceptor{ln: ln.(*net.TCPListener)}, nil
}

// Addr returns the bound listen address.
func (a *Acceptor) Addr() string {
	return a.ln.Addr().String()
}

// Poll accepts one pending connection if there is one.
func (a *Acceptor) Poll() (*Client, bool) {
	if err := a.ln.SetDeadline(time.Now().Add(acceptPollTimeout)); err != nil {
		return nil, false
	}
	conn, err := a.ln.Accept()
	if err != nil {
		// Deadline expiry is the common case: nothing pending this tick.
		return nil, false
	}
	return newClient(conn), true
}

// Close shuts the listening socket.
func (a *Acceptor) Close() error {
	return a.ln.Close()
}

// Client is one network client connection wrapped with bounded rings. The
// pumps move bytes between the socket and the rings; the tick-driven engine
// only ever touches the rings, so every engine call is non-blocking and the
// budgets are exact.
type Client struct {
	conn  net.Conn
	in    *Ring
	out   *Ring
	alive atomic.Bool
}

func newClient(conn net.Conn) *Client {
	c := &Client{
		conn: conn,
		in:   NewRing(clientRingSize),
		out:  NewRing(clientRingSize),
	}
	c.alive.Store(true)
	go c.readPump()
	go c.writePump()
	return c
}

func (c *Client) readPump() {
	buf := make([]byte, 256)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			for off := 0; off < n; {
				taken := c.in.Write(buf[off:n])
				if taken == 0 {
					// Inbound window full; give the engine a tick to drain.
					time.Sleep(time.Millisecond)
					if !c.alive.Load() {
						return
					}
					continue
				}
				off += taken
			}
		}
		if err != nil {
			c.alive.Store(false)
			return
		}
	}
}

func (c *Client) writePump() {
	buf := make([]byte, 256)
	for {
		n := c.out.Read(buf)
		if n == 0 {
			if !c.alive.Load() {
				return
			}
			time.Sleep(time.Millisecond)
			continue
		}
		if _, err := c.conn.Write(buf[:n]); err != nil {
			c.alive.Store(false)
			return
		}
	}
}

// Connected reports whether the socket is still usable.
func (c *Client) Connected() bool {
	return c.alive.Load()
}

// Readable returns the bytes the client has sent that are waiting to be
// drained to the serial link.
func (c *Client) Readable() int {
	return c.in.Len()
}

// Read moves up to len(buf) pending inbound bytes; it never blocks.
func (c *Client) Read(buf []byte) (int, error) {
	return c.in.Read(buf), nil
}

// Writable returns the client's current outbound budget.
func (c *Client) Writable() int {
	if !c.alive.Load() {
		return 0
	}
	return c.out.Free()
}

// Write queues up to Writable() bytes toward the socket; it never blocks.
func (c *Client) Write(buf []byte) (int, error) {
	return c.out.Write(buf), nil
}

// Close flushes queued outbound bytes and tears the connection down. The
// flush matters for a connection that never gets a slot: the engine queues
// the busy reply and closes in the same tick, well inside the write pump's
// poll cadence, and the peer must still see the reply rather than a bare
// EOF.
func (c *Client) Close() error {
	c.alive.Store(false)
	c.flushOutbound()
	return c.conn.Close()
}

// flushOutbound drains the outbound ring to the socket, bounded by
// closeFlushTimeout. The write pump may race it for ring bytes; each byte is
// handed out once, so the peer sees the stream either way.
func (c *Client) flushOutbound() {
	if err := c.conn.SetWriteDeadline(time.Now().Add(closeFlushTimeout)); err != nil {
		return
	}
	buf := make([]byte, 256)
	for {
		n := c.out.Read(buf)
		if n == 0 {
			return
		}
		if _, err := c.conn.Write(buf[:n]); err != nil {
			return
		}
	}
}

// RemoteAddr names the peer for logging.
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
