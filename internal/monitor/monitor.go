// Package monitor exposes the serial traffic relayed by the bridge to
// WebSocket observers, a read-only tap for dashboards and log capture.
//
// The tap sits on the relay's hot path, so Forward never blocks: each
// observer gets a bounded queue and one that falls behind is dropped, the
// same policy the bridge applies to congested TCP clients.
package monitor

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/calef/uartbridge/internal/logging"
)

const (
	// writeWait is the time allowed to write a chunk to an observer.
	writeWait = 10 * time.Second

	// observerQueue bounds the chunks buffered per observer before it is
	// considered too slow and dropped.
	observerQueue = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Observers are bench tooling on the same network; no origin policy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Monitor is the WebSocket tap server. Forward satisfies the bridge's Tap
// interface.
type Monitor struct {
	mu        sync.Mutex
	observers map[*observer]struct{}
	server    *http.Server
	listener  net.Listener
}

type observer struct {
	conn  *websocket.Conn
	queue chan []byte
}

// New creates a Monitor with no observers.
func New() *Monitor {
	return &Monitor{observers: make(map[*observer]struct{})}
}

// Start serves the observer endpoint on addr. The listener is bound
// synchronously so a bad address fails fast; serving happens in the
// background.
func (m *Monitor) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/monitor", m.handleObserver)

	srv := &http.Server{Handler: mux}
	m.mu.Lock()
	m.listener = ln
	m.server = srv
	m.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.Warn("Monitor server stopped", zap.Error(err))
		}
	}()

	logging.Info("Monitor listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound listener address, empty before Start.
func (m *Monitor) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// Close drops every observer and stops the server.
func (m *Monitor) Close() error {
	m.mu.Lock()
	for o := range m.observers {
		close(o.queue)
		delete(m.observers, o)
	}
	server := m.server
	m.server = nil
	m.listener = nil
	m.mu.Unlock()

	if server != nil {
		return server.Close()
	}
	return nil
}

// Forward queues one relayed chunk to every observer. Never blocks; an
// observer with a full queue is dropped on the spot.
func (m *Monitor) Forward(p []byte) {
	chunk := append([]byte(nil), p...)

	m.mu.Lock()
	defer m.mu.Unlock()
	for o := range m.observers {
		select {
		case o.queue <- chunk:
		default:
			logging.Info("Monitor observer too slow, dropping",
				zap.String("remote_addr", o.conn.RemoteAddr().String()),
			)
			close(o.queue)
			delete(m.observers, o)
		}
	}
}

// ObserverCount returns the number of attached observers.
func (m *Monitor) ObserverCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.observers)
}

func (m *Monitor) handleObserver(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Monitor upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	o := &observer{conn: conn, queue: make(chan []byte, observerQueue)}
	m.mu.Lock()
	m.observers[o] = struct{}{}
	m.mu.Unlock()
	logging.Info("Monitor observer attached",
		zap.String("remote_addr", conn.RemoteAddr().String()),
	)

	go o.writePump()
	m.readUntilClosed(o)
}

// readUntilClosed drains control frames until the observer hangs up, then
// detaches it. Observers never send data; anything they do send is ignored.
func (m *Monitor) readUntilClosed(o *observer) {
	for {
		if _, _, err := o.conn.ReadMessage(); err != nil {
			break
		}
	}

	m.mu.Lock()
	if _, ok := m.observers[o]; ok {
		close(o.queue)
		delete(m.observers, o)
	}
	m.mu.Unlock()
	logging.Info("Monitor observer detached",
		zap.String("remote_addr", o.conn.RemoteAddr().String()),
	)
}

func (o *observer) writePump() {
	defer func() { _ = o.conn.Close() }()
	for chunk := range o.queue {
		_ = o.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := o.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return
		}
	}
	// Queue closed: the tap dropped us or the monitor shut down.
	_ = o.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(writeWait))
}
