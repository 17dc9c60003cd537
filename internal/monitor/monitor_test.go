package monitor

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialObserver(t *testing.T, m *Monitor) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+m.Addr()+"/monitor", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForObservers(t *testing.T, m *Monitor, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.ObserverCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("observer count = %d, want %d", m.ObserverCount(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

// TestObserverReceivesChunks attaches two observers and checks both see the
// forwarded traffic in order.
func TestObserverReceivesChunks(t *testing.T) {
	m := New()
	require.NoError(t, m.Start("127.0.0.1:0"))
	defer m.Close()

	a := dialObserver(t, m)
	b := dialObserver(t, m)
	waitForObservers(t, m, 2)

	m.Forward([]byte("chunk-1"))
	m.Forward([]byte("chunk-2"))

	for _, conn := range []*websocket.Conn{a, b} {
		for _, want := range []string{"chunk-1", "chunk-2"} {
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
			kind, payload, err := conn.ReadMessage()
			require.NoError(t, err)
			require.Equal(t, websocket.BinaryMessage, kind)
			require.Equal(t, want, string(payload))
		}
	}
}

// TestForwardWithoutObserversIsCheap verifies the tap is safe on the hot
// path with nobody attached.
func TestForwardWithoutObserversIsCheap(t *testing.T) {
	m := New()
	require.NoError(t, m.Start("127.0.0.1:0"))
	defer m.Close()

	for i := 0; i < 1000; i++ {
		m.Forward([]byte("telemetry"))
	}
	require.Zero(t, m.ObserverCount())
}

// TestObserverDetachOnHangup verifies a disconnecting observer is removed.
func TestObserverDetachOnHangup(t *testing.T) {
	m := New()
	require.NoError(t, m.Start("127.0.0.1:0"))
	defer m.Close()

	conn := dialObserver(t, m)
	waitForObservers(t, m, 1)

	require.NoError(t, conn.Close())
	waitForObservers(t, m, 0)

	// Forwarding after the detach must not panic or block.
	m.Forward([]byte("after"))
}

// TestCloseDropsObservers verifies shutdown detaches everyone.
func TestCloseDropsObservers(t *testing.T) {
	m := New()
	require.NoError(t, m.Start("127.0.0.1:0"))

	dialObserver(t, m)
	waitForObservers(t, m, 1)

	require.NoError(t, m.Close())
	require.Zero(t, m.ObserverCount())
}

// TestStartOnBadAddressFails verifies a bound port is reported, not served
// around.
func TestStartOnBadAddressFails(t *testing.T) {
	m := New()
	require.NoError(t, m.Start("127.0.0.1:0"))
	defer m.Close()

	other := New()
	require.Error(t, other.Start(m.Addr()))
}
