package sched

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calef/uartbridge/internal/bridge"
	"github.com/calef/uartbridge/internal/settings"
)

// fakeConsole queues operator bytes and records everything written back.
// script bytes become available only once something has been written to the
// console, the way a real operator types after seeing a prompt; pending
// bytes are available immediately.
type fakeConsole struct {
	pending []byte
	script  []byte
	opened  bool
	out     strings.Builder
}

func (c *fakeConsole) Poll() (byte, bool) {
	if len(c.pending) > 0 {
		b := c.pending[0]
		c.pending = c.pending[1:]
		return b, true
	}
	if !c.opened || len(c.script) == 0 {
		return 0, false
	}
	b := c.script[0]
	c.script = c.script[1:]
	return b, true
}

func (c *fakeConsole) Write(p []byte) (int, error) {
	c.opened = true
	return c.out.Write(p)
}

// fakeSerial satisfies SerialLink and records routing calls.
type fakeSerial struct {
	available []byte
	written   []byte
	routes    []string
}

func (s *fakeSerial) Readable() int { return len(s.available) }
func (s *fakeSerial) Writable() int { return 1024 }

func (s *fakeSerial) Read(p []byte) (int, error) {
	n := copy(p, s.available)
	s.available = s.available[n:]
	return n, nil
}

func (s *fakeSerial) Write(p []byte) (int, error) {
	s.written = append(s.written, p...)
	return len(p), nil
}

func (s *fakeSerial) RouteBridge() error {
	s.routes = append(s.routes, "bridge")
	return nil
}

func (s *fakeSerial) RouteConsole() error {
	s.routes = append(s.routes, "console")
	return nil
}

// fakeClient is a minimal connected client.
type fakeClient struct {
	delivered []byte
	closed    bool
}

func (c *fakeClient) Connected() bool            { return !c.closed }
func (c *fakeClient) Readable() int              { return 0 }
func (c *fakeClient) Read(p []byte) (int, error) { return 0, nil }
func (c *fakeClient) Writable() int              { return 4096 }

func (c *fakeClient) Write(p []byte) (int, error) {
	c.delivered = append(c.delivered, p...)
	return len(p), nil
}

func (c *fakeClient) Close() error       { c.closed = true; return nil }
func (c *fakeClient) RemoteAddr() string { return "test:1" }

// fakeAcceptor offers queued clients and records Close.
type fakeAcceptor struct {
	pending []bridge.Client
	closed  bool
}

func (a *fakeAcceptor) Poll() (bridge.Client, bool) {
	if len(a.pending) == 0 {
		return nil, false
	}
	c := a.pending[0]
	a.pending = a.pending[1:]
	return c, true
}

func (a *fakeAcceptor) Addr() string { return "127.0.0.1:23" }
func (a *fakeAcceptor) Close() error { a.closed = true; return nil }

// fakeNet records the bring-up parameters.
type fakeNet struct {
	ssid, psk string
	txPower   float64
	upErr     error
}

func (n *fakeNet) Up(ssid, psk string) error {
	n.ssid, n.psk = ssid, psk
	return n.upErr
}
func (n *fakeNet) Connected() bool              { return n.upErr == nil }
func (n *fakeNet) LocalAddr() string            { return "192.0.2.10" }
func (n *fakeNet) SetTxPower(dbm float64) error { n.txPower = dbm; return nil }

// fakeStore mirrors the persistence surface the runtime uses.
type fakeStore struct {
	saved []settings.DeviceConfig
}

func (f *fakeStore) Probe() error { return nil }
func (f *fakeStore) Save(cfg settings.DeviceConfig) (byte, error) {
	f.saved = append(f.saved, cfg)
	return settings.RecordChecksum(cfg)
}

// fakeAnnouncer records start/stop ordering.
type fakeAnnouncer struct {
	events []string
	port   uint16
}

func (a *fakeAnnouncer) Start(port uint16) error {
	a.port = port
	a.events = append(a.events, "start")
	return nil
}
func (a *fakeAnnouncer) Stop() { a.events = append(a.events, "stop") }

// toggleLED counts transitions.
type toggleLED struct {
	ons, offs int
}

func (l *toggleLED) On() error  { l.ons++; return nil }
func (l *toggleLED) Off() error { l.offs++; return nil }

// fakeClock drives the runtime's notion of time; sleeps advance it.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time        { return c.t }
func (c *fakeClock) sleep(d time.Duration) { c.t = c.t.Add(d) }

func newRuntime(con *fakeConsole) (*Runtime, *fakeSerial, *fakeAcceptor, *fakeNet) {
	serial := &fakeSerial{}
	accept := &fakeAcceptor{}
	r := &Runtime{
		Console: con,
		Serial:  serial,
		LED:     &toggleLED{},
		Net:     &fakeNet{},
		Store:   &fakeStore{},
		Config:  settings.Default(),
		Listen:  func(uint16) (Acceptor, error) { return accept, nil },
		Restart: func() {},
	}
	clk := &fakeClock{t: time.Unix(0, 0)}
	r.now = clk.now
	r.sleep = clk.sleep
	r.applyDefaults()
	return r, serial, accept, r.Net.(*fakeNet)
}

func TestSelectModeTrigger(t *testing.T) {
	con := &fakeConsole{pending: []byte{'x', '+', 'y'}}
	r, _, _, _ := newRuntime(con)

	require.Equal(t, ModeConfigure, r.SelectMode(),
		"trigger inside the boot window must select configuration mode")
}

func TestSelectModeTimesOutToBridge(t *testing.T) {
	con := &fakeConsole{pending: []byte("noise without trigger")}
	r, _, _, _ := newRuntime(con)

	require.Equal(t, ModeBridge, r.SelectMode(),
		"a silent or noisy boot window must fall through to bridge mode")
}

// TestBridgeEnterWiring verifies mode entry applies the persisted record:
// radio parameters, serial routing, listener port, announcement.
func TestBridgeEnterWiring(t *testing.T) {
	r, serial, _, net := newRuntime(&fakeConsole{})
	ann := &fakeAnnouncer{}
	r.Announce = ann
	r.Config.Wifi = settings.WifiSettings{
		SSID: "lab1", PSK: "secret", TxPower: 15, ListenPort: 2323,
	}

	st := &bridgeState{}
	require.NoError(t, st.enter(r))

	require.Equal(t, "lab1", net.ssid)
	require.Equal(t, "secret", net.psk)
	require.Equal(t, 15.0, net.txPower)
	require.Equal(t, []string{"bridge"}, serial.routes)
	require.Equal(t, []string{"start"}, ann.events)
	require.Equal(t, uint16(2323), ann.port)
}

// TestBridgeRelaysTraffic seats a client and checks a serial chunk reaches
// it on the next tick.
func TestBridgeRelaysTraffic(t *testing.T) {
	r, serial, accept, _ := newRuntime(&fakeConsole{})
	st := &bridgeState{}
	require.NoError(t, st.enter(r))

	c := &fakeClient{}
	accept.pending = append(accept.pending, c)
	next, err := st.tick(r, r.now())
	require.NoError(t, err)
	require.Nil(t, next)

	serial.available = []byte("boot banner\r\n")
	_, err = st.tick(r, r.now())
	require.NoError(t, err)
	require.Equal(t, "boot banner\r\n", string(c.delivered))
}

// TestTriggerAbortsTickAndTearsDown is the mode-switch contract: the
// trigger byte preempts forwarding, and teardown closes the clients and the
// listener and reroutes the serial link exactly once.
func TestTriggerAbortsTickAndTearsDown(t *testing.T) {
	con := &fakeConsole{}
	r, serial, accept, _ := newRuntime(con)
	ann := &fakeAnnouncer{}
	r.Announce = ann

	st := &bridgeState{}
	require.NoError(t, st.enter(r))

	c := &fakeClient{}
	accept.pending = append(accept.pending, c)
	_, err := st.tick(r, r.now())
	require.NoError(t, err)

	// Pending serial traffic and the trigger arrive in the same tick.
	serial.available = []byte("must not be forwarded")
	con.pending = []byte{'+'}

	next, err := r.step(st, r.now())
	require.NoError(t, err)
	require.IsType(t, &configureState{}, next)

	require.Empty(t, c.delivered, "chunk forwarded despite mode switch")
	require.True(t, c.closed, "client survived teardown")
	require.True(t, accept.closed, "listener survived teardown")
	require.Equal(t, []string{"bridge", "console"}, serial.routes)
	require.Equal(t, []string{"start", "stop"}, ann.events)
}

// TestNonTriggerConsoleNoiseStaysInBridge verifies stray console bytes do
// not flip the mode.
func TestNonTriggerConsoleNoiseStaysInBridge(t *testing.T) {
	con := &fakeConsole{}
	r, _, _, _ := newRuntime(con)
	st := &bridgeState{}
	require.NoError(t, st.enter(r))

	con.pending = []byte{'x'}
	next, err := st.tick(r, r.now())
	require.NoError(t, err)
	require.Nil(t, next)
}

// TestListenFailureReturnsSerialToConsole verifies a failed mode entry does
// not strand the link in its bridge routing.
func TestListenFailureReturnsSerialToConsole(t *testing.T) {
	r, serial, _, _ := newRuntime(&fakeConsole{})
	r.Listen = func(uint16) (Acceptor, error) {
		return nil, errors.New("port in use")
	}

	st := &bridgeState{}
	require.Error(t, st.enter(r))
	require.Equal(t, []string{"bridge", "console"}, serial.routes)
}

// TestNetworkFailureFailsEntry verifies bridge mode refuses to come up
// without a network.
func TestNetworkFailureFailsEntry(t *testing.T) {
	r, serial, _, net := newRuntime(&fakeConsole{})
	net.upErr = errors.New("association failed")

	st := &bridgeState{}
	require.Error(t, st.enter(r))
	require.Empty(t, serial.routes, "serial rerouted before the network was up")
}

// TestHeartbeatBlinksInBridgeMode walks simulated time through several
// heartbeat periods and expects the indicator to have toggled.
func TestHeartbeatBlinksInBridgeMode(t *testing.T) {
	r, _, _, _ := newRuntime(&fakeConsole{})
	led := r.LED.(*toggleLED)
	st := &bridgeState{}
	require.NoError(t, st.enter(r))

	now := r.now()
	for i := 0; i < 200; i++ {
		now = now.Add(50 * time.Millisecond)
		_, err := st.tick(r, now)
		require.NoError(t, err)
	}
	require.Greater(t, led.ons, 2, "heartbeat never raised the indicator")
	require.Greater(t, led.offs, 2, "heartbeat never lowered the indicator")
}

// TestRunConfigureLifecycle drives the full provisioning path through Run:
// trigger at boot, scripted dialogue, persisted record, restart.
func TestRunConfigureLifecycle(t *testing.T) {
	con := &fakeConsole{
		pending: []byte{'+'},
		script:  []byte("lab2\rkey22\r14\r2000\r57600\r115200\ry"),
	}
	restarted := false
	r, _, _, _ := newRuntime(con)
	r.sleep = func(time.Duration) {} // the session's restart delay
	r.Restart = func() { restarted = true }
	r.Tick = time.Millisecond

	require.NoError(t, r.Run(context.Background()))
	require.True(t, restarted, "session did not restart the device")

	st := r.Store.(*fakeStore)
	require.Len(t, st.saved, 1)
	require.Equal(t, "lab2", st.saved[0].Wifi.SSID)
	require.Equal(t, uint16(2000), st.saved[0].Wifi.ListenPort)
	require.Equal(t, uint32(57600), st.saved[0].Uart.DutBaud)
	require.Contains(t, con.out.String(), "bridge configuration")
}

// TestRunStopsOnContextCancel verifies bridge mode tears down cleanly when
// the process is asked to stop.
func TestRunStopsOnContextCancel(t *testing.T) {
	r, serial, accept, _ := newRuntime(&fakeConsole{})
	r.Tick = time.Millisecond
	r.BootWindow = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.True(t, accept.closed, "listener survived shutdown")
	require.Equal(t, []string{"bridge", "console"}, serial.routes)
}
