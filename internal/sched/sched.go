package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/calef/uartbridge/internal/blink"
	"github.com/calef/uartbridge/internal/bridge"
	"github.com/calef/uartbridge/internal/console"
	"github.com/calef/uartbridge/internal/logging"
	"github.com/calef/uartbridge/internal/settings"
)

const (
	// DefaultTrigger is the in-band byte that requests configuration mode,
	// both inside the boot window and while bridging.
	DefaultTrigger = '+'

	// DefaultTick is the relay cadence of bridge mode.
	DefaultTick = 5 * time.Millisecond

	// DefaultBootWindow is how long the boot-time mode selector watches the
	// console before committing to bridge mode.
	DefaultBootWindow = time.Second

	// bootPollPause paces the mode-selector poll loop.
	bootPollPause = 2 * time.Millisecond
)

// Console is the operator console endpoint, shared by the mode selector,
// the bridge state's trigger watch, and the provisioning session.
type Console interface {
	Poll() (byte, bool)
	Write(p []byte) (int, error)
}

// SerialLink is the bridged UART together with its two routings. RouteBridge
// reopens it at the DUT baud for relaying; RouteConsole returns it to the
// console baud on teardown. Baud changes from a provisioning session take
// effect at the next boot, when the link is reopened with the new record.
type SerialLink interface {
	bridge.SerialPort
	RouteBridge() error
	RouteConsole() error
}

// Acceptor is a closable source of pending client connections.
type Acceptor interface {
	bridge.Acceptor
	Addr() string
	Close() error
}

// Netlink is the network capability bridge mode brings up on entry.
type Netlink interface {
	Up(ssid, psk string) error
	Connected() bool
	LocalAddr() string
	SetTxPower(dbm float64) error
}

// ConfigStore is the slice of the persistence layer the runtime needs.
type ConfigStore interface {
	Probe() error
	Save(cfg settings.DeviceConfig) (byte, error)
}

// Announcer publishes the bridge endpoint while bridge mode is active.
type Announcer interface {
	Start(port uint16) error
	Stop()
}

// Runtime is the context object owning everything the tick loop touches.
// Populate the capability fields, then call Run; zero-valued tunables take
// their defaults.
type Runtime struct {
	Console Console
	Serial  SerialLink
	LED     blink.LED
	Net     Netlink
	Store   ConfigStore
	Config  settings.DeviceConfig

	// Listen opens the TCP acceptor for bridge mode. Injected so the bridge
	// state owns the acceptor's lifetime without knowing the transport.
	Listen func(port uint16) (Acceptor, error)

	// Tap, if non-nil, observes every serial-to-client chunk.
	Tap bridge.Tap

	// Announce, if non-nil, is started on bridge entry and stopped on exit.
	Announce Announcer

	// Restart ends the process after a configuration session. Under a
	// supervisor this is the moral equivalent of a device reboot.
	Restart func()

	Trigger    byte
	Tick       time.Duration
	BootWindow time.Duration

	blinker *blink.Blinker
	now     func() time.Time
	sleep   func(time.Duration)
}

// errRestarted marks a configuration session that ran to completion and
// requested the restart; Run treats it as a clean exit.
var errRestarted = errors.New("restart requested")

// Mode identifies one of the two runtime states.
type Mode int

const (
	ModeBridge Mode = iota
	ModeConfigure
)

func (m Mode) String() string {
	if m == ModeConfigure {
		return "configure"
	}
	return "bridge"
}

func (r *Runtime) applyDefaults() {
	if r.Trigger == 0 {
		r.Trigger = DefaultTrigger
	}
	if r.Tick == 0 {
		r.Tick = DefaultTick
	}
	if r.BootWindow == 0 {
		r.BootWindow = DefaultBootWindow
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.sleep == nil {
		r.sleep = time.Sleep
	}
	if r.blinker == nil {
		r.blinker = blink.New(r.LED)
	}
}

// SelectMode watches the console for the trigger byte during the boot
// window. Any other byte is discarded; silence means bridge mode.
func (r *Runtime) SelectMode() Mode {
	r.applyDefaults()
	deadline := r.now().Add(r.BootWindow)
	for r.now().Before(deadline) {
		if b, ok := r.Console.Poll(); ok {
			if b == r.Trigger {
				return ModeConfigure
			}
			continue
		}
		r.sleep(bootPollPause)
	}
	return ModeBridge
}

// Run selects the boot mode and drives the state machine until the context
// is canceled, a configuration session restarts the device, or a state
// fails to come up.
func (r *Runtime) Run(ctx context.Context) error {
	r.applyDefaults()

	var st state
	switch r.SelectMode() {
	case ModeConfigure:
		st = &configureState{}
	default:
		st = &bridgeState{}
	}
	logging.LogModeTransition("boot", st.name())

	if err := st.enter(r); err != nil {
		return fmt.Errorf("entering %s mode: %w", st.name(), err)
	}

	ticker := time.NewTicker(r.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			st.exit(r)
			return ctx.Err()
		case now := <-ticker.C:
			next, err := r.step(st, now)
			if err != nil {
				st.exit(r)
				if errors.Is(err, errRestarted) {
					return nil
				}
				return err
			}
			if next != nil {
				st = next
			}
		}
	}
}

// step runs one tick of the active state and performs the transition it
// requests: exit the old state, enter the new one. Split from Run so tests
// can drive ticks without a real ticker.
func (r *Runtime) step(st state, now time.Time) (state, error) {
	next, err := st.tick(r, now)
	if err != nil || next == nil {
		return nil, err
	}
	st.exit(r)
	logging.LogModeTransition(st.name(), next.name())
	if err := next.enter(r); err != nil {
		return nil, fmt.Errorf("entering %s mode: %w", next.name(), err)
	}
	return next, nil
}

// state is one runtime mode. tick returns the successor state to transition
// to, or nil to stay put.
type state interface {
	name() string
	enter(r *Runtime) error
	tick(r *Runtime, now time.Time) (state, error)
	exit(r *Runtime)
}

// bridgeState is the steady relay state. It owns the engine and the
// acceptor; the serial link and console are borrowed from the runtime.
type bridgeState struct {
	engine   *bridge.Engine
	acceptor Acceptor
}

func (s *bridgeState) name() string { return ModeBridge.String() }

func (s *bridgeState) enter(r *Runtime) error {
	cfg := r.Config

	if err := r.Net.SetTxPower(cfg.Wifi.TxPower); err != nil {
		logging.Warn("Transmit power not applied", zap.Error(err))
	}
	if err := r.Net.Up(cfg.Wifi.SSID, cfg.Wifi.PSK); err != nil {
		return fmt.Errorf("bringing up network %q: %w", cfg.Wifi.SSID, err)
	}

	if err := r.Serial.RouteBridge(); err != nil {
		return fmt.Errorf("routing serial link to DUT: %w", err)
	}

	a, err := r.Listen(cfg.Wifi.ListenPort)
	if err != nil {
		_ = r.Serial.RouteConsole()
		return fmt.Errorf("listening on port %d: %w", cfg.Wifi.ListenPort, err)
	}
	s.acceptor = a
	s.engine = bridge.New(r.Serial, a, r.Tap)

	if r.Announce != nil && r.Net.Connected() {
		if err := r.Announce.Start(cfg.Wifi.ListenPort); err != nil {
			logging.Warn("Service announcement failed", zap.Error(err))
		}
	}

	r.blinker.Reset()
	logging.Info("Bridge up",
		zap.String("listen", a.Addr()),
		zap.String("addr", r.Net.LocalAddr()),
		zap.Uint32("dut_baud", cfg.Uart.DutBaud),
	)
	return nil
}

// tick: service the heartbeat, watch for the trigger, then relay. The
// trigger check comes before the engine so a mode switch aborts the tick's
// forwarding entirely; any serial bytes still pending are carried over by
// the link's buffering, not by this state.
func (s *bridgeState) tick(r *Runtime, now time.Time) (state, error) {
	r.blinker.Tick(now, blink.Heartbeat)

	if b, ok := r.Console.Poll(); ok && b == r.Trigger {
		return &configureState{}, nil
	}

	s.engine.Tick()
	return nil, nil
}

func (s *bridgeState) exit(r *Runtime) {
	if r.Announce != nil {
		r.Announce.Stop()
	}
	if s.engine != nil {
		s.engine.Close()
	}
	if s.acceptor != nil {
		_ = s.acceptor.Close()
	}
	if err := r.Serial.RouteConsole(); err != nil {
		logging.Warn("Serial link not returned to console", zap.Error(err))
	}
	r.blinker.Reset()
}

// configureState runs the provisioning session. The session blocks until
// the operator is done, so this state sees exactly one tick.
type configureState struct{}

func (s *configureState) name() string { return ModeConfigure.String() }

func (s *configureState) enter(r *Runtime) error {
	r.blinker.Reset()
	return nil
}

func (s *configureState) tick(r *Runtime, _ time.Time) (state, error) {
	session := &console.Session{
		Port:   r.Console,
		Store:  r.Store,
		Config: &r.Config,
		Idle: func() {
			r.blinker.Tick(r.now(), blink.InputPending)
		},
		Restart: r.Restart,
		Sleep:   r.sleep,
	}
	if err := session.Run(); err != nil {
		return nil, err
	}
	return nil, errRestarted
}

func (s *configureState) exit(r *Runtime) {
	r.blinker.Reset()
}
