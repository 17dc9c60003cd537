// Uartbridged is a transparent serial-to-TCP bridge daemon.
//
// It relays bytes between a serial device and up to two TCP clients, with
// an in-band operator console for provisioning the persisted configuration
// record. Send the trigger character on the console during the boot window
// (or at any time while bridging) to enter configuration mode.
//
// Usage:
//
//	uartbridged run [flags]
//
// See 'uartbridged run --help' for available options.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/calef/uartbridge/internal/announce"
	"github.com/calef/uartbridge/internal/blink"
	"github.com/calef/uartbridge/internal/bridge"
	"github.com/calef/uartbridge/internal/hw"
	"github.com/calef/uartbridge/internal/logging"
	"github.com/calef/uartbridge/internal/manifest"
	"github.com/calef/uartbridge/internal/monitor"
	"github.com/calef/uartbridge/internal/sched"
	"github.com/calef/uartbridge/internal/store"
	"github.com/calef/uartbridge/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "uartbridged",
	Short: "Serial-to-TCP bridge",
	Long: `A transparent byte bridge between a serial device and TCP clients.

The bridge boots into one of two modes: bridge mode relays traffic between
the serial link and connected clients, configuration mode runs an operator
console to edit the persisted settings record. The trigger character on the
console selects configuration mode at boot or requests it while bridging.`,
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// Run command and flags
var (
	manifestPath string
	logLevel     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bridge",
	Long: `Start the bridge daemon.

Host wiring (which serial device, where the console lives, where the
configuration record is stored) comes from the manifest file; the bridged
settings themselves (network identity, listen port, baud rates) come from
the persisted record and are edited through the provisioning console.`,
	Example: `  # Start with the default manifest location
  uartbridged run

  # Start against an explicit manifest with verbose logging
  uartbridged run --manifest /etc/uartbridge.yaml --log-level debug

  # Provision interactively: press the trigger key within the boot window
  uartbridged run --manifest ./bench.yaml`,
	RunE: runBridge,
}

func init() {
	runCmd.Flags().StringVar(&manifestPath, "manifest", "/etc/uartbridge.yaml", "Path to the host manifest file")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); empty follows "+logging.LogLevelEnvVar)
}

func runBridge(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	st := store.New(store.NewDirStore(m.Storage))
	cfg, err := st.Load()
	if err != nil {
		return fmt.Errorf("configuration storage unusable: %w", err)
	}

	port, err := hw.OpenPort(m.Serial, m.ConsoleBaud, cfg.Uart.DutBaud)
	if err != nil {
		return fmt.Errorf("opening serial device: %w", err)
	}
	defer port.Close()

	console, err := openConsole(m)
	if err != nil {
		return err
	}
	defer console.Close()

	var led blink.LED = hw.NopLED{}
	if m.LED != "" {
		led = hw.NewSysfsLED(m.LED)
	}

	var tap bridge.Tap
	if m.Monitor != "" {
		mon := monitor.New()
		if err := mon.Start(m.Monitor); err != nil {
			return fmt.Errorf("starting monitor: %w", err)
		}
		defer mon.Close()
		tap = mon
	}

	var announcer sched.Announcer
	if m.Announce {
		announcer = &announce.Service{}
	}

	runtime := &sched.Runtime{
		Console:    console,
		Serial:     port,
		LED:        led,
		Net:        hw.NewHostNetlink(),
		Store:      st,
		Config:     cfg,
		Listen:     listenTCP,
		Tap:        tap,
		Announce:   announcer,
		Trigger:    m.TriggerByte(),
		Tick:       time.Duration(m.Tick),
		BootWindow: time.Duration(m.BootWindow),
		Restart: func() {
			// The supervisor (systemd, a bench script) brings the process
			// back up, which is when new baud and port settings take hold.
			logging.Info("Restarting for new configuration")
			logging.Sync()
			console.Close()
			port.Close()
			os.Exit(0)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info("Bridge starting",
		zap.String("serial", m.Serial),
		zap.String("console", m.Console),
		zap.String("version", version.Full()),
	)

	if err := runtime.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// openConsole opens the operator console named by the manifest: the
// controlling terminal or a dedicated serial device.
func openConsole(m manifest.Manifest) (hw.Console, error) {
	if m.Console == "stdio" {
		c, err := hw.OpenStdioConsole()
		if err != nil {
			return nil, fmt.Errorf("opening stdio console: %w", err)
		}
		return c, nil
	}
	c, err := hw.OpenSerialConsole(m.Console, m.ConsoleBaud)
	if err != nil {
		return nil, fmt.Errorf("opening console device: %w", err)
	}
	return c, nil
}

// listenTCP adapts the hardware acceptor to the scheduler's interface; a
// typed nil from Poll must not leak into the non-nil interface value.
func listenTCP(port uint16) (sched.Acceptor, error) {
	a, err := hw.Listen(port)
	if err != nil {
		return nil, err
	}
	return tcpAcceptor{a}, nil
}

type tcpAcceptor struct {
	*hw.Acceptor
}

func (t tcpAcceptor) Poll() (bridge.Client, bool) {
	c, ok := t.Acceptor.Poll()
	if !ok {
		return nil, false
	}
	return c, true
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("uartbridged %s (commit: %s)\n", version.Version, version.Commit)
	},
}
