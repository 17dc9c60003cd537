// Package hw binds the bridge core to real hardware-facing endpoints.
//
// The core packages (bridge, console, sched) are written against small
// interfaces; this package supplies the production implementations:
//
//   - Port: the bridged hardware serial link, via go.bug.st/serial, wrapped
//     into a budgeted non-blocking endpoint. Its two routings (console rate
//     vs device-under-test rate) model the firmware's pin swap.
//   - Acceptor/Client: the TCP listening socket and per-client connections,
//     each wrapped with bounded rings so a tick can query exact writable
//     and readable byte budgets without ever blocking.
//   - Console: the operator console, on the controlling terminal (raw mode
//     via golang.org/x/term) or on a dedicated serial device.
//   - LED: the status indicator, via a sysfs brightness file.
//   - Netlink: the wireless link, treated as a black box that reports
//     connectivity and the local address.
//
// Every endpoint is pump-driven: goroutines move bytes between the OS object
// and a Ring, and the tick-driven core only ever touches the rings. That is
// what turns blocking host I/O into the fixed-budget, never-blocking model
// the bridge engine's fairness policy is defined over.
package hw
