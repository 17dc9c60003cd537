package hw

import (
	"net"

	"go.uber.org/zap"

	"github.com/calef/uartbridge/internal/logging"
)

// Netlink is the wireless link capability. Association, authentication and
// address acquisition happen inside the radio stack; the bridge only asks
// whether the link is up, what its local address is, and requests a send
// power.
type Netlink interface {
	Up(ssid, psk string) error
	Connected() bool
	LocalAddr() string
	SetTxPower(dbm float64) error
}

// HostNetlink implements Netlink on hosts whose network is managed by the
// operating system: joining is delegated (and logged), connectivity is read
// from the interface table.
type HostNetlink struct {
	txPower float64
}

// NewHostNetlink creates the host-managed link capability.
func NewHostNetlink() *HostNetlink {
	return &HostNetlink{}
}

// Up records the requested network identity. The OS supplicant owns the
// actual association.
func (n *HostNetlink) Up(ssid, psk string) error {
	logging.Info("Network join delegated to host",
		zap.String("ssid", ssid),
		zap.Int("psk_len", len(psk)),
	)
	return nil
}

// Connected reports whether any non-loopback interface has an address.
func (n *HostNetlink) Connected() bool {
	return n.LocalAddr() != ""
}

// LocalAddr returns the first non-loopback IPv4 address, or "".
func (n *HostNetlink) LocalAddr() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}

// SetTxPower records the requested send power; host radios do not expose a
// per-process control for it.
func (n *HostNetlink) SetTxPower(dbm float64) error {
	n.txPower = dbm
	logging.Info("Transmit power requested",
		zap.Float64("dbm", dbm),
	)
	return nil
}
