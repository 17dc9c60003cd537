package settings

// Capacity limits for the string fields, excluding the terminator byte that
// pads them out on media. Longer values cannot be represented in the record.
const (
	MaxSSIDLen = 31
	MaxPSKLen  = 63
)

// Factory defaults, applied on first boot or whenever the persisted record
// is rejected.
const (
	DefaultSSID       = "default"
	DefaultPSK        = "undefined"
	DefaultTxPower    = 12.0
	DefaultListenPort = 23
	DefaultBaudRate   = 115200
)

// WifiSettings is the network identity of the bridge.
type WifiSettings struct {
	SSID       string  // network name, at most MaxSSIDLen bytes
	PSK        string  // pre-shared key, at most MaxPSKLen bytes
	TxPower    float64 // radio transmit power, device-dependent range
	ListenPort uint16  // TCP port the bridge accepts clients on
}

// UartSettings holds the line speeds of the two serial roles: the log/console
// link and the device-under-test link that gets bridged.
type UartSettings struct {
	LogBaud uint32
	DutBaud uint32
}

// DeviceConfig is the composite configuration record. Loaded once at boot,
// held in memory for the process lifetime, written back to media only on
// explicit operator confirmation.
type DeviceConfig struct {
	Wifi WifiSettings
	Uart UartSettings
}

// Default returns the factory configuration.
func Default() DeviceConfig {
	return DeviceConfig{
		Wifi: WifiSettings{
			SSID:       DefaultSSID,
			PSK:        DefaultPSK,
			TxPower:    DefaultTxPower,
			ListenPort: DefaultListenPort,
		},
		Uart: UartSettings{
			LogBaud: DefaultBaudRate,
			DutBaud: DefaultBaudRate,
		},
	}
}
