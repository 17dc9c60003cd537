package settings

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// On-media field widths. The string fields occupy their capacity plus one
// terminator byte; unused tail bytes are zero.
const (
	ssidFieldLen = MaxSSIDLen + 1
	pskFieldLen  = MaxPSKLen + 1

	// ConfigSize is the encoded size of a DeviceConfig without its checksum.
	ConfigSize = ssidFieldLen + pskFieldLen + 8 + 2 + 4 + 4

	// RecordSize is the exact size of a persisted record on media. A record
	// of any other length is treated as absent.
	RecordSize = ConfigSize + 1
)

// ErrBadRecord is returned when a persisted record has the wrong length or
// a checksum that does not match its configuration bytes.
var ErrBadRecord = fmt.Errorf("persisted record is missing, truncated, or corrupt")

// EncodeConfig serializes the configuration into its fixed ConfigSize-byte
// layout: ssid, psk, txPower (float64 LE), listenPort (uint16 LE), dutBaud
// and logBaud (uint32 LE each). String fields longer than their capacity
// are rejected rather than silently truncated.
func EncodeConfig(cfg DeviceConfig) ([]byte, error) {
	if len(cfg.Wifi.SSID) > MaxSSIDLen {
		return nil, fmt.Errorf("ssid exceeds %d bytes: %q", MaxSSIDLen, cfg.Wifi.SSID)
	}
	if len(cfg.Wifi.PSK) > MaxPSKLen {
		return nil, fmt.Errorf("psk exceeds %d bytes", MaxPSKLen)
	}

	buf := make([]byte, ConfigSize)
	copy(buf[0:ssidFieldLen], cfg.Wifi.SSID)
	copy(buf[ssidFieldLen:ssidFieldLen+pskFieldLen], cfg.Wifi.PSK)

	off := ssidFieldLen + pskFieldLen
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(cfg.Wifi.TxPower))
	off += 8
	binary.LittleEndian.PutUint16(buf[off:], cfg.Wifi.ListenPort)
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], cfg.Uart.DutBaud)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], cfg.Uart.LogBaud)

	return buf, nil
}

// DecodeConfig parses a ConfigSize-byte configuration blob.
func DecodeConfig(buf []byte) (DeviceConfig, error) {
	if len(buf) != ConfigSize {
		return DeviceConfig{}, ErrBadRecord
	}

	var cfg DeviceConfig
	cfg.Wifi.SSID = cString(buf[0:ssidFieldLen])
	cfg.Wifi.PSK = cString(buf[ssidFieldLen : ssidFieldLen+pskFieldLen])

	off := ssidFieldLen + pskFieldLen
	cfg.Wifi.TxPower = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	cfg.Wifi.ListenPort = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	cfg.Uart.DutBaud = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	cfg.Uart.LogBaud = binary.LittleEndian.Uint32(buf[off:])

	return cfg, nil
}

// EncodeRecord produces the full persisted record: the encoded configuration
// followed by its checksum byte.
func EncodeRecord(cfg DeviceConfig) ([]byte, error) {
	buf, err := EncodeConfig(cfg)
	if err != nil {
		return nil, err
	}
	return append(buf, Checksum(buf)), nil
}

// DecodeRecord validates and parses a persisted record. The record must be
// exactly RecordSize bytes and its trailing checksum must match a
// recomputation over the configuration bytes; otherwise ErrBadRecord is
// returned and the caller is expected to discard the record wholesale.
func DecodeRecord(rec []byte) (DeviceConfig, error) {
	if len(rec) != RecordSize {
		return DeviceConfig{}, ErrBadRecord
	}
	body, sum := rec[:ConfigSize], rec[ConfigSize]
	if Checksum(body) != sum {
		return DeviceConfig{}, ErrBadRecord
	}
	return DecodeConfig(body)
}

// RecordChecksum returns the checksum byte a record for cfg would carry.
// The provisioning console displays it to the operator after a commit.
func RecordChecksum(cfg DeviceConfig) (byte, error) {
	buf, err := EncodeConfig(cfg)
	if err != nil {
		return 0, err
	}
	return Checksum(buf), nil
}

// cString interprets a NUL-padded field, stopping at the first terminator.
func cString(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}
