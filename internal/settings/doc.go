// Package settings defines the device configuration model and its on-media
// representation.
//
// A DeviceConfig is the single source of truth for how the bridge behaves:
// which network it joins, which port it listens on, and the line speeds of
// the two serial roles. Exactly one logical instance exists per process. It
// is loaded once at boot by the store package and mutated only by the
// provisioning console.
//
// # Persisted Record
//
// On storage media the configuration lives in a single fixed-size binary
// record: the encoded DeviceConfig fields in a fixed little-endian layout,
// immediately followed by one CRC-8 byte computed over the configuration
// bytes. The record is always rewritten whole and is rejected wholesale on
// any size or checksum mismatch. See EncodeRecord and DecodeRecord.
//
// The CRC-8 construction (polynomial 0x8C reflected, LSB-first, initial
// value 0) must stay bit-exact: records written by earlier firmware
// revisions of the bridge share the same layout.
package settings
