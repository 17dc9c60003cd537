// Package store persists the device configuration record.
//
// The storage medium is an external collaborator modeled by the Storage
// interface: a raw block-store filesystem exposing mount, unmount, format,
// and whole-file read/write. DirStore adapts a host directory to that
// interface; tests substitute an in-memory implementation.
//
// # Lifecycle
//
// Load runs once at boot. A medium that fails to mount is formatted once and
// mounted again; a second failure is fatal to the caller, since neither
// configuration nor provisioning can be trusted without storage. A record
// that is absent, wrongly sized, or fails its checksum is discarded
// wholesale: defaults are applied and immediately saved back, so corrupted
// or first-boot media self-heals to a known-good state. No partial merge of
// old bytes is ever attempted.
//
// Save failures after boot are logged and tolerated: the in-memory
// configuration still serves the current session.
package store
