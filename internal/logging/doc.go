// Package logging provides structured logging for the bridge daemon.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the daemon. It provides both general logging
// functions and specialized functions for relay-specific events.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (hex dumps of relayed chunks)
//   - Info: Normal operations (connections, slot assignment, mode changes)
//   - Warn: Non-fatal issues (congested clients, write faults, save failures)
//   - Error: Fatal issues (startup failures, unusable storage)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Client connected",
//	    zap.String("remote_addr", "192.168.1.100:52114"),
//	    zap.Int("slot", 0),
//	)
//
// # Configuration
//
// Initialize logging at daemon startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given, the UARTBRIDGE_LOG_LEVEL environment variable is
// consulted; if that is also unset, logging is silent. Silence matters here:
// in deployments where the daemon shares a terminal with the provisioning
// console, stray log lines would corrupt the operator prompt flow.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
