// Package logging provides structured logging for the ecoMAX tools.
//
// This package wraps a zap logger with package-level functions so that the
// codec, transport and engine can log without carrying a logger around.
//
// # Log Levels
//
//   - Debug: frame hex dumps, attempts, raw receive buffers
//   - Info: session open/close, poller cycles, HTTP requests
//   - Warn: retries exhausted, reading kept from cache
//   - Error: startup failures
//
// # Silent By Default
//
// CLI commands call InitializeFromEnv. Unless ECOMAX_LOG_LEVEL is set, the
// logger is a no-op and nothing but command output reaches the terminal.
//
//	ECOMAX_LOG_LEVEL=debug ecomax-cli read GET_THERMOSTAT
//
// # Specialized Logging
//
//	logging.LogConnection("192.168.1.38:8899", "opened")
//	logging.LogFrame("sent", frame)
//	logging.LogAttempt("GET_THERMOSTAT", 2, 5)
//
// LogFrame only formats its fields when debug logging is enabled.
//
// All functions are safe for concurrent use.
package logging
