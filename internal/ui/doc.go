// Package ui provides terminal UI components for the ecomax-cli tool.
//
// This package uses Bubble Tea and Lipgloss to render terminal output:
//
//   - Header: banner naming the controller and the values about to be written
//   - Result: outcome box; failures list hints from deviceerr
//   - RenderReading / RenderSnapshot: decoded values as a table
//   - WatchModel: a live view re-reading parameters on an interval
//
// One-shot commands go through a Printer; `ecomax-cli watch` runs
// WatchModel via RunWatch.
//
// # Logging Integration
//
// This package expects logging to be controlled via the ECOMAX_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, allowing
// the curated UI output to be displayed cleanly.
package ui
