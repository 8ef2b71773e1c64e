// Package capture records controller traffic to JSON Lines files.
//
// A Recorder wraps any transport.Transport and appends one Record per send
// or receive to dir/capture-<timestamp>.jsonl. Captures are meant for
// offline analysis of undocumented parameters (see tools/analyze-capture.go).
package capture
