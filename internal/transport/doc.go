// Package transport provides the byte-stream links the engine talks over.
//
// Two links exist: a TCP connection to a serial-to-TCP bridge (port 8899
// by default) and a local RS-485 adapter opened with go.bug.st/serial.
// Both follow the same contract:
//
//   - Open and Close are idempotent
//   - Send writes the full buffer or fails with a transport error
//   - Receive reads once, up to maxBytes, and fails with a timeout error
//     when nothing arrives within its wait
//   - any operation on a closed session fails with a connection error
//
// No retries happen here. Retrying belongs to the engine.
package transport
