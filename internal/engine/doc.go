// Package engine implements the request/acknowledge/retry cycle spoken
// with an ecoMAX360 controller.
//
// An exchange moves through these states:
//
//	Idle -> Sending -> AwaitingMatch -> Matched
//	                        |
//	                        +-> Retrying -> Sending ...
//	                        +-> Exhausted
//
// While awaiting a match the engine keeps receiving, splits every read
// into candidates and takes the first one, in buffer order, that passes
// the CRC check, contains the marker and carries the expected
// acknowledgement flag. Anything else on the bus is ignored.
//
// A receive timeout only ends the current attempt. Link failures and
// decoding failures end the whole operation. Closing the transport from
// another goroutine aborts a blocked operation; context cancellation is
// checked between receives.
package engine
