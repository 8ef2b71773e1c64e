// Package protocol implements the ecoMAX360 controller binary frame format.
//
// This package handles construction, splitting and validation of the frames
// exchanged with ecoMAX360 heating controllers over their RS-485 bus (usually
// reached through a serial-to-TCP bridge).
//
// # Frame Format
//
// Every frame has this structure:
//   - Start byte: 0x68
//   - Length: 2 bytes (little-endian), counts source through end of payload
//   - Source address: 2 bytes
//   - Destination address: 2 bytes
//   - Function code: 1 byte
//   - Payload: variable length
//   - CRC: 2 bytes (big-endian CRC-16/XModem over length through payload)
//   - End byte: 0x16
//
// # Function Codes
//
//   - 0x29: write command (payload = WritePrefix + register + value)
//   - 0x40: read request / periodic broadcast
//
// Responses carry the request's function code with the high bit set in the
// function byte (0xa9 answers a write, 0xc0 answers a read). That byte is the
// acknowledgement flag; see AckFlag.
//
// # Stream Splitting
//
// The controller and other bus members talk continuously, so a single read
// from the socket can hold several frames, partial frames and noise.
// SplitFrames cuts a buffer into candidates without validating them;
// Verify checks the length field and CRC of each candidate.
//
// # Usage Example
//
//	frame, err := protocol.EncodeHex("6400", "2000", "40", "647800")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, candidate := range protocol.SplitFrames(received) {
//	    if !protocol.Verify(candidate) {
//	        continue
//	    }
//	    if flag, _ := protocol.AckFlag(candidate); flag == protocol.AckRead {
//	        // matched
//	    }
//	}
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use.
package protocol
