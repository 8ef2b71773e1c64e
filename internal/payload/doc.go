// Package payload turns matched frames into named readings and encodes
// typed values for write commands.
//
// A Schema lists fields by byte offset and kind. Offsets are positions in
// the complete frame as received, counted from the 0x68 start byte. Two
// kinds exist on this controller: single unsigned bytes (modes, flags) and
// little-endian IEEE-754 float32 (temperatures).
//
//	reading, err := payload.Decode(frame, params.Thermostat)
//	if err != nil {
//	    return err
//	}
//	t, _ := reading.Float("TEMPERATURE")
package payload
