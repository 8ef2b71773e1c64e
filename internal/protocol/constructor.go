package protocol

import (
	"fmt"

	"github.com/muurk/ecomax360/internal/deviceerr"
)

// Frame constructors for the requests the controller understands.

// WritePrefix is sent in front of every write command's register and value.
// Its meaning is undocumented; the controller ignores writes without it.
var WritePrefix = []byte{
	0x55, 0x53, 0x45, 0x52, 0x2d, 0x30, 0x30, 0x30, 0x00, // "USER-000\0"
	0x34, 0x30, 0x39, 0x35, 0x00, // "4095\0"
}

// RegisterSize is the size of a write register selector (e.g. 01 1e 01)
const RegisterSize = 3

// BuildWritePayload assembles the data section of a write command
//
// Payload Structure:
//
//	[0-13]   prefix     WritePrefix
//	[14-16]  register   Register selector
//	[17+]    value      Encoded value (1 byte for codes, 4 bytes LE for floats)
func BuildWritePayload(register, value []byte) ([]byte, error) {
	if len(register) != RegisterSize {
		return nil, deviceerr.NewEncodingError(fmt.Sprintf("register must be %d bytes, got %d", RegisterSize, len(register)), nil)
	}
	if len(value) == 0 {
		return nil, deviceerr.NewEncodingError("write value is empty", nil)
	}

	payload := make([]byte, 0, len(WritePrefix)+len(register)+len(value))
	payload = append(payload, WritePrefix...)
	payload = append(payload, register...)
	payload = append(payload, value...)
	return payload, nil
}

// BuildWriteFrame constructs a complete write command (function 0x29).
//
// Example, select the "Jour" preset:
//
//	frame, err := BuildWriteFrame(AddrController, AddrPanel, []byte{0x01, 0x1e, 0x01}, []byte{0x01})
//
// The controller answers with a frame whose function byte is AckWrite.
func BuildWriteFrame(destination, source Address, register, value []byte) ([]byte, error) {
	payload, err := BuildWritePayload(register, value)
	if err != nil {
		return nil, err
	}
	return Encode(destination[:], source[:], []byte{FuncWrite}, payload)
}

// BuildReadFrame constructs a read request (function 0x40). The payload
// selects what to read; the controller answers with AckRead.
func BuildReadFrame(destination, source Address, selector []byte) ([]byte, error) {
	return Encode(destination[:], source[:], []byte{FuncRead}, selector)
}
