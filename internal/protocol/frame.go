package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/muurk/ecomax360/internal/deviceerr"
)

// Frame delimiters and layout
const (
	StartByte = 0x68
	EndByte   = 0x16

	AddressSize  = 2
	FunctionSize = 1
	LengthSize   = 2
	CRCSize      = 2

	// headerSize covers start byte, length, source, destination and function
	headerSize = 1 + LengthSize + AddressSize + AddressSize + FunctionSize

	// MinFrameSize is a frame with an empty payload
	MinFrameSize = headerSize + CRCSize + 1

	// MaxBodySize is the largest value the 16-bit length field can carry
	MaxBodySize = 0xFFFF
)

// Byte offsets inside an encoded frame
const (
	OffsetLength      = 1
	OffsetSource      = 3
	OffsetDestination = 5
	OffsetFunction    = 7
	OffsetPayload     = 8
)

// Function codes observed on the bus
const (
	FuncWrite = 0x29
	FuncRead  = 0x40
)

// Acknowledgement flags. A controller answers with the request's function
// code with the high bit set.
const (
	AckWrite = 0xa9
	AckRead  = 0xc0

	// AckFlagOffset is where the acknowledgement flag sits in a response
	// frame: the response's own function byte.
	AckFlagOffset = OffsetFunction
)

// Address is a 2-byte bus address as it appears on the wire.
type Address [AddressSize]byte

// Well-known addresses
var (
	AddrController = Address{0x64, 0x00}
	AddrPanel      = Address{0x01, 0x00}
	AddrThermostat = Address{0x20, 0x00}
	AddrBroadcast  = Address{0xff, 0xff}
)

// ParseAddress parses a 4-digit hex address such as "6400".
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := DecodeHex(s)
	if err != nil {
		return a, err
	}
	if len(b) != AddressSize {
		return a, deviceerr.NewEncodingError(fmt.Sprintf("address %q must be %d bytes, got %d", s, AddressSize, len(b)), nil)
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Frame is a decoded protocol frame
type Frame struct {
	Length      uint16  // Byte count of source+destination+function+payload
	Source      Address // Sender
	Destination Address // Receiver
	Function    byte    // Function code (or ack flag on responses)
	Payload     []byte  // Data section
	CRC         uint16  // CRC-16/XModem as carried on the wire
	Raw         []byte  // Original frame bytes
}

// Encode builds a complete frame:
//
//	[0]      0x68          Start byte
//	[1-2]    length        Little-endian, source+destination+function+payload
//	[3-4]    source        Source address
//	[5-6]    destination   Destination address
//	[7]      function      Function code
//	[8..n]   payload       Data
//	[n+1..2] crc           Big-endian CRC-16/XModem over bytes 1..n
//	[n+3]    0x16          End byte
func Encode(destination, source, function, payload []byte) ([]byte, error) {
	if len(destination) != AddressSize {
		return nil, deviceerr.NewEncodingError(fmt.Sprintf("destination must be %d bytes, got %d", AddressSize, len(destination)), nil)
	}
	if len(source) != AddressSize {
		return nil, deviceerr.NewEncodingError(fmt.Sprintf("source must be %d bytes, got %d", AddressSize, len(source)), nil)
	}
	if len(function) != FunctionSize {
		return nil, deviceerr.NewEncodingError(fmt.Sprintf("function must be %d byte, got %d", FunctionSize, len(function)), nil)
	}

	bodyLen := AddressSize + AddressSize + FunctionSize + len(payload)
	if bodyLen > MaxBodySize {
		return nil, deviceerr.NewEncodingError(fmt.Sprintf("payload too large: %d bytes", len(payload)), nil)
	}

	frame := make([]byte, 0, headerSize+len(payload)+CRCSize+1)
	frame = append(frame, StartByte)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(bodyLen))
	frame = append(frame, source...)
	frame = append(frame, destination...)
	frame = append(frame, function...)
	frame = append(frame, payload...)

	crc := CRC16XModem(frame[1:])
	frame = binary.BigEndian.AppendUint16(frame, crc)
	frame = append(frame, EndByte)

	return frame, nil
}

// EncodeHex is Encode with hex string arguments. Whitespace inside the
// strings is ignored.
func EncodeHex(destination, source, function, payload string) ([]byte, error) {
	fields := []struct {
		name  string
		value string
	}{
		{"destination", destination},
		{"source", source},
		{"function", function},
		{"payload", payload},
	}

	decoded := make([][]byte, len(fields))
	for i, f := range fields {
		b, err := DecodeHex(f.value)
		if err != nil {
			return nil, deviceerr.NewEncodingError(fmt.Sprintf("invalid %s hex %q", f.name, f.value), err)
		}
		decoded[i] = b
	}

	return Encode(decoded[0], decoded[1], decoded[2], decoded[3])
}

// DecodeHex decodes a hex string, ignoring spaces, tabs and colons.
func DecodeHex(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':':
			return -1
		}
		return r
	}, s)
	b, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, deviceerr.NewEncodingError(fmt.Sprintf("invalid hex %q", s), err)
	}
	return b, nil
}

// Verify reports whether frame is structurally valid: delimiters present,
// length field equal to the actual body size and CRC matching. It never
// panics on short or malformed input.
func Verify(frame []byte) bool {
	if len(frame) < MinFrameSize {
		return false
	}
	if frame[0] != StartByte || frame[len(frame)-1] != EndByte {
		return false
	}

	crcStart := len(frame) - 1 - CRCSize
	bodyLen := crcStart - OffsetSource
	if int(binary.LittleEndian.Uint16(frame[OffsetLength:OffsetSource])) != bodyLen {
		return false
	}

	want := binary.BigEndian.Uint16(frame[crcStart : crcStart+CRCSize])
	return CRC16XModem(frame[OffsetLength:crcStart]) == want
}

// ParseFrame verifies and decodes a frame
func ParseFrame(frame []byte) (*Frame, error) {
	if !Verify(frame) {
		return nil, deviceerr.NewDecodingError(fmt.Sprintf("invalid frame (%d bytes): %s", len(frame), hex.EncodeToString(frame)))
	}

	crcStart := len(frame) - 1 - CRCSize
	f := &Frame{
		Length:   binary.LittleEndian.Uint16(frame[OffsetLength:OffsetSource]),
		Function: frame[OffsetFunction],
		CRC:      binary.BigEndian.Uint16(frame[crcStart : crcStart+CRCSize]),
		Raw:      append([]byte(nil), frame...),
	}
	copy(f.Source[:], frame[OffsetSource:OffsetDestination])
	copy(f.Destination[:], frame[OffsetDestination:OffsetFunction])
	f.Payload = append([]byte(nil), frame[OffsetPayload:crcStart]...)

	return f, nil
}

// Bytes re-encodes the frame. Length and CRC are recomputed, never taken
// from the struct.
func (f *Frame) Bytes() ([]byte, error) {
	return Encode(f.Destination[:], f.Source[:], []byte{f.Function}, f.Payload)
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{src=%s, dst=%s, func=0x%02x, len=%d, payload_len=%d, crc=0x%04x}",
		f.Source, f.Destination, f.Function, f.Length, len(f.Payload), f.CRC)
}

// AckFlag returns the acknowledgement flag of a response frame.
func AckFlag(frame []byte) (byte, bool) {
	if len(frame) <= AckFlagOffset {
		return 0, false
	}
	return frame[AckFlagOffset], true
}

// FunctionName returns a human-readable function code name
func FunctionName(code byte) string {
	switch code {
	case FuncWrite:
		return "write"
	case FuncRead:
		return "read"
	case AckWrite:
		return "write-ack"
	case AckRead:
		return "read-ack"
	default:
		return fmt.Sprintf("unknown(0x%02x)", code)
	}
}
