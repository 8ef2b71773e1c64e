package protocol

import (
	"bytes"
	"encoding/binary"
	"math/rand/v2"
	"testing"

	"github.com/muurk/ecomax360/internal/deviceerr"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name        string
		destination []byte
		source      []byte
		function    []byte
		payload     []byte
		wantErr     bool
		checkFields func(t *testing.T, frame []byte)
	}{
		{
			name:        "read request",
			destination: []byte{0x64, 0x00},
			source:      []byte{0x20, 0x00},
			function:    []byte{FuncRead},
			payload:     []byte{0x64, 0x78, 0x00},
			checkFields: func(t *testing.T, frame []byte) {
				if len(frame) != MinFrameSize+3 {
					t.Errorf("frame size = %d, want %d", len(frame), MinFrameSize+3)
				}
				if frame[0] != StartByte {
					t.Errorf("start byte = 0x%02x, want 0x%02x", frame[0], StartByte)
				}
				if frame[len(frame)-1] != EndByte {
					t.Errorf("end byte = 0x%02x, want 0x%02x", frame[len(frame)-1], EndByte)
				}
				gotLen := binary.LittleEndian.Uint16(frame[1:3])
				if gotLen != 8 {
					t.Errorf("length = %d, want 8", gotLen)
				}
				// Source goes on the wire before destination
				if !bytes.Equal(frame[3:5], []byte{0x20, 0x00}) {
					t.Errorf("source = %x, want 2000", frame[3:5])
				}
				if !bytes.Equal(frame[5:7], []byte{0x64, 0x00}) {
					t.Errorf("destination = %x, want 6400", frame[5:7])
				}
				if frame[7] != FuncRead {
					t.Errorf("function = 0x%02x, want 0x%02x", frame[7], FuncRead)
				}
				if !bytes.Equal(frame[8:11], []byte{0x64, 0x78, 0x00}) {
					t.Errorf("payload = %x, want 647800", frame[8:11])
				}
			},
		},
		{
			name:        "empty payload",
			destination: []byte{0xff, 0xff},
			source:      []byte{0x01, 0x00},
			function:    []byte{FuncRead},
			payload:     nil,
			checkFields: func(t *testing.T, frame []byte) {
				if len(frame) != MinFrameSize {
					t.Errorf("frame size = %d, want %d", len(frame), MinFrameSize)
				}
				if got := binary.LittleEndian.Uint16(frame[1:3]); got != 5 {
					t.Errorf("length = %d, want 5", got)
				}
			},
		},
		{
			name:        "length above 255 uses both bytes",
			destination: []byte{0xff, 0xff},
			source:      []byte{0x01, 0x00},
			function:    []byte{FuncRead},
			payload:     make([]byte, 300),
			checkFields: func(t *testing.T, frame []byte) {
				if frame[1] != 0x31 || frame[2] != 0x01 {
					t.Errorf("length bytes = %02x %02x, want 31 01", frame[1], frame[2])
				}
			},
		},
		{
			name:        "short destination",
			destination: []byte{0x64},
			source:      []byte{0x01, 0x00},
			function:    []byte{FuncWrite},
			wantErr:     true,
		},
		{
			name:        "long source",
			destination: []byte{0x64, 0x00},
			source:      []byte{0x01, 0x00, 0x00},
			function:    []byte{FuncWrite},
			wantErr:     true,
		},
		{
			name:        "two byte function",
			destination: []byte{0x64, 0x00},
			source:      []byte{0x01, 0x00},
			function:    []byte{0x29, 0x00},
			wantErr:     true,
		},
		{
			name:        "payload overflows length field",
			destination: []byte{0x64, 0x00},
			source:      []byte{0x01, 0x00},
			function:    []byte{FuncWrite},
			payload:     make([]byte, MaxBodySize),
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.destination, tt.source, tt.function, tt.payload)

			if (err != nil) != tt.wantErr {
				t.Errorf("Encode() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				if !deviceerr.IsEncodingError(err) {
					t.Errorf("Encode() error = %v, want EncodingError", err)
				}
				return
			}
			if !Verify(frame) {
				t.Errorf("Verify(Encode()) = false for %x", frame)
			}
			if tt.checkFields != nil {
				tt.checkFields(t, frame)
			}
		})
	}
}

func TestEncodeVerifyProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 500; i++ {
		dst := []byte{byte(rng.UintN(256)), byte(rng.UintN(256))}
		src := []byte{byte(rng.UintN(256)), byte(rng.UintN(256))}
		fn := []byte{byte(rng.UintN(256))}
		payload := make([]byte, rng.IntN(200))
		for j := range payload {
			payload[j] = byte(rng.UintN(256))
		}

		frame, err := Encode(dst, src, fn, payload)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if !Verify(frame) {
			t.Fatalf("Verify(Encode()) = false for %x", frame)
		}
		if got := int(binary.LittleEndian.Uint16(frame[1:3])); got != 5+len(payload) {
			t.Fatalf("length = %d, want %d", got, 5+len(payload))
		}
	}
}

func TestVerifyDetectsSingleBitFlips(t *testing.T) {
	payload, _ := BuildWritePayload([]byte{0x01, 0x1e, 0x01}, []byte{0x01})
	frame, err := Encode([]byte{0x64, 0x00}, []byte{0x01, 0x00}, []byte{FuncWrite}, payload)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	crcStart := len(frame) - 3
	for i := 1; i < crcStart; i++ {
		for bit := 0; bit < 8; bit++ {
			corrupted := bytes.Clone(frame)
			corrupted[i] ^= 1 << bit
			if Verify(corrupted) {
				t.Errorf("Verify() = true after flipping bit %d of byte %d", bit, i)
			}
		}
	}
}

func TestVerifyMalformed(t *testing.T) {
	good, _ := EncodeHex("6400", "2000", "40", "647800")

	tests := []struct {
		name  string
		frame []byte
	}{
		{"nil", nil},
		{"start and end only", []byte{StartByte, EndByte}},
		{"shorter than header", good[:6]},
		{"missing end byte", good[:len(good)-1]},
		{"wrong start byte", append([]byte{0x69}, good[1:]...)},
		{"length too large", func() []byte {
			f := bytes.Clone(good)
			f[1]++
			return f
		}()},
		{"crc swapped", func() []byte {
			f := bytes.Clone(good)
			n := len(f)
			f[n-3], f[n-2] = f[n-2], f[n-3]
			return f
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Verify(tt.frame) {
				t.Errorf("Verify(%x) = true, want false", tt.frame)
			}
		})
	}
}

func TestEncodeHex(t *testing.T) {
	frame, err := EncodeHex("6400", "0100", "29", "55 53 45 52 2d 30 30 30 00 34 30 39 35 00 011e01 01")
	if err != nil {
		t.Fatalf("EncodeHex() error = %v", err)
	}
	if !Verify(frame) {
		t.Fatalf("Verify() = false for %x", frame)
	}

	if _, err := EncodeHex("64zz", "0100", "29", ""); !deviceerr.IsEncodingError(err) {
		t.Errorf("EncodeHex(invalid) error = %v, want EncodingError", err)
	}
	if _, err := EncodeHex("640", "0100", "29", ""); !deviceerr.IsEncodingError(err) {
		t.Errorf("EncodeHex(odd length) error = %v, want EncodingError", err)
	}
}

func TestParseFrame(t *testing.T) {
	raw, _ := EncodeHex("6400", "2000", "40", "647800")

	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if f.Source != AddrThermostat {
		t.Errorf("source = %s, want 2000", f.Source)
	}
	if f.Destination != AddrController {
		t.Errorf("destination = %s, want 6400", f.Destination)
	}
	if f.Function != FuncRead {
		t.Errorf("function = 0x%02x, want 0x40", f.Function)
	}
	if f.Length != 8 {
		t.Errorf("length = %d, want 8", f.Length)
	}
	if !bytes.Equal(f.Payload, []byte{0x64, 0x78, 0x00}) {
		t.Errorf("payload = %x, want 647800", f.Payload)
	}

	rebuilt, err := f.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if !bytes.Equal(rebuilt, raw) {
		t.Errorf("Bytes() = %x, want %x", rebuilt, raw)
	}

	// Mutating the payload must yield a fresh length and CRC
	f.Payload = append(f.Payload, 0x01)
	mutated, _ := f.Bytes()
	if !Verify(mutated) {
		t.Errorf("Verify() = false after payload change: %x", mutated)
	}
	if mutated[1] != 9 {
		t.Errorf("length after mutation = %d, want 9", mutated[1])
	}

	raw[8] ^= 0xff
	if _, err := ParseFrame(raw); !deviceerr.IsDecodingError(err) {
		t.Errorf("ParseFrame(corrupt) error = %v, want DecodingError", err)
	}
}

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("ffff")
	if err != nil {
		t.Fatalf("ParseAddress() error = %v", err)
	}
	if a != AddrBroadcast {
		t.Errorf("ParseAddress(ffff) = %s", a)
	}
	if a.String() != "ffff" {
		t.Errorf("String() = %q, want ffff", a.String())
	}
	if _, err := ParseAddress("640000"); err == nil {
		t.Error("ParseAddress(3 bytes) should fail")
	}
}

func TestAckFlag(t *testing.T) {
	raw, _ := EncodeHex("0100", "6400", "a9", "")
	flag, ok := AckFlag(raw)
	if !ok || flag != AckWrite {
		t.Errorf("AckFlag() = 0x%02x, %v, want 0xa9, true", flag, ok)
	}
	if _, ok := AckFlag([]byte{StartByte, 0x01}); ok {
		t.Error("AckFlag() on a short frame should report false")
	}
}

func TestFunctionName(t *testing.T) {
	tests := map[byte]string{
		FuncWrite: "write",
		FuncRead:  "read",
		AckWrite:  "write-ack",
		AckRead:   "read-ack",
		0x11:      "unknown(0x11)",
	}
	for code, want := range tests {
		if got := FunctionName(code); got != want {
			t.Errorf("FunctionName(0x%02x) = %q, want %q", code, got, want)
		}
	}
}
