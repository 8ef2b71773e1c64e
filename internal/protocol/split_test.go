package protocol

import (
	"bytes"
	"math/rand/v2"
	"testing"
)

func TestSplitFrames(t *testing.T) {
	a, _ := EncodeHex("6400", "2000", "40", "647800")
	b, _ := EncodeHex("0100", "6400", "a9", "")

	tests := []struct {
		name string
		buf  []byte
		want [][]byte
	}{
		{
			name: "empty buffer",
			buf:  nil,
			want: nil,
		},
		{
			name: "no markers",
			buf:  []byte{0x00, 0x01, 0x02},
			want: nil,
		},
		{
			name: "start without end",
			buf:  []byte{0x00, StartByte, 0x01, 0x02},
			want: nil,
		},
		{
			name: "single frame with leading noise",
			buf:  append([]byte{0x00, 0x16, 0x42}, a...),
			want: [][]byte{a},
		},
		{
			name: "two frames back to back",
			buf:  append(bytes.Clone(a), b...),
			want: [][]byte{a, b},
		},
		{
			name: "first end byte terminates candidate",
			buf:  []byte{StartByte, 0x01, EndByte, 0x02, EndByte},
			want: [][]byte{{StartByte, 0x01, EndByte}},
		},
		{
			name: "start byte inside candidate is not a new candidate",
			buf:  []byte{StartByte, StartByte, 0x01, EndByte},
			want: [][]byte{{StartByte, StartByte, 0x01, EndByte}},
		},
		{
			name: "partial trailing frame dropped",
			buf:  append(bytes.Clone(a), b[:5]...),
			want: [][]byte{a},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitFrames(tt.buf)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitFrames() returned %d frames, want %d: %x", len(got), len(tt.want), got)
			}
			for i := range got {
				if !bytes.Equal(got[i], tt.want[i]) {
					t.Errorf("frame %d = %x, want %x", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitFramesProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for i := 0; i < 500; i++ {
		buf := make([]byte, rng.IntN(256))
		for j := range buf {
			// Bias towards delimiters so candidates actually occur
			switch rng.IntN(8) {
			case 0:
				buf[j] = StartByte
			case 1:
				buf[j] = EndByte
			default:
				buf[j] = byte(rng.UintN(256))
			}
		}
		original := bytes.Clone(buf)

		frames := SplitFrames(buf)

		pos := 0
		for _, f := range frames {
			if len(f) < 2 || f[0] != StartByte || f[len(f)-1] != EndByte {
				t.Fatalf("candidate %x is not delimited", f)
			}
			idx := bytes.Index(buf[pos:], f)
			if idx < 0 {
				t.Fatalf("candidate %x not found in order in %x", f, buf)
			}
			pos += idx + len(f)
		}

		if !bytes.Equal(buf, original) {
			t.Fatal("SplitFrames() mutated its input")
		}

		again := SplitFrames(buf)
		if len(again) != len(frames) {
			t.Fatalf("SplitFrames() not idempotent: %d vs %d frames", len(again), len(frames))
		}
	}
}

func TestSplitFramesReturnsCopies(t *testing.T) {
	a, _ := EncodeHex("6400", "2000", "40", "647800")
	buf := bytes.Clone(a)

	frames := SplitFrames(buf)
	frames[0][1] = 0xee

	if !bytes.Equal(buf, a) {
		t.Error("modifying a candidate changed the receive buffer")
	}
}

func TestContainsMarker(t *testing.T) {
	frame := []byte{StartByte, 0x31, 0x30, 0x30, 0x12, 0x65, 0x53, 0xab, EndByte}

	tests := []struct {
		name   string
		marker string
		want   bool
	}{
		{"byte aligned", "313030", true},
		{"upper case", "53AB16", true},
		{"starts mid byte", "2655", true},
		{"absent", "3131", false},
		{"empty matches", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainsMarker(frame, tt.marker); got != tt.want {
				t.Errorf("ContainsMarker(%q) = %v, want %v", tt.marker, got, tt.want)
			}
		})
	}
}

func TestSplitStream(t *testing.T) {
	a, _ := EncodeHex("6400", "2000", "40", "647800")
	b, _ := EncodeHex("0100", "6400", "a9", "")

	first := append(bytes.Clone(a), b[:6]...)
	frames, rest := SplitStream(first)
	if len(frames) != 1 || !bytes.Equal(frames[0], a) {
		t.Fatalf("frames = %x, want [%x]", frames, a)
	}
	if !bytes.Equal(rest, b[:6]) {
		t.Fatalf("rest = %x, want %x", rest, b[:6])
	}

	frames, rest = SplitStream(append(rest, b[6:]...))
	if len(frames) != 1 || !bytes.Equal(frames[0], b) {
		t.Errorf("frames = %x, want [%x]", frames, b)
	}
	if rest != nil {
		t.Errorf("rest = %x, want nil", rest)
	}

	if _, rest := SplitStream([]byte{0x00, 0x01}); rest != nil {
		t.Errorf("rest without start byte = %x, want nil", rest)
	}
}
