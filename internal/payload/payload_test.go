package payload

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/muurk/ecomax360/internal/deviceerr"
)

var testModes = map[int]string{0: "Auto Jour", 1: "Nuit", 2: "Jour"}

var testSchema = &Schema{
	Name: "Test",
	Fields: []Field{
		{Key: "MODE", Offset: 29, Kind: KindUint8, Enum: testModes},
		{Key: "AUTO", Offset: 14, Kind: KindUint8},
		{Key: "TEMPERATURE", Offset: 31, Kind: KindFloat32},
		{Key: "ACTUELLE", Offset: 36, Kind: KindFloat32},
	},
}

func putFloat(buf []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
}

func TestDecodeThermostatLayout(t *testing.T) {
	frame := make([]byte, 116)
	frame[29] = 2
	frame[14] = 1
	putFloat(frame, 31, 65.5)
	putFloat(frame, 36, 23.0)

	r, err := Decode(frame, testSchema)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if got, _ := r.Int("MODE"); got != 2 {
		t.Errorf("MODE = %d, want 2", got)
	}
	if got := r.Label("MODE"); got != "Jour" {
		t.Errorf("MODE label = %q, want Jour", got)
	}
	if got, _ := r.Int("AUTO"); got != 1 {
		t.Errorf("AUTO = %d, want 1", got)
	}
	if got, _ := r.Float("TEMPERATURE"); got != 65.5 {
		t.Errorf("TEMPERATURE = %v, want 65.5", got)
	}
	if got, _ := r.Float("ACTUELLE"); got != 23.0 {
		t.Errorf("ACTUELLE = %v, want 23.0", got)
	}
	if want := []string{"ACTUELLE", "AUTO", "MODE", "TEMPERATURE"}; !slices.Equal(r.Keys(), want) {
		t.Errorf("Keys() = %v, want %v", r.Keys(), want)
	}
}

func TestDecodeUnknownEnumCode(t *testing.T) {
	frame := make([]byte, 64)
	frame[29] = 9

	r, err := Decode(frame, testSchema)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got, _ := r.Int("MODE"); got != 9 {
		t.Errorf("MODE = %d, want 9", got)
	}
	if r.Label("MODE") != "" {
		t.Errorf("MODE label = %q, want empty", r.Label("MODE"))
	}
}

func TestDecodeShortInput(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"uint8 fits, float does not", 33},
		{"last float one byte short", 39},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(make([]byte, tt.size), testSchema)
			if !deviceerr.IsDecodingError(err) {
				t.Errorf("Decode(%d bytes) error = %v, want DecodingError", tt.size, err)
			}
		})
	}

	if _, err := Decode(make([]byte, testSchema.MinLength()), testSchema); err != nil {
		t.Errorf("Decode(MinLength) error = %v", err)
	}
}

func TestDecodeNilSchema(t *testing.T) {
	if _, err := Decode([]byte{1}, nil); !deviceerr.IsDecodingError(err) {
		t.Errorf("Decode(nil schema) error = %v, want DecodingError", err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	schema := &Schema{
		Name: "RoundTrip",
		Fields: []Field{
			{Key: "A", Offset: 0, Kind: KindFloat32},
			{Key: "B", Offset: 4, Kind: KindUint8},
		},
	}

	for i := 0; i < 1000; i++ {
		want := (rng.Float64() - 0.5) * 200
		code := rng.IntN(256)

		buf := EncodeFloat32(want)
		b, err := EncodeUint8(code)
		if err != nil {
			t.Fatalf("EncodeUint8(%d) error = %v", code, err)
		}
		buf = append(buf, b...)

		r, err := Decode(buf, schema)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if got, _ := r.Float("A"); math.Abs(got-want) > 1e-6*math.Max(1, math.Abs(want)) {
			t.Fatalf("A = %v, want %v", got, want)
		}
		if got, _ := r.Int("B"); got != code {
			t.Fatalf("B = %d, want %d", got, code)
		}
	}
}

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		value   any
		want    []byte
		wantErr bool
	}{
		{"uint8 int", KindUint8, 3, []byte{0x03}, false},
		{"uint8 whole float", KindUint8, 7.0, []byte{0x07}, false},
		{"uint8 string", KindUint8, "5", []byte{0x05}, false},
		{"uint8 fraction", KindUint8, 1.5, nil, true},
		{"uint8 negative", KindUint8, -1, nil, true},
		{"uint8 overflow", KindUint8, 256, nil, true},
		{"float 21.5", KindFloat32, 21.5, []byte{0x00, 0x00, 0xac, 0x41}, false},
		{"float from int", KindFloat32, 20, []byte{0x00, 0x00, 0xa0, 0x41}, false},
		{"float NaN", KindFloat32, math.NaN(), nil, true},
		{"not a number", KindFloat32, "warm", nil, true},
		{"unsupported type", KindFloat32, []int{1}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeValue(tt.kind, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("EncodeValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !deviceerr.IsEncodingError(err) {
					t.Errorf("error = %v, want EncodingError", err)
				}
				return
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("EncodeValue() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestValueJSON(t *testing.T) {
	r := Reading{
		"MODE":        {Kind: KindUint8, Int: 2, Label: "Jour"},
		"HEATING":     {Kind: KindUint8, Int: 1},
		"TEMPERATURE": {Kind: KindFloat32, Float: 21.5},
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"HEATING":1,"MODE":{"code":2,"label":"Jour"},"TEMPERATURE":21.5}`
	if string(b) != want {
		t.Errorf("Marshal() = %s, want %s", b, want)
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Value{Kind: KindUint8, Int: 2, Label: "Jour"}, "Jour"},
		{Value{Kind: KindUint8, Int: 9}, "9"},
		{Value{Kind: KindFloat32, Float: 23}, "23"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
