package payload

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/muurk/ecomax360/internal/deviceerr"
)

// Kind is the on-wire encoding of a field
type Kind int

const (
	KindUint8 Kind = iota
	KindFloat32
)

// Width returns the number of bytes a field of this kind occupies
func (k Kind) Width() int {
	switch k {
	case KindUint8:
		return 1
	case KindFloat32:
		return 4
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case KindUint8:
		return "uint8"
	case KindFloat32:
		return "float32"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Field describes one value inside a frame
type Field struct {
	Key    string
	Offset int
	Kind   Kind
	Enum   map[int]string // optional code -> label
}

// Schema is a named, ordered list of fields. Schemas are shared and must not
// be modified after construction.
type Schema struct {
	Name   string
	Fields []Field
}

// MinLength returns the shortest input every field fits in
func (s *Schema) MinLength() int {
	n := 0
	for _, f := range s.Fields {
		if end := f.Offset + f.Kind.Width(); end > n {
			n = end
		}
	}
	return n
}

// Value is one decoded field. Uint8 fields fill Int; float32 fields fill
// Float. Label is set when an enum field's code is known.
type Value struct {
	Kind  Kind
	Int   int
	Float float64
	Label string
}

// Number returns the value as a float64 regardless of kind
func (v Value) Number() float64 {
	if v.Kind == KindFloat32 {
		return v.Float
	}
	return float64(v.Int)
}

func (v Value) String() string {
	switch {
	case v.Label != "":
		return v.Label
	case v.Kind == KindFloat32:
		return strconv.FormatFloat(v.Float, 'f', -1, 32)
	default:
		return strconv.Itoa(v.Int)
	}
}

// MarshalJSON encodes enum values as {"code": n, "label": s} and everything
// else as a bare number.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Label != "" {
		return json.Marshal(struct {
			Code  int    `json:"code"`
			Label string `json:"label"`
		}{v.Int, v.Label})
	}
	if v.Kind == KindFloat32 {
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return []byte("null"), nil
		}
		return []byte(strconv.FormatFloat(v.Float, 'f', -1, 32)), nil
	}
	return []byte(strconv.Itoa(v.Int)), nil
}

// Reading is the result of decoding one frame against a schema
type Reading map[string]Value

// Float returns a numeric field as float64
func (r Reading) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	return v.Number(), true
}

// Int returns a uint8 field
func (r Reading) Int(key string) (int, bool) {
	v, ok := r[key]
	if !ok || v.Kind != KindUint8 {
		return 0, false
	}
	return v.Int, true
}

// Label returns the enum label of a field, or "" when it has none
func (r Reading) Label(key string) string {
	return r[key].Label
}

// Keys returns the field keys in sorted order
func (r Reading) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Decode extracts every field of schema from data. Offsets are absolute
// positions in data; a field that does not fit is a DecodingError, never a
// truncated read.
func Decode(data []byte, schema *Schema) (Reading, error) {
	if schema == nil {
		return nil, deviceerr.NewDecodingError("nil schema")
	}

	reading := make(Reading, len(schema.Fields))
	for _, f := range schema.Fields {
		width := f.Kind.Width()
		if width == 0 {
			return nil, deviceerr.NewDecodingError(fmt.Sprintf("field %s has unsupported kind %s", f.Key, f.Kind))
		}
		if f.Offset < 0 || f.Offset+width > len(data) {
			return nil, deviceerr.NewDecodingError(fmt.Sprintf("%s: field %s at offset %d needs %d bytes, have %d",
				schema.Name, f.Key, f.Offset, width, len(data)))
		}

		raw := data[f.Offset : f.Offset+width]
		v := Value{Kind: f.Kind}
		switch f.Kind {
		case KindUint8:
			v.Int = int(raw[0])
			if f.Enum != nil {
				v.Label = f.Enum[v.Int]
			}
		case KindFloat32:
			v.Float = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw)))
		}
		reading[f.Key] = v
	}

	return reading, nil
}
