package payload

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/muurk/ecomax360/internal/deviceerr"
)

// EncodeUint8 encodes a single-byte write value
func EncodeUint8(v int) ([]byte, error) {
	if v < 0 || v > math.MaxUint8 {
		return nil, deviceerr.NewEncodingError(fmt.Sprintf("value %d out of range for uint8", v), nil)
	}
	return []byte{byte(v)}, nil
}

// EncodeFloat32 encodes v as 4 bytes little-endian IEEE-754
func EncodeFloat32(v float64) []byte {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(v)))
}

// EncodeValue encodes v for a field of the given kind. Integers, floats and
// numeric strings are accepted; fractional values are rejected for uint8.
func EncodeValue(kind Kind, v any) ([]byte, error) {
	f, err := ToNumber(v)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindUint8:
		if f != math.Trunc(f) {
			return nil, deviceerr.NewEncodingError(fmt.Sprintf("value %v is not an integer", v), nil)
		}
		return EncodeUint8(int(f))
	case KindFloat32:
		if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxFloat32 {
			return nil, deviceerr.NewEncodingError(fmt.Sprintf("value %v not representable as float32", v), nil)
		}
		return EncodeFloat32(f), nil
	default:
		return nil, deviceerr.NewEncodingError(fmt.Sprintf("unsupported kind %s", kind), nil)
	}
}

// ToNumber converts an integer, float or numeric string to float64
func ToNumber(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, deviceerr.NewEncodingError(fmt.Sprintf("value %q is not a number", n), err)
		}
		return f, nil
	default:
		return 0, deviceerr.NewEncodingError(fmt.Sprintf("unsupported value type %T", v), nil)
	}
}
