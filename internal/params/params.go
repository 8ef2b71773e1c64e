package params

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/muurk/ecomax360/internal/deviceerr"
	"github.com/muurk/ecomax360/internal/payload"
	"github.com/muurk/ecomax360/internal/protocol"
)

// Modes are the thermostat operating modes reported in the MODE field
var Modes = map[int]string{
	0: "Auto Jour",
	1: "Nuit",
	2: "Jour",
	3: "Exterieur",
	4: "Aération",
	5: "Fête",
	6: "Vacances",
	7: "Hors-gel",
}

// Thermostat is the layout of the thermostat status frame
var Thermostat = &payload.Schema{
	Name: "Thermostat",
	Fields: []payload.Field{
		{Key: "MODE", Offset: 29, Kind: payload.KindUint8, Enum: Modes},
		{Key: "AUTO", Offset: 14, Kind: payload.KindUint8},
		{Key: "TEMPERATURE", Offset: 31, Kind: payload.KindFloat32},
		{Key: "JOUR", Offset: 41, Kind: payload.KindFloat32},
		{Key: "NUIT", Offset: 46, Kind: payload.KindFloat32},
		{Key: "ACTUELLE", Offset: 36, Kind: payload.KindFloat32},
		{Key: "HEATING", Offset: 27, Kind: payload.KindUint8},
	},
}

// Ecomax is the layout of the boiler broadcast
var Ecomax = &payload.Schema{
	Name: "Ecomax",
	Fields: []payload.Field{
		{Key: "SOURCE_PRINCIPALE", Offset: 164, Kind: payload.KindFloat32},
		{Key: "DEPART_RADIATEUR", Offset: 169, Kind: payload.KindFloat32},
		{Key: "ECS", Offset: 179, Kind: payload.KindFloat32},
		{Key: "BALLON_TAMPON", Offset: 189, Kind: payload.KindFloat32},
		{Key: "TEMPERATURE_EXTERIEUR", Offset: 194, Kind: payload.KindFloat32},
	},
}

// Template is a canned request frame and the flag that acknowledges it
type Template struct {
	Destination protocol.Address
	Source      protocol.Address
	Function    byte
	Payload     []byte
	AckFlag     byte
}

// Parameter binds a logical read to its schema and the marker that
// identifies its frame.
type Parameter struct {
	Name   string
	Schema *payload.Schema
	// Marker is hex text that must appear in the frame's hex encoding
	Marker string
	// ExpectedLength is the exact frame size in bytes, 0 when unknown
	ExpectedLength int
	// Destination and Source are set for broadcasts with fixed addressing
	Destination *protocol.Address
	Source      *protocol.Address
	// Request is nil for broadcast-only parameters
	Request *Template
}

// Addressed reports whether frame carries the parameter's fixed
// addressing. Parameters without one accept any frame.
func (p *Parameter) Addressed(frame []byte) bool {
	if p.Destination == nil && p.Source == nil {
		return true
	}
	if len(frame) < protocol.OffsetFunction {
		return false
	}
	if p.Source != nil && !bytes.Equal(frame[protocol.OffsetSource:protocol.OffsetDestination], p.Source[:]) {
		return false
	}
	if p.Destination != nil && !bytes.Equal(frame[protocol.OffsetDestination:protocol.OffsetFunction], p.Destination[:]) {
		return false
	}
	return true
}

// Broadcast reports whether the parameter can only be listened for
func (p *Parameter) Broadcast() bool {
	return p.Request == nil
}

// Register is a writable controller setting
type Register struct {
	Name     string
	Selector []byte
	Kind     payload.Kind
	Min, Max float64
}

// Validate checks v against the register's range and encodes it
func (r *Register) Validate(v any) ([]byte, error) {
	b, err := payload.EncodeValue(r.Kind, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Name, err)
	}
	n, _ := payload.ToNumber(v)
	if n < r.Min || n > r.Max {
		return nil, deviceerr.NewEncodingError(fmt.Sprintf("%s: value %v out of range [%v, %v]", r.Name, v, r.Min, r.Max), nil)
	}
	return b, nil
}

// Write addressing and acknowledgement
var (
	WriteDestination = protocol.AddrController
	WriteSource      = protocol.AddrPanel
)

const WriteAckFlag = protocol.AckWrite

// Parameter and register names
const (
	GetThermostat    = "GET_THERMOSTAT"
	GetDatas         = "GET_DATAS"
	SetPreset        = "SET_PRESET"
	SetSetpointDay   = "SET_SETPOINT_DAY"
	SetSetpointNight = "SET_SETPOINT_NIGHT"
)

var broadcastAddr = protocol.AddrBroadcast

var parameters = map[string]*Parameter{
	GetThermostat: {
		Name:           GetThermostat,
		Schema:         Thermostat,
		Marker:         "265535445525f78343",
		ExpectedLength: 116,
		Request: &Template{
			Destination: protocol.AddrController,
			Source:      protocol.AddrThermostat,
			Function:    protocol.FuncRead,
			Payload:     []byte{0x64, 0x78, 0x00},
			AckFlag:     protocol.AckRead,
		},
	},
	GetDatas: {
		Name:           GetDatas,
		Schema:         Ecomax,
		Marker:         "3130303538343230303400",
		ExpectedLength: 820,
		Destination:    &broadcastAddr,
		Source:         &protocol.AddrPanel,
	},
}

var registers = map[string]*Register{
	SetPreset: {
		Name:     SetPreset,
		Selector: []byte{0x01, 0x1e, 0x01},
		Kind:     payload.KindUint8,
		Min:      0,
		Max:      7,
	},
	SetSetpointDay: {
		Name:     SetSetpointDay,
		Selector: []byte{0x01, 0x20, 0x01},
		Kind:     payload.KindFloat32,
		Min:      5,
		Max:      35,
	},
	SetSetpointNight: {
		Name:     SetSetpointNight,
		Selector: []byte{0x01, 0x21, 0x01},
		Kind:     payload.KindFloat32,
		Min:      5,
		Max:      35,
	},
}

// Lookup returns the parameter registered under name
func Lookup(name string) (*Parameter, error) {
	p, ok := parameters[name]
	if !ok {
		return nil, fmt.Errorf("unknown parameter %q (known: %v)", name, Names())
	}
	return p, nil
}

// LookupRegister returns the write register registered under name
func LookupRegister(name string) (*Register, error) {
	r, ok := registers[name]
	if !ok {
		return nil, fmt.Errorf("unknown register %q (known: %v)", name, RegisterNames())
	}
	return r, nil
}

// Names lists the readable parameters
func Names() []string {
	names := make([]string, 0, len(parameters))
	for n := range parameters {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// RegisterNames lists the writable registers
func RegisterNames() []string {
	names := make([]string, 0, len(registers))
	for n := range registers {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Identify returns the parameter whose marker appears in frame. When the
// parameter has an expected length, frame must have exactly that length.
func Identify(frame []byte) (*Parameter, bool) {
	for _, name := range Names() {
		p := parameters[name]
		if p.Marker == "" || !protocol.ContainsMarker(frame, p.Marker) {
			continue
		}
		if p.ExpectedLength != 0 && len(frame) != p.ExpectedLength {
			continue
		}
		if !p.Addressed(frame) {
			continue
		}
		return p, true
	}
	return nil, false
}
