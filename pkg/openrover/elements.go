// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Roverlink Contributors

package openrover

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// DataFormat decodes the two value bytes of a telemetry frame
type DataFormat interface {
	Unpack(b []byte) (any, error)
}

func checkDataSize(b []byte) error {
	if len(b) != ElementDataSize {
		return fmt.Errorf("element data: expected %d bytes, got %d", ElementDataSize, len(b))
	}
	return nil
}

// Uint16Format decodes a big-endian unsigned integer
type Uint16Format struct{}

// Unpack implements DataFormat
func (Uint16Format) Unpack(b []byte) (any, error) {
	if err := checkDataSize(b); err != nil {
		return nil, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Int16Format decodes a big-endian two's complement integer
type Int16Format struct{}

// Unpack implements DataFormat
func (Int16Format) Unpack(b []byte) (any, error) {
	if err := checkDataSize(b); err != nil {
		return nil, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

// Measurement is a scaled physical reading
type Measurement struct {
	Value float64
	Unit  string
}

// String renders the reading with its unit
func (m Measurement) String() string {
	return fmt.Sprintf("%.3f %s", m.Value, m.Unit)
}

// ScaledFormat decodes a big-endian unsigned count multiplied by Scale
type ScaledFormat struct {
	Scale float64
	Unit  string
}

// Unpack implements DataFormat
func (f ScaledFormat) Unpack(b []byte) (any, error) {
	if err := checkDataSize(b); err != nil {
		return nil, err
	}
	return Measurement{Value: float64(binary.BigEndian.Uint16(b)) * f.Scale, Unit: f.Unit}, nil
}

// Scaled formats used by the controller
var (
	VoltageFormat = ScaledFormat{Scale: 1.0 / 58, Unit: "V"}
	CurrentFormat = ScaledFormat{Scale: 0.034, Unit: "A"}
)

// Flags is a 16-bit status word
type Flags uint16

// Bits returns the indexes of set bits, lowest first
func (f Flags) Bits() []int {
	var bits []int
	for i := 0; i < 16; i++ {
		if f&(1<<i) != 0 {
			bits = append(bits, i)
		}
	}
	return bits
}

// String renders the word in binary
func (f Flags) String() string {
	return fmt.Sprintf("0b%016b", uint16(f))
}

// FlagsFormat decodes a status word
type FlagsFormat struct{}

// Unpack implements DataFormat
func (FlagsFormat) Unpack(b []byte) (any, error) {
	if err := checkDataSize(b); err != nil {
		return nil, err
	}
	return Flags(binary.BigEndian.Uint16(b)), nil
}

// FirmwareVersion is the controller's release version
type FirmwareVersion struct {
	Major, Minor, Patch int
}

// String renders the version as major.minor.patch
func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// FirmwareVersionFormat decodes a version packed as decimal MMmmpp
type FirmwareVersionFormat struct{}

// Unpack implements DataFormat
func (FirmwareVersionFormat) Unpack(b []byte) (any, error) {
	if err := checkDataSize(b); err != nil {
		return nil, err
	}
	v := int(binary.BigEndian.Uint16(b))
	return FirmwareVersion{Major: v / 10000, Minor: v / 100 % 100, Patch: v % 100}, nil
}

// ChargerState reports whether the batteries are being charged
type ChargerState bool

// String renders the state
func (c ChargerState) String() string {
	if c {
		return "charging"
	}
	return "not charging"
}

const chargerCharging = 0xDADA

// ChargerStateFormat decodes the charger magic word
type ChargerStateFormat struct{}

// Unpack implements DataFormat
func (ChargerStateFormat) Unpack(b []byte) (any, error) {
	if err := checkDataSize(b); err != nil {
		return nil, err
	}
	return ChargerState(binary.BigEndian.Uint16(b) == chargerCharging), nil
}

// Descriptor associates an element index with its layout
type Descriptor struct {
	Index  byte
	Name   string
	Format DataFormat
}

// Catalog maps element indexes to descriptors. It is not safe for
// concurrent Register calls; build it before sharing.
type Catalog struct {
	elements map[byte]Descriptor
}

// NewCatalog creates a catalog holding the given descriptors
func NewCatalog(descriptors ...Descriptor) *Catalog {
	c := &Catalog{elements: make(map[byte]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		c.Register(d)
	}
	return c
}

// Register adds or replaces a descriptor
func (c *Catalog) Register(d Descriptor) {
	c.elements[d.Index] = d
}

// Lookup returns the descriptor for index, or false if none is registered
func (c *Catalog) Lookup(index byte) (Descriptor, bool) {
	d, ok := c.elements[index]
	return d, ok
}

// Indexes returns the registered indexes in ascending order
func (c *Catalog) Indexes() []byte {
	indexes := make([]byte, 0, len(c.elements))
	for i := range c.elements {
		indexes = append(indexes, i)
	}
	sort.Slice(indexes, func(a, b int) bool { return indexes[a] < indexes[b] })
	return indexes
}

// Len returns the number of registered descriptors
func (c *Catalog) Len() int {
	return len(c.elements)
}

// Data element indexes reported by the controller
const (
	ElemBatteryVoltage         = 0
	ElemLeftMotorSpeed         = 2
	ElemRightMotorSpeed        = 4
	ElemFlipperPosition1       = 6
	ElemFlipperPosition2       = 8
	ElemLeftMotorCurrent       = 10
	ElemRightMotorCurrent      = 12
	ElemLeftEncoderCount       = 14
	ElemRightEncoderCount      = 16
	ElemMotorsFault            = 18
	ElemLeftMotorTemperature   = 20
	ElemRightMotorTemperature  = 22
	ElemBatteryAVoltage        = 24
	ElemBatteryBVoltage        = 26
	ElemLeftEncoderInterval    = 28
	ElemRightEncoderInterval   = 30
	ElemFlipperEncoderInterval = 32
	ElemBatteryAStateOfCharge  = 34
	ElemBatteryBStateOfCharge  = 36
	ElemChargerState           = 38
	ElemFirmwareVersion        = 40
	ElemBatteryACurrent        = 42
	ElemBatteryBCurrent        = 44
	ElemMotorStatus            = 46
	ElemFanSpeed               = 48
	ElemDriveMode              = 50
	ElemBatteryAStatus         = 52
	ElemBatteryBStatus         = 54
)

// DefaultCatalog returns a fresh catalog of the controller's known elements
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Descriptor{ElemBatteryVoltage, "battery (A+B) voltage", VoltageFormat},
		Descriptor{ElemLeftMotorSpeed, "left motor speed", Int16Format{}},
		Descriptor{ElemRightMotorSpeed, "right motor speed", Int16Format{}},
		Descriptor{ElemFlipperPosition1, "flipper position 1", Uint16Format{}},
		Descriptor{ElemFlipperPosition2, "flipper position 2", Uint16Format{}},
		Descriptor{ElemLeftMotorCurrent, "left motor current", CurrentFormat},
		Descriptor{ElemRightMotorCurrent, "right motor current", CurrentFormat},
		Descriptor{ElemLeftEncoderCount, "left motor encoder count", Uint16Format{}},
		Descriptor{ElemRightEncoderCount, "right motor encoder count", Uint16Format{}},
		Descriptor{ElemMotorsFault, "motors fault flag", FlagsFormat{}},
		Descriptor{ElemLeftMotorTemperature, "left motor temperature", Int16Format{}},
		Descriptor{ElemRightMotorTemperature, "right motor temperature", Int16Format{}},
		Descriptor{ElemBatteryAVoltage, "battery A voltage", VoltageFormat},
		Descriptor{ElemBatteryBVoltage, "battery B voltage", VoltageFormat},
		Descriptor{ElemLeftEncoderInterval, "left motor encoder interval", Uint16Format{}},
		Descriptor{ElemRightEncoderInterval, "right motor encoder interval", Uint16Format{}},
		Descriptor{ElemFlipperEncoderInterval, "flipper motor encoder interval", Uint16Format{}},
		Descriptor{ElemBatteryAStateOfCharge, "battery A state of charge", Uint16Format{}},
		Descriptor{ElemBatteryBStateOfCharge, "battery B state of charge", Uint16Format{}},
		Descriptor{ElemChargerState, "battery charging state", ChargerStateFormat{}},
		Descriptor{ElemFirmwareVersion, "release version", FirmwareVersionFormat{}},
		Descriptor{ElemBatteryACurrent, "battery A current", CurrentFormat},
		Descriptor{ElemBatteryBCurrent, "battery B current", CurrentFormat},
		Descriptor{ElemMotorStatus, "motor status flags", FlagsFormat{}},
		Descriptor{ElemFanSpeed, "fan speed", Uint16Format{}},
		Descriptor{ElemDriveMode, "drive mode", Uint16Format{}},
		Descriptor{ElemBatteryAStatus, "battery A status", FlagsFormat{}},
		Descriptor{ElemBatteryBStatus, "battery B status", FlagsFormat{}},
	)
}

// Element is one decoded telemetry value
type Element struct {
	Index byte
	Name  string
	Value any
	Raw   [ElementDataSize]byte
}

// DecodeElement dispatches a validated payload to its descriptor
func (c *Catalog) DecodeElement(payload []byte) (Element, error) {
	if len(payload) != PayloadSize {
		return Element{}, fmt.Errorf("element payload: expected %d bytes, got %d", PayloadSize, len(payload))
	}

	index := payload[0]
	d, ok := c.Lookup(index)
	if !ok {
		return Element{}, &UnknownElementError{Index: index, Payload: append([]byte(nil), payload...)}
	}

	value, err := d.Format.Unpack(payload[1:])
	if err != nil {
		return Element{}, fmt.Errorf("element %d (%s): %w", index, d.Name, err)
	}

	e := Element{Index: index, Name: d.Name, Value: value}
	copy(e.Raw[:], payload[1:])
	return e, nil
}
