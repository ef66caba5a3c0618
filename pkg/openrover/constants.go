// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Roverlink Contributors

// Package openrover implements the OpenRover serial framing protocol.
//
// The controller streams fixed-size telemetry frames, each carrying one data
// element, and accepts fixed-size command frames carrying three motor
// efforts plus a command verb and argument. Frames start with a reserved
// marker byte and end with an 8-bit additive checksum over the payload.
// The marker is not escaped inside payloads; a reader resynchronizes by
// scanning for the marker and relies on the checksum to reject false starts.
package openrover

import (
	"fmt"
	"strings"
)

// Protocol framing bytes
const (
	StartByte = 253 // 255 - 2
)

// Frame sizes
const (
	PayloadSize = 3 // element index + 2 data bytes
	FrameSize   = 1 + PayloadSize + 1

	CommandPayloadSize = 5 // left, right, flipper, verb, arg
	CommandFrameSize   = 1 + CommandPayloadSize + 1
)

// ElementDataSize is the number of value bytes following the element index
const ElementDataSize = PayloadSize - 1

// CommandVerb selects the controller action carried by a command frame
type CommandVerb uint8

// Command verb opcodes
const (
	VerbNOP              CommandVerb = 0
	VerbGetData          CommandVerb = 10
	VerbSetFanSpeed      CommandVerb = 20
	VerbRestart          CommandVerb = 230
	VerbSetDriveMode     CommandVerb = 240
	VerbFlipperCalibrate CommandVerb = 250
)

var verbNames = map[CommandVerb]string{
	VerbNOP:              "NOP",
	VerbGetData:          "GET_DATA",
	VerbSetFanSpeed:      "SET_FAN_SPEED",
	VerbRestart:          "RESTART",
	VerbSetDriveMode:     "SET_DRIVE_MODE",
	VerbFlipperCalibrate: "FLIPPER_CALIBRATE",
}

// Valid reports whether v is one of the known opcodes
func (v CommandVerb) Valid() bool {
	_, ok := verbNames[v]
	return ok
}

// String returns the wire name of the verb
func (v CommandVerb) String() string {
	if name, ok := verbNames[v]; ok {
		return name
	}
	return fmt.Sprintf("VERB(%d)", uint8(v))
}

// ParseCommandVerb accepts the wire name (case-insensitive, '-' or '_')
func ParseCommandVerb(s string) (CommandVerb, error) {
	name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for v, n := range verbNames {
		if n == name {
			return v, nil
		}
	}
	return VerbNOP, fmt.Errorf("unknown command verb %q", s)
}

// DriveMode arguments for VerbSetDriveMode
const (
	DriveModeOpenLoop   = 0
	DriveModeClosedLoop = 1
)
