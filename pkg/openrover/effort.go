// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Roverlink Contributors

package openrover

import (
	"fmt"
	"math"
)

// EffortFormat packs a motor effort in [-1, 1] into its wire representation
type EffortFormat interface {
	Size() int
	Pack(effort float64) []byte
	Unpack(b []byte) (float64, error)
}

// ByteEffort is the controller's native effort format: one unsigned byte,
// 0 = full reverse, 125 = stop, 250 = full forward.
type ByteEffort struct{}

const (
	effortNeutral = 125
	effortScale   = 125
)

// Size implements EffortFormat
func (ByteEffort) Size() int { return 1 }

// Pack implements EffortFormat. Out-of-range values clamp; NaN stops.
func (ByteEffort) Pack(effort float64) []byte {
	if math.IsNaN(effort) {
		return []byte{effortNeutral}
	}
	effort = math.Max(-1, math.Min(1, effort))
	return []byte{byte(math.Round(effortNeutral + effort*effortScale))}
}

// Unpack implements EffortFormat
func (ByteEffort) Unpack(b []byte) (float64, error) {
	if len(b) != 1 {
		return 0, fmt.Errorf("effort: expected 1 byte, got %d", len(b))
	}
	return (float64(b[0]) - effortNeutral) / effortScale, nil
}

// Command is the content of one outbound frame
type Command struct {
	Left    float64
	Right   float64
	Flipper float64
	Verb    CommandVerb
	Arg     byte
}

// StopCommand holds all motors at neutral and asks for nothing
var StopCommand = Command{Verb: VerbNOP}

// EncodeCommand builds a complete command frame
func EncodeCommand(format EffortFormat, c Command) []byte {
	return EncodeFrame(
		format.Pack(c.Left),
		format.Pack(c.Right),
		format.Pack(c.Flipper),
		[]byte{byte(c.Verb), c.Arg},
	)
}

// DecodeCommand is the inverse of EncodeCommand
func DecodeCommand(format EffortFormat, frame []byte) (Command, error) {
	payload, err := DecodeFrame(frame)
	if err != nil {
		return Command{}, err
	}

	size := format.Size()
	if len(payload) != 3*size+2 {
		return Command{}, fmt.Errorf("command payload: expected %d bytes, got %d", 3*size+2, len(payload))
	}

	var efforts [3]float64
	for i := range efforts {
		if efforts[i], err = format.Unpack(payload[i*size : (i+1)*size]); err != nil {
			return Command{}, err
		}
	}

	return Command{
		Left:    efforts[0],
		Right:   efforts[1],
		Flipper: efforts[2],
		Verb:    CommandVerb(payload[3*size]),
		Arg:     payload[3*size+1],
	}, nil
}
