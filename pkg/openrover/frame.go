// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Roverlink Contributors

package openrover

import "fmt"

// EncodeFrame concatenates the payload parts and wraps them with the start
// marker and checksum trailer.
func EncodeFrame(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}

	frame := make([]byte, 0, n+2)
	frame = append(frame, StartByte)
	for _, p := range parts {
		frame = append(frame, p...)
	}
	return append(frame, Checksum(frame[1:]))
}

// DecodeFrame validates a complete frame and returns its payload.
// The returned slice aliases frame.
func DecodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(frame))
	}
	if frame[0] != StartByte {
		return nil, fmt.Errorf("%w: got 0x%02X", ErrStartByte, frame[0])
	}

	payload := frame[1 : len(frame)-1]
	trailer := frame[len(frame)-1]
	if want := Checksum(payload); trailer != want {
		return nil, &ChecksumError{
			Raw:  append([]byte(nil), frame...),
			Want: want,
			Got:  trailer,
		}
	}
	return payload, nil
}
