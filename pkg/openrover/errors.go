// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Roverlink Contributors

package openrover

import (
	"errors"
	"fmt"
)

var (
	// ErrChecksum matches every *ChecksumError.
	ErrChecksum = errors.New("bad checksum")
	// ErrUnknownElement matches every *UnknownElementError.
	ErrUnknownElement = errors.New("unknown data element")
	// ErrFrameTooShort is returned when a frame cannot hold marker and trailer.
	ErrFrameTooShort = errors.New("frame too short")
	// ErrStartByte is returned when a frame does not begin with StartByte.
	ErrStartByte = errors.New("missing start byte")
)

// ChecksumError reports a frame whose trailer does not match its payload.
// The frame's bytes are consumed; the next read resumes the marker scan.
type ChecksumError struct {
	Raw  []byte // full frame as received
	Want byte   // checksum computed over the payload
	Got  byte   // trailer byte received
}

// Error implements the error interface
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("bad checksum: expected 0x%02X, got 0x%02X, discarding % X", e.Want, e.Got, e.Raw)
}

// Is makes errors.Is(err, ErrChecksum) true
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksum
}

// UnknownElementError reports a valid frame whose element index has no
// registered descriptor.
type UnknownElementError struct {
	Index   byte
	Payload []byte
}

// Error implements the error interface
func (e *UnknownElementError) Error() string {
	return fmt.Sprintf("unknown data element %d (payload % X)", e.Index, e.Payload)
}

// Is makes errors.Is(err, ErrUnknownElement) true
func (e *UnknownElementError) Is(target error) bool {
	return target == ErrUnknownElement
}

// TransportError wraps a failure of the underlying byte stream
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a failed read may succeed if repeated.
// Only checksum failures qualify: the stream is still usable and the next
// read rescans for a marker.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrChecksum)
}
