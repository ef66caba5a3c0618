// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Roverlink Contributors

package openrover

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction of a captured frame
type Direction uint8

const (
	// Inbound frames came from the controller
	Inbound Direction = iota
	// Outbound frames were sent to the controller
	Outbound
)

// String returns a short label
func (d Direction) String() string {
	if d == Outbound {
		return "TX"
	}
	return "RX"
}

// CaptureRecord is one captured frame. Raw holds the full frame including
// marker and trailer; Error is set when the frame failed validation.
// Session groups the records written by one capture run, so that several
// runs appended to one file can be told apart.
type CaptureRecord struct {
	Time      time.Time `cbor:"0,keyasint"`
	Direction Direction `cbor:"1,keyasint"`
	Raw       []byte    `cbor:"2,keyasint"`
	Error     string    `cbor:"3,keyasint,omitempty"`
	Session   string    `cbor:"4,keyasint,omitempty"`
}

var captureEncMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("openrover: capture encoder: %v", err))
	}
	return em
}()

// CaptureWriter appends records to a CBOR sequence
type CaptureWriter struct {
	enc *cbor.Encoder
}

// NewCaptureWriter writes records to w
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{enc: captureEncMode.NewEncoder(w)}
}

// Write appends one record
func (w *CaptureWriter) Write(r CaptureRecord) error {
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return nil
}

// CaptureReader reads records from a CBOR sequence
type CaptureReader struct {
	dec *cbor.Decoder
}

// NewCaptureReader reads records from r
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF after the last one
func (r *CaptureReader) Next() (CaptureRecord, error) {
	var rec CaptureRecord
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return CaptureRecord{}, io.EOF
		}
		return CaptureRecord{}, fmt.Errorf("capture: %w", err)
	}
	return rec, nil
}

// InboundRecord builds a record for a telemetry read result. payload is the
// value returned by ReadOneRaw; err is its error.
func InboundRecord(t time.Time, payload []byte, err error) CaptureRecord {
	rec := CaptureRecord{Time: t, Direction: Inbound}
	var ce *ChecksumError
	switch {
	case errors.As(err, &ce):
		rec.Raw = ce.Raw
		rec.Error = err.Error()
	case err != nil:
		rec.Error = err.Error()
	default:
		rec.Raw = EncodeFrame(payload)
	}
	return rec
}
