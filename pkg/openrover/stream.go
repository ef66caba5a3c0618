// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Roverlink Contributors

package openrover

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// ByteStream is the byte-exact transport the protocol runs over
type ByteStream interface {
	// ReadUntil consumes bytes up to and including delim.
	ReadUntil(ctx context.Context, delim byte) ([]byte, error)
	// ReadExactly consumes exactly n bytes.
	ReadExactly(ctx context.Context, n int) ([]byte, error)
	// Write sends p as one contiguous write.
	Write(ctx context.Context, p []byte) error
}

const streamReadSize = 256

// Stream adapts an io.ReadWriter to ByteStream.
//
// Reads are not safe for concurrent use; Protocol serializes them. Writes
// are serialized internally. Cancellation is observed between reads of the
// underlying reader, so the reader should return periodically (a serial
// port opened with a read timeout returns 0, nil when idle).
type Stream struct {
	rw      io.ReadWriter
	pending []byte
	readBuf []byte
	err     error // sticky read error, reported once pending runs dry
	writeMu sync.Mutex
}

// NewStream wraps rw
func NewStream(rw io.ReadWriter) *Stream {
	return &Stream{
		rw:      rw,
		readBuf: make([]byte, streamReadSize),
	}
}

// fill performs one read of the underlying reader into pending. Bytes that
// arrive together with an error are kept; the error is returned by the next
// fill, after the caller has had a chance to consume them.
func (s *Stream) fill(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.err != nil {
		return s.err
	}
	n, err := s.rw.Read(s.readBuf)
	if err != nil {
		s.err = &TransportError{Op: "read", Err: err}
	}
	if n > 0 {
		s.pending = append(s.pending, s.readBuf[:n]...)
		return nil
	}
	return s.err
}

// take removes and returns the first n pending bytes
func (s *Stream) take(n int) []byte {
	out := make([]byte, n)
	copy(out, s.pending[:n])
	s.pending = s.pending[n:]
	if len(s.pending) == 0 {
		s.pending = s.pending[:0:0]
	}
	return out
}

// ReadUntil implements ByteStream
func (s *Stream) ReadUntil(ctx context.Context, delim byte) ([]byte, error) {
	searched := 0
	for {
		if i := bytes.IndexByte(s.pending[searched:], delim); i >= 0 {
			return s.take(searched + i + 1), nil
		}
		searched = len(s.pending)
		if err := s.fill(ctx); err != nil {
			return nil, err
		}
	}
}

// ReadExactly implements ByteStream
func (s *Stream) ReadExactly(ctx context.Context, n int) ([]byte, error) {
	for len(s.pending) < n {
		if err := s.fill(ctx); err != nil {
			return nil, err
		}
	}
	return s.take(n), nil
}

// Buffered returns the number of bytes read from the transport but not yet
// consumed
func (s *Stream) Buffered() int {
	return len(s.pending)
}

// Write implements ByteStream
func (s *Stream) Write(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// A started frame is always written in full.
	for len(p) > 0 {
		n, err := s.rw.Write(p)
		if err != nil {
			return &TransportError{Op: "write", Err: err}
		}
		if n == 0 {
			return &TransportError{Op: "write", Err: io.ErrShortWrite}
		}
		p = p[n:]
	}
	return nil
}
