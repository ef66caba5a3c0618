// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Roverlink Contributors

package openrover

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// byteReader returns one byte per Read
type byteReader struct {
	data []byte
}

func (b *byteReader) Read(p []byte) (int, error) {
	if len(b.data) == 0 {
		return 0, io.EOF
	}
	p[0] = b.data[0]
	b.data = b.data[1:]
	return 1, nil
}

// readWriter joins a reader and a writer
type readWriter struct {
	io.Reader
	io.Writer
}

// shortWriter accepts at most max bytes per Write
type shortWriter struct {
	max int
	buf bytes.Buffer
	ops int
}

func (s *shortWriter) Write(p []byte) (int, error) {
	s.ops++
	if len(p) > s.max {
		p = p[:s.max]
	}
	return s.buf.Write(p)
}

// idleReader returns 0, nil like a serial port whose read timeout expired
type idleReader struct{}

func (idleReader) Read(p []byte) (int, error) {
	time.Sleep(time.Millisecond)
	return 0, nil
}

func TestStream_ReadUntil(t *testing.T) {
	s := NewStream(readWriter{Reader: &byteReader{data: []byte{1, 2, StartByte, 4, 5}}})
	ctx := context.Background()

	got, err := s.ReadUntil(ctx, StartByte)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, StartByte}, got)

	rest, err := s.ReadExactly(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, rest)
}

func TestStream_ReadUntilDelimiterFirst(t *testing.T) {
	s := NewStream(readWriter{Reader: bytes.NewReader([]byte{StartByte, StartByte, 9})})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := s.ReadUntil(ctx, StartByte)
		require.NoError(t, err)
		assert.Equal(t, []byte{StartByte}, got)
	}
	assert.Equal(t, 1, s.Buffered())
}

func TestStream_ReadExactlyAcrossReads(t *testing.T) {
	s := NewStream(readWriter{Reader: &byteReader{data: []byte{1, 2, 3, 4, 5, 6}}})

	got, err := s.ReadExactly(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestStream_ClosedBeforeDelimiter(t *testing.T) {
	s := NewStream(readWriter{Reader: bytes.NewReader([]byte{1, 2, 3})})

	_, err := s.ReadUntil(context.Background(), StartByte)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "read", te.Op)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStream_ClosedBeforeN(t *testing.T) {
	s := NewStream(readWriter{Reader: bytes.NewReader([]byte{1, 2})})

	_, err := s.ReadExactly(context.Background(), 4)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, s.Buffered(), "partial bytes stay buffered")
}

func TestStream_DataArrivingWithEOF(t *testing.T) {
	// DataErrReader returns the final bytes together with io.EOF
	s := NewStream(readWriter{Reader: iotest.DataErrReader(bytes.NewReader([]byte{1, StartByte, 3, 4}))})
	ctx := context.Background()

	got, err := s.ReadUntil(ctx, StartByte)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, StartByte}, got)

	rest, err := s.ReadExactly(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4}, rest)

	_, err = s.ReadExactly(ctx, 1)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, io.EOF)

	_, err = s.ReadUntil(ctx, StartByte)
	assert.ErrorIs(t, err, io.EOF, "read error is sticky")
}

func TestReadOneRaw_LastFrameBeforeEOF(t *testing.T) {
	rw := readWriter{Reader: iotest.DataErrReader(bytes.NewReader(EncodeFrame([]byte{10, 0, 5})))}
	p := NewProtocol(NewStream(rw))
	ctx := context.Background()

	payload, err := p.ReadOneRaw(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 0, 5}, payload)

	_, err = p.ReadOneRaw(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, uint64(1), p.Statistics().Snapshot().TransportErrors)
}

func TestStream_CancelWhileIdle(t *testing.T) {
	s := NewStream(readWriter{Reader: idleReader{}})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.ReadUntil(ctx, StartByte)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStream_WriteLoopsOverShortWrites(t *testing.T) {
	w := &shortWriter{max: 2}
	s := NewStream(readWriter{Writer: w})

	frame := EncodeCommand(ByteEffort{}, StopCommand)
	require.NoError(t, s.Write(context.Background(), frame))
	assert.Equal(t, frame, w.buf.Bytes())
	assert.Equal(t, 4, w.ops)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("device unplugged")
}

func TestStream_WriteError(t *testing.T) {
	s := NewStream(readWriter{Writer: failingWriter{}})

	err := s.Write(context.Background(), []byte{1})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "write", te.Op)
	assert.Contains(t, err.Error(), "device unplugged")
}

func TestStream_WriteCancelled(t *testing.T) {
	w := &shortWriter{max: 10}
	s := NewStream(readWriter{Writer: w})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Write(ctx, []byte{1, 2}), context.Canceled)
	assert.Zero(t, w.ops)
}
