// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Roverlink Contributors

package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roverlink/roverlink/pkg/openrover"
)

func TestDriveLoop_StopsAtDuration(t *testing.T) {
	var sent []openrover.Command
	send := func(_ context.Context, c openrover.Command) error {
		sent = append(sent, c)
		return nil
	}

	c := openrover.Command{Left: 0.5, Right: 0.5}
	n, err := driveLoop(context.Background(), send, c, 200, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, len(sent), n)
	assert.GreaterOrEqual(t, n, 2)
	assert.LessOrEqual(t, n, 12, "rate limited")
	for _, s := range sent {
		assert.Equal(t, c, s)
	}
}

func TestDriveLoop_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	send := func(context.Context, openrover.Command) error {
		calls++
		return nil
	}

	n, err := driveLoop(ctx, send, openrover.StopCommand, 10, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
	assert.Zero(t, calls)
}

func TestDriveLoop_SendError(t *testing.T) {
	boom := errors.New("boom")
	send := func(context.Context, openrover.Command) error { return boom }

	n, err := driveLoop(context.Background(), send, openrover.StopCommand, 10, time.Hour)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, n)
}

func TestCapturingSender(t *testing.T) {
	proto, link := newScriptedProtocol()
	var file bytes.Buffer

	send := capturingSender(proto, openrover.NewCaptureWriter(&file), "session-1")
	c := openrover.Command{Left: -1, Right: 1, Verb: openrover.VerbSetFanSpeed, Arg: 200}
	require.NoError(t, send(context.Background(), c))

	r := openrover.NewCaptureReader(&file)
	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, openrover.Outbound, rec.Direction)
	assert.Equal(t, "session-1", rec.Session)
	assert.Equal(t, link.sent.Bytes(), rec.Raw)

	got, err := openrover.DecodeCommand(openrover.ByteEffort{}, rec.Raw)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

// mirroredEffort packs effort e the way ByteEffort packs -e
type mirroredEffort struct{}

func (mirroredEffort) Size() int { return 1 }

func (mirroredEffort) Pack(e float64) []byte {
	return openrover.ByteEffort{}.Pack(-e)
}

func (mirroredEffort) Unpack(b []byte) (float64, error) {
	e, err := openrover.ByteEffort{}.Unpack(b)
	return -e, err
}

func TestCapturingSender_UsesProtocolEffortFormat(t *testing.T) {
	link := &scriptedLink{Reader: bytes.NewReader(nil)}
	proto := openrover.NewProtocol(openrover.NewStream(link), openrover.WithEffortFormat(mirroredEffort{}))
	var file bytes.Buffer

	send := capturingSender(proto, openrover.NewCaptureWriter(&file), "session-2")
	c := openrover.Command{Left: 1, Right: -0.5, Flipper: 0.2}
	require.NoError(t, send(context.Background(), c))

	rec, err := openrover.NewCaptureReader(&file).Next()
	require.NoError(t, err)
	assert.Equal(t, link.sent.Bytes(), rec.Raw)
	assert.NotEqual(t, openrover.EncodeCommand(openrover.ByteEffort{}, c), rec.Raw)
}
