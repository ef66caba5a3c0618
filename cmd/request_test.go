// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Roverlink Contributors

package cmd

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roverlink/roverlink/pkg/openrover"
)

type scriptedLink struct {
	io.Reader
	sent bytes.Buffer
}

func (s *scriptedLink) Write(p []byte) (int, error) {
	return s.sent.Write(p)
}

func newScriptedProtocol(incoming ...[]byte) (*openrover.Protocol, *scriptedLink) {
	link := &scriptedLink{Reader: bytes.NewReader(bytes.Join(incoming, nil))}
	return openrover.NewProtocol(openrover.NewStream(link)), link
}

func TestRequestWithRetry_RetriesChecksumFailure(t *testing.T) {
	// firmware version 1.0.10 (0x271A); trailer 150 is correct
	proto, link := newScriptedProtocol(
		[]byte{253, openrover.ElemFirmwareVersion, 0x27, 0x1A, 151},
		[]byte{253, openrover.ElemFirmwareVersion, 0x27, 0x1A, 150},
	)

	e, err := requestWithRetry(context.Background(), proto, openrover.ElemFirmwareVersion, 3, time.Second)
	require.NoError(t, err)
	assert.Equal(t, openrover.FirmwareVersion{Major: 1, Minor: 0, Patch: 10}, e.Value)

	request := openrover.EncodeCommand(openrover.ByteEffort{}, openrover.Command{
		Verb: openrover.VerbGetData,
		Arg:  openrover.ElemFirmwareVersion,
	})
	assert.Equal(t, append(append([]byte{}, request...), request...), link.sent.Bytes(), "one request per attempt")

	snap := proto.Statistics().Snapshot()
	assert.Equal(t, uint64(1), snap.ChecksumErrors)
	assert.Equal(t, uint64(2), snap.CommandsSent)
}

func TestRequestWithRetry_GivesUp(t *testing.T) {
	proto, _ := newScriptedProtocol(
		[]byte{253, openrover.ElemFirmwareVersion, 0x27, 0x1A, 151},
		[]byte{253, openrover.ElemFirmwareVersion, 0x27, 0x1A, 152},
	)

	_, err := requestWithRetry(context.Background(), proto, openrover.ElemFirmwareVersion, 1, time.Second)
	assert.ErrorIs(t, err, openrover.ErrChecksum)
}

func TestRequestWithRetry_TransportErrorNotRetried(t *testing.T) {
	proto, link := newScriptedProtocol()

	_, err := requestWithRetry(context.Background(), proto, openrover.ElemFanSpeed, 3, time.Second)
	var te *openrover.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, openrover.CommandFrameSize, link.sent.Len())
}

func TestResolveElement(t *testing.T) {
	catalog := openrover.DefaultCatalog()

	tests := []struct {
		arg     string
		want    byte
		wantErr bool
	}{
		{"40", openrover.ElemFirmwareVersion, false},
		{"release version", openrover.ElemFirmwareVersion, false},
		{"  Fan Speed ", openrover.ElemFanSpeed, false},
		{"99", 99, false},
		{"300", 0, true},
		{"warp drive", 0, true},
	}
	for _, tt := range tests {
		got, err := resolveElement(catalog, tt.arg)
		if tt.wantErr {
			assert.Error(t, err, tt.arg)
			continue
		}
		require.NoError(t, err, tt.arg)
		assert.Equal(t, tt.want, got, tt.arg)
	}
}
