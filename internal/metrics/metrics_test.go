// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Roverlink Contributors

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roverlink/roverlink/pkg/openrover"
)

func TestProtocolCollector(t *testing.T) {
	stats := openrover.NewStatistics()
	stats.RecordFrame()
	stats.RecordFrame()
	stats.RecordChecksumError()
	stats.RecordSkipped(3)
	stats.RecordCommand()

	c := NewProtocolCollector(stats)
	assert.Equal(t, 7, testutil.CollectAndCount(c))

	expected := `
# HELP roverlink_frames_total Telemetry frames read, by checksum result.
# TYPE roverlink_frames_total counter
roverlink_frames_total{result="corrupt"} 1
roverlink_frames_total{result="valid"} 2
# HELP roverlink_skipped_bytes_total Bytes discarded while scanning for a start marker.
# TYPE roverlink_skipped_bytes_total counter
roverlink_skipped_bytes_total 3
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"roverlink_frames_total", "roverlink_skipped_bytes_total")
	assert.NoError(t, err)
}

func TestProtocolCollector_IgnoresReset(t *testing.T) {
	stats := openrover.NewStatistics()
	stats.RecordFrame()
	stats.RecordChecksumError()
	c := NewProtocolCollector(stats)

	stats.Reset()
	stats.RecordFrame()

	expected := `
# HELP roverlink_frames_total Telemetry frames read, by checksum result.
# TYPE roverlink_frames_total counter
roverlink_frames_total{result="corrupt"} 1
roverlink_frames_total{result="valid"} 2
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected), "roverlink_frames_total")
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Snapshot().Frames)
}

func TestProtocolCollector_Lint(t *testing.T) {
	problems, err := testutil.CollectAndLint(NewProtocolCollector(openrover.NewStatistics()))
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestElementMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewElementMetrics(reg)

	cat := openrover.DefaultCatalog()
	voltage, err := cat.DecodeElement([]byte{openrover.ElemBatteryVoltage, 0x02, 0xE4}) // 740 -> 12.76 V
	require.NoError(t, err)
	version, err := cat.DecodeElement([]byte{openrover.ElemFirmwareVersion, 0x27, 0x1A})
	require.NoError(t, err)

	m.Observe(voltage)
	m.Observe(voltage)
	m.Observe(version)

	v := testutil.ToFloat64(m.Value.WithLabelValues("0", voltage.Name))
	assert.InDelta(t, 740.0/58.0, v, 1e-9)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Updates.WithLabelValues("0", voltage.Name)))

	// firmware version has no numeric reading
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Updates.WithLabelValues("40", version.Name)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Value))
}

func TestNumericValue(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{uint16(500), 500, true},
		{int16(-20), -20, true},
		{openrover.Measurement{Value: 1.5, Unit: "A"}, 1.5, true},
		{openrover.Flags(0x0005), 5, true},
		{openrover.ChargerState(true), 1, true},
		{openrover.ChargerState(false), 0, true},
		{openrover.FirmwareVersion{Major: 1}, 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := NumericValue(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(NewProtocolCollector(openrover.NewStatistics()))

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "roverlink_commands_sent_total 0")
	assert.Contains(t, string(body), "go_goroutines")
}
